// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// settingMaxRevenueCap is the reference_settings row holding the cap.
const settingMaxRevenueCap = "max_revenue_cap"

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveReference replaces the stored lookup tables in one transaction.
// Rules in data are upserted; stored rules not in data are kept.
func (r *SQLRepository) SaveReference(ctx context.Context, data *domain.ReferenceData) error {
	if data == nil {
		return fmt.Errorf("%w: reference data is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"class_schedules", "municipalities", "activities"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, r.rebind(`
		INSERT INTO reference_settings (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`), settingMaxRevenueCap, data.MaxRevenueCap, now)
	if err != nil {
		return fmt.Errorf("failed to save revenue cap: %w", err)
	}

	classes := make([]string, 0, len(data.Rates))
	for class := range data.Rates {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	for _, class := range classes {
		rates, err := json.Marshal(data.Rates[class])
		if err != nil {
			return fmt.Errorf("failed to encode rates for class %s: %w", class, err)
		}
		minimums, err := json.Marshal(data.Minimums[class])
		if err != nil {
			return fmt.Errorf("failed to encode minimums for class %s: %w", class, err)
		}
		_, err = tx.ExecContext(ctx, r.rebind(`
			INSERT INTO class_schedules (class, rates, minimums, updated_at) VALUES (?, ?, ?, ?)
		`), class, string(rates), string(minimums), now)
		if err != nil {
			return fmt.Errorf("failed to save schedule for class %s: %w", class, err)
		}
	}

	for _, m := range data.Municipalities {
		_, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO municipalities (name, class) VALUES (?, ?)
		`), m.Name, m.Class)
		if err != nil {
			return fmt.Errorf("failed to save municipality %s: %w", m.Name, err)
		}
	}

	for _, a := range data.Activities {
		groups, err := json.Marshal(a.Groups)
		if err != nil {
			return fmt.Errorf("failed to encode groups for activity %s: %w", a.Label, err)
		}
		_, err = tx.ExecContext(ctx, r.rebind(`
			INSERT INTO activities (label, code, class_groups) VALUES (?, ?, ?)
		`), a.Label, a.Code, string(groups))
		if err != nil {
			return fmt.Errorf("failed to save activity %s: %w", a.Label, err)
		}
	}

	for _, rule := range data.Rules {
		if err := r.saveRuleConfig(ctx, tx, rule, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadReference reads the stored lookup tables. It returns ErrNotFound when
// no schedule has been stored yet. Rules are loaded with ListRuleConfigs.
func (r *SQLRepository) LoadReference(ctx context.Context) (*domain.ReferenceData, error) {
	data := &domain.ReferenceData{
		Rates:    make(map[string][]float64),
		Minimums: make(map[string][]float64),
	}

	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT value FROM reference_settings WHERE name = ?
	`), settingMaxRevenueCap).Scan(&data.MaxRevenueCap)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT class, rates, minimums FROM class_schedules ORDER BY class`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var class, rates, minimums string
		if err := rows.Scan(&class, &rates, &minimums); err != nil {
			return nil, err
		}
		var rv, mv []float64
		if err := json.Unmarshal([]byte(rates), &rv); err != nil {
			return nil, fmt.Errorf("failed to parse rates for class %s: %w", class, err)
		}
		if err := json.Unmarshal([]byte(minimums), &mv); err != nil {
			return nil, fmt.Errorf("failed to parse minimums for class %s: %w", class, err)
		}
		data.Rates[class] = rv
		data.Minimums[class] = mv
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(data.Rates) == 0 {
		return nil, ErrNotFound
	}

	data.Municipalities, err = r.listMunicipalities(ctx)
	if err != nil {
		return nil, err
	}
	data.Activities, err = r.listActivities(ctx)
	if err != nil {
		return nil, err
	}

	return data, nil
}

func (r *SQLRepository) listMunicipalities(ctx context.Context) ([]domain.MunicipalityEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, class FROM municipalities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MunicipalityEntry
	for rows.Next() {
		var m domain.MunicipalityEntry
		if err := rows.Scan(&m.Name, &m.Class); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLRepository) listActivities(ctx context.Context) ([]domain.ActivityEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT label, code, class_groups FROM activities ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityEntry
	for rows.Next() {
		var a domain.ActivityEntry
		var code sql.NullString
		var groups string
		if err := rows.Scan(&a.Label, &code, &groups); err != nil {
			return nil, err
		}
		a.Code = code.String
		if err := json.Unmarshal([]byte(groups), &a.Groups); err != nil {
			return nil, fmt.Errorf("failed to parse groups for activity %s: %w", a.Label, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveRuleConfig stores a rule configuration.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	return r.saveRuleConfig(ctx, r.db, rule, time.Now().UTC())
}

func (r *SQLRepository) saveRuleConfig(ctx context.Context, ex execer, rule *domain.RuleConfig, now time.Time) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	bands, err := json.Marshal(rule.Bands)
	if err != nil {
		return fmt.Errorf("failed to encode bands for rule %s: %w", rule.ID, err)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	version := rule.Version
	if version == "" {
		version = "1.0.0"
	}

	query := `
		INSERT INTO rule_configs (
			id, name, description, version, expression, bands, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err = ex.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		version, rule.Expression, string(bands), enabled,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}
	return nil
}

// GetRuleConfig retrieves the latest enabled version of a rule.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, bands, enabled
		FROM rule_configs
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	cfg, err := scanRuleConfig(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListRuleConfigs retrieves all enabled rule configurations, latest version
// of each rule only.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, bands, enabled
		FROM rule_configs
		WHERE enabled = 1
		ORDER BY id, version DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	seen := make(map[string]bool)
	for rows.Next() {
		cfg, err := scanRuleConfig(rows)
		if err != nil {
			return nil, err
		}
		if seen[cfg.ID] {
			continue
		}
		seen[cfg.ID] = true
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleConfig(row rowScanner) (*domain.RuleConfig, error) {
	var cfg domain.RuleConfig
	var description sql.NullString
	var bands string
	var enabled int

	if err := row.Scan(
		&cfg.ID, &cfg.Name, &description,
		&cfg.Version, &cfg.Expression, &bands, &enabled,
	); err != nil {
		return nil, err
	}

	cfg.Description = description.String
	cfg.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(bands), &cfg.Bands); err != nil {
		return nil, fmt.Errorf("failed to parse bands for rule %s: %w", cfg.ID, err)
	}
	return &cfg, nil
}

// SaveAssessment stores an assessment. Saving an existing ID replaces it,
// which is how a pending assessment is completed.
func (r *SQLRepository) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: assessment id is required", ErrInvalidInput)
	}

	result := ""
	if a.Result != nil {
		b, err := json.Marshal(a.Result)
		if err != nil {
			return fmt.Errorf("failed to encode result of assessment %s: %w", a.ID, err)
		}
		result = string(b)
	}
	assessmentErr := ""
	if a.Error != nil {
		b, err := json.Marshal(a.Error)
		if err != nil {
			return fmt.Errorf("failed to encode error of assessment %s: %w", a.ID, err)
		}
		assessmentErr = string(b)
	}
	ruleResults, err := json.Marshal(a.RuleResults)
	if err != nil {
		return fmt.Errorf("failed to encode rule results of assessment %s: %w", a.ID, err)
	}
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata of assessment %s: %w", a.ID, err)
	}

	query := `
		INSERT INTO assessments (
			id, status, timestamp, municipality_name, business_activity,
			revenue, minimum_levy, result, error, rule_results, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			timestamp = excluded.timestamp,
			minimum_levy = excluded.minimum_levy,
			result = excluded.result,
			error = excluded.error,
			rule_results = excluded.rule_results,
			metadata = excluded.metadata
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.Status, a.Timestamp, a.MunicipalityName, a.BusinessActivity,
		a.RevenueTwoYearsAgo, a.MinimumLevy, result, assessmentErr,
		string(ruleResults), string(metadata),
	)
	return err
}

// GetAssessment retrieves an assessment by ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	query := `
		SELECT id, status, timestamp, municipality_name, business_activity,
			   revenue, minimum_levy, result, error, rule_results, metadata
		FROM assessments
		WHERE id = ?
	`

	var a domain.Assessment
	var result, assessmentErr, ruleResults, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&a.ID, &a.Status, &a.Timestamp, &a.MunicipalityName, &a.BusinessActivity,
		&a.RevenueTwoYearsAgo, &a.MinimumLevy, &result, &assessmentErr,
		&ruleResults, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if result != "" {
		a.Result = &domain.LevyResult{}
		if err := json.Unmarshal([]byte(result), a.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result of assessment %s: %w", id, err)
		}
	}
	if assessmentErr != "" {
		a.Error = &domain.AssessmentError{}
		if err := json.Unmarshal([]byte(assessmentErr), a.Error); err != nil {
			return nil, fmt.Errorf("failed to decode error of assessment %s: %w", id, err)
		}
	}
	if ruleResults != "" {
		if err := json.Unmarshal([]byte(ruleResults), &a.RuleResults); err != nil {
			return nil, fmt.Errorf("failed to decode rule results of assessment %s: %w", id, err)
		}
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of assessment %s: %w", id, err)
		}
	}
	a.Timestamp = a.Timestamp.UTC()

	return &a, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
