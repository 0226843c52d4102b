// Package rules provides the CEL-Go based assessment rule engine.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

// ErrRuleRequired is returned when a nil rule config is validated.
var ErrRuleRequired = errors.New("rule config is required")

// Engine is the CEL-based rule evaluation engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a new rule evaluation engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// Variables describe one computed levy
	env, err := cel.NewEnv(
		cel.Variable("revenue", cel.DoubleType),
		cel.Variable("taxable_revenue", cel.DoubleType),
		cel.Variable("levy_percentage", cel.DoubleType),
		cel.Variable("calculated_levy", cel.DoubleType),
		cel.Variable("minimum_levy", cel.DoubleType),
		cel.Variable("final_levy", cel.DoubleType),
		cel.Variable("max_revenue_cap", cel.DoubleType),
		cel.Variable("municipality_class", cel.StringType),
		cel.Variable("contribution_group", cel.IntType),
		cel.Variable("municipality_name", cel.StringType),
		cel.Variable("business_activity", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return ErrRuleRequired
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return ErrRuleRequired
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules. Disabled rules are skipped.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg != nil && cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateInput is one computed levy together with its request.
type EvaluateInput struct {
	MunicipalityName string
	BusinessActivity string
	Revenue          float64
	Result           domain.LevyResult
	MinimumLevy      float64
	MaxRevenueCap    float64
}

// EvaluateAll evaluates all loaded rules in parallel. Results are ordered
// by rule ID.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.RuleResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Config.ID < rules[j].Config.ID })

	activation := map[string]any{
		"revenue":            input.Revenue,
		"taxable_revenue":    input.Result.TaxableRevenue,
		"levy_percentage":    input.Result.LevyPercentage,
		"calculated_levy":    input.Result.CalculatedLevy,
		"minimum_levy":       input.MinimumLevy,
		"final_levy":         input.Result.FinalLevy,
		"max_revenue_cap":    input.MaxRevenueCap,
		"municipality_class": string(input.Result.MunicipalityClass),
		"contribution_group": int64(input.Result.ContributionGroup),
		"municipality_name":  input.MunicipalityName,
		"business_activity":  input.BusinessActivity,
	}

	// Parallel evaluation using worker pool pattern
	results := make([]domain.RuleResult, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.evaluateRule(ctx, r, activation)
		}(i, rule)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(ctx context.Context, rule *CompiledRule, activation map[string]any) domain.RuleResult {
	start := time.Now()

	result := domain.RuleResult{
		RuleID: rule.Config.ID,
	}

	out, _, err := rule.Program.ContextEval(ctx, activation)
	if err != nil {
		result.SubRuleRef = domain.RuleOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	score := toScore(out)
	result.Score = score
	result.SubRuleRef, result.Reason = matchBand(score, rule.Config.Bands)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching band for a score.
// Bands are evaluated in order: lower inclusive, upper exclusive, a nil
// upper limit is unbounded.
func matchBand(score float64, bands []domain.RuleBand) (string, string) {
	for _, band := range bands {
		lower := 0.0
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if score < lower {
			continue
		}
		if band.UpperLimit == nil || score < *band.UpperLimit {
			return band.SubRuleRef, band.Reason
		}
	}

	return domain.RuleOutcomePass, "no matching band"
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules replaces all loaded rules. Nothing changes when any enabled
// rule fails to compile.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if cfg == nil || !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations sorted by ID.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
