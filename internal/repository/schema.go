package repository

// Schema definitions for the tourism levy database.
// Compatible with both SQLite and PostgreSQL.

const schemaClassSchedules = `
CREATE TABLE IF NOT EXISTS class_schedules (
    class TEXT PRIMARY KEY,
    rates TEXT NOT NULL,
    minimums TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaReferenceSettings = `
CREATE TABLE IF NOT EXISTS reference_settings (
    name TEXT PRIMARY KEY,
    value DOUBLE PRECISION NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaMunicipalities = `
CREATE TABLE IF NOT EXISTS municipalities (
    name TEXT PRIMARY KEY,
    class TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_municipalities_class ON municipalities(class);
`

const schemaActivities = `
CREATE TABLE IF NOT EXISTS activities (
    label TEXT PRIMARY KEY,
    code TEXT,
    class_groups TEXT NOT NULL
);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    municipality_name TEXT NOT NULL,
    business_activity TEXT NOT NULL,
    revenue DOUBLE PRECISION NOT NULL,
    minimum_levy DOUBLE PRECISION NOT NULL,
    result TEXT NOT NULL,
    error TEXT NOT NULL,
    rule_results TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_status ON assessments(status);
CREATE INDEX IF NOT EXISTS idx_assessments_timestamp ON assessments(timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClassSchedules,
		schemaReferenceSettings,
		schemaMunicipalities,
		schemaActivities,
		schemaRuleConfigs,
		schemaAssessments,
	}
}
