package repository

// Schema definitions for the FraudShield database.
// Compatible with both SQLite and PostgreSQL.

const schemaReports = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    total_transactions INTEGER NOT NULL,
    fraud_count INTEGER NOT NULL,
    fraud_percentage REAL NOT NULL,
    threshold REAL NOT NULL,
    classifier TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    override INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaReports,
		schemaRuleConfigs,
	}
}
