package history

const SchemaVersion = 1

const schemaSQL = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

-- One row per executed plan; body holds the full plan as JSON
CREATE TABLE IF NOT EXISTS plans (
    id TEXT PRIMARY KEY,
    preset TEXT NOT NULL,
    anchor TEXT NOT NULL,
    created_at TEXT NOT NULL,
    figures INTEGER NOT NULL,
    warnings INTEGER NOT NULL DEFAULT 0,
    body TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plans_created ON plans(created_at);
CREATE INDEX IF NOT EXISTS idx_plans_preset ON plans(preset);

-- Every layer timestamp a plan resolved
CREATE TABLE IF NOT EXISTS layers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    figure INTEGER NOT NULL,
    axis INTEGER NOT NULL,
    source_module TEXT NOT NULL,
    capability TEXT NOT NULL,
    resolved_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_layers_plan ON layers(plan_id);
CREATE INDEX IF NOT EXISTS idx_layers_capability ON layers(source_module, capability);
`

func GetSchema() string {
	return schemaSQL
}
