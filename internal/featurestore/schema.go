package featurestore

// Schema definitions for the feature snapshot tables.
// Compatible with both SQLite and PostgreSQL. The offline pipeline owns
// these tables; Harrier only reads them.

const schemaMemberFeatures = `
CREATE TABLE IF NOT EXISTS member_features (
    member_code TEXT PRIMARY KEY,
    total_consumption REAL NOT NULL DEFAULT 0,
    accumulated_bonus REAL NOT NULL DEFAULT 0,
    recency INTEGER NOT NULL DEFAULT 0,
    frequency INTEGER NOT NULL DEFAULT 0,
    monetary REAL NOT NULL DEFAULT 0
);
`

const schemaProductFeatures = `
CREATE TABLE IF NOT EXISTS product_features (
    stock_id TEXT PRIMARY KEY,
    stock_description TEXT NOT NULL DEFAULT '',
    category TEXT,
    brand TEXT,
    avg_price REAL NOT NULL DEFAULT 0,
    popularity_score REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_product_features_category ON product_features(category);
`

const schemaSnapshotMeta = `
CREATE TABLE IF NOT EXISTS snapshot_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// AllSchemas returns schemas in creation order.
func AllSchemas() []string {
	return []string{
		schemaMemberFeatures,
		schemaProductFeatures,
		schemaSnapshotMeta,
	}
}
