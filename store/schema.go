// CLAUDE:SUMMARY Applies the complete pepite SQL schema: credentials, campaigns, target logs, catalog and collision tables.
package store

import "database/sql"

// Schema is the complete pepite schema. All timestamps are unix milliseconds.
const Schema = `
-- Credential pool: one row per (service, secret)
CREATE TABLE IF NOT EXISTS credentials (
    id            TEXT PRIMARY KEY,
    service       TEXT NOT NULL,
    secret        TEXT NOT NULL,
    active        INTEGER NOT NULL DEFAULT 1,
    error_count   INTEGER NOT NULL DEFAULT 0,
    last_error_at INTEGER,
    created_at    INTEGER NOT NULL,
    UNIQUE(service, secret)
);
CREATE INDEX IF NOT EXISTS idx_credentials_service ON credentials(service, active, error_count);

-- Campaigns: declarative extraction configurations
CREATE TABLE IF NOT EXISTS campaigns (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    strategy         TEXT NOT NULL DEFAULT 'HTTP',
    urls_json        TEXT NOT NULL DEFAULT '[]',
    params_json      TEXT NOT NULL DEFAULT '{}',
    schedule         TEXT NOT NULL DEFAULT 'manual',
    enabled          INTEGER NOT NULL DEFAULT 1,
    status           TEXT NOT NULL DEFAULT 'IDLE',
    last_run_at      INTEGER,
    last_duration_ms INTEGER NOT NULL DEFAULT 0,
    last_error       TEXT NOT NULL DEFAULT '',
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_campaigns_enabled ON campaigns(enabled, schedule, status);

-- Target logs: one live row per (campaign, url)
CREATE TABLE IF NOT EXISTS target_logs (
    id            TEXT PRIMARY KEY,
    campaign_id   TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
    url           TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'PENDING',
    error_message TEXT NOT NULL DEFAULT '',
    updated_at    INTEGER NOT NULL,
    UNIQUE(campaign_id, url)
);
CREATE INDEX IF NOT EXISTS idx_target_logs_campaign ON target_logs(campaign_id, status);

-- Canonical products, keyed by normalized product code (EAN-13)
CREATE TABLE IF NOT EXISTS products (
    code        TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    brand       TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    provisional INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);

-- Offers: one price/discount snapshot per source per capture
CREATE TABLE IF NOT EXISTS offers (
    id                 TEXT PRIMARY KEY,
    campaign_id        TEXT,
    product_code       TEXT NOT NULL REFERENCES products(code),
    merchant           TEXT NOT NULL,
    list_price         REAL NOT NULL,
    immediate_discount REAL NOT NULL DEFAULT 0,
    coupon_value       REAL NOT NULL DEFAULT 0,
    rebate_value       REAL NOT NULL DEFAULT 0,
    loyalty_discount   REAL NOT NULL DEFAULT 0,
    net_price          REAL NOT NULL DEFAULT 0,
    source_url         TEXT NOT NULL DEFAULT '',
    captured_at        INTEGER NOT NULL,
    active             INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_offers_active ON offers(active, product_code);

-- Levers: active promotional mechanisms
CREATE TABLE IF NOT EXISTS levers (
    id                  TEXT PRIMARY KEY,
    type                TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    absolute_value      REAL NOT NULL DEFAULT 0,
    percent_value       REAL NOT NULL DEFAULT 0,
    target_product_code TEXT NOT NULL DEFAULT '',
    target_brand        TEXT NOT NULL DEFAULT '',
    target_merchant     TEXT NOT NULL DEFAULT '',
    conditions_json     TEXT NOT NULL DEFAULT '{}',
    source_url          TEXT NOT NULL DEFAULT '',
    expires_at          INTEGER,
    active              INTEGER NOT NULL DEFAULT 1,
    created_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_levers_active ON levers(active, expires_at);

-- Rules: merchant-level cumulation policy ('all' = wildcard merchant)
CREATE TABLE IF NOT EXISTS rules (
    id         TEXT PRIMARY KEY,
    merchant   TEXT NOT NULL,
    rule_type  TEXT NOT NULL DEFAULT 'cumulation',
    flags_json TEXT NOT NULL DEFAULT '{}',
    source_url TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rules_merchant ON rules(merchant);

-- Market quotes: best observed resale price per product
CREATE TABLE IF NOT EXISTS market_quotes (
    id           TEXT PRIMARY KEY,
    product_code TEXT NOT NULL REFERENCES products(code),
    marketplace  TEXT NOT NULL DEFAULT 'marketplace_fr',
    buy_box      REAL NOT NULL,
    platform_fee REAL NOT NULL DEFAULT 0,
    fee_percent  REAL NOT NULL DEFAULT 15,
    shipping     REAL NOT NULL DEFAULT 0,
    captured_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_market_quotes_product ON market_quotes(product_code, captured_at DESC);

-- Collision results: one live row per offer, overwritten on recompute
CREATE TABLE IF NOT EXISTS collision_results (
    id            TEXT PRIMARY KEY,
    offer_id      TEXT NOT NULL UNIQUE REFERENCES offers(id) ON DELETE CASCADE,
    product_code  TEXT NOT NULL,
    levers_json   TEXT NOT NULL DEFAULT '[]',
    scenario_json TEXT NOT NULL DEFAULT '{}',
    net_price     REAL NOT NULL,
    resale_price  REAL NOT NULL DEFAULT 0,
    platform_fees REAL NOT NULL DEFAULT 0,
    net_profit    REAL NOT NULL DEFAULT 0,
    roi_percent   REAL NOT NULL DEFAULT 0,
    grade         TEXT NOT NULL DEFAULT 'REJECTED',
    qa_status     TEXT NOT NULL DEFAULT 'PENDING',
    computed_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_collision_grade ON collision_results(grade, roi_percent DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
