package db

import (
	"database/sql"
)

// MigrateUp creates the notification pipeline schema. Every statement is
// idempotent so the worker can run it on every start.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS criteria (
    id              SERIAL PRIMARY KEY,
    user_id         BIGINT NOT NULL,
    name            TEXT NOT NULL,
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    match_count     BIGINT NOT NULL DEFAULT 0,
    last_matched_at TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS criteria_conditions (
    id          SERIAL PRIMARY KEY,
    criteria_id INTEGER NOT NULL REFERENCES criteria(id) ON DELETE CASCADE,
    type        VARCHAR(20) NOT NULL,
    value       TEXT NOT NULL
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notifications (
    id         SERIAL PRIMARY KEY,
    user_id    BIGINT NOT NULL,
    type       VARCHAR(30) NOT NULL,
    title      TEXT NOT NULL,
    body       TEXT,
    data       JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    sent_at    TIMESTAMPTZ
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS seen_items (
    item_id BIGINT PRIMARY KEY,
    seen_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS push_settings (
    user_id       BIGINT PRIMARY KEY,
    quiet_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    quiet_start   SMALLINT NOT NULL DEFAULT 22,
    quiet_end     SMALLINT NOT NULL DEFAULT 7,
    max_per_day   INTEGER NOT NULL DEFAULT 10
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS push_subscriptions (
    id           SERIAL PRIMARY KEY,
    user_id      BIGINT NOT NULL,
    endpoint     TEXT NOT NULL UNIQUE,
    p256dh_key   TEXT NOT NULL,
    auth_key     TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_used_at TIMESTAMPTZ
)`); err != nil {
		return err
	}

	indexes := []string{
		// the matcher's bulk condition lookup
		`CREATE INDEX IF NOT EXISTS idx_criteria_conditions_type_value ON criteria_conditions(type, value)`,
		`CREATE INDEX IF NOT EXISTS idx_criteria_conditions_criteria_id ON criteria_conditions(criteria_id)`,
		`CREATE INDEX IF NOT EXISTS idx_criteria_user_id ON criteria(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_criteria_active ON criteria(active) WHERE active = TRUE`,
		// per-user listing and the retention trim
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC)`,
		// daily cap counting and the sent_at update scope
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_sent ON notifications(user_id, sent_at)`,
		`CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user_id ON push_subscriptions(user_id)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// Constraint creation is not idempotent in older PostgreSQL, hence the
	// DO block; errors are ignored when the constraint already exists.
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_condition_type'
    ) THEN
        ALTER TABLE criteria_conditions ADD CONSTRAINT chk_condition_type
        CHECK (type IN ('series', 'character', 'tag', 'artist', 'group', 'language', 'uploader'));
    END IF;
END $$;
`)

	return nil
}

// MigrateDown rolls back the schema in reverse dependency order.
// Use with caution: this deletes all pipeline data.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS push_subscriptions`,
		`DROP TABLE IF EXISTS push_settings`,
		`DROP TABLE IF EXISTS seen_items`,
		`DROP TABLE IF EXISTS notifications`,
		`DROP TABLE IF EXISTS criteria_conditions`,
		`DROP TABLE IF EXISTS criteria CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
