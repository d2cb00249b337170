package postgres

// Schema holds the DDL for the draft tables, applied in order by Migrate.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS application_drafts (
		id                TEXT PRIMARY KEY,
		slug              TEXT NOT NULL,
		status            TEXT NOT NULL,
		current_step      INTEGER NOT NULL,
		completed_steps   JSONB NOT NULL DEFAULT '[]',
		answers           JSONB NOT NULL DEFAULT '{}',
		derived_scores    JSONB NOT NULL DEFAULT '{}',
		total_score       INTEGER NOT NULL DEFAULT 0,
		organization_name TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL,
		last_saved_at     TIMESTAMPTZ,
		submitted_at      TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_application_drafts_status_updated
		ON application_drafts (status, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id            BIGSERIAL PRIMARY KEY,
		event_type    TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id   TEXT NOT NULL,
		details       JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL
	)`,
}
