package db

import (
	"context"
	"fmt"
)

// schemaStatements create the harvester's tables. Each statement is
// idempotent so Migrate can run on every deploy. The two ALTERs mirror the
// columns that were bolted on after the reconciliation engine shipped.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		vendor      TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		image_url   TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'active',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS spec_categories (
		id         BIGSERIAL PRIMARY KEY,
		domain_tag TEXT NOT NULL,
		code       INTEGER NOT NULL,
		name       TEXT NOT NULL,
		UNIQUE (domain_tag, name),
		UNIQUE (domain_tag, code)
	)`,
	`CREATE TABLE IF NOT EXISTS specs (
		id            BIGSERIAL PRIMARY KEY,
		product_id    BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		category_code INTEGER NOT NULL,
		name          TEXT NOT NULL,
		value         TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS specs_product_idx ON specs (product_id)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id                BIGSERIAL PRIMARY KEY,
		master_product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		type              TEXT NOT NULL,
		title             TEXT NOT NULL DEFAULT '',
		body              TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (master_product_id, type, title)
	)`,
	`ALTER TABLE reviews ADD COLUMN IF NOT EXISTS main_url TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE reviews ADD COLUMN IF NOT EXISTS page_url TEXT NOT NULL DEFAULT ''`,
	`CREATE TABLE IF NOT EXISTS review_data (
		id           BIGSERIAL PRIMARY KEY,
		review_id    BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
		data_type    TEXT NOT NULL,
		key          TEXT NOT NULL,
		value        TEXT NOT NULL,
		unit         TEXT NOT NULL DEFAULT '',
		product_name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS review_data_review_idx ON review_data (review_id)`,
}

// Migrate creates or upgrades the schema.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
