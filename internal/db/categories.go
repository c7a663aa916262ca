package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// GetOrCreateCategory resolves a category name to its stable short code,
// assigning max(existing)+1 on first sighting. Safe under concurrent
// writers: the code assignment runs behind a transaction-scoped advisory
// lock on the domain tag, with the unique constraints as backstop.
func (db *DB) GetOrCreateCategory(ctx context.Context, name string) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, storageErr("GetOrCreateCategory", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	code, err := getOrCreateCategoryTx(ctx, tx, name)
	if err != nil {
		return 0, storageErr("GetOrCreateCategory", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, storageErr("GetOrCreateCategory", name, err)
	}
	return code, nil
}

// GetCategoryByName returns a category row, or nil when absent.
func (db *DB) GetCategoryByName(ctx context.Context, name string) (*SpecCategory, error) {
	var c SpecCategory
	err := db.pool.QueryRow(ctx,
		`SELECT id, domain_tag, code, name FROM spec_categories WHERE domain_tag = $1 AND name = $2`,
		DomainTag, name,
	).Scan(&c.ID, &c.DomainTag, &c.Code, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("GetCategoryByName", name, err)
	}
	return &c, nil
}

func getOrCreateCategoryTx(ctx context.Context, tx pgx.Tx, name string) (int, error) {
	var code int
	err := tx.QueryRow(ctx,
		`SELECT code FROM spec_categories WHERE domain_tag = $1 AND name = $2`,
		DomainTag, name,
	).Scan(&code)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// Serialize code assignment for this domain tag. The lock is released
	// at commit/rollback, so two transactions can never both read the same
	// max(code).
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, DomainTag); err != nil {
		return 0, err
	}

	// Another transaction may have inserted the name while we waited.
	err = tx.QueryRow(ctx,
		`SELECT code FROM spec_categories WHERE domain_tag = $1 AND name = $2`,
		DomainTag, name,
	).Scan(&code)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO spec_categories (domain_tag, code, name)
		 SELECT $1, COALESCE(MAX(code), 0) + 1, $2 FROM spec_categories WHERE domain_tag = $1
		 RETURNING code`,
		DomainTag, name,
	).Scan(&code)
	if err != nil {
		return 0, err
	}
	return code, nil
}

// resolveCategoryCodes resolves every distinct category referenced by specs
// within the caller's transaction.
func resolveCategoryCodes(ctx context.Context, tx pgx.Tx, specs []SpecInput) (map[string]int, error) {
	codes := make(map[string]int)
	for _, spec := range specs {
		if _, done := codes[spec.Category]; done {
			continue
		}
		code, err := getOrCreateCategoryTx(ctx, tx, spec.Category)
		if err != nil {
			return nil, err
		}
		codes[spec.Category] = code
	}
	return codes, nil
}
