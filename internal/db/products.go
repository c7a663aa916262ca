package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetProductByName looks a product up by its natural key. Returns nil when
// absent.
func (db *DB) GetProductByName(ctx context.Context, name string) (*Product, error) {
	var p Product
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, vendor, description, image_url, status, created_at, updated_at
		 FROM products WHERE name = $1`,
		name,
	).Scan(&p.ID, &p.Name, &p.Vendor, &p.Description, &p.ImageURL, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("GetProductByName", name, err)
	}
	return &p, nil
}

// GetProductByID retrieves a product row. Returns nil when absent.
func (db *DB) GetProductByID(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, vendor, description, image_url, status, created_at, updated_at
		 FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Vendor, &p.Description, &p.ImageURL, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("GetProductByID", fmt.Sprint(id), err)
	}
	return &p, nil
}

// UpsertProduct creates or updates a product by display name and returns its
// stable id. created_at survives updates; updated_at always advances.
func (db *DB) UpsertProduct(ctx context.Context, attrs ProductAttrs) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx,
		upsertProductSQL,
		attrs.Name, attrs.Vendor, attrs.Description, attrs.ImageURL,
	).Scan(&id)
	if err != nil {
		return 0, storageErr("UpsertProduct", attrs.Name, err)
	}
	return id, nil
}

const upsertProductSQL = `
	INSERT INTO products (name, vendor, description, image_url)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (name) DO UPDATE SET
		vendor = EXCLUDED.vendor,
		description = EXCLUDED.description,
		image_url = EXCLUDED.image_url,
		updated_at = NOW()
	RETURNING id`

// UpsertProductWithSpecs upserts a product and replaces its entire spec set
// in one transaction. The prior spec rows are superseded wholesale so no
// stale attribute survives a schema change on the source side.
func (db *DB) UpsertProductWithSpecs(ctx context.Context, attrs ProductAttrs, specs []SpecInput) (int64, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, storageErr("UpsertProductWithSpecs", attrs.Name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var productID int64
	if err := tx.QueryRow(ctx, upsertProductSQL,
		attrs.Name, attrs.Vendor, attrs.Description, attrs.ImageURL,
	).Scan(&productID); err != nil {
		return 0, storageErr("UpsertProductWithSpecs", attrs.Name, err)
	}

	codes, err := resolveCategoryCodes(ctx, tx, specs)
	if err != nil {
		return 0, storageErr("UpsertProductWithSpecs", attrs.Name, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM specs WHERE product_id = $1`, productID); err != nil {
		return 0, storageErr("UpsertProductWithSpecs", attrs.Name, err)
	}
	for _, spec := range specs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO specs (product_id, category_code, name, value) VALUES ($1, $2, $3, $4)`,
			productID, codes[spec.Category], spec.Name, spec.Value,
		); err != nil {
			return 0, storageErr("UpsertProductWithSpecs", attrs.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storageErr("UpsertProductWithSpecs", attrs.Name, err)
	}
	return productID, nil
}

// ListProductNames returns every stored product name with its id, for the
// per-run name cache.
func (db *DB) ListProductNames(ctx context.Context) ([]ProductName, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, name FROM products ORDER BY id`)
	if err != nil {
		return nil, storageErr("ListProductNames", "", err)
	}
	defer rows.Close()

	var names []ProductName
	for rows.Next() {
		var pn ProductName
		if err := rows.Scan(&pn.ID, &pn.Name); err != nil {
			return nil, storageErr("ListProductNames", "", err)
		}
		names = append(names, pn)
	}
	return names, rows.Err()
}

// ListSpecs returns the stored spec set of one product.
func (db *DB) ListSpecs(ctx context.Context, productID int64) ([]Spec, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, product_id, category_code, name, value, created_at, updated_at
		 FROM specs WHERE product_id = $1 ORDER BY id`,
		productID,
	)
	if err != nil {
		return nil, storageErr("ListSpecs", fmt.Sprint(productID), err)
	}
	defer rows.Close()

	var specs []Spec
	for rows.Next() {
		var s Spec
		if err := rows.Scan(&s.ID, &s.ProductID, &s.CategoryCode, &s.Name, &s.Value, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, storageErr("ListSpecs", fmt.Sprint(productID), err)
		}
		specs = append(specs, s)
	}
	return specs, rows.Err()
}

// MergeProductSpecs updates changed values and inserts missing rows without
// touching specs the new facts do not mention. This is the review-driven
// spec path; the product-detail path replaces the whole set instead.
func (db *DB) MergeProductSpecs(ctx context.Context, productID int64, specs []SpecInput) error {
	if len(specs) == 0 {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return storageErr("MergeProductSpecs", fmt.Sprint(productID), err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	codes, err := resolveCategoryCodes(ctx, tx, specs)
	if err != nil {
		return storageErr("MergeProductSpecs", fmt.Sprint(productID), err)
	}

	for _, spec := range specs {
		code := codes[spec.Category]
		var specID int64
		var stored string
		err := tx.QueryRow(ctx,
			`SELECT id, value FROM specs WHERE product_id = $1 AND category_code = $2 AND name = $3`,
			productID, code, spec.Name,
		).Scan(&specID, &stored)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if _, err := tx.Exec(ctx,
				`INSERT INTO specs (product_id, category_code, name, value) VALUES ($1, $2, $3, $4)`,
				productID, code, spec.Name, spec.Value,
			); err != nil {
				return storageErr("MergeProductSpecs", fmt.Sprint(productID), err)
			}
		case err != nil:
			return storageErr("MergeProductSpecs", fmt.Sprint(productID), err)
		case stored != spec.Value:
			if _, err := tx.Exec(ctx,
				`UPDATE specs SET value = $1, updated_at = NOW() WHERE id = $2`,
				spec.Value, specID,
			); err != nil {
				return storageErr("MergeProductSpecs", fmt.Sprint(productID), err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("MergeProductSpecs", fmt.Sprint(productID), err)
	}
	return nil
}
