package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertReview creates or updates a review identified by (product, type,
// title) and returns its id. updated_at advances only when the body actually
// changed; created_at is immutable once set.
func (db *DB) UpsertReview(ctx context.Context, productID int64, reviewType, title, body string) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx,
		`INSERT INTO reviews (master_product_id, type, title, body)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (master_product_id, type, title) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = CASE
				WHEN reviews.body IS DISTINCT FROM EXCLUDED.body THEN NOW()
				ELSE reviews.updated_at
			END
		 RETURNING id`,
		productID, reviewType, title, body,
	).Scan(&id)
	if err != nil {
		return 0, storageErr("UpsertReview", fmt.Sprintf("product %d %q", productID, title), err)
	}
	return id, nil
}

// GetReview retrieves one review row. Returns nil when absent.
func (db *DB) GetReview(ctx context.Context, id int64) (*Review, error) {
	var r Review
	err := db.pool.QueryRow(ctx,
		`SELECT id, master_product_id, type, title, body, main_url, page_url, created_at, updated_at
		 FROM reviews WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.MasterProductID, &r.Type, &r.Title, &r.Body, &r.MainURL, &r.PageURL, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("GetReview", fmt.Sprint(id), err)
	}
	return &r, nil
}

// UpdateReviewBody replaces a review's body and advances its update
// timestamp.
func (db *DB) UpdateReviewBody(ctx context.Context, id int64, body string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE reviews SET body = $1, updated_at = NOW() WHERE id = $2`,
		body, id,
	)
	return storageErr("UpdateReviewBody", fmt.Sprint(id), err)
}

// SetReviewMainURL records the discovered main review URL. The update
// timestamp is deliberately left alone: URL bookkeeping is not a content
// change, and advancing it here would defeat the freshness comparison.
func (db *DB) SetReviewMainURL(ctx context.Context, id int64, mainURL string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE reviews SET main_url = $1 WHERE id = $2 AND main_url IS DISTINCT FROM $1`,
		mainURL, id,
	)
	return storageErr("SetReviewMainURL", fmt.Sprint(id), err)
}

// SetReviewPageURL records the resolved sub-page URL, same discipline as
// SetReviewMainURL.
func (db *DB) SetReviewPageURL(ctx context.Context, id int64, pageURL string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE reviews SET page_url = $1 WHERE id = $2 AND page_url IS DISTINCT FROM $1`,
		pageURL, id,
	)
	return storageErr("SetReviewPageURL", fmt.Sprint(id), err)
}

// ListReviewsByProductNameLike returns review refs whose product display
// name contains the fragment, case-insensitively. Board naming varies across
// source pages, so discovery matches loosely on purpose.
func (db *DB) ListReviewsByProductNameLike(ctx context.Context, nameFragment string) ([]ReviewRef, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT r.id, r.type, r.main_url, r.page_url, p.id, p.name, r.updated_at
		 FROM reviews r JOIN products p ON r.master_product_id = p.id
		 WHERE p.name ILIKE '%' || $1 || '%'`,
		nameFragment,
	)
	if err != nil {
		return nil, storageErr("ListReviewsByProductNameLike", nameFragment, err)
	}
	defer rows.Close()
	return scanReviewRefs(rows, nameFragment)
}

// ListReviewsWithMainURL returns every review that discovery has attached a
// main URL to, joined with its product.
func (db *DB) ListReviewsWithMainURL(ctx context.Context) ([]ReviewRef, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT r.id, r.type, r.main_url, r.page_url, p.id, p.name, r.updated_at
		 FROM reviews r JOIN products p ON r.master_product_id = p.id
		 WHERE r.main_url <> ''
		 ORDER BY r.id`,
	)
	if err != nil {
		return nil, storageErr("ListReviewsWithMainURL", "", err)
	}
	defer rows.Close()
	return scanReviewRefs(rows, "")
}

func scanReviewRefs(rows pgx.Rows, unit string) ([]ReviewRef, error) {
	var refs []ReviewRef
	for rows.Next() {
		var ref ReviewRef
		if err := rows.Scan(&ref.ID, &ref.Type, &ref.MainURL, &ref.PageURL, &ref.ProductID, &ref.ProductName, &ref.UpdatedAt); err != nil {
			return nil, storageErr("scanReviewRefs", unit, err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ReplaceReviewData atomically supersedes the structured facts of one
// review, same discipline as the product spec set.
func (db *DB) ReplaceReviewData(ctx context.Context, reviewID int64, items []ReviewDatumInput) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return storageErr("ReplaceReviewData", fmt.Sprint(reviewID), err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM review_data WHERE review_id = $1`, reviewID); err != nil {
		return storageErr("ReplaceReviewData", fmt.Sprint(reviewID), err)
	}
	for _, item := range items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO review_data (review_id, data_type, key, value, unit, product_name)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			reviewID, item.DataType, item.Key, item.Value, item.Unit, item.ProductName,
		); err != nil {
			return storageErr("ReplaceReviewData", fmt.Sprint(reviewID), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("ReplaceReviewData", fmt.Sprint(reviewID), err)
	}
	return nil
}

// ListReviewData returns the stored facts of one review.
func (db *DB) ListReviewData(ctx context.Context, reviewID int64) ([]ReviewDatum, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, review_id, data_type, key, value, unit, product_name
		 FROM review_data WHERE review_id = $1 ORDER BY id`,
		reviewID,
	)
	if err != nil {
		return nil, storageErr("ListReviewData", fmt.Sprint(reviewID), err)
	}
	defer rows.Close()

	var items []ReviewDatum
	for rows.Next() {
		var d ReviewDatum
		if err := rows.Scan(&d.ID, &d.ReviewID, &d.DataType, &d.Key, &d.Value, &d.Unit, &d.ProductName); err != nil {
			return nil, storageErr("ListReviewData", fmt.Sprint(reviewID), err)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
