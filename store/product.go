// CLAUDE:SUMMARY Product CRUD and provisional-to-confirmed merge that re-points offers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chineur/pepite/dbopen"
)

// UpsertProduct inserts a product or refreshes its attributes. The canonical
// code never changes once confirmed; only name/brand/category are updated.
func (s *Store) UpsertProduct(ctx context.Context, p *Product) error {
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO products (code, name, brand, category, provisional, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			brand = excluded.brand,
			category = excluded.category`,
		p.Code, p.Name, p.Brand, p.Category, p.Provisional, p.CreatedAt)
	return err
}

// GetProduct retrieves a product by code.
func (s *Store) GetProduct(ctx context.Context, code string) (*Product, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT code, name, brand, category, provisional, created_at
		FROM products WHERE code = ?`, code)
	var p Product
	var provisional int
	err := row.Scan(&p.Code, &p.Name, &p.Brand, &p.Category, &provisional, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.Provisional = provisional != 0
	return &p, nil
}

// MergeProduct folds a provisional product into a confirmed one: all offers
// referencing the provisional code are re-pointed at the confirmed code and
// the provisional row is deleted. Runs in a transaction so no offer is ever
// left dangling.
func (s *Store) MergeProduct(ctx context.Context, provisionalCode, confirmedCode string) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE offers SET product_code = ? WHERE product_code = ?`,
			confirmedCode, provisionalCode); err != nil {
			return fmt.Errorf("re-point offers: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE market_quotes SET product_code = ? WHERE product_code = ?`,
			confirmedCode, provisionalCode); err != nil {
			return fmt.Errorf("re-point quotes: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM products WHERE code = ? AND provisional = 1`,
			provisionalCode); err != nil {
			return fmt.Errorf("drop provisional: %w", err)
		}
		return nil
	})
}
