// CLAUDE:SUMMARY Market quote insert and latest-quote lookup per product.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertMarketQuote records a resale price observation.
func (s *Store) InsertMarketQuote(ctx context.Context, q *MarketQuote) error {
	if q.CapturedAt == 0 {
		q.CapturedAt = time.Now().UnixMilli()
	}
	if q.Marketplace == "" {
		q.Marketplace = "marketplace_fr"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO market_quotes (id, product_code, marketplace, buy_box,
		platform_fee, fee_percent, shipping, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.ProductCode, q.Marketplace, q.BuyBox,
		q.PlatformFee, q.FeePercent, q.Shipping, q.CapturedAt)
	return err
}

// LatestMarketQuote returns the most recent quote for a product, or nil.
func (s *Store) LatestMarketQuote(ctx context.Context, productCode string) (*MarketQuote, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, product_code, marketplace, buy_box, platform_fee, fee_percent,
		shipping, captured_at
		FROM market_quotes WHERE product_code = ?
		ORDER BY captured_at DESC LIMIT 1`, productCode)

	var q MarketQuote
	err := row.Scan(&q.ID, &q.ProductCode, &q.Marketplace, &q.BuyBox,
		&q.PlatformFee, &q.FeePercent, &q.Shipping, &q.CapturedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan market quote: %w", err)
	}
	return &q, nil
}

// ProductsMissingQuotes returns product codes of active offers that have no
// market quote newer than maxAge.
func (s *Store) ProductsMissingQuotes(ctx context.Context, maxAge time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	rows, err := s.DB.QueryContext(ctx,
		`SELECT DISTINCT o.product_code
		FROM offers o
		WHERE o.active = 1
		  AND NOT EXISTS (
			SELECT 1 FROM market_quotes q
			WHERE q.product_code = o.product_code AND q.captured_at > ?
		  )`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan product code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
