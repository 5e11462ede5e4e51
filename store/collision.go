// CLAUDE:SUMMARY Collision result upsert (keyed by offer) and graded listing.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertCollisionResult overwrites the live result for an offer. Superseded
// results are not versioned.
func (s *Store) UpsertCollisionResult(ctx context.Context, r *CollisionResult) error {
	r.ComputedAt = time.Now().UnixMilli()
	if r.QAStatus == "" {
		r.QAStatus = QAPending
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO collision_results (id, offer_id, product_code, levers_json,
		scenario_json, net_price, resale_price, platform_fees, net_profit,
		roi_percent, grade, qa_status, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(offer_id) DO UPDATE SET
			product_code = excluded.product_code,
			levers_json = excluded.levers_json,
			scenario_json = excluded.scenario_json,
			net_price = excluded.net_price,
			resale_price = excluded.resale_price,
			platform_fees = excluded.platform_fees,
			net_profit = excluded.net_profit,
			roi_percent = excluded.roi_percent,
			grade = excluded.grade,
			computed_at = excluded.computed_at`,
		r.ID, r.OfferID, r.ProductCode, r.LeversJSON,
		r.ScenarioJSON, r.NetPrice, r.ResalePrice, r.PlatformFees, r.NetProfit,
		r.ROIPercent, r.Grade, r.QAStatus, r.ComputedAt)
	return err
}

// GetCollisionResult returns the live result for an offer, or nil.
func (s *Store) GetCollisionResult(ctx context.Context, offerID string) (*CollisionResult, error) {
	rows, err := s.DB.QueryContext(ctx, collisionSelect+` WHERE offer_id = ? LIMIT 1`, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanCollisionRows(rows)
}

// ListCollisionResults returns results sorted best-first (ROI descending).
func (s *Store) ListCollisionResults(ctx context.Context, limit int) ([]*CollisionResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		collisionSelect+` ORDER BY roi_percent DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*CollisionResult
	for rows.Next() {
		r, err := scanCollisionRows(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// SetQAStatus records an operator QA verdict on a result.
func (s *Store) SetQAStatus(ctx context.Context, resultID, qaStatus string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE collision_results SET qa_status = ? WHERE id = ?`, qaStatus, resultID)
	return err
}

const collisionSelect = `SELECT id, offer_id, product_code, levers_json,
	scenario_json, net_price, resale_price, platform_fees, net_profit,
	roi_percent, grade, qa_status, computed_at
	FROM collision_results`

func scanCollisionRows(rows *sql.Rows) (*CollisionResult, error) {
	var r CollisionResult
	err := rows.Scan(&r.ID, &r.OfferID, &r.ProductCode, &r.LeversJSON,
		&r.ScenarioJSON, &r.NetPrice, &r.ResalePrice, &r.PlatformFees, &r.NetProfit,
		&r.ROIPercent, &r.Grade, &r.QAStatus, &r.ComputedAt)
	if err != nil {
		return nil, fmt.Errorf("scan collision result: %w", err)
	}
	return &r, nil
}
