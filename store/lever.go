// CLAUDE:SUMMARY Lever CRUD and the live-lever query used by the collision pass.
package store

import (
	"context"
	"fmt"
	"time"
)

// InsertLever adds a promotional lever.
func (s *Store) InsertLever(ctx context.Context, l *Lever) error {
	if l.CreatedAt == 0 {
		l.CreatedAt = time.Now().UnixMilli()
	}
	if l.ConditionsJSON == "" {
		l.ConditionsJSON = "{}"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO levers (id, type, description, absolute_value, percent_value,
		target_product_code, target_brand, target_merchant, conditions_json,
		source_url, expires_at, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Type, l.Description, l.AbsoluteValue, l.PercentValue,
		l.TargetProductCode, l.TargetBrand, l.TargetMerchant, l.ConditionsJSON,
		l.SourceURL, l.ExpiresAt, l.Active, l.CreatedAt,
	)
	return err
}

// LiveLevers returns active levers that have not expired as of now.
func (s *Store) LiveLevers(ctx context.Context) ([]*Lever, error) {
	now := time.Now().UnixMilli()
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, type, description, absolute_value, percent_value,
		target_product_code, target_brand, target_merchant, conditions_json,
		source_url, expires_at, active, created_at
		FROM levers
		WHERE active = 1 AND (expires_at IS NULL OR expires_at >= ?)
		ORDER BY created_at ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Lever
	for rows.Next() {
		var l Lever
		var active int
		if err := rows.Scan(&l.ID, &l.Type, &l.Description, &l.AbsoluteValue,
			&l.PercentValue, &l.TargetProductCode, &l.TargetBrand, &l.TargetMerchant,
			&l.ConditionsJSON, &l.SourceURL, &l.ExpiresAt, &active, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lever: %w", err)
		}
		l.Active = active != 0
		result = append(result, &l)
	}
	return result, rows.Err()
}

// DeactivateLever marks a lever inactive.
func (s *Store) DeactivateLever(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE levers SET active = 0 WHERE id = ?`, id)
	return err
}
