// CLAUDE:SUMMARY Rule upsert and the merchant-or-wildcard query used during stacking.
package store

import (
	"context"
	"fmt"
	"time"
)

// UpsertRule inserts or replaces a merchant cumulation rule.
func (s *Store) UpsertRule(ctx context.Context, r *Rule) error {
	r.UpdatedAt = time.Now().UnixMilli()
	if r.FlagsJSON == "" {
		r.FlagsJSON = "{}"
	}
	if r.RuleType == "" {
		r.RuleType = "cumulation"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO rules (id, merchant, rule_type, flags_json, source_url, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			merchant = excluded.merchant,
			rule_type = excluded.rule_type,
			flags_json = excluded.flags_json,
			source_url = excluded.source_url,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`,
		r.ID, r.Merchant, r.RuleType, r.FlagsJSON, r.SourceURL, r.Confidence, r.UpdatedAt)
	return err
}

// RulesForMerchant returns rules scoped to the given merchant plus wildcard
// rules. Matching is case-insensitive.
func (s *Store) RulesForMerchant(ctx context.Context, merchant string) ([]*Rule, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, merchant, rule_type, flags_json, source_url, confidence, updated_at
		FROM rules
		WHERE LOWER(merchant) = LOWER(?) OR LOWER(merchant) = ?
		ORDER BY updated_at DESC`, merchant, MerchantWildcard)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Merchant, &r.RuleType, &r.FlagsJSON,
			&r.SourceURL, &r.Confidence, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}
