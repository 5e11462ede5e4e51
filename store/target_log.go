// CLAUDE:SUMMARY Target log pre-population (idempotent) and per-URL status upserts.
package store

import (
	"context"
	"fmt"
	"time"
)

// EnsureTargetLog creates a PENDING log for (campaign, url) if none exists.
// Idempotent: re-dispatching a campaign never duplicates rows, so a re-run
// resumes against the same lineage.
func (s *Store) EnsureTargetLog(ctx context.Context, id, campaignID, url string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO target_logs (id, campaign_id, url, status, error_message, updated_at)
		VALUES (?, ?, ?, 'PENDING', '', ?)`,
		id, campaignID, url, now)
	return err
}

// SetTargetStatus upserts the status of one (campaign, url) pair.
// The error message is truncated to 2000 characters.
func (s *Store) SetTargetStatus(ctx context.Context, id, campaignID, url, status, errMsg string) error {
	if len(errMsg) > 2000 {
		errMsg = errMsg[:2000]
	}
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO target_logs (id, campaign_id, url, status, error_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(campaign_id, url) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		id, campaignID, url, status, errMsg, now)
	return err
}

// ListTargetLogs returns all logs of a campaign.
func (s *Store) ListTargetLogs(ctx context.Context, campaignID string) ([]*TargetLog, error) {
	return s.queryTargetLogs(ctx,
		`SELECT id, campaign_id, url, status, error_message, updated_at
		FROM target_logs WHERE campaign_id = ? ORDER BY updated_at ASC`, campaignID)
}

// FailedTargetURLs returns the URLs of a campaign's FAILED logs. Used to
// build narrow retry campaigns.
func (s *Store) FailedTargetURLs(ctx context.Context, campaignID string) (map[string]bool, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT url FROM target_logs WHERE campaign_id = ? AND status = 'FAILED'`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	failed := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan target url: %w", err)
		}
		failed[url] = true
	}
	return failed, rows.Err()
}

// CountTargetLogs returns the number of logs for a campaign.
func (s *Store) CountTargetLogs(ctx context.Context, campaignID string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM target_logs WHERE campaign_id = ?`, campaignID).Scan(&count)
	return count, err
}

func (s *Store) queryTargetLogs(ctx context.Context, query string, args ...any) ([]*TargetLog, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*TargetLog
	for rows.Next() {
		var l TargetLog
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.URL, &l.Status,
			&l.ErrorMessage, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan target log: %w", err)
		}
		result = append(result, &l)
	}
	return result, rows.Err()
}
