// CLAUDE:SUMMARY Campaign CRUD, dispatchable-campaign query, and run status transitions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertCampaign adds a new campaign.
func (s *Store) InsertCampaign(ctx context.Context, c *Campaign) error {
	now := time.Now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	if c.UpdatedAt == 0 {
		c.UpdatedAt = now
	}
	if c.Strategy == "" {
		c.Strategy = StrategyHTTP
	}
	if c.Schedule == "" {
		c.Schedule = "manual"
	}
	if c.Status == "" {
		c.Status = CampaignIdle
	}
	if c.URLsJSON == "" {
		c.URLsJSON = "[]"
	}
	if c.ParamsJSON == "" {
		c.ParamsJSON = "{}"
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, strategy, urls_json, params_json, schedule,
		enabled, status, last_run_at, last_duration_ms, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Strategy, c.URLsJSON, c.ParamsJSON, c.Schedule,
		c.Enabled, c.Status, c.LastRunAt, c.LastDurationMs, c.LastError,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCampaign retrieves a campaign by ID.
func (s *Store) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, name, strategy, urls_json, params_json, schedule, enabled,
		status, last_run_at, last_duration_ms, last_error, created_at, updated_at
		FROM campaigns WHERE id = ?`, id)
	return scanCampaign(row)
}

// ListCampaigns returns all campaigns, newest first.
func (s *Store) ListCampaigns(ctx context.Context) ([]*Campaign, error) {
	return s.queryCampaigns(ctx,
		`SELECT id, name, strategy, urls_json, params_json, schedule, enabled,
		status, last_run_at, last_duration_ms, last_error, created_at, updated_at
		FROM campaigns ORDER BY created_at DESC`)
}

// DispatchableCampaigns returns enabled, non-manual campaigns that are not
// currently running. These are the candidates for the next poll tick.
func (s *Store) DispatchableCampaigns(ctx context.Context) ([]*Campaign, error) {
	return s.queryCampaigns(ctx,
		`SELECT id, name, strategy, urls_json, params_json, schedule, enabled,
		status, last_run_at, last_duration_ms, last_error, created_at, updated_at
		FROM campaigns
		WHERE enabled = 1 AND schedule != 'manual' AND status != 'RUNNING'
		ORDER BY created_at ASC`)
}

// UpdateCampaign updates a campaign's mutable configuration fields.
func (s *Store) UpdateCampaign(ctx context.Context, c *Campaign) error {
	c.UpdatedAt = time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE campaigns SET name=?, strategy=?, urls_json=?, params_json=?,
		schedule=?, enabled=?, updated_at=?
		WHERE id=?`,
		c.Name, c.Strategy, c.URLsJSON, c.ParamsJSON,
		c.Schedule, c.Enabled, c.UpdatedAt, c.ID,
	)
	return err
}

// DeleteCampaign removes a campaign (cascades to target logs).
func (s *Store) DeleteCampaign(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	return err
}

// MarkCampaignRunning transitions a campaign to RUNNING.
func (s *Store) MarkCampaignRunning(ctx context.Context, id string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE campaigns SET status='RUNNING', updated_at=? WHERE id=?`, now, id)
	return err
}

// MarkCampaignIdle records a completed run: status back to IDLE, duration
// stored, last error cleared.
func (s *Store) MarkCampaignIdle(ctx context.Context, id string, duration time.Duration) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE campaigns SET status='IDLE', last_run_at=?, last_duration_ms=?,
		last_error='', updated_at=?
		WHERE id=?`, now, duration.Milliseconds(), now, id)
	return err
}

// MarkCampaignError records a failed run with a truncated error message.
func (s *Store) MarkCampaignError(ctx context.Context, id, errMsg string) error {
	now := time.Now().UnixMilli()
	if len(errMsg) > 500 {
		errMsg = errMsg[:500]
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE campaigns SET status='ERROR', last_run_at=?, last_error=?, updated_at=?
		WHERE id=?`, now, errMsg, now, id)
	return err
}

func (s *Store) queryCampaigns(ctx context.Context, query string, args ...any) ([]*Campaign, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Campaign
	for rows.Next() {
		var c Campaign
		var enabled int
		if err := rows.Scan(&c.ID, &c.Name, &c.Strategy, &c.URLsJSON, &c.ParamsJSON,
			&c.Schedule, &enabled, &c.Status, &c.LastRunAt, &c.LastDurationMs,
			&c.LastError, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.Enabled = enabled != 0
		result = append(result, &c)
	}
	return result, rows.Err()
}

func scanCampaign(row *sql.Row) (*Campaign, error) {
	var c Campaign
	var enabled int
	err := row.Scan(&c.ID, &c.Name, &c.Strategy, &c.URLsJSON, &c.ParamsJSON,
		&c.Schedule, &enabled, &c.Status, &c.LastRunAt, &c.LastDurationMs,
		&c.LastError, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	c.Enabled = enabled != 0
	return &c, nil
}
