// CLAUDE:SUMMARY Credential CRUD with single-statement atomic mutations for rotation safety.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertCredential registers a new key. Returns false if the (service, secret)
// pair already exists.
func (s *Store) InsertCredential(ctx context.Context, c *Credential) (bool, error) {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO credentials (id, service, secret, active, error_count, last_error_at, created_at)
		VALUES (?, ?, ?, 1, 0, NULL, ?)`,
		c.ID, c.Service, c.Secret, c.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReactivateCooledCredentials flips back every deactivated key of a service
// whose cooldown elapsed (last_error_at <= cutoff) and resets its error count.
// Returns the number of reactivated keys.
func (s *Store) ReactivateCooledCredentials(ctx context.Context, service string, cutoff int64) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE credentials SET active = 1, error_count = 0
		WHERE service = ? AND active = 0 AND last_error_at IS NOT NULL AND last_error_at <= ?`,
		service, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HealthiestCredential returns the active key with the fewest errors below
// the threshold, or nil if none qualifies.
func (s *Store) HealthiestCredential(ctx context.Context, service string, threshold int) (*Credential, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, service, secret, active, error_count, last_error_at, created_at
		FROM credentials
		WHERE service = ? AND active = 1 AND error_count < ?
		ORDER BY error_count ASC, created_at ASC LIMIT 1`,
		service, threshold)
	return scanCredential(row)
}

// RecordCredentialFailure increments the error count, stamps last_error_at,
// and deactivates the key when the status code is a hard quota signal or the
// incremented count reaches the threshold. The whole mutation is one UPDATE
// so two concurrent workers cannot race past the threshold unobserved.
func (s *Store) RecordCredentialFailure(ctx context.Context, service, secret string, quotaSignal bool, threshold int) error {
	now := time.Now().UnixMilli()
	quota := 0
	if quotaSignal {
		quota = 1
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE credentials SET
			error_count = error_count + 1,
			last_error_at = ?,
			active = CASE WHEN ? = 1 OR error_count + 1 >= ? THEN 0 ELSE active END
		WHERE service = ? AND secret = ?`,
		now, quota, threshold, service, secret)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("credential not found for service %s", service)
	}
	return nil
}

// ResetCredentials forces all keys of a service back to active with a clean
// error count. Operator escape hatch.
func (s *Store) ResetCredentials(ctx context.Context, service string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE credentials SET active = 1, error_count = 0, last_error_at = NULL
		WHERE service = ?`, service)
	return err
}

// ListCredentials returns all keys of a service, oldest first.
func (s *Store) ListCredentials(ctx context.Context, service string) ([]*Credential, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, service, secret, active, error_count, last_error_at, created_at
		FROM credentials WHERE service = ? ORDER BY created_at ASC`, service)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Credential
	for rows.Next() {
		var c Credential
		var active int
		if err := rows.Scan(&c.ID, &c.Service, &c.Secret, &active, &c.ErrorCount,
			&c.LastErrorAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		c.Active = active != 0
		result = append(result, &c)
	}
	return result, rows.Err()
}

func scanCredential(row *sql.Row) (*Credential, error) {
	var c Credential
	var active int
	err := row.Scan(&c.ID, &c.Service, &c.Secret, &active, &c.ErrorCount,
		&c.LastErrorAt, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	c.Active = active != 0
	return &c, nil
}
