package credpool

import (
	"context"
	"fmt"
	"time"
)

// KeyStatus is the operator-facing view of one key. The secret is masked.
type KeyStatus struct {
	ID          string `json:"id"`
	Preview     string `json:"preview"`
	Active      bool   `json:"active"`
	ErrorCount  int    `json:"error_count"`
	LastErrorAt *int64 `json:"last_error_at,omitempty"`
}

// PoolStatus summarises the health of one service's pool.
type PoolStatus struct {
	Service  string      `json:"service"`
	Total    int         `json:"total"`
	Active   int         `json:"active"`
	Disabled int         `json:"disabled"`
	Keys     []KeyStatus `json:"keys"`
}

// Status returns a snapshot of a service's pool for operator inspection.
func (p *Pool) Status(ctx context.Context, service string) (*PoolStatus, error) {
	creds, err := p.store.ListCredentials(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("credpool: status: %w", err)
	}

	st := &PoolStatus{Service: service, Total: len(creds)}
	for _, c := range creds {
		if c.Active {
			st.Active++
		} else {
			st.Disabled++
		}
		st.Keys = append(st.Keys, KeyStatus{
			ID:          c.ID,
			Preview:     maskSecret(c.Secret),
			Active:      c.Active,
			ErrorCount:  c.ErrorCount,
			LastErrorAt: c.LastErrorAt,
		})
	}
	return st, nil
}

// NextEligibleAt returns when the earliest cooled-down key of a service
// becomes available again, or zero time if an active key already exists.
func (p *Pool) NextEligibleAt(ctx context.Context, service string) (time.Time, error) {
	creds, err := p.store.ListCredentials(ctx, service)
	if err != nil {
		return time.Time{}, fmt.Errorf("credpool: next eligible: %w", err)
	}
	var earliest time.Time
	for _, c := range creds {
		if c.Active && c.ErrorCount < p.config.ErrorThreshold {
			return time.Time{}, nil
		}
		if c.LastErrorAt == nil {
			continue
		}
		at := time.UnixMilli(*c.LastErrorAt).Add(p.config.Cooldown)
		if earliest.IsZero() || at.Before(earliest) {
			earliest = at
		}
	}
	return earliest, nil
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:8] + "..."
}
