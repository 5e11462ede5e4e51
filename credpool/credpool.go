// CLAUDE:SUMMARY Quota-aware credential rotation: acquire healthiest key, cooldown reactivation, failure accounting.
// Package credpool rotates pools of external-service keys.
//
// Each service (render proxy, AI extractor, market search) owns a pool of
// keys. Failures increment a per-key error count; a hard quota signal
// (401/403/429) or a tripped error threshold deactivates the key. A
// deactivated key becomes eligible again once its cooldown elapses.
//
// Acquire never blocks or spins: when no key qualifies it returns
// ErrUnavailable, which callers must treat as fatal for the current batch —
// retrying inside the cooldown window only wastes it.
package credpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chineur/pepite/idgen"
	"github.com/chineur/pepite/store"
)

// ErrUnavailable means no active key below the error threshold exists for
// the service. Pool empty, all keys burnt, or all cooling down.
var ErrUnavailable = errors.New("credpool: no credential available")

// Config configures a Pool.
type Config struct {
	// ErrorThreshold deactivates a key once its error count reaches it. Default: 3.
	ErrorThreshold int
	// Cooldown is how long a deactivated key stays out of rotation. Default: 1h.
	Cooldown time.Duration
}

func (c *Config) defaults() {
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = time.Hour
	}
}

// Pool is the credential rotation service. All mutation goes through
// single-statement updates in the store, so concurrent workers sharing a
// pool never race past the deactivation threshold.
type Pool struct {
	store  *store.Store
	config Config
	logger *slog.Logger
	newID  idgen.Generator
	now    func() time.Time
}

// New creates a Pool backed by the given store.
func New(st *store.Store, cfg Config, logger *slog.Logger) *Pool {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		store:  st,
		config: cfg,
		logger: logger,
		newID:  idgen.Prefixed("key_", idgen.Default),
		now:    time.Now,
	}
}

// Acquire returns the healthiest available secret for a service.
//
// It first reactivates any key whose cooldown has elapsed (active again,
// error count reset), then returns the active key with the fewest errors.
// Returns ErrUnavailable when none qualifies.
func (p *Pool) Acquire(ctx context.Context, service string) (string, error) {
	cutoff := p.now().Add(-p.config.Cooldown).UnixMilli()
	revived, err := p.store.ReactivateCooledCredentials(ctx, service, cutoff)
	if err != nil {
		return "", fmt.Errorf("credpool: reactivate: %w", err)
	}
	if revived > 0 {
		p.logger.Info("credpool: reactivated keys after cooldown",
			"service", service, "count", revived)
	}

	cred, err := p.store.HealthiestCredential(ctx, service, p.config.ErrorThreshold)
	if err != nil {
		return "", fmt.Errorf("credpool: select: %w", err)
	}
	if cred == nil {
		p.logger.Warn("credpool: pool exhausted", "service", service)
		return "", fmt.Errorf("%w: %s", ErrUnavailable, service)
	}
	return cred.Secret, nil
}

// ReportFailure records a failed use of a secret. A statusCode of 401, 403
// or 429 is a hard quota signal that deactivates the key immediately;
// otherwise the key is deactivated once its error count reaches the
// threshold. Success needs no call: only failures mutate error state.
//
// A rate-limited key and a permanently invalid key are deliberately not
// distinguished here: both share the same cooldown-based reactivation.
func (p *Pool) ReportFailure(ctx context.Context, service, secret string, statusCode int) error {
	quota := IsQuotaSignal(statusCode)
	err := p.store.RecordCredentialFailure(ctx, service, secret, quota, p.config.ErrorThreshold)
	if err != nil {
		return fmt.Errorf("credpool: report failure: %w", err)
	}
	p.logger.Warn("credpool: key failure recorded",
		"service", service, "status", statusCode, "quota_signal", quota)
	return nil
}

// ResetAll forces every key of a service back to active with a clean error
// count. Operator escape hatch.
func (p *Pool) ResetAll(ctx context.Context, service string) error {
	if err := p.store.ResetCredentials(ctx, service); err != nil {
		return fmt.Errorf("credpool: reset: %w", err)
	}
	p.logger.Info("credpool: pool reset", "service", service)
	return nil
}

// AddKey registers a new key for a service. Returns false if the key is
// already present (idempotent registration).
func (p *Pool) AddKey(ctx context.Context, service, secret string) (bool, error) {
	inserted, err := p.store.InsertCredential(ctx, &store.Credential{
		ID:      p.newID(),
		Service: service,
		Secret:  secret,
	})
	if err != nil {
		return false, fmt.Errorf("credpool: add key: %w", err)
	}
	if inserted {
		p.logger.Info("credpool: key added", "service", service)
	}
	return inserted, nil
}

// IsQuotaSignal reports whether an HTTP status indicates key exhaustion or
// rejection that should rotate to the next key.
func IsQuotaSignal(statusCode int) bool {
	return statusCode == 401 || statusCode == 403 || statusCode == 429
}
