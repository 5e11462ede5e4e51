package credpool

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chineur/pepite/dbopen"
	"github.com/chineur/pepite/store"
)

func newTestPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	return New(store.NewStore(db), cfg, nil)
}

func TestAcquireRotatesAwayFromFailingKeys(t *testing.T) {
	// WHAT: After a quota failure, Acquire returns a different key.
	// WHY: One exhausted key must not stall a batch while others remain.
	p := newTestPool(t, Config{ErrorThreshold: 3})
	ctx := context.Background()

	for _, secret := range []string{"sk-one", "sk-two"} {
		if _, err := p.AddKey(ctx, "gemini", secret); err != nil {
			t.Fatalf("add key: %v", err)
		}
	}

	first, err := p.Acquire(ctx, "gemini")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := p.ReportFailure(ctx, "gemini", first, 429); err != nil {
		t.Fatalf("report: %v", err)
	}
	second, err := p.Acquire(ctx, "gemini")
	if err != nil {
		t.Fatalf("acquire after failure: %v", err)
	}
	if second == first {
		t.Fatalf("acquired %s again after quota failure", first)
	}
}

func TestAcquireUnavailableWhenAllExhausted(t *testing.T) {
	// WHAT: Exhausting every key makes Acquire return ErrUnavailable.
	// WHY: Callers treat this as fatal for the batch; it must be a
	// distinguishable sentinel, not a generic error.
	p := newTestPool(t, Config{ErrorThreshold: 3})
	ctx := context.Background()

	if _, err := p.AddKey(ctx, "serpapi", "sk-only"); err != nil {
		t.Fatalf("add key: %v", err)
	}
	if err := p.ReportFailure(ctx, "serpapi", "sk-only", 403); err != nil {
		t.Fatalf("report: %v", err)
	}

	_, err := p.Acquire(ctx, "serpapi")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestCooldownReactivation(t *testing.T) {
	// WHAT: A deactivated key returns to rotation once its cooldown
	// elapses, with its error count reset.
	// WHY: Provider quotas refill; permanently burying a key wastes it.
	p := newTestPool(t, Config{ErrorThreshold: 3, Cooldown: time.Hour})
	ctx := context.Background()

	if _, err := p.AddKey(ctx, "gemini", "sk-cooling"); err != nil {
		t.Fatalf("add key: %v", err)
	}
	if err := p.ReportFailure(ctx, "gemini", "sk-cooling", 429); err != nil {
		t.Fatalf("report: %v", err)
	}
	if _, err := p.Acquire(ctx, "gemini"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected exhausted pool, got %v", err)
	}

	// Jump the clock past the cooldown.
	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	secret, err := p.Acquire(ctx, "gemini")
	if err != nil {
		t.Fatalf("acquire after cooldown: %v", err)
	}
	if secret != "sk-cooling" {
		t.Fatalf("secret = %s, want sk-cooling", secret)
	}

	status, err := p.Status(ctx, "gemini")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Active != 1 {
		t.Fatalf("active = %d, want 1 after reactivation", status.Active)
	}
}

func TestThresholdDeactivation(t *testing.T) {
	// WHAT: Non-quota failures only deactivate at the error threshold.
	// WHY: Transient 500s should not burn a key the way a 429 does.
	p := newTestPool(t, Config{ErrorThreshold: 3})
	ctx := context.Background()

	if _, err := p.AddKey(ctx, "gemini", "sk-flaky"); err != nil {
		t.Fatalf("add key: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := p.ReportFailure(ctx, "gemini", "sk-flaky", 500); err != nil {
			t.Fatalf("report: %v", err)
		}
		if _, err := p.Acquire(ctx, "gemini"); err != nil {
			t.Fatalf("key gone after %d non-quota failures: %v", i+1, err)
		}
	}
	if err := p.ReportFailure(ctx, "gemini", "sk-flaky", 500); err != nil {
		t.Fatalf("report: %v", err)
	}
	if _, err := p.Acquire(ctx, "gemini"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable at threshold, got %v", err)
	}
}

func TestAddKeyDuplicate(t *testing.T) {
	// WHAT: Registering the same (service, secret) twice returns false.
	// WHY: Operators paste key lists; duplicates must be a no-op.
	p := newTestPool(t, Config{})
	ctx := context.Background()

	added, err := p.AddKey(ctx, "gemini", "sk-dup")
	if err != nil || !added {
		t.Fatalf("first add = (%v, %v), want (true, nil)", added, err)
	}
	added, err = p.AddKey(ctx, "gemini", "sk-dup")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if added {
		t.Fatal("duplicate key reported as added")
	}
}

func TestResetAllRestoresExhaustedPool(t *testing.T) {
	// WHAT: ResetAll reactivates every key and clears error counts.
	// WHY: After a provider-side quota bump the operator needs the whole
	// pool back without waiting out cooldowns.
	p := newTestPool(t, Config{ErrorThreshold: 3})
	ctx := context.Background()

	for _, secret := range []string{"sk-one", "sk-two"} {
		if _, err := p.AddKey(ctx, "gemini", secret); err != nil {
			t.Fatalf("add key: %v", err)
		}
		if err := p.ReportFailure(ctx, "gemini", secret, 429); err != nil {
			t.Fatalf("report: %v", err)
		}
	}
	if _, err := p.Acquire(ctx, "gemini"); !errors.Is(err, ErrUnavailable) {
		t.Fatal("pool should be exhausted before reset")
	}

	if err := p.ResetAll(ctx, "gemini"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := p.Acquire(ctx, "gemini"); err != nil {
		t.Fatalf("acquire after reset: %v", err)
	}

	st, err := p.Status(ctx, "gemini")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Active != 2 || st.Disabled != 0 {
		t.Fatalf("status = %d active / %d disabled, want 2 / 0", st.Active, st.Disabled)
	}
	for _, k := range st.Keys {
		if k.ErrorCount != 0 {
			t.Fatalf("key %s error count = %d, want 0 after reset", k.ID, k.ErrorCount)
		}
	}
}

func TestStatusMasksSecrets(t *testing.T) {
	// WHAT: The status snapshot never exposes a full secret.
	p := newTestPool(t, Config{})
	ctx := context.Background()

	if _, err := p.AddKey(ctx, "gemini", "sk-verysecretvalue"); err != nil {
		t.Fatalf("add key: %v", err)
	}
	st, err := p.Status(ctx, "gemini")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(st.Keys) != 1 {
		t.Fatalf("keys = %d, want 1", len(st.Keys))
	}
	if st.Keys[0].Preview == "sk-verysecretvalue" {
		t.Fatal("status leaked the full secret")
	}
}

func TestIsQuotaSignal(t *testing.T) {
	// WHAT: Only 401, 403 and 429 count as quota signals.
	for code, want := range map[int]bool{401: true, 403: true, 429: true, 200: false, 500: false, 404: false} {
		if got := IsQuotaSignal(code); got != want {
			t.Errorf("IsQuotaSignal(%d) = %v, want %v", code, got, want)
		}
	}
}
