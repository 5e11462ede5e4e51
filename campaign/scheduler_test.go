package campaign

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/chineur/pepite/store"
	"github.com/chineur/pepite/worker"
)

func TestSweepDispatchesOnlyScheduledCampaigns(t *testing.T) {
	// WHAT: One sweep runs enabled scheduled campaigns and leaves manual
	// ones untouched.
	// WHY: Manual campaigns are operator-triggered; the poll loop must
	// never pick them up.
	svc, st := newTestService(t, &fakeWorker{}, nil)
	ctx := context.Background()

	scheduled, err := svc.Create(ctx, "nightly", worker.StrategyHTTP, []string{"https://a.example/1"}, worker.Params{}, "0 6 * * *")
	if err != nil {
		t.Fatalf("create scheduled: %v", err)
	}
	manual, err := svc.Create(ctx, "adhoc", worker.StrategyHTTP, []string{"https://b.example/1"}, worker.Params{}, store.ScheduleManual)
	if err != nil {
		t.Fatalf("create manual: %v", err)
	}

	sched := NewScheduler(svc, st, SchedulerConfig{}, nil)
	sched.sweep(ctx)

	got, _ := svc.Get(ctx, scheduled.ID)
	if got.LastRunAt == nil {
		t.Fatal("scheduled campaign did not run")
	}
	got, _ = svc.Get(ctx, manual.ID)
	if got.LastRunAt != nil {
		t.Fatal("manual campaign was dispatched by the sweep")
	}

	n, err := st.CountTargetLogs(ctx, manual.ID)
	if err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if n != 0 {
		t.Fatalf("manual campaign has %d target logs, want 0", n)
	}
}
