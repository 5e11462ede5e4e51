package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/chineur/pepite/dbopen"
	"github.com/chineur/pepite/store"
	"github.com/chineur/pepite/worker"
)

// fakeWorker reports a fixed outcome per URL without any network.
type fakeWorker struct {
	failURLs map[string]bool
	fatalErr error
}

func (f *fakeWorker) Fetch(ctx context.Context, targets []string, params worker.Params, report worker.StatusFunc) (*worker.Result, error) {
	if f.fatalErr != nil {
		return &worker.Result{}, f.fatalErr
	}
	res := &worker.Result{Strategy: worker.StrategyHTTP}
	for _, u := range targets {
		report(u, worker.StatusProcessing, "")
		if f.failURLs[u] {
			report(u, worker.StatusFailed, "boom")
			res.Errors = append(res.Errors, u)
			continue
		}
		report(u, worker.StatusSuccess, "")
		res.Pages = append(res.Pages, worker.Page{URL: u, HTML: "<html/>"})
	}
	return res, nil
}

func newTestService(t *testing.T, fake worker.Worker, sink Sink) (*Service, *store.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	st := store.NewStore(db)
	svc := NewService(st, Config{}, sink, nil)
	if fake != nil {
		svc.newWorker = func(string) (worker.Worker, error) { return fake, nil }
	}
	return svc, st
}

func TestDispatchLifecycle(t *testing.T) {
	// WHAT: A successful run transitions IDLE -> RUNNING -> IDLE, stamps
	// run metrics, records per-target SUCCESS and feeds the sink.
	// WHY: This is the orchestrator's whole contract in one pass.
	var sunk *worker.Result
	sink := func(ctx context.Context, c *store.Campaign, res *worker.Result) error {
		sunk = res
		return nil
	}
	svc, st := newTestService(t, &fakeWorker{}, sink)
	ctx := context.Background()

	urls := []string{"https://a.example/1", "https://a.example/2"}
	c, err := svc.Create(ctx, "drive weekly", worker.StrategyHTTP, urls, worker.Params{}, "0 6 * * *")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != store.CampaignIdle {
		t.Fatalf("initial status = %s, want IDLE", c.Status)
	}

	if err := svc.Dispatch(ctx, c.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	got, _ := svc.Get(ctx, c.ID)
	if got.Status != store.CampaignIdle {
		t.Fatalf("status = %s, want IDLE after run", got.Status)
	}
	if got.LastRunAt == nil {
		t.Fatal("last_run_at not stamped")
	}
	logs, err := st.ListTargetLogs(ctx, c.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	for _, lg := range logs {
		if lg.Status != store.TargetSuccess {
			t.Fatalf("log %s = %s, want SUCCESS", lg.URL, lg.Status)
		}
	}
	if sunk == nil || len(sunk.Pages) != 2 {
		t.Fatalf("sink got %+v, want 2 pages", sunk)
	}
}

func TestDispatchRecordsErrorState(t *testing.T) {
	// WHAT: A fatal worker error leaves the campaign in ERROR with the
	// message stored.
	// WHY: Operators triage from campaign status, not from log greps.
	svc, _ := newTestService(t, &fakeWorker{fatalErr: errors.New("proxy pool exhausted")}, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, "broken", worker.StrategyHTTP, []string{"https://a.example/1"}, worker.Params{}, store.ScheduleManual)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Dispatch(ctx, c.ID); err == nil {
		t.Fatal("dispatch should propagate the worker error")
	}

	got, _ := svc.Get(ctx, c.ID)
	if got.Status != store.CampaignError {
		t.Fatalf("status = %s, want ERROR", got.Status)
	}
	if got.LastError == "" {
		t.Fatal("last_error empty")
	}
}

func TestDispatchRejectsConcurrentRun(t *testing.T) {
	// WHAT: A campaign already RUNNING cannot be dispatched again.
	svc, st := newTestService(t, &fakeWorker{}, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, "busy", worker.StrategyHTTP, []string{"https://a.example/1"}, worker.Params{}, store.ScheduleManual)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.MarkCampaignRunning(ctx, c.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := svc.Dispatch(ctx, c.ID); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestBuildRetryCampaign(t *testing.T) {
	// WHAT: The retry campaign contains exactly the FAILED URLs of the
	// parent, in the parent's order, with strategy and params preserved.
	// WHY: Narrow retries are how operators drain flaky targets without
	// re-fetching an entire catalogue.
	failing := map[string]bool{
		"https://a.example/2": true,
		"https://a.example/4": true,
	}
	svc, _ := newTestService(t, &fakeWorker{failURLs: failing}, nil)
	ctx := context.Background()

	urls := []string{
		"https://a.example/1", "https://a.example/2",
		"https://a.example/3", "https://a.example/4",
	}
	parent, err := svc.Create(ctx, "drive", worker.StrategyHTTP, urls, worker.Params{RequiresScroll: true}, store.ScheduleManual)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Dispatch(ctx, parent.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	retry, err := svc.BuildRetryCampaign(ctx, parent.ID)
	if err != nil {
		t.Fatalf("build retry: %v", err)
	}
	var retryURLs []string
	if err := json.Unmarshal([]byte(retry.URLsJSON), &retryURLs); err != nil {
		t.Fatalf("decode retry urls: %v", err)
	}
	want := []string{"https://a.example/2", "https://a.example/4"}
	if len(retryURLs) != len(want) {
		t.Fatalf("retry urls = %v, want %v", retryURLs, want)
	}
	for i := range want {
		if retryURLs[i] != want[i] {
			t.Fatalf("retry urls = %v, want %v", retryURLs, want)
		}
	}
	if retry.Strategy != parent.Strategy || retry.ParamsJSON != parent.ParamsJSON {
		t.Fatal("retry campaign must inherit strategy and params")
	}
	if retry.Schedule != store.ScheduleManual {
		t.Fatalf("retry schedule = %s, want manual", retry.Schedule)
	}
	if retry.Name != "drive (retry)" {
		t.Fatalf("retry name = %s", retry.Name)
	}
}

func TestBuildRetryCampaignNothingFailed(t *testing.T) {
	// WHAT: A fully green run yields no retry campaign.
	svc, _ := newTestService(t, &fakeWorker{}, nil)
	ctx := context.Background()

	parent, err := svc.Create(ctx, "green", worker.StrategyHTTP, []string{"https://a.example/1"}, worker.Params{}, store.ScheduleManual)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Dispatch(ctx, parent.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := svc.BuildRetryCampaign(ctx, parent.ID); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("err = %v, want ErrNoTargets", err)
	}
}

func TestCreateRejectsUnknownStrategy(t *testing.T) {
	// WHAT: Campaign creation validates the strategy name up front.
	svc, _ := newTestService(t, nil, nil)
	if _, err := svc.Create(context.Background(), "bad", "TELNET", []string{"https://a.example"}, worker.Params{}, store.ScheduleManual); err == nil {
		t.Fatal("unknown strategy accepted at creation")
	}
}
