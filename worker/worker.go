// CLAUDE:SUMMARY Worker strategy contract, extraction result types, and the explicit strategy registry.
// Package worker implements the three extraction strategies behind a common
// fetch contract: plain HTTP, full browser rendering, and full-page
// screenshot capture.
//
// Strategy selection is a pure lookup by name; the orchestrator stays
// agnostic to which strategy runs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/chineur/pepite/credpool"
)

// Strategy names. These are the values stored on campaigns.
const (
	StrategyHTTP       = "HTTP"
	StrategyBrowser    = "BROWSER"
	StrategyScreenshot = "SCREENSHOT"
)

// Target statuses reported through the per-target callback.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// StatusFunc receives per-target lifecycle updates. Each strategy reports
// PROCESSING when it starts a URL and exactly one terminal SUCCESS/FAILED
// before moving to the next, so the orchestrator can persist granular
// status without waiting for the whole batch.
type StatusFunc func(url string, status Status, message string)

// Params is the tagged per-campaign extraction configuration. Unknown
// options do not exist: everything a strategy honors is enumerated here.
type Params struct {
	// MaxPagesPerURL caps pagination depth per target. Default: 1.
	MaxPagesPerURL int `json:"max_pages_per_url"`
	// RequiresScroll enables scroll-to-stabilize before capture.
	RequiresScroll bool `json:"requires_scroll"`
	// PaginationSelector locates the "next" control (BROWSER only).
	PaginationSelector string `json:"pagination_selector"`
	// Viewport dimensions. Default: 1920x1080.
	ViewportWidth  int `json:"viewport_width"`
	ViewportHeight int `json:"viewport_height"`

	// NavTimeout bounds each navigation. Default: 30s.
	NavTimeout time.Duration `json:"-"`
	// RequestDelay is the fixed inter-request pause. Default: 1s.
	RequestDelay time.Duration `json:"-"`
	// ScrollPause is the pause between scroll iterations. Default: 1500ms.
	ScrollPause time.Duration `json:"-"`
	// MaxScrolls caps scroll-to-stabilize iterations. Default: 20.
	MaxScrolls int `json:"-"`
}

func (p *Params) defaults() {
	if p.MaxPagesPerURL < 1 {
		p.MaxPagesPerURL = 1
	}
	if p.ViewportWidth <= 0 {
		p.ViewportWidth = 1920
	}
	if p.ViewportHeight <= 0 {
		p.ViewportHeight = 1080
	}
	if p.NavTimeout <= 0 {
		p.NavTimeout = 30 * time.Second
	}
	if p.RequestDelay <= 0 {
		p.RequestDelay = time.Second
	}
	if p.ScrollPause <= 0 {
		p.ScrollPause = 1500 * time.Millisecond
	}
	if p.MaxScrolls <= 0 {
		p.MaxScrolls = 20
	}
}

// Page is one captured rendering of one target page.
type Page struct {
	URL        string
	HTML       string // HTTP and BROWSER strategies
	Screenshot []byte // SCREENSHOT strategy (full-page PNG)
	CapturedAt int64
}

// Result is the universal container returned by every strategy.
type Result struct {
	Strategy string
	Pages    []Page
	Errors   []string
	Duration time.Duration
}

// HasContent reports whether the invocation captured anything usable.
func (r *Result) HasContent() bool {
	return len(r.Pages) > 0
}

// Worker is the common strategy contract. Implementations process targets
// in the order supplied and isolate per-target failures: one bad page never
// aborts the batch, except credential exhaustion, which is fatal for the
// remainder of the invocation.
type Worker interface {
	Fetch(ctx context.Context, targets []string, params Params, report StatusFunc) (*Result, error)
}

// ProxyConfig routes HTTP fetches through a quota-limited render service.
// Empty endpoint = direct requests.
type ProxyConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Service     string `yaml:"service"` // credential pool service name
	CountryCode string `yaml:"country_code"`
}

// Deps carries the shared collaborators injected into strategies.
type Deps struct {
	Pool   *credpool.Pool
	Proxy  ProxyConfig
	Logger *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Factory constructs a strategy from shared deps.
type Factory func(Deps) Worker

// registry maps the three known strategy names to constructors. Extending
// the worker fleet means adding a row here, nothing else.
var registry = map[string]Factory{
	StrategyHTTP:       func(d Deps) Worker { return NewHTTPWorker(d) },
	StrategyBrowser:    func(d Deps) Worker { return NewBrowserWorker(d) },
	StrategyScreenshot: func(d Deps) Worker { return NewScreenshotWorker(d) },
}

// New returns the strategy registered under name.
func New(name string, deps Deps) (Worker, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("worker: unknown strategy %q (valid: %v)", name, Strategies())
	}
	return f(deps), nil
}

// Strategies returns the registered strategy names, sorted.
func Strategies() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// sleepCtx pauses for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// truncate caps an error message for per-target logs.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
