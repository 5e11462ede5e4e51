// CLAUDE:SUMMARY Shared rod browser session: stealth launch, page lifecycle, scroll-to-stabilize.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// session wraps one headless Chromium instance shared by all targets of a
// domain group. Pages are created and thrown away per target so a renderer
// crash on one URL never poisons the next.
type session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func newSession() (*session, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-sandbox")
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return &session{browser: b, launcher: l}, nil
}

func (s *session) close() {
	if s.browser != nil {
		s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
}

// openPage navigates a fresh stealth page to target and waits for load.
// A desktop viewport is applied before navigation so responsive sites
// render their desktop catalogue layout.
func (s *session) openPage(ctx context.Context, target string, params Params) (*rod.Page, error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             params.ViewportWidth,
		Height:            params.ViewportHeight,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	navCtx, cancel := context.WithTimeout(ctx, params.NavTimeout)
	defer cancel()
	p := page.Context(navCtx)
	if err := p.Navigate(target); err != nil {
		page.Close()
		return nil, fmt.Errorf("navigate %s: %w", target, err)
	}
	if err := p.WaitLoad(); err != nil {
		page.Close()
		return nil, fmt.Errorf("wait load %s: %w", target, err)
	}
	return page, nil
}

// scrollToStabilize scrolls to the bottom until document height stops
// growing or the iteration cap is hit. Lazy-loading catalogues keep
// appending rows; two consecutive identical heights means the page settled.
func scrollToStabilize(ctx context.Context, page *rod.Page, params Params) error {
	lastHeight := int64(-1)
	for i := 0; i < params.MaxScrolls; i++ {
		res, err := page.Eval(`() => document.body.scrollHeight`)
		if err != nil {
			return fmt.Errorf("read scroll height: %w", err)
		}
		height := int64(res.Value.Int())
		if height == lastHeight {
			return nil
		}
		lastHeight = height
		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := sleepCtx(ctx, params.ScrollPause); err != nil {
			return err
		}
	}
	return nil
}

// settleDelay lets late scripts finish after load before capture.
const settleDelay = 500 * time.Millisecond
