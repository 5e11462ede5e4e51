// CLAUDE:SUMMARY BROWSER strategy: rendered HTML capture with scroll stabilization and pagination walking.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserWorker renders targets in headless Chromium and captures the
// post-JavaScript DOM. Targets sharing a domain reuse one browser so
// cookies and anti-bot state carry across a site's pages.
type BrowserWorker struct {
	logger *slog.Logger
}

func NewBrowserWorker(deps Deps) *BrowserWorker {
	return &BrowserWorker{logger: deps.logger()}
}

func (w *BrowserWorker) Fetch(ctx context.Context, targets []string, params Params, report StatusFunc) (*Result, error) {
	params.defaults()
	start := time.Now()
	res := &Result{Strategy: StrategyBrowser}

	for _, group := range groupByDomain(targets) {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		if err := w.fetchGroup(ctx, group, params, res, report); err != nil {
			// Session-level failure: every remaining target of the
			// group already got a FAILED report inside fetchGroup.
			w.logger.Error("browser group failed", "domain", group.domain, "error", err)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (w *BrowserWorker) fetchGroup(ctx context.Context, group domainGroup, params Params, res *Result, report StatusFunc) error {
	sess, err := newSession()
	if err != nil {
		for _, t := range group.targets {
			report(t, StatusFailed, truncate(err.Error(), 500))
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", t, err))
		}
		return err
	}
	defer sess.close()

	for _, target := range group.targets {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		report(target, StatusProcessing, "")
		pages, err := w.fetchTarget(ctx, sess, target, params)
		if err != nil {
			msg := truncate(err.Error(), 500)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", target, msg))
			report(target, StatusFailed, msg)
			continue
		}
		res.Pages = append(res.Pages, pages...)
		report(target, StatusSuccess, "")
	}
	return nil
}

// fetchTarget renders one URL, walking pagination up to MaxPagesPerURL.
// The page is created fresh here and closed on exit; per-target errors stay
// contained to this call.
func (w *BrowserWorker) fetchTarget(ctx context.Context, sess *session, target string, params Params) ([]Page, error) {
	page, err := sess.openPage(ctx, target, params)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	var out []Page
	for n := 1; ; n++ {
		if err := sleepCtx(ctx, settleDelay); err != nil {
			return out, err
		}
		if params.RequiresScroll {
			if err := scrollToStabilize(ctx, page, params); err != nil {
				return out, err
			}
		}
		html, err := page.HTML()
		if err != nil {
			return out, fmt.Errorf("capture html: %w", err)
		}
		out = append(out, Page{URL: target, HTML: html, CapturedAt: time.Now().UnixMilli()})

		if n >= params.MaxPagesPerURL || params.PaginationSelector == "" {
			return out, nil
		}
		ok, err := w.nextPage(ctx, page, params)
		if err != nil {
			w.logger.Warn("pagination stopped", "url", target, "page", n, "error", err)
			return out, nil
		}
		if !ok {
			return out, nil
		}
	}
}

// nextPage clicks the pagination control if present and enabled. Returns
// false when the control is missing or disabled, which ends the walk
// normally.
func (w *BrowserWorker) nextPage(ctx context.Context, page *rod.Page, params Params) (bool, error) {
	el, err := page.Timeout(5 * time.Second).Element(params.PaginationSelector)
	if err != nil {
		return false, nil
	}
	if controlDisabled(el) {
		return false, nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("click pagination: %w", err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		return false, fmt.Errorf("wait next page: %w", err)
	}
	return true, nil
}

// controlDisabled checks the three ways sites mark a dead "next" button.
func controlDisabled(el *rod.Element) bool {
	if v, _ := el.Attribute("disabled"); v != nil {
		return true
	}
	if v, _ := el.Attribute("aria-disabled"); v != nil && *v == "true" {
		return true
	}
	if v, _ := el.Attribute("class"); v != nil {
		for _, c := range strings.Fields(*v) {
			if c == "disabled" {
				return true
			}
		}
	}
	return false
}
