// CLAUDE:SUMMARY SCREENSHOT strategy: full-page hi-res PNG capture for vision extraction.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// ScreenshotWorker captures full-page PNGs at doubled pixel density.
// Promo flyers are mostly imagery, so the downstream extractor reads the
// picture instead of the DOM.
type ScreenshotWorker struct {
	logger *slog.Logger
}

func NewScreenshotWorker(deps Deps) *ScreenshotWorker {
	return &ScreenshotWorker{logger: deps.logger()}
}

func (w *ScreenshotWorker) Fetch(ctx context.Context, targets []string, params Params, report StatusFunc) (*Result, error) {
	params.defaults()
	start := time.Now()
	res := &Result{Strategy: StrategyScreenshot}

	for _, group := range groupByDomain(targets) {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		if err := w.captureGroup(ctx, group, params, res, report); err != nil {
			w.logger.Error("screenshot group failed", "domain", group.domain, "error", err)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (w *ScreenshotWorker) captureGroup(ctx context.Context, group domainGroup, params Params, res *Result, report StatusFunc) error {
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
		shot, err := w.captureTarget(ctx, sess, target, params)
		if err != nil {
			msg := truncate(err.Error(), 500)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", target, msg))
			report(target, StatusFailed, msg)
			continue
		}
		res.Pages = append(res.Pages, Page{URL: target, Screenshot: shot, CapturedAt: time.Now().UnixMilli()})
		report(target, StatusSuccess, "")
	}
	return nil
}

func (w *ScreenshotWorker) captureTarget(ctx context.Context, sess *session, target string, params Params) ([]byte, error) {
	page, err := sess.openPage(ctx, target, params)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	// Double density keeps small price tags legible to the vision model.
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             params.ViewportWidth,
		Height:            params.ViewportHeight,
		DeviceScaleFactor: 2,
		Mobile:            false,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := sleepCtx(ctx, settleDelay); err != nil {
		return nil, err
	}
	if params.RequiresScroll {
		if err := scrollToStabilize(ctx, page, params); err != nil {
			return nil, err
		}
		// Back to the top so the full-page capture starts at the banner.
		if _, err := page.Eval(`() => window.scrollTo(0, 0)`); err != nil {
			return nil, fmt.Errorf("scroll top: %w", err)
		}
		if err := sleepCtx(ctx, settleDelay); err != nil {
			return nil, err
		}
	}
	return fullPagePNG(page)
}

func fullPagePNG(page *rod.Page) ([]byte, error) {
	shot, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return shot, nil
}
