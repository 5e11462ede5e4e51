// CLAUDE:SUMMARY HTTP strategy: direct or render-proxied GETs with credential rotation on quota signals.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/chineur/pepite/credpool"
)

const httpUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxBodyBytes bounds a single fetched document.
const maxBodyBytes = 8 << 20

// HTTPWorker fetches targets with plain GET requests. When a render proxy
// is configured, requests are routed through it with an API key drawn from
// the credential pool; quota responses rotate to the next key transparently.
type HTTPWorker struct {
	pool   *credpool.Pool
	proxy  ProxyConfig
	client *http.Client
	logger *slog.Logger
}

func NewHTTPWorker(deps Deps) *HTTPWorker {
	return &HTTPWorker{
		pool:   deps.Pool,
		proxy:  deps.Proxy,
		client: &http.Client{Timeout: 45 * time.Second},
		logger: deps.logger(),
	}
}

func (w *HTTPWorker) Fetch(ctx context.Context, targets []string, params Params, report StatusFunc) (*Result, error) {
	params.defaults()
	start := time.Now()
	res := &Result{Strategy: StrategyHTTP}

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		report(target, StatusProcessing, "")

		html, err := w.fetchOne(ctx, target)
		if errors.Is(err, credpool.ErrUnavailable) {
			// No key will become usable mid-batch; bail out for the
			// whole invocation instead of burning through every URL.
			report(target, StatusFailed, err.Error())
			res.Duration = time.Since(start)
			return res, err
		}
		if err != nil {
			msg := truncate(err.Error(), 500)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", target, msg))
			report(target, StatusFailed, msg)
		} else {
			res.Pages = append(res.Pages, Page{
				URL:        target,
				HTML:       html,
				CapturedAt: time.Now().UnixMilli(),
			})
			report(target, StatusSuccess, "")
		}

		if i < len(targets)-1 {
			if err := sleepCtx(ctx, params.RequestDelay); err != nil {
				res.Duration = time.Since(start)
				return res, err
			}
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

// fetchOne retrieves one document, rotating proxy keys until a non-quota
// outcome. Direct mode makes a single attempt.
func (w *HTTPWorker) fetchOne(ctx context.Context, target string) (string, error) {
	if w.proxy.Endpoint == "" || w.pool == nil {
		return w.get(ctx, target)
	}
	for {
		secret, err := w.pool.Acquire(ctx, w.proxy.Service)
		if err != nil {
			return "", err
		}
		html, status, err := w.getStatus(ctx, w.proxyURL(secret, target))
		if err == nil {
			return html, nil
		}
		if credpool.IsQuotaSignal(status) {
			if rerr := w.pool.ReportFailure(ctx, w.proxy.Service, secret, status); rerr != nil {
				return "", rerr
			}
			w.logger.Warn("render proxy key rotated", "service", w.proxy.Service, "status", status)
			continue
		}
		return "", err
	}
}

func (w *HTTPWorker) proxyURL(secret, target string) string {
	q := url.Values{}
	q.Set("api_key", secret)
	q.Set("url", target)
	q.Set("render_js", "false")
	if w.proxy.CountryCode != "" {
		q.Set("country_code", w.proxy.CountryCode)
	}
	return w.proxy.Endpoint + "?" + q.Encode()
}

func (w *HTTPWorker) get(ctx context.Context, target string) (string, error) {
	body, _, err := w.getStatus(ctx, target)
	return body, err
}

func (w *HTTPWorker) getStatus(ctx context.Context, target string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", httpUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.6")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", resp.StatusCode, fmt.Errorf("fetch %s: http %d", target, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body %s: %w", target, err)
	}
	return string(b), resp.StatusCode, nil
}
