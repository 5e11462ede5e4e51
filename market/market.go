// CLAUDE:SUMMARY Market resale probe: shopping-search lookups, localized price parsing, quote upserts.
// Package market finds the resale price of products already captured by
// extraction, through a shopping-search API with key rotation. One quote
// per product per pass; the collision engine reads the latest.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chineur/pepite/credpool"
	"github.com/chineur/pepite/idgen"
	"github.com/chineur/pepite/store"
)

// pricePattern matches the numeric core of localized price strings.
var pricePattern = regexp.MustCompile(`[0-9]+[.,][0-9]+`)

// minPlausiblePrice filters out placeholder and per-unit prices.
const minPlausiblePrice = 0.1

// Config locates the shopping-search endpoint.
type Config struct {
	Endpoint    string `yaml:"endpoint"`
	Service     string `yaml:"service"` // credential pool service name
	Marketplace string `yaml:"marketplace"`
	CountryCode string `yaml:"country_code"`
	// QuoteMaxAge bounds quote freshness; products whose latest quote is
	// older get re-probed. Default: 24h.
	QuoteMaxAge time.Duration `yaml:"quote_max_age"`
}

func (c *Config) applyDefaults() {
	if c.Service == "" {
		c.Service = "serpapi"
	}
	if c.Marketplace == "" {
		c.Marketplace = "google_shopping"
	}
	if c.CountryCode == "" {
		c.CountryCode = "fr"
	}
	if c.QuoteMaxAge <= 0 {
		c.QuoteMaxAge = 24 * time.Hour
	}
}

// feeEstimate is the fulfillment cost model for ROI computation.
type feeEstimate struct {
	feePercent  float64
	platformFee float64
	shipping    float64
}

// feeEstimates approximates marketplace fees per category. Keys are
// substring-matched against the product category, lowercased.
var feeEstimates = map[string]feeEstimate{
	"default":     {feePercent: 15.0, platformFee: 4.50},
	"electronics": {feePercent: 7.0, platformFee: 5.00},
	"toys":        {feePercent: 15.0, platformFee: 4.00},
	"beauty":      {feePercent: 15.0, platformFee: 3.50},
	"grocery":     {feePercent: 8.0, platformFee: 3.00},
}

// Prober looks up resale prices for products missing fresh quotes.
type Prober struct {
	store      *store.Store
	pool       *credpool.Pool
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	newID      func() string
	now        func() time.Time
}

func NewProber(st *store.Store, pool *credpool.Pool, cfg Config, logger *slog.Logger) *Prober {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		store:      st,
		pool:       pool,
		config:     cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		newID:      idgen.Prefixed("mkt_", idgen.Default),
		now:        time.Now,
	}
}

// Run probes every product whose latest quote is missing or stale.
// Credential exhaustion aborts the batch; a product with no findable price
// is skipped without a quote.
func (p *Prober) Run(ctx context.Context) (int, error) {
	codes, err := p.store.ProductsMissingQuotes(ctx, p.config.QuoteMaxAge)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	if len(codes) == 0 {
		return 0, nil
	}
	p.logger.Info("market probe started", "products", len(codes))

	updated := 0
	for _, code := range codes {
		if cerr := ctx.Err(); cerr != nil {
			return updated, cerr
		}
		product, err := p.store.GetProduct(ctx, code)
		if err != nil {
			return updated, err
		}
		if product == nil {
			continue
		}
		price, err := p.lowestPrice(ctx, code, product.Name)
		if errors.Is(err, credpool.ErrUnavailable) {
			return updated, err
		}
		if err != nil {
			p.logger.Warn("market probe failed", "product", code, "error", err)
			continue
		}
		if price <= 0 {
			continue
		}
		fees := estimateFees(product.Category)
		quote := &store.MarketQuote{
			ID:          p.newID(),
			ProductCode: code,
			Marketplace: p.config.Marketplace,
			BuyBox:      price,
			PlatformFee: fees.platformFee,
			FeePercent:  fees.feePercent,
			Shipping:    fees.shipping,
			CapturedAt:  p.now().UnixMilli(),
		}
		if err := p.store.InsertMarketQuote(ctx, quote); err != nil {
			return updated, fmt.Errorf("insert quote: %w", err)
		}
		updated++
	}
	p.logger.Info("market probe finished", "updated", updated)
	return updated, nil
}

// lowestPrice queries the shopping engine and returns the lowest plausible
// price found, 0 when none. Quota responses rotate to the next key.
func (p *Prober) lowestPrice(ctx context.Context, code, name string) (float64, error) {
	query := strings.TrimSpace(code + " " + name)
	for {
		secret, err := p.pool.Acquire(ctx, p.config.Service)
		if err != nil {
			return 0, err
		}
		prices, status, err := p.search(ctx, query, secret)
		if err == nil {
			return lowest(prices), nil
		}
		if credpool.IsQuotaSignal(status) {
			if rerr := p.pool.ReportFailure(ctx, p.config.Service, secret, status); rerr != nil {
				return 0, rerr
			}
			p.logger.Warn("market probe key rotated", "service", p.config.Service, "status", status)
			continue
		}
		return 0, err
	}
}

// searchResponse is the subset of the shopping API payload we read. Price
// may arrive as a localized string or a bare number.
type searchResponse struct {
	ShoppingResults []struct {
		Price          json.RawMessage `json:"price"`
		ExtractedPrice float64         `json:"extracted_price"`
	} `json:"shopping_results"`
}

func (p *Prober) search(ctx context.Context, query, secret string) ([]float64, int, error) {
	q := url.Values{}
	q.Set("engine", p.config.Marketplace)
	q.Set("q", query)
	q.Set("gl", p.config.CountryCode)
	q.Set("hl", p.config.CountryCode)
	q.Set("num", "10")
	q.Set("api_key", secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, fmt.Errorf("search: http %d", resp.StatusCode)
	}
	var out searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode search response: %w", err)
	}

	var prices []float64
	for _, r := range out.ShoppingResults {
		v := r.ExtractedPrice
		if v == 0 {
			v = parseRawPrice(r.Price)
		}
		if v > minPlausiblePrice {
			prices = append(prices, v)
		}
	}
	return prices, resp.StatusCode, nil
}

func parseRawPrice(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return 0
	}
	return ParsePrice(asString)
}

// ParsePrice extracts a float from a localized price string, for example
// "24,99 €" or "1 024.50". Returns 0 when no price is present.
func ParsePrice(s string) float64 {
	compact := strings.ReplaceAll(s, " ", "")
	compact = strings.ReplaceAll(compact, " ", "")
	m := pricePattern.FindString(compact)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func estimateFees(category string) feeEstimate {
	cat := strings.ToLower(category)
	for key, est := range feeEstimates {
		if key != "default" && strings.Contains(cat, key) {
			return est
		}
	}
	return feeEstimates["default"]
}

func lowest(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	min := prices[0]
	for _, v := range prices[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
