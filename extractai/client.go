// CLAUDE:SUMMARY AI collaborator HTTP client with credential rotation and fenced-JSON tolerance.
package extractai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chineur/pepite/credpool"
)

// Config locates the collaborator endpoint.
type Config struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	Service  string `yaml:"service"` // credential pool service name
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "gemini-1.5-flash"
	}
	if c.Service == "" {
		c.Service = "gemini"
	}
}

// Client calls the extraction collaborator. API keys come from the
// credential pool; quota responses rotate to the next key transparently.
type Client struct {
	config     Config
	pool       *credpool.Pool
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, pool *credpool.Pool, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:     cfg,
		pool:       pool,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

// Request is one extraction job: text or image content plus the schema the
// output must satisfy.
type Request struct {
	Schema    string // SchemaCatalogue or SchemaRules
	Markdown  string // text content (catalogue pages, T&C text)
	ImagePNG  []byte // flyer screenshot, alternative to Markdown
	SourceURL string
}

// apiRequest is the collaborator wire format.
type apiRequest struct {
	Model     string `json:"model"`
	Schema    string `json:"schema"`
	Text      string `json:"text,omitempty"`
	ImageB64  string `json:"image_b64,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

type apiResponse struct {
	Content string `json:"content"`
}

// ExtractCatalogue runs a catalogue extraction and validates each item.
// Dropped items are reported, not fatal. credpool.ErrUnavailable means no
// key is usable and the caller should stop the batch.
func (c *Client) ExtractCatalogue(ctx context.Context, req Request) ([]CatalogueItem, []ItemError, error) {
	req.Schema = SchemaCatalogue
	raw, err := c.generate(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	valid, errs := decodeBatch[CatalogueItem](raw)
	c.logDropped(SchemaCatalogue, req.SourceURL, errs)
	return valid, errs, nil
}

// ExtractRules runs a lever/rule extraction and validates each item.
func (c *Client) ExtractRules(ctx context.Context, req Request) ([]RuleItem, []ItemError, error) {
	req.Schema = SchemaRules
	raw, err := c.generate(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	valid, errs := decodeBatch[RuleItem](raw)
	c.logDropped(SchemaRules, req.SourceURL, errs)
	return valid, errs, nil
}

func (c *Client) logDropped(schema, sourceURL string, errs []ItemError) {
	for _, e := range errs {
		c.logger.Warn("extraction item dropped",
			"schema", schema, "source", sourceURL, "index", e.Index, "reason", e.Reason)
	}
}

// generate posts one extraction request, rotating keys until a non-quota
// outcome, and returns the collaborator's JSON array payload.
func (c *Client) generate(ctx context.Context, req Request) ([]byte, error) {
	body := apiRequest{
		Model:     c.config.Model,
		Schema:    req.Schema,
		Text:      req.Markdown,
		SourceURL: req.SourceURL,
	}
	if len(req.ImagePNG) > 0 {
		body.ImageB64 = base64.StdEncoding.EncodeToString(req.ImagePNG)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	for {
		secret, err := c.pool.Acquire(ctx, c.config.Service)
		if err != nil {
			return nil, err
		}
		raw, status, err := c.post(ctx, payload, secret)
		if err == nil {
			return raw, nil
		}
		if credpool.IsQuotaSignal(status) {
			if rerr := c.pool.ReportFailure(ctx, c.config.Service, secret, status); rerr != nil {
				return nil, rerr
			}
			c.logger.Warn("extraction key rotated", "service", c.config.Service, "status", status)
			continue
		}
		return nil, err
	}
}

func (c *Client) post(ctx context.Context, payload []byte, secret string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("call collaborator: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("collaborator: http %d: %s", resp.StatusCode, truncateReason(string(b)))
	}
	var out apiResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return []byte(stripFence(out.Content)), resp.StatusCode, nil
}

// stripFence removes a ```json code fence some models wrap around output
// despite the JSON response mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
