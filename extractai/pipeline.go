// CLAUDE:SUMMARY Ingestion pipeline: captured pages through the collaborator into products, offers and levers.
package extractai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chineur/pepite/credpool"
	"github.com/chineur/pepite/idgen"
	"github.com/chineur/pepite/store"
)

// pageParams is the slice of a campaign's params the pipeline cares about.
// Campaign params are shared JSON; unrelated keys belong to the worker.
type pageParams struct {
	ExtractSchema string `json:"extract_schema"`
}

// Pipeline drives extraction over a finished campaign run and persists the
// results. It plugs into the orchestrator as its sink.
type Pipeline struct {
	store      *store.Store
	client     *Client
	normalizer *Normalizer
	logger     *slog.Logger
	newOfferID func() string
	newLeverID func() string
	now        func() time.Time
}

func NewPipeline(st *store.Store, client *Client, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:      st,
		client:     client,
		normalizer: NewNormalizer(),
		logger:     logger,
		newOfferID: idgen.Prefixed("off_", idgen.Default),
		newLeverID: idgen.Prefixed("lev_", idgen.Default),
		now:        time.Now,
	}
}

// HandleResult ingests every captured page of one run. Page-level
// extraction failures are logged and skipped; credential exhaustion aborts
// the rest of the batch.
func (p *Pipeline) HandleResult(ctx context.Context, c *store.Campaign, pages []PageContent) error {
	schema := SchemaCatalogue
	if c.ParamsJSON != "" {
		var pp pageParams
		if err := json.Unmarshal([]byte(c.ParamsJSON), &pp); err == nil && pp.ExtractSchema != "" {
			schema = pp.ExtractSchema
		}
	}

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.handlePage(ctx, c, schema, page)
		if errors.Is(err, credpool.ErrUnavailable) {
			return err
		}
		if err != nil {
			p.logger.Error("page extraction failed", "campaign", c.ID, "url", page.URL, "error", err)
		}
	}
	return nil
}

// PageContent is one captured page handed to the pipeline.
type PageContent struct {
	URL        string
	HTML       string
	Screenshot []byte
}

func (p *Pipeline) handlePage(ctx context.Context, c *store.Campaign, schema string, page PageContent) error {
	req := Request{SourceURL: page.URL}
	if len(page.Screenshot) > 0 {
		req.ImagePNG = page.Screenshot
	} else {
		md, err := p.normalizer.Markdown(page.HTML, page.URL)
		if err != nil {
			return fmt.Errorf("normalize: %w", err)
		}
		req.Markdown = md
	}

	switch schema {
	case SchemaCatalogue:
		items, _, err := p.client.ExtractCatalogue(ctx, req)
		if err != nil {
			return err
		}
		return p.persistCatalogue(ctx, c, page.URL, items)
	case SchemaRules:
		items, _, err := p.client.ExtractRules(ctx, req)
		if err != nil {
			return err
		}
		return p.persistRules(ctx, page.URL, items)
	default:
		return fmt.Errorf("unknown extract schema %q", schema)
	}
}

func (p *Pipeline) persistCatalogue(ctx context.Context, c *store.Campaign, sourceURL string, items []CatalogueItem) error {
	now := p.now()
	for i := range items {
		item := &items[i]
		if item.SourceURL == "" {
			item.SourceURL = sourceURL
		}
		if err := p.store.UpsertProduct(ctx, item.Product(now)); err != nil {
			return fmt.Errorf("upsert product: %w", err)
		}
		offer := item.Offer(c.ID, now)
		offer.ID = p.newOfferID()
		if err := p.store.InsertOffer(ctx, offer); err != nil {
			return fmt.Errorf("insert offer: %w", err)
		}
	}
	p.logger.Info("catalogue persisted", "campaign", c.ID, "source", sourceURL, "offers", len(items))
	return nil
}

func (p *Pipeline) persistRules(ctx context.Context, sourceURL string, items []RuleItem) error {
	now := p.now()
	for i := range items {
		item := &items[i]
		if item.SourceURL == "" {
			item.SourceURL = sourceURL
		}
		lever := item.Lever(now)
		lever.ID = p.newLeverID()
		if err := p.store.InsertLever(ctx, lever); err != nil {
			return fmt.Errorf("insert lever: %w", err)
		}
	}
	p.logger.Info("levers persisted", "source", sourceURL, "levers", len(items))
	return nil
}
