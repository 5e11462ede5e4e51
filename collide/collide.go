// CLAUDE:SUMMARY Stacking collision engine: match levers, enumerate scenarios, grade ROI, persist winners.
// Package collide crosses every active offer against live promotional
// levers, enumerates the discount scenarios the merchant's cumulation
// rules permit, and grades the best one against marketplace resale data.
package collide

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chineur/pepite/idgen"
	"github.com/chineur/pepite/store"
)

// Config tunes the engine. Zero values get defaults.
type Config struct {
	// MinROIPercent is the floor below which a deal grades REJECTED.
	// Default: 15.
	MinROIPercent float64
}

func (c *Config) defaults() {
	if c.MinROIPercent <= 0 {
		c.MinROIPercent = 15
	}
}

// Summary reports one engine pass.
type Summary struct {
	Offers   int `json:"offers"`
	Pepites  int `json:"pepites"`
	Rejected int `json:"rejected"`
	Skipped  int `json:"skipped"`
}

// Engine runs the collision pass. It is stateless between runs; every pass
// re-reads offers, levers and rules.
type Engine struct {
	store  *store.Store
	config Config
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
}

func New(st *store.Store, cfg Config, logger *slog.Logger) *Engine {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  st,
		config: cfg,
		logger: logger,
		newID:  idgen.Prefixed("col_", idgen.Default),
		now:    time.Now,
	}
}

// Run executes one full collision pass over all active offers. Offers
// whose product reference is missing are skipped, not counted as rejects.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	offers, err := e.store.ListActiveOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	levers, err := e.store.LiveLevers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list levers: %w", err)
	}
	e.logger.Info("collision pass started", "offers", len(offers), "levers", len(levers))

	sum := &Summary{Offers: len(offers)}
	for _, offer := range offers {
		if cerr := ctx.Err(); cerr != nil {
			return sum, cerr
		}
		outcome, err := e.collide(ctx, offer, levers)
		if err != nil {
			return sum, fmt.Errorf("offer %s: %w", offer.ID, err)
		}
		switch outcome {
		case outcomePepite:
			sum.Pepites++
		case outcomeRejected:
			sum.Rejected++
		case outcomeSkipped:
			sum.Skipped++
		}
	}
	e.logger.Info("collision pass finished",
		"pepites", sum.Pepites, "rejected", sum.Rejected, "skipped", sum.Skipped)
	return sum, nil
}

type outcome int

const (
	outcomePepite outcome = iota
	outcomeRejected
	outcomeSkipped
)

func (e *Engine) collide(ctx context.Context, offer *store.Offer, allLevers []*store.Lever) (outcome, error) {
	product, err := e.store.GetProduct(ctx, offer.ProductCode)
	if err != nil {
		return 0, err
	}
	if product == nil {
		return outcomeSkipped, nil
	}

	rules, err := e.store.RulesForMerchant(ctx, offer.Merchant)
	if err != nil {
		return 0, err
	}
	matched := matchLevers(allLevers, offer.ProductCode, product.Brand, offer.Merchant)
	scenarios := generateScenarios(offer.ListPrice, offer.ImmediateDiscount, matched, rules)
	best := bestScenario(scenarios)

	quote, err := e.store.LatestMarketQuote(ctx, offer.ProductCode)
	if err != nil {
		return 0, err
	}
	econ := computeEconomics(best.NetNet, quote)
	grade := e.grade(econ.ROIPercent, quote != nil, len(best.LeverIDs))

	// An offer the engine cannot improve and cannot certify is noise.
	if grade == store.GradeRejected && len(best.LeverIDs) == 0 {
		return outcomeRejected, nil
	}

	leversJSON, err := json.Marshal(best.LeverIDs)
	if err != nil {
		return 0, err
	}
	scenarioJSON, err := json.Marshal(best)
	if err != nil {
		return 0, err
	}
	result := &store.CollisionResult{
		ID:           e.newID(),
		OfferID:      offer.ID,
		ProductCode:  offer.ProductCode,
		LeversJSON:   string(leversJSON),
		ScenarioJSON: string(scenarioJSON),
		NetPrice:     best.NetNet,
		ResalePrice:  econ.ResalePrice,
		PlatformFees: econ.Fees,
		NetProfit:    econ.Profit,
		ROIPercent:   econ.ROIPercent,
		Grade:        grade,
		ComputedAt:   e.now().UnixMilli(),
	}
	if err := e.store.UpsertCollisionResult(ctx, result); err != nil {
		return 0, err
	}
	return outcomePepite, nil
}

// grade maps ROI and context onto a certification tier. A+ demands market
// confirmation and an execution-friendly lever count.
func (e *Engine) grade(roi float64, hasMarket bool, leverCount int) string {
	switch {
	case roi >= 40 && hasMarket && leverCount <= 2:
		return store.GradeAPlus
	case roi >= 30 && hasMarket:
		return store.GradeA
	case roi >= 20:
		return store.GradeB
	case roi >= e.config.MinROIPercent:
		return store.GradeC
	}
	return store.GradeRejected
}

type economics struct {
	ResalePrice float64
	Fees        float64
	Profit      float64
	ROIPercent  float64
}

// computeEconomics prices the flip against the latest marketplace quote.
// Without a quote everything stays zero and the offer cannot certify.
func computeEconomics(netPrice float64, quote *store.MarketQuote) economics {
	if quote == nil {
		return economics{}
	}
	commission := round2(quote.BuyBox * quote.FeePercent / 100)
	fees := quote.PlatformFee + quote.Shipping + commission
	profit := round2(quote.BuyBox - fees - netPrice)
	var roi float64
	if netPrice > 0 {
		roi = round2(profit / netPrice * 100)
	}
	return economics{
		ResalePrice: quote.BuyBox,
		Fees:        fees,
		Profit:      profit,
		ROIPercent:  roi,
	}
}
