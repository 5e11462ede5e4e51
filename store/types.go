// CLAUDE:SUMMARY All store data types: Credential, Campaign, TargetLog, Product, Offer, Lever, Rule, MarketQuote, CollisionResult.
package store

// Worker strategy names recognized by campaigns.
const (
	StrategyHTTP       = "HTTP"
	StrategyBrowser    = "BROWSER"
	StrategyScreenshot = "SCREENSHOT"
)

// Campaign lifecycle statuses.
const (
	CampaignIdle    = "IDLE"
	CampaignRunning = "RUNNING"
	CampaignError   = "ERROR"
)

// ScheduleManual marks a campaign as dispatch-on-demand only; the poll
// scheduler skips it.
const ScheduleManual = "manual"

// Target log statuses.
const (
	TargetPending    = "PENDING"
	TargetProcessing = "PROCESSING"
	TargetSuccess    = "SUCCESS"
	TargetFailed     = "FAILED"
)

// Lever types.
const (
	LeverCoupon  = "COUPON"
	LeverRebate  = "REBATE"
	LeverLoyalty = "LOYALTY"
)

// MerchantWildcard matches every merchant in lever targets and rules.
const MerchantWildcard = "all"

// Certification grades.
const (
	GradeAPlus    = "A+"
	GradeA        = "A"
	GradeB        = "B"
	GradeC        = "C"
	GradeRejected = "REJECTED"
)

// QA statuses for collision results.
const (
	QAPending   = "PENDING"
	QACertified = "CERTIFIED"
	QARejected  = "REJECTED"
)

// Credential is one external-service key tracked by the pool.
type Credential struct {
	ID          string `json:"id"`
	Service     string `json:"service"`
	Secret      string `json:"secret"`
	Active      bool   `json:"active"`
	ErrorCount  int    `json:"error_count"`
	LastErrorAt *int64 `json:"last_error_at,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// Campaign is a declarative extraction configuration.
type Campaign struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Strategy       string `json:"strategy"`
	URLsJSON       string `json:"urls_json"`
	ParamsJSON     string `json:"params_json"`
	Schedule       string `json:"schedule"` // "manual" or a cron-like string
	Enabled        bool   `json:"enabled"`
	Status         string `json:"status"`
	LastRunAt      *int64 `json:"last_run_at,omitempty"`
	LastDurationMs int64  `json:"last_duration_ms"`
	LastError      string `json:"last_error"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// TargetLog is the per-(campaign, URL) outcome of the latest run lineage.
type TargetLog struct {
	ID           string `json:"id"`
	CampaignID   string `json:"campaign_id"`
	URL          string `json:"url"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	UpdatedAt    int64  `json:"updated_at"`
}

// Product is the identity anchor, keyed by normalized product code (EAN-13).
type Product struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	Provisional bool   `json:"provisional"`
	CreatedAt   int64  `json:"created_at"`
}

// Offer is a price/discount snapshot captured from one source at one time.
// NetPrice is derived: list price minus all discounts, clamped at zero.
type Offer struct {
	ID                string  `json:"id"`
	CampaignID        string  `json:"campaign_id"`
	ProductCode       string  `json:"product_code"`
	Merchant          string  `json:"merchant"`
	ListPrice         float64 `json:"list_price"`
	ImmediateDiscount float64 `json:"immediate_discount"`
	CouponValue       float64 `json:"coupon_value"`
	RebateValue       float64 `json:"rebate_value"`
	LoyaltyDiscount   float64 `json:"loyalty_discount"`
	NetPrice          float64 `json:"net_price"`
	SourceURL         string  `json:"source_url"`
	CapturedAt        int64   `json:"captured_at"`
	Active            bool    `json:"active"`
}

// Lever is an active promotional mechanism.
type Lever struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Description       string  `json:"description"`
	AbsoluteValue     float64 `json:"absolute_value"`
	PercentValue      float64 `json:"percent_value"`
	TargetProductCode string  `json:"target_product_code"`
	TargetBrand       string  `json:"target_brand"`
	TargetMerchant    string  `json:"target_merchant"`
	ConditionsJSON    string  `json:"conditions_json"`
	SourceURL         string  `json:"source_url"`
	ExpiresAt         *int64  `json:"expires_at,omitempty"`
	Active            bool    `json:"active"`
	CreatedAt         int64   `json:"created_at"`
}

// Rule is a merchant-level cumulation policy. Merchant "all" is the wildcard.
type Rule struct {
	ID         string  `json:"id"`
	Merchant   string  `json:"merchant"`
	RuleType   string  `json:"rule_type"`
	FlagsJSON  string  `json:"flags_json"`
	SourceURL  string  `json:"source_url"`
	Confidence float64 `json:"confidence"`
	UpdatedAt  int64   `json:"updated_at"`
}

// MarketQuote is the best observed marketplace resale price for a product.
type MarketQuote struct {
	ID          string  `json:"id"`
	ProductCode string  `json:"product_code"`
	Marketplace string  `json:"marketplace"`
	BuyBox      float64 `json:"buy_box"`
	PlatformFee float64 `json:"platform_fee"`
	FeePercent  float64 `json:"fee_percent"`
	Shipping    float64 `json:"shipping"`
	CapturedAt  int64   `json:"captured_at"`
}

// CollisionResult is the stacking engine's output for one offer.
type CollisionResult struct {
	ID           string  `json:"id"`
	OfferID      string  `json:"offer_id"`
	ProductCode  string  `json:"product_code"`
	LeversJSON   string  `json:"levers_json"`
	ScenarioJSON string  `json:"scenario_json"`
	NetPrice     float64 `json:"net_price"`
	ResalePrice  float64 `json:"resale_price"`
	PlatformFees float64 `json:"platform_fees"`
	NetProfit    float64 `json:"net_profit"`
	ROIPercent   float64 `json:"roi_percent"`
	Grade        string  `json:"grade"`
	QAStatus     string  `json:"qa_status"`
	ComputedAt   int64   `json:"computed_at"`
}
