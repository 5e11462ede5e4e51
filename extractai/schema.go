// CLAUDE:SUMMARY Extraction schemas and per-item batch validation for AI collaborator output.
// Package extractai turns captured page content into structured promo data
// through an AI collaborator endpoint. Output is validated item by item
// against a named schema; a bad item is dropped and reported, never fatal.
package extractai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Schema names accepted by the collaborator.
const (
	SchemaCatalogue = "catalogue"
	SchemaRules     = "regles"
)

// maxListPrice guards against OCR misreads turning 14.99 into 1499900.
const maxListPrice = 50000

// CatalogueItem is one extracted product listing.
type CatalogueItem struct {
	EAN               string  `json:"ean"`
	Name              string  `json:"product_name"`
	Brand             string  `json:"brand"`
	Category          string  `json:"category"`
	ListPrice         float64 `json:"list_price"`
	ImmediateDiscount float64 `json:"immediate_discount"`
	CouponValue       float64 `json:"coupon_value"`
	RebateValue       float64 `json:"rebate_value"`
	LoyaltyDiscount   float64 `json:"loyalty_discount"`
	Merchant          string  `json:"merchant"`
	SourceURL         string  `json:"source_url"`
	Reliability       float64 `json:"reliability_score"`
}

// Validate normalizes and checks one catalogue item. An unusable EAN is
// cleared, not rejected; downstream assigns a provisional code.
func (c *CatalogueItem) Validate() error {
	c.EAN = normalizeEAN(c.EAN)
	if len(strings.TrimSpace(c.Name)) < 3 {
		return fmt.Errorf("product_name too short")
	}
	if c.ListPrice <= 0 {
		return fmt.Errorf("list_price must be positive, got %v", c.ListPrice)
	}
	if c.ListPrice > maxListPrice {
		return fmt.Errorf("list_price suspect: %v", c.ListPrice)
	}
	if c.Merchant == "" {
		return fmt.Errorf("merchant missing")
	}
	if c.Reliability < 0 || c.Reliability > 100 {
		return fmt.Errorf("reliability_score out of range: %v", c.Reliability)
	}
	return nil
}

// normalizeEAN strips separators and keeps only plausible GTIN-8/13 codes.
func normalizeEAN(raw string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return ""
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if len(cleaned) != 8 && len(cleaned) != 13 {
		return ""
	}
	return cleaned
}

// RuleItem is one extracted promotional lever.
type RuleItem struct {
	LeverType      string          `json:"lever_type"`
	Description    string          `json:"description"`
	AbsoluteValue  float64         `json:"absolute_value"`
	PercentValue   float64         `json:"percent_value"`
	TargetMerchant string          `json:"target_merchant"`
	TargetBrand    string          `json:"target_brand"`
	TargetEAN      string          `json:"target_ean"`
	Conditions     json.RawMessage `json:"conditions"`
	SourceURL      string          `json:"source_url"`
	ExpiresAt      string          `json:"expires_at"` // YYYY-MM-DD
	Confidence     float64         `json:"confidence"`
}

var validLeverTypes = map[string]bool{
	"COUPON":  true,
	"REBATE":  true,
	"LOYALTY": true,
}

func (r *RuleItem) Validate() error {
	r.LeverType = strings.ToUpper(strings.TrimSpace(r.LeverType))
	if !validLeverTypes[r.LeverType] {
		return fmt.Errorf("lever_type %q invalid", r.LeverType)
	}
	if len(strings.TrimSpace(r.Description)) < 5 {
		return fmt.Errorf("description too short")
	}
	if r.AbsoluteValue < 0 {
		return fmt.Errorf("absolute_value negative")
	}
	if r.PercentValue < 0 || r.PercentValue > 100 {
		return fmt.Errorf("percent_value out of range: %v", r.PercentValue)
	}
	if r.TargetMerchant == "" {
		return fmt.Errorf("target_merchant missing")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence out of range: %v", r.Confidence)
	}
	r.TargetEAN = normalizeEAN(r.TargetEAN)
	return nil
}

// ItemError reports one dropped item from a batch.
type ItemError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// validatable lets the batch helpers run over both item kinds.
type validatable interface {
	Validate() error
}

// decodeBatch parses a raw JSON array and validates each element,
// returning the survivors and one error record per dropped item.
func decodeBatch[T any, PT interface {
	*T
	validatable
}](raw []byte) ([]T, []ItemError) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, []ItemError{{Index: -1, Reason: truncateReason("not a JSON array: " + err.Error())}}
	}
	var valid []T
	var errs []ItemError
	for i, ri := range items {
		var item T
		if err := json.Unmarshal(ri, &item); err != nil {
			errs = append(errs, ItemError{Index: i, Reason: truncateReason(err.Error())})
			continue
		}
		if err := PT(&item).Validate(); err != nil {
			errs = append(errs, ItemError{Index: i, Reason: truncateReason(err.Error())})
			continue
		}
		valid = append(valid, item)
	}
	return valid, errs
}

func truncateReason(s string) string {
	if len(s) > 300 {
		return s[:300]
	}
	return s
}
