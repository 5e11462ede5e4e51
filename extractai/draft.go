// CLAUDE:SUMMARY Mapping from validated extraction items to store entities.
package extractai

import (
	"fmt"
	"time"

	"github.com/chineur/pepite/store"
)

// ProvisionalCode derives a placeholder product code for items whose EAN
// could not be extracted. Codes are stable per (merchant, name) so repeat
// captures of the same listing converge on one product row.
func ProvisionalCode(merchant, name string) string {
	return fmt.Sprintf("PROV-%s-%x", merchant, fnv64(name))
}

func fnv64(s string) uint64 {
	// FNV-1a.
	h := uint64(14695981039346656037)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// Product builds the product row for a catalogue item. Items without an
// EAN get a provisional code and are flagged for later merge.
func (c *CatalogueItem) Product(now time.Time) *store.Product {
	code := c.EAN
	provisional := false
	if code == "" {
		code = ProvisionalCode(c.Merchant, c.Name)
		provisional = true
	}
	return &store.Product{
		Code:        code,
		Name:        c.Name,
		Brand:       c.Brand,
		Category:    c.Category,
		Provisional: provisional,
		CreatedAt:   now.UnixMilli(),
	}
}

// Offer builds the offer row for a catalogue item. ID assignment and net
// price derivation happen in the store.
func (c *CatalogueItem) Offer(campaignID string, now time.Time) *store.Offer {
	code := c.EAN
	if code == "" {
		code = ProvisionalCode(c.Merchant, c.Name)
	}
	return &store.Offer{
		CampaignID:        campaignID,
		ProductCode:       code,
		Merchant:          c.Merchant,
		ListPrice:         c.ListPrice,
		ImmediateDiscount: c.ImmediateDiscount,
		CouponValue:       c.CouponValue,
		RebateValue:       c.RebateValue,
		LoyaltyDiscount:   c.LoyaltyDiscount,
		SourceURL:         c.SourceURL,
		CapturedAt:        now.UnixMilli(),
		Active:            true,
	}
}

// Lever builds the lever row for a rule item. An unparseable expiry date
// leaves the lever open-ended.
func (r *RuleItem) Lever(now time.Time) *store.Lever {
	var expiresAt *int64
	if r.ExpiresAt != "" {
		if t, err := time.Parse("2006-01-02", r.ExpiresAt); err == nil {
			// Expire at end of day, promo dates are inclusive.
			ms := t.Add(24*time.Hour - time.Millisecond).UnixMilli()
			expiresAt = &ms
		}
	}
	return &store.Lever{
		Type:              r.LeverType,
		Description:       r.Description,
		AbsoluteValue:     r.AbsoluteValue,
		PercentValue:      r.PercentValue,
		TargetProductCode: r.TargetEAN,
		TargetBrand:       r.TargetBrand,
		TargetMerchant:    r.TargetMerchant,
		ConditionsJSON:    string(r.Conditions),
		SourceURL:         r.SourceURL,
		ExpiresAt:         expiresAt,
		Active:            true,
		CreatedAt:         now.UnixMilli(),
	}
}
