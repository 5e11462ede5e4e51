// CLAUDE:SUMMARY Lever matching, cumulation rule evaluation, and discount scenario enumeration.
package collide

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/chineur/pepite/store"
)

// Scenario is one way of applying levers to an offer.
type Scenario struct {
	LeverIDs      []string `json:"levers_used"`
	TotalDiscount float64  `json:"total_discount"`
	NetNet        float64  `json:"net_net"`
	Detail        string   `json:"detail"`
}

// matchLevers filters the live lever set down to those applicable to one
// offer. Specificity tiers: product-code match beats brand match beats
// merchant-wide levers. A brand lever scoped to another merchant is out.
func matchLevers(levers []*store.Lever, productCode, brand, merchant string) []*store.Lever {
	var out []*store.Lever
	for _, lv := range levers {
		if lv.TargetProductCode != "" {
			if lv.TargetProductCode == productCode {
				out = append(out, lv)
			}
			continue
		}
		if lv.TargetBrand != "" {
			if brand == "" || !strings.EqualFold(lv.TargetBrand, brand) {
				continue
			}
			if lv.TargetMerchant != "" && !merchantMatches(lv.TargetMerchant, merchant) {
				continue
			}
			out = append(out, lv)
			continue
		}
		if lv.TargetMerchant != "" && merchantMatches(lv.TargetMerchant, merchant) {
			out = append(out, lv)
		}
	}
	return out
}

func merchantMatches(target, merchant string) bool {
	return strings.EqualFold(target, store.MerchantWildcard) || strings.EqualFold(target, merchant)
}

// leverConditions is the parsed shape of a lever's conditions payload.
// Pointer fields distinguish absent from false.
type leverConditions struct {
	Cumulable *bool `json:"cumulable"`
	Exclusif  *bool `json:"exclusif"`
}

// ruleFlags is the parsed shape of a merchant rule's flag payload.
type ruleFlags struct {
	GlobalFlags struct {
		StoreCouponStack  *bool `json:"promo_enseigne_cumulable_coupon_marque"`
		RebatePromoStack  *bool `json:"odr_cumulable_promo_enseigne"`
		LoyaltyPromoStack *bool `json:"carte_fidelite_cumulable_promo"`
	} `json:"global_flags"`
}

// stackingAllowed decides whether a lever may combine with others. Lever
// conditions are checked first, then merchant-level flags per lever type.
// Malformed JSON counts as permissive, never as an error.
func stackingAllowed(lever *store.Lever, rules []*store.Rule) bool {
	if lever.ConditionsJSON != "" {
		var cond leverConditions
		if err := json.Unmarshal([]byte(lever.ConditionsJSON), &cond); err == nil {
			if cond.Cumulable != nil && !*cond.Cumulable {
				return false
			}
			if cond.Exclusif != nil && *cond.Exclusif {
				return false
			}
		}
	}
	for _, rule := range rules {
		if rule.FlagsJSON == "" {
			continue
		}
		var flags ruleFlags
		if err := json.Unmarshal([]byte(rule.FlagsJSON), &flags); err != nil {
			continue
		}
		g := flags.GlobalFlags
		switch lever.Type {
		case store.LeverCoupon:
			if g.StoreCouponStack != nil && !*g.StoreCouponStack {
				return false
			}
		case store.LeverRebate:
			if g.RebatePromoStack != nil && !*g.RebatePromoStack {
				return false
			}
		case store.LeverLoyalty:
			if g.LoyaltyPromoStack != nil && !*g.LoyaltyPromoStack {
				return false
			}
		}
	}
	return true
}

// leverDiscount values one lever against a price. Absolute values win over
// percentages; percentages apply to the running price and round per step.
func leverDiscount(lever *store.Lever, price float64) float64 {
	if lever.AbsoluteValue > 0 {
		return lever.AbsoluteValue
	}
	if lever.PercentValue > 0 {
		return round2(price * lever.PercentValue / 100)
	}
	return 0
}

// generateScenarios enumerates every permitted lever application against
// one offer. Order is deterministic: baseline first, then each exclusive
// lever alone, then stackable combinations by ascending size. bestScenario
// relies on this order for its tie-break.
func generateScenarios(listPrice, immediateDiscount float64, levers []*store.Lever, rules []*store.Rule) []Scenario {
	base := listPrice - immediateDiscount
	scenarios := []Scenario{{
		LeverIDs:      []string{},
		TotalDiscount: immediateDiscount,
		NetNet:        base,
		Detail:        "store discount only",
	}}

	var stackable, exclusive []*store.Lever
	for _, lv := range levers {
		if stackingAllowed(lv, rules) {
			stackable = append(stackable, lv)
		} else {
			exclusive = append(exclusive, lv)
		}
	}

	for _, lv := range exclusive {
		d := leverDiscount(lv, base)
		net := round2(base - d)
		scenarios = append(scenarios, Scenario{
			LeverIDs:      []string{lv.ID},
			TotalDiscount: round2(immediateDiscount + d),
			NetNet:        math.Max(0, net),
			Detail:        fmt.Sprintf("exclusive: %s (%s)", lv.Type, leverLabel(lv)),
		})
	}

	for r := 1; r <= len(stackable); r++ {
		forEachCombination(len(stackable), r, func(idx []int) {
			var ids []string
			var parts []string
			total := 0.0
			price := base
			for _, i := range idx {
				lv := stackable[i]
				d := leverDiscount(lv, price)
				total += d
				price -= d
				ids = append(ids, lv.ID)
				parts = append(parts, fmt.Sprintf("%s:%s(-%.2f)", lv.Type, leverLabel(lv), d))
			}
			net := round2(base - total)
			scenarios = append(scenarios, Scenario{
				LeverIDs:      ids,
				TotalDiscount: round2(immediateDiscount + total),
				NetNet:        math.Max(0, net),
				Detail:        strings.Join(parts, " + "),
			})
		})
	}
	return scenarios
}

// bestScenario picks the lowest net price. On ties the earliest generated
// scenario wins, which favors fewer levers.
func bestScenario(scenarios []Scenario) Scenario {
	best := scenarios[0]
	for _, s := range scenarios[1:] {
		if s.NetNet < best.NetNet {
			best = s
		}
	}
	return best
}

// forEachCombination visits every size-r index subset of [0,n) in
// lexicographic order.
func forEachCombination(n, r int, visit func(idx []int)) {
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	for {
		visit(idx)
		// Advance the rightmost index that can still move.
		i := r - 1
		for i >= 0 && idx[i] == n-r+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func leverLabel(lv *store.Lever) string {
	if lv.Description != "" {
		return lv.Description
	}
	return lv.ID
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
