package extractai

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeBatchDropsOnlyInvalidItems(t *testing.T) {
	// WHAT: One malformed item out of three is dropped with its index
	// and reason; the valid ones survive.
	// WHY: AI output is partially wrong by nature; a single bad row must
	// never discard a whole flyer's worth of extractions.
	raw := []byte(`[
		{"product_name": "Pate a tartiner 400g", "list_price": 4.99, "merchant": "carrefour", "reliability_score": 90},
		{"product_name": "X", "list_price": 2.50, "merchant": "carrefour"},
		{"product_name": "Lessive 2L", "list_price": 8.20, "merchant": "carrefour", "reliability_score": 75}
	]`)
	valid, errs := decodeBatch[CatalogueItem](raw)
	if len(valid) != 2 {
		t.Fatalf("valid = %d, want 2", len(valid))
	}
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want 1", errs)
	}
	if errs[0].Index != 1 {
		t.Fatalf("error index = %d, want 1", errs[0].Index)
	}
	if !strings.Contains(errs[0].Reason, "product_name") {
		t.Fatalf("reason = %q, want mention of product_name", errs[0].Reason)
	}
}

func TestDecodeBatchNotAnArray(t *testing.T) {
	// WHAT: A non-array payload yields a single index -1 error.
	valid, errs := decodeBatch[CatalogueItem]([]byte(`{"oops": true}`))
	if len(valid) != 0 || len(errs) != 1 || errs[0].Index != -1 {
		t.Fatalf("got (%v, %v), want one index -1 error", valid, errs)
	}
}

func TestCatalogueItemEANNormalization(t *testing.T) {
	// WHAT: Separators are stripped; wrong lengths and non-digits clear
	// the EAN instead of failing the item.
	// WHY: A missing EAN is recoverable (provisional code); a rejected
	// item is lost.
	cases := []struct {
		in   string
		want string
	}{
		{"3017620422003", "3017620422003"},
		{"3017 6204 22003", "3017620422003"},
		{"30-17-62-04-22-00-3", "3017620422003"},
		{"12345678", "12345678"},
		{"123", ""},
		{"30176204ABCDE", ""},
		{"", ""},
	}
	for _, tc := range cases {
		item := CatalogueItem{EAN: tc.in, Name: "Produit test", ListPrice: 1, Merchant: "x", Reliability: 50}
		if err := item.Validate(); err != nil {
			t.Fatalf("validate(%q): %v", tc.in, err)
		}
		if item.EAN != tc.want {
			t.Errorf("ean %q normalized to %q, want %q", tc.in, item.EAN, tc.want)
		}
	}
}

func TestCatalogueItemSuspectPrice(t *testing.T) {
	// WHAT: Absurd prices are rejected outright.
	item := CatalogueItem{Name: "Televiseur", ListPrice: 149990, Merchant: "x"}
	if err := item.Validate(); err == nil {
		t.Fatal("price above cap accepted")
	}
}

func TestRuleItemValidation(t *testing.T) {
	// WHAT: Lever types normalize to upper case and unknown types fail.
	item := RuleItem{
		LeverType: "coupon", Description: "10% sur la marque",
		PercentValue: 10, TargetMerchant: "carrefour", Confidence: 0.8,
	}
	if err := item.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if item.LeverType != "COUPON" {
		t.Fatalf("type = %s, want COUPON", item.LeverType)
	}

	bad := RuleItem{LeverType: "BOGOF", Description: "deux pour un", TargetMerchant: "x"}
	if err := bad.Validate(); err == nil {
		t.Fatal("unknown lever type accepted")
	}
}

func TestDraftMapping(t *testing.T) {
	// WHAT: A catalogue item without an EAN maps to a provisional
	// product, and repeat captures produce the same provisional code.
	now := time.Now()
	item := CatalogueItem{Name: "Gel douche 250ml", Brand: "Sanex", ListPrice: 2.99, Merchant: "leclerc", Reliability: 80}
	if err := item.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	p := item.Product(now)
	if !p.Provisional {
		t.Fatal("product without EAN must be provisional")
	}
	again := item.Product(now)
	if p.Code != again.Code {
		t.Fatalf("provisional codes diverge: %s vs %s", p.Code, again.Code)
	}

	o := item.Offer("cmp_1", now)
	if o.ProductCode != p.Code {
		t.Fatalf("offer code %s != product code %s", o.ProductCode, p.Code)
	}
	if !o.Active {
		t.Fatal("new offers must be active")
	}
}

func TestRuleItemLeverExpiry(t *testing.T) {
	// WHAT: The expiry date lands at end of day; an unparseable date
	// leaves the lever open-ended.
	item := RuleItem{
		LeverType: "REBATE", Description: "ODR 5 euros", AbsoluteValue: 5,
		TargetMerchant: "all", ExpiresAt: "2026-09-15", Confidence: 0.9,
	}
	lv := item.Lever(time.Now())
	if lv.ExpiresAt == nil {
		t.Fatal("expiry not set")
	}
	end := time.UnixMilli(*lv.ExpiresAt).UTC()
	if end.Year() != 2026 || end.Month() != 9 || end.Day() != 15 {
		t.Fatalf("expiry = %v, want end of 2026-09-15", end)
	}

	item.ExpiresAt = "bientot"
	if lv := item.Lever(time.Now()); lv.ExpiresAt != nil {
		t.Fatal("unparseable expiry should leave lever open-ended")
	}
}

func TestStripFence(t *testing.T) {
	// WHAT: Fenced model output unwraps to the bare JSON payload.
	cases := map[string]string{
		"```json\n[{\"a\":1}]\n```": `[{"a":1}]`,
		"```\n[]\n```":              `[]`,
		`[1,2]`:                     `[1,2]`,
	}
	for in, want := range cases {
		if got := stripFence(in); got != want {
			t.Errorf("stripFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPageTitle(t *testing.T) {
	// WHAT: Title extraction tolerates broken markup.
	if got := PageTitle(`<html><head><title> Promos de la semaine </title></head><body>`); got != "Promos de la semaine" {
		t.Fatalf("title = %q", got)
	}
	if got := PageTitle(`<div>no head`); got != "" {
		t.Fatalf("title = %q, want empty", got)
	}
}
