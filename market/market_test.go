package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/chineur/pepite/credpool"
	"github.com/chineur/pepite/dbopen"
	"github.com/chineur/pepite/store"
)

func TestParsePrice(t *testing.T) {
	// WHAT: Localized price strings parse to floats; junk parses to 0.
	// WHY: Shopping results mix "24,99 €", "24.99" and free-text; the
	// probe must read all of them or quotes silently go missing.
	cases := []struct {
		in   string
		want float64
	}{
		{"24,99 €", 24.99},
		{"24.99", 24.99},
		{"€ 1 024,50", 1024.50},
		{"Prix : 3,40 EUR", 3.40},
		{"gratuit", 0},
		{"", 0},
		{"42", 0}, // integer-only strings carry no decimal marker
	}
	for _, tc := range cases {
		if got := ParsePrice(tc.in); got != tc.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEstimateFeesCategoryMatch(t *testing.T) {
	// WHAT: Fee estimation substring-matches the category, defaulting
	// when nothing matches.
	if est := estimateFees("High-Tech Electronics"); est.feePercent != 7.0 {
		t.Fatalf("electronics fee = %v, want 7.0", est.feePercent)
	}
	if est := estimateFees("Alimentaire"); est.feePercent != 15.0 {
		t.Fatalf("default fee = %v, want 15.0", est.feePercent)
	}
}

func newTestProber(t *testing.T, endpoint string) (*Prober, *store.Store, *credpool.Pool) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	st := store.NewStore(db)
	pool := credpool.New(st, credpool.Config{}, nil)
	p := NewProber(st, pool, Config{Endpoint: endpoint}, nil)
	return p, st, pool
}

func TestRunUpsertsLowestPrice(t *testing.T) {
	// WHAT: The probe stores one quote per product at the lowest
	// plausible price from the shopping results.
	// WHY: ROI is computed against the buy box; an inflated quote turns
	// losers into fake A grades.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"shopping_results": [
			{"price": "27,90 €"},
			{"price": "24,99 €"},
			{"extracted_price": 31.50},
			{"price": "0,01 €"}
		]}`))
	}))
	defer srv.Close()

	p, st, pool := newTestProber(t, srv.URL)
	ctx := context.Background()
	if _, err := pool.AddKey(ctx, "serpapi", "sk-test"); err != nil {
		t.Fatalf("add key: %v", err)
	}
	if err := st.UpsertProduct(ctx, &store.Product{Code: "3017620422003", Name: "Pate a tartiner", Category: "grocery"}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	err := st.InsertOffer(ctx, &store.Offer{ID: "off_1", ProductCode: "3017620422003", Merchant: "carrefour", ListPrice: 20, Active: true})
	if err != nil {
		t.Fatalf("insert offer: %v", err)
	}

	updated, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}

	q, err := st.LatestMarketQuote(ctx, "3017620422003")
	if err != nil {
		t.Fatalf("latest quote: %v", err)
	}
	if q == nil || q.BuyBox != 24.99 {
		t.Fatalf("quote = %+v, want buy box 24.99", q)
	}
	// grocery fee profile
	if q.FeePercent != 8.0 || q.PlatformFee != 3.00 {
		t.Fatalf("fees = %v%% + %v, want 8%% + 3.00", q.FeePercent, q.PlatformFee)
	}
}

func TestRunSkipsProductsWithFreshQuotes(t *testing.T) {
	// WHAT: A product with a fresh quote is not re-probed.
	// WHY: Shopping API calls are the scarcest resource in the system.
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"shopping_results": [{"price": "9,99 €"}]}`))
	}))
	defer srv.Close()

	p, st, pool := newTestProber(t, srv.URL)
	ctx := context.Background()
	if _, err := pool.AddKey(ctx, "serpapi", "sk-test"); err != nil {
		t.Fatalf("add key: %v", err)
	}
	if err := st.UpsertProduct(ctx, &store.Product{Code: "123", Name: "W"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	err := st.InsertOffer(ctx, &store.Offer{ID: "off_1", ProductCode: "123", Merchant: "x", ListPrice: 5, Active: true})
	if err != nil {
		t.Fatalf("insert offer: %v", err)
	}

	if _, err := p.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := p.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("api calls = %d, want 1 (second run should skip)", calls)
	}
}
