package collide

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chineur/pepite/dbopen"
	"github.com/chineur/pepite/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	st := store.NewStore(db)
	return New(st, Config{}, nil), st
}

func seedOffer(t *testing.T, st *store.Store, id string, list, immediate float64) {
	t.Helper()
	ctx := context.Background()
	if err := st.UpsertProduct(ctx, &store.Product{Code: "3017620422003", Name: "Pate a tartiner", Brand: "Nutella"}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	err := st.InsertOffer(ctx, &store.Offer{
		ID: id, ProductCode: "3017620422003", Merchant: "carrefour",
		ListPrice: list, ImmediateDiscount: immediate, Active: true,
	})
	if err != nil {
		t.Fatalf("insert offer: %v", err)
	}
}

func TestRunGradesAgainstMarketData(t *testing.T) {
	// WHAT: The full pass picks the 37.00 rebate scenario and grades it
	// A against a 60.00 buy box.
	// WHY: End-to-end check of matching, stacking, economics and
	// persistence over a real database.
	e, st := newTestEngine(t)
	ctx := context.Background()

	seedOffer(t, st, "off_1", 50.00, 5.00)
	levers := []*store.Lever{
		lever("lev_rebate", store.LeverRebate, 8, 0, `{"cumulable": false}`),
		lever("lev_coupon", store.LeverCoupon, 0, 10, `{"cumulable": false}`),
	}
	for _, l := range levers {
		if err := st.InsertLever(ctx, l); err != nil {
			t.Fatalf("insert lever: %v", err)
		}
	}
	err := st.InsertMarketQuote(ctx, &store.MarketQuote{
		ID: "mkt_1", ProductCode: "3017620422003", Marketplace: "google_shopping",
		BuyBox: 60.00, FeePercent: 10, PlatformFee: 2, Shipping: 1,
		CapturedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	sum, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Pepites != 1 {
		t.Fatalf("pepites = %d, want 1", sum.Pepites)
	}

	got, err := st.GetCollisionResult(ctx, "off_1")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if got.NetPrice != 37.00 {
		t.Fatalf("net price = %.2f, want 37.00", got.NetPrice)
	}
	// commission 6.00 + platform 2.00 + shipping 1.00 = 9.00 fees;
	// profit 60 - 9 - 37 = 14.00; roi 37.84%.
	if got.PlatformFees != 9.00 {
		t.Fatalf("fees = %.2f, want 9.00", got.PlatformFees)
	}
	if got.NetProfit != 14.00 {
		t.Fatalf("profit = %.2f, want 14.00", got.NetProfit)
	}
	if got.ROIPercent != 37.84 {
		t.Fatalf("roi = %.2f, want 37.84", got.ROIPercent)
	}
	if got.Grade != store.GradeA {
		t.Fatalf("grade = %s, want A", got.Grade)
	}
}

func TestRunSkipsUnimprovedRejected(t *testing.T) {
	// WHAT: An offer with no applicable levers and no market data is
	// counted rejected and not persisted.
	// WHY: Persisting ungraded noise would bury real finds in QA.
	e, st := newTestEngine(t)
	ctx := context.Background()

	seedOffer(t, st, "off_noise", 50.00, 0)

	sum, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Rejected != 1 || sum.Pepites != 0 {
		t.Fatalf("summary = %+v, want 1 rejected", sum)
	}
	got, err := st.GetCollisionResult(ctx, "off_noise")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("rejected zero-lever offer was persisted")
	}
}

func TestRunPersistsRejectedWithLevers(t *testing.T) {
	// WHAT: A REJECTED grade still persists when levers improved the
	// price, so QA can review borderline deals.
	e, st := newTestEngine(t)
	ctx := context.Background()

	seedOffer(t, st, "off_meh", 50.00, 0)
	if err := st.InsertLever(ctx, lever("lev_small", store.LeverCoupon, 1, 0, "")); err != nil {
		t.Fatalf("insert lever: %v", err)
	}

	sum, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Pepites != 1 {
		t.Fatalf("pepites = %d, want 1", sum.Pepites)
	}
	got, err := st.GetCollisionResult(ctx, "off_meh")
	if err != nil || got == nil {
		t.Fatalf("result missing: %v", err)
	}
	if got.Grade != store.GradeRejected {
		t.Fatalf("grade = %s, want REJECTED without market data", got.Grade)
	}
	if got.ResalePrice != 0 {
		t.Fatalf("resale price = %v, want 0 without market data", got.ResalePrice)
	}
}

func TestRunSkipsOffersWithoutProduct(t *testing.T) {
	// WHAT: An offer whose product row is missing is skipped.
	// WHY: foreign_keys is a per-connection pragma, so rows written by
	// an unenforced connection can orphan an offer. Lever matching
	// needs the brand; grading a half-known product would produce
	// garbage.
	e, st := newTestEngine(t)
	ctx := context.Background()

	// Write the orphan the way an unenforced connection would.
	if _, err := st.DB.Exec(`PRAGMA foreign_keys=OFF`); err != nil {
		t.Fatalf("disable fk: %v", err)
	}
	err := st.InsertOffer(ctx, &store.Offer{
		ID: "off_orphan", ProductCode: "0000000000000", Merchant: "leclerc",
		ListPrice: 9.99, Active: true,
	})
	if err != nil {
		t.Fatalf("insert offer: %v", err)
	}
	if _, err := st.DB.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		t.Fatalf("enable fk: %v", err)
	}

	sum, err := e.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", sum.Skipped)
	}
}

func TestGradeThresholds(t *testing.T) {
	// WHAT: Grade boundaries at 40/30/20/15, with A+ requiring market
	// data and at most two levers.
	e, _ := newTestEngine(t)
	cases := []struct {
		roi    float64
		market bool
		levers int
		want   string
	}{
		{45, true, 2, store.GradeAPlus},
		{45, true, 3, store.GradeA},
		{45, false, 1, store.GradeB},
		{32, true, 1, store.GradeA},
		{32, false, 1, store.GradeB},
		{22, false, 0, store.GradeB},
		{16, false, 0, store.GradeC},
		{14, true, 1, store.GradeRejected},
	}
	for _, tc := range cases {
		if got := e.grade(tc.roi, tc.market, tc.levers); got != tc.want {
			t.Errorf("grade(%.0f, %v, %d) = %s, want %s", tc.roi, tc.market, tc.levers, got, tc.want)
		}
	}
}
