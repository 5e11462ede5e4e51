package extractai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/chineur/pepite/credpool"
	"github.com/chineur/pepite/dbopen"
	"github.com/chineur/pepite/store"
)

func newTestClient(t *testing.T, endpoint string) (*Client, *credpool.Pool, *store.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	st := store.NewStore(db)
	pool := credpool.New(st, credpool.Config{}, nil)
	c := NewClient(Config{Endpoint: endpoint}, pool, nil)
	return c, pool, st
}

func TestExtractCatalogueParsesFencedResponse(t *testing.T) {
	// WHAT: A successful call returns validated items even when the
	// collaborator wraps its JSON array in a code fence.
	// WHY: The happy path carries every downstream draft; the fence
	// tolerance must survive the full request cycle, not just the
	// string helper.
	content := "```json\n[{\"ean\": \"3017620422003\", \"product_name\": \"Pate a tartiner\"," +
		" \"merchant\": \"carrefour\", \"list_price\": 4.99, \"reliability_score\": 90}]\n```"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-good" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(apiResponse{Content: content})
	}))
	defer srv.Close()

	c, pool, _ := newTestClient(t, srv.URL)
	ctx := context.Background()
	if _, err := pool.AddKey(ctx, "gemini", "sk-good"); err != nil {
		t.Fatalf("add key: %v", err)
	}

	items, dropped, err := c.ExtractCatalogue(ctx, Request{Markdown: "# promo", SourceURL: "https://a.example"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(dropped) != 0 {
		t.Fatalf("dropped = %v, want none", dropped)
	}
	if len(items) != 1 || items[0].EAN != "3017620422003" {
		t.Fatalf("items = %+v, want the Nutella row", items)
	}
}

func TestGenerateRotatesKeysOnQuota(t *testing.T) {
	// WHAT: A 429 burns the key and the request retries with the next one.
	// WHY: One exhausted key must not fail a whole extraction batch.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer sk-spent" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(apiResponse{Content: "[]"})
	}))
	defer srv.Close()

	c, pool, st := newTestClient(t, srv.URL)
	ctx := context.Background()
	// Explicit timestamps so sk-spent is always acquired first.
	creds := []*store.Credential{
		{ID: "key_1", Service: "gemini", Secret: "sk-spent", Active: true, CreatedAt: 1000},
		{ID: "key_2", Service: "gemini", Secret: "sk-fresh", Active: true, CreatedAt: 1001},
	}
	for _, cr := range creds {
		if _, err := st.InsertCredential(ctx, cr); err != nil {
			t.Fatalf("insert credential: %v", err)
		}
	}

	items, _, err := c.ExtractRules(ctx, Request{Markdown: "cgv"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %v, want empty array", items)
	}

	status, err := pool.Status(ctx, "gemini")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Disabled != 1 {
		t.Fatalf("disabled = %d, want the 429 key burned", status.Disabled)
	}
}
