package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"customer create", http.MethodPost, "/api/v1/customers", defaultIdempotencyTTL, true},
		{"customer create trailing slash", http.MethodPost, "/api/v1/customers/", defaultIdempotencyTTL, true},
		{"part entry", http.MethodPost, "/api/v1/customers/7/parts", defaultIdempotencyTTL, true},
		{"tep code create", http.MethodPost, "/api/v1/customers/12/tep-codes", defaultIdempotencyTTL, true},
		{"material create", http.MethodPost, "/api/v1/tep-codes/3/materials", defaultIdempotencyTTL, true},
		{"recompute", http.MethodPost, "/api/v1/tep-codes/3/materials/recompute", defaultIdempotencyTTL, true},
		{"master material upsert", http.MethodPost, "/api/v1/master-materials", defaultIdempotencyTTL, true},
		{"nested segment", http.MethodPost, "/api/v1/customers/7/x/parts", 0, false},
		{"missing segment", http.MethodPost, "/api/v1/customers//parts", 0, false},
		{"order", http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL, true},
		{"import", http.MethodPost, "/api/v1/imports", criticalIdempotencyTTL, true},
		{"read", http.MethodGet, "/api/v1/customers", 0, false},
		{"rename", http.MethodPatch, "/api/v1/materials/4/name", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.path, defaultIdempotencyTTL)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestRouteTTLUsesConfiguredBase(t *testing.T) {
	ttl, ok := routeTTL(http.MethodPost, "/api/v1/customers", time.Hour)
	if !ok || ttl != time.Hour {
		t.Fatalf("expected configured ttl, got %v ok=%v", ttl, ok)
	}
	ttl, _ = routeTTL(http.MethodPost, "/api/v1/orders", time.Hour)
	if ttl != criticalIdempotencyTTL {
		t.Fatalf("orders should keep the longer window, got %v", ttl)
	}
}

func TestIdempotencyMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 0, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(`{"customer_name":"Acme"}`))
		resp := httptest.NewRecorder()
		mw(handler).ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d", resp.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("handler should run for every keyless request, ran %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be stored without a key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 0, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"customer_name":"Acme"}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected first response 202 got %d", resp.Code)
	}

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"customer_name":"Acme"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected replay status 202 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 0, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"customer_name":"Acme"}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"customer_name":"Other"}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyMiddlewareSkipsServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, 0, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/master-materials", strings.NewReader(`{"mat_partcode":"T-1"}`))
		req.Header.Set("Idempotency-Key", "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("a failed attempt must not be replayed, handler ran %d times", calls)
	}
}

func TestIdempotencyMiddlewareOnSubRouter(t *testing.T) {
	store := newFakeStore()
	var calls int
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, 0, nil))
		r.Route("/tep-codes/{tepCodeId}", func(r chi.Router) {
			r.Post("/materials", func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"id":` + chi.URLParam(r, "tepCodeId") + `}`))
			})
		})
	})

	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tep-codes/5/materials", strings.NewReader(`{"mat_partcode":"T-1"}`))
		req.Header.Set("Idempotency-Key", "k1")
		last = httptest.NewRecorder()
		r.ServeHTTP(last, req)
		if last.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d", last.Code)
		}
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, expected 1", calls)
	}
	if last.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed header on second response")
	}
	if strings.TrimSpace(last.Body.String()) != `{"id":5}` {
		t.Fatalf("expected stored body got %s", last.Body.String())
	}
	if len(store.data) != 1 {
		t.Fatalf("expected one stored record, got %d", len(store.data))
	}
}
