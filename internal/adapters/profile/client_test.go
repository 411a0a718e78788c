package profile_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"listingpilot/internal/adapters/profile"
)

func TestClient_FetchPage_PaginatesWithBearer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("bad auth header: %q", got)
		}
		if r.URL.Path != "/accounts/1/locations/2/reviews" {
			t.Errorf("bad path: %s", r.URL.Path)
		}
		w.WriteHeader(200)
		if r.URL.Query().Get("pageToken") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"reviews":       []map[string]any{{"name": "reviews/r1"}},
				"nextPageToken": "p2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"reviews": []map[string]any{{"name": "reviews/r2"}},
		})
	}))
	defer ts.Close()

	cl, err := profile.New(ts.URL, 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p1, err := cl.FetchPage(ctx, "tok-1", "accounts/1/locations/2", "", 50)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(p1.Records) != 1 || p1.NextPageToken != "p2" {
		t.Fatalf("unexpected first page: %+v", p1)
	}

	p2, err := cl.FetchPage(ctx, "tok-1", "accounts/1/locations/2", p1.NextPageToken, 50)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(p2.Records) != 1 || p2.NextPageToken != "" {
		t.Fatalf("unexpected last page: %+v", p2)
	}
}

func TestClient_FetchPage_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			w.WriteHeader(200)
			_ = json.NewEncoder(w).Encode(map[string]any{"reviews": []map[string]any{{"name": "reviews/r1"}}})
		}
	}))
	defer ts.Close()

	cl, err := profile.New(ts.URL, 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := cl.FetchPage(ctx, "tok", "accounts/1/locations/2", "", 50)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got.Records) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_FetchPage_AuthErrorsAreSentinels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
	}))
	defer ts.Close()

	cl, err := profile.New(ts.URL, 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = cl.FetchPage(ctx, "expired", "accounts/1/locations/2", "", 50)
	if !errors.Is(err, profile.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClient_FetchPage_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	cl, err := profile.New(ts.URL, 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = cl.FetchPage(ctx, "tok", "accounts/9/locations/9", "", 50)
	if !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
