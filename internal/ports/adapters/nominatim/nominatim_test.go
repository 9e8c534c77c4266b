package nominatim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSearch_ParsesMatchesAndSendsHeaders(t *testing.T) {
	var gotUA, gotQuery, gotLimit, gotEmail string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		gotLimit = r.URL.Query().Get("limit")
		gotEmail = r.URL.Query().Get("email")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"place_id": 1, "display_name": "Porto, Portugal", "lat": "41.1494512", "lon": "-8.6107884"},
			{"place_id": 2, "display_name": "Porto, Corsica, France", "lat": "42.26", "lon": "8.70"}
		]`))
	}))
	defer srv.Close()

	a := New(Options{BaseURL: srv.URL + "/", UserAgent: "LocationFinder", Email: "ops@example.org", Limit: 2, RequestsPerSecond: 100})
	got, err := a.Search(context.Background(), "Porto")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].DisplayName != "Porto, Portugal" || got[0].Lat != "41.1494512" || got[0].Lon != "-8.6107884" {
		t.Fatalf("unexpected matches: %+v", got)
	}
	if gotUA != "LocationFinder" {
		t.Fatalf("expected user agent to be sent, got %q", gotUA)
	}
	if gotQuery != "Porto" || gotLimit != "2" || gotEmail != "ops@example.org" {
		t.Fatalf("unexpected query params q=%q limit=%q email=%q", gotQuery, gotLimit, gotEmail)
	}
}

func TestSearch_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	got, err := New(Options{BaseURL: srv.URL, RequestsPerSecond: 100}).Search(context.Background(), "Atlantis")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
}

func TestSearch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL, RequestsPerSecond: 100}).Search(context.Background(), "Lisbon")
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSearch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Options{BaseURL: srv.URL, RequestsPerSecond: 100}).Search(ctx, "Lisbon")
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestSearch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	a := New(Options{BaseURL: srv.URL, RequestsPerSecond: 10})
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := a.Search(context.Background(), "Madrid"); err != nil {
			t.Fatalf("search: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("expected requests to be spaced by the limiter, took %s", elapsed)
	}
}

func TestSearchURL_EncodesQuery(t *testing.T) {
	a := New(Options{BaseURL: "https://nominatim.openstreetmap.org"})
	got := a.searchURL("São Paulo & Rio")
	if !strings.HasPrefix(got, "https://nominatim.openstreetmap.org/search?") {
		t.Fatalf("unexpected url %s", got)
	}
	if !strings.Contains(got, "q=S%C3%A3o+Paulo+%26+Rio") || !strings.Contains(got, "format=json") {
		t.Fatalf("query not encoded: %s", got)
	}
}
