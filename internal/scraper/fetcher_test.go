package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/listcrawl/internal/fingerprint"
	"github.com/FranksOps/listcrawl/pkg/useragent"
)

func TestFetcher_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "TestBrowser/1.0" {
			t.Errorf("expected User-Agent header, got %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Accept-Language") == "" {
			t.Errorf("expected Accept-Language header")
		}
		w.Header().Set("X-Test", "true")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		UAPool:      useragent.NewPool([]string{"TestBrowser/1.0"}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer fetcher.Close()

	res, err := fetcher.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected OK response, got %+v", res)
	}
	if string(res.Body) != "ok" {
		t.Errorf("expected body 'ok', got %s", string(res.Body))
	}
	if res.Header.Get("X-Test") != "true" {
		t.Errorf("expected X-Test header 'true', got %v", res.Header["X-Test"])
	}
	if res.Duration == 0 {
		t.Errorf("expected non-zero duration")
	}
	if res.ID == "" {
		t.Errorf("expected non-empty UUID")
	}
}

func TestFetcher_FollowsRedirectURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/biz/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/biz/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/biz/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("moved"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Timeout: 5 * time.Second, Fingerprint: fingerprint.ProfileGo})
	res, err := fetcher.Fetch(context.Background(), ts.URL+"/biz/old")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.URL != ts.URL+"/biz/new" {
		t.Errorf("expected final url, got %s", res.URL)
	}
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     10 * time.Millisecond,
		Fingerprint: fingerprint.ProfileGo,
	})

	res, err := fetcher.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("expected timeout in Response.Error, got error %v", err)
	}
	if !strings.Contains(res.Error, "request failed") {
		t.Errorf("expected timeout error, got %v", res.Error)
	}
	if res.OK() {
		t.Errorf("timed out response must not be OK")
	}
}

func TestFetcher_DetectsChallenge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Timeout: 5 * time.Second, Fingerprint: fingerprint.ProfileGo})
	res, _ := fetcher.Fetch(context.Background(), ts.URL)

	if !res.DetectedBot || res.DetectionSrc != "Cloudflare" {
		t.Errorf("expected Cloudflare detection, got %v %q", res.DetectedBot, res.DetectionSrc)
	}
}

func TestFetcher_BodyLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Timeout: 5 * time.Second, Fingerprint: fingerprint.ProfileGo, MaxBodySize: 10})
	res, _ := fetcher.Fetch(context.Background(), ts.URL)
	if len(res.Body) != 10 {
		t.Errorf("expected body truncated to 10 bytes, got %d", len(res.Body))
	}
}
