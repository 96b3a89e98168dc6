package newsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("language") != "en" || q.Get("pageSize") != "6" || q.Get("apiKey") != "k" {
			t.Errorf("unexpected query: %v", q)
		}
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":3,"articles":[
			{"title":"One","url":"https://one"},
			{"title":"[Removed]","url":"https://removed"},
			{"title":"Two","url":"https://two"}]}`))
	}))
	defer srv.Close()

	out, err := NewsAPI{APIKey: "k", Endpoint: srv.URL}.Search(context.Background(), "x", "en", 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0].Title != "One" || out[1].Title != "Two" {
		t.Fatalf("unexpected candidates: %+v", out)
	}
}

func TestSearchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	if _, err := (NewsAPI{Endpoint: srv.URL}).Search(context.Background(), "x", "en", 6); err == nil {
		t.Fatalf("expected error")
	}
}
