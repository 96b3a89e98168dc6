package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/newsdigest/tools/web_search/models"
)

const DefaultEndpoint = "https://api.search.brave.com/res/v1/news/search"

type Search struct {
	ApiKey   string
	Endpoint string
	Client   *http.Client
}

func (s Search) Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]models.Result, error) {
	// https://api.search.brave.com/app/documentation/news-search
	query := q
	if len(sites) > 0 {
		parts := make([]string, len(sites))
		for i, site := range sites {
			parts[i] = "site:" + site
		}
		query = fmt.Sprintf("%s (%s)", q, strings.Join(parts, " OR "))
	}
	params := url.Values{}
	params.Set("q", query)
	if k > 0 {
		params.Set("count", strconv.Itoa(k))
	}
	switch {
	case recency <= 0:
	case recency <= 1:
		params.Set("freshness", "pd")
	case recency <= 7:
		params.Set("freshness", "pw")
	default:
		params.Set("freshness", "pm")
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("brave error: %s", resp.Status)
	}

	type item struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"description"`
	}
	// news search returns top-level results; web search nests them under web
	var raw struct {
		Results []item `json:"results"`
		Web     struct {
			Results []item `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	items := raw.Results
	if len(items) == 0 {
		items = raw.Web.Results
	}
	var out []models.Result
	for _, r := range items {
		if k > 0 && len(out) >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}
