package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/newsdigest/tools/web_search/models"
	"github.com/mohammad-safakhou/newsdigest/utils"
)

const DefaultEndpoint = "https://google.serper.dev/news"

type Search struct {
	ApiKey   string
	Endpoint string
	Client   *http.Client
}

func (s Search) Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]models.Result, error) {
	// https://serper.dev/ docs
	query := q
	if len(sites) > 0 {
		parts := make([]string, len(sites))
		for i, site := range sites {
			parts[i] = "site:" + site
		}
		query = fmt.Sprintf("%s (%s)", q, strings.Join(parts, " OR "))
	}
	payload := map[string]any{"q": query, "num": k}
	if recency > 0 {
		payload["tbs"] = fmt.Sprintf("qdr:d%d", recency)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")
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
		return nil, fmt.Errorf("serper error: %s", resp.Status)
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	// the news endpoint answers under "news", the web endpoint under "organic"
	items, ok := raw["news"].([]any)
	if !ok {
		items, _ = raw["organic"].([]any)
	}
	var out []models.Result
	for _, it := range items {
		if k > 0 && len(out) >= k {
			break
		}
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, models.Result{
			Title: utils.Str(m["title"]), URL: utils.Str(m["link"]), Snippet: utils.Str(m["snippet"]),
		})
	}
	return out, nil
}
