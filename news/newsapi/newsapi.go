package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mohammad-safakhou/newsdigest/models"
)

const DefaultEndpoint = "https://newsapi.org/v2/everything"

type Article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

type response struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
}

type NewsAPI struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
}

func (n NewsAPI) Name() string { return "newsapi" }

func (n NewsAPI) Search(ctx context.Context, topic, language string, max int) ([]models.ArticleCandidate, error) {
	endpoint := n.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	params := url.Values{}
	params.Add("q", topic)
	if language != "" {
		params.Add("language", language)
	}
	if max > 0 {
		params.Add("pageSize", strconv.Itoa(max))
	}
	params.Add("sortBy", "publishedAt")
	params.Add("apiKey", n.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", endpoint, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("build newsapi request: %w", err)
	}
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi error: %s", resp.Status)
	}

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Status != "" && result.Status != "ok" {
		return nil, fmt.Errorf("newsapi error: %s: %s", result.Code, result.Message)
	}

	out := make([]models.ArticleCandidate, 0, len(result.Articles))
	for _, a := range result.Articles {
		// NewsAPI marks removed items with this placeholder
		if a.URL == "" || a.Title == "[Removed]" {
			continue
		}
		out = append(out, models.ArticleCandidate{Title: a.Title, URL: a.URL})
	}
	return out, nil
}
