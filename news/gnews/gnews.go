package gnews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/newsdigest/models"
)

const DefaultEndpoint = "https://gnews.io/api/v4/search"

type article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

type response struct {
	TotalArticles int       `json:"totalArticles"`
	Articles      []article `json:"articles"`
	Errors        []string  `json:"errors"`
	Message       string    `json:"message"`
}

// GNews queries the gnews.io search API.
type GNews struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
}

func (g GNews) Name() string { return "gnews" }

// Search returns candidates in provider order. A non-200 status or a body
// without an articles field is an error.
func (g GNews) Search(ctx context.Context, topic, language string, max int) ([]models.ArticleCandidate, error) {
	endpoint := g.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	params := url.Values{}
	params.Add("q", topic)
	if language != "" {
		params.Add("lang", language)
	}
	if max > 0 {
		params.Add("max", strconv.Itoa(max))
	}
	params.Add("apikey", g.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build gnews request: %w", err)
	}
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gnews: %w", err)
	}
	defer resp.Body.Close()

	var result response
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode != http.StatusOK {
		msg := result.Message
		if msg == "" && len(result.Errors) > 0 {
			msg = result.Errors[0]
		}
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, fmt.Errorf("gnews error: %s: %s", resp.Status, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode gnews response: %w", decodeErr)
	}
	if result.Articles == nil {
		return nil, fmt.Errorf("gnews error: response has no articles")
	}

	out := make([]models.ArticleCandidate, 0, len(result.Articles))
	for _, a := range result.Articles {
		if a.URL == "" {
			continue
		}
		out = append(out, models.ArticleCandidate{Title: a.Title, URL: a.URL})
	}
	return out, nil
}
