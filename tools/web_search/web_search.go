package web_search

import (
	"context"
	"errors"
	"net/http"

	"github.com/mohammad-safakhou/newsdigest/tools/web_search/brave"
	"github.com/mohammad-safakhou/newsdigest/tools/web_search/models"
	"github.com/mohammad-safakhou/newsdigest/tools/web_search/serper"
)

// WebSearcher discovers pages for a query. recency is in days; 0 disables it.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported provider")

func NewWebSearcher(provider Provider, apiKey string, client *http.Client) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey, Client: client}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey, Client: client}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
