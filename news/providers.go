package news

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/newsdigest/config"
	"github.com/mohammad-safakhou/newsdigest/models"
	"github.com/mohammad-safakhou/newsdigest/news/gnews"
	"github.com/mohammad-safakhou/newsdigest/news/newsapi"
	"github.com/mohammad-safakhou/newsdigest/tools/web_search"
)

// searchProvider adapts a web searcher to the Provider interface.
type searchProvider struct {
	name     string
	searcher web_search.WebSearcher
}

// FromWebSearcher exposes a web searcher as an article provider.
func FromWebSearcher(name string, s web_search.WebSearcher) Provider {
	return searchProvider{name: name, searcher: s}
}

func (p searchProvider) Name() string { return p.name }

func (p searchProvider) Search(ctx context.Context, topic, _ string, max int) ([]models.ArticleCandidate, error) {
	results, err := p.searcher.Discover(ctx, topic, max, nil, 0)
	if err != nil {
		return nil, err
	}
	out := make([]models.ArticleCandidate, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		out = append(out, models.ArticleCandidate{Title: r.Title, URL: r.URL})
	}
	return out, nil
}

// NewProvider builds the named provider from the sources config. An empty
// name yields a nil provider so a slot can be left unfilled.
func NewProvider(name string, cfg config.SourcesConfig, client *http.Client) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return nil, nil
	case "gnews":
		return gnews.GNews{APIKey: cfg.GNews.APIKey, Endpoint: cfg.GNews.Endpoint, Client: client}, nil
	case "newsapi":
		return newsapi.NewsAPI{APIKey: cfg.NewsAPI.APIKey, Endpoint: cfg.NewsAPI.Endpoint, Client: client}, nil
	case string(web_search.SerperProvider):
		s, err := web_search.NewWebSearcher(web_search.SerperProvider, cfg.WebSearch.SerperAPIKey, client)
		if err != nil {
			return nil, err
		}
		return FromWebSearcher("serper", s), nil
	case string(web_search.BraveProvider):
		s, err := web_search.NewWebSearcher(web_search.BraveProvider, cfg.WebSearch.BraveAPIKey, client)
		if err != nil {
			return nil, err
		}
		return FromWebSearcher("brave", s), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, name)
	}
}

// NewRetrieverFromConfig wires both provider slots from config.
func NewRetrieverFromConfig(cfg config.SourcesConfig, opts ...Option) (*Retriever, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	primary, err := NewProvider(cfg.Primary, cfg, client)
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w", err)
	}
	if primary == nil {
		return nil, fmt.Errorf("primary provider: %w: empty name", ErrNoProvider)
	}
	secondary, err := NewProvider(cfg.Secondary, cfg, client)
	if err != nil {
		return nil, fmt.Errorf("secondary provider: %w", err)
	}
	base := []Option{WithMax(cfg.MaxResults), WithTimeout(cfg.Timeout)}
	return NewRetriever(primary, secondary, append(base, opts...)...), nil
}
