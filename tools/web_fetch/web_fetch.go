package web_fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/mohammad-safakhou/newsdigest/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/newsdigest/tools/web_fetch/colly"
	"github.com/mohammad-safakhou/newsdigest/tools/web_fetch/models"
)

const DefaultTimeout = 15 * time.Second

// WebFetcher retrieves the markup of a page. Any transport failure, timeout
// or non-2xx status is an error.
type WebFetcher interface {
	Fetch(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	CollyFetcherType    FetcherType = "colly"
	ChromedpFetcherType FetcherType = "chromedp"
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, userAgent string) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch fetcherType {
	case CollyFetcherType, "":
		return colly.New(timeout, userAgent), nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: timeout, UserAgent: userAgent}, nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}

// Hash returns the sha1 of the markup, used to spot identical pages.
func Hash(html string) string {
	sum := sha1.Sum([]byte(html))
	return hex.EncodeToString(sum[:])
}
