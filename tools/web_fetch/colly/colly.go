package colly

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/mohammad-safakhou/newsdigest/tools/web_fetch/models"
)

// Fetch downloads pages with a colly collector.
type Fetch struct {
	collector *colly.Collector
}

func New(timeout time.Duration, userAgent string) *Fetch {
	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if userAgent != "" {
		opts = append(opts, colly.UserAgent(userAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(timeout)
	return &Fetch{collector: c}
}

func (f *Fetch) Fetch(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	c := f.collector.Clone()
	t0 := time.Now()

	var (
		res      models.Result
		fetchErr error
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		res = models.Result{URL: r.Request.URL.String(), HTML: string(r.Body), Status: r.StatusCode}
	})
	// colly reports statuses outside 2xx through OnError
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("fetch %s: status %d: %w", url, r.StatusCode, err)
			return
		}
		fetchErr = fmt.Errorf("fetch %s: %w", url, err)
	})

	done := make(chan error, 1)
	go func() { done <- c.Visit(url) }()

	select {
	case err := <-done:
		if err != nil {
			return models.Result{}, fmt.Errorf("visit %s: %w", url, err)
		}
	case <-ctx.Done():
		return models.Result{}, ctx.Err()
	}
	if fetchErr != nil {
		return models.Result{}, fetchErr
	}
	if res.Status == 0 {
		return models.Result{}, fmt.Errorf("fetch %s: aborted", url)
	}
	res.RenderMS = int(time.Since(t0) / time.Millisecond)
	return res, nil
}
