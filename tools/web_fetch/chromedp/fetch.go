package chromedp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/mohammad-safakhou/newsdigest/tools/web_fetch/models"
)

// Fetch renders pages in headless Chrome, for sites that build their article
// body with JavaScript.
type Fetch struct {
	Timeout   time.Duration
	UserAgent string
}

func (f Fetch) Fetch(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	t0 := time.Now()

	html, err := fetchHTML(ctx, url, f.UserAgent)
	if err != nil {
		return models.Result{}, err
	}
	return models.Result{
		URL:      url,
		HTML:     html,
		Status:   200,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func fetchHTML(ctx context.Context, url, userAgent string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
