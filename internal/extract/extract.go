// Package extract turns an article page into clean prose suitable for
// summarization, or rejects it when too little text survives.
package extract

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"

	"github.com/mohammad-safakhou/newsdigest/internal/helpers"
	"github.com/mohammad-safakhou/newsdigest/internal/logging"
	"github.com/mohammad-safakhou/newsdigest/internal/telemetry"
	"github.com/mohammad-safakhou/newsdigest/tools/web_fetch"
	"github.com/mohammad-safakhou/newsdigest/utils"
)

// denylist holds the selectors for page chrome that never carries article text.
var denylist = strings.Join([]string{
	"script", "style", "noscript", "nav", "header", "footer", "aside", "form", "iframe",
	"[class*='ad-']", ".advert", ".advertisement",
	"[class*='newsletter']", "[class*='subscribe']", "[id*='newsletter']", "[id*='subscribe']",
	"[class*='promo']", "[aria-hidden='true']",
}, ", ")

// boilerplate matches the start of newsletter and edition promos; everything
// from the first match onward is dropped.
var boilerplate = regexp.MustCompile(`(?i)(e-?Edition|newsletter|subscribe|Get Morning Report|Get[\s\S]*?email|Today[’']s edition).*`)

// Options holds the acceptance thresholds.
type Options struct {
	MinParagraphChars int
	MaxParagraphs     int
	MinContentChars   int
	MinWords          int
}

// DefaultOptions returns the thresholds used when config leaves them unset.
func DefaultOptions() Options {
	return Options{MinParagraphChars: 20, MaxParagraphs: 30, MinContentChars: 100, MinWords: 15}
}

// Extractor fetches a page and cleans it.
type Extractor struct {
	fetcher web_fetch.WebFetcher
	opts    Options
	log     *logrus.Entry
}

func New(fetcher web_fetch.WebFetcher, opts Options, logger logrus.FieldLogger) *Extractor {
	def := DefaultOptions()
	if opts.MaxParagraphs <= 0 {
		opts.MaxParagraphs = def.MaxParagraphs
	}
	return &Extractor{fetcher: fetcher, opts: opts, log: logging.Component(logger, "extract")}
}

// Extract returns the cleaned article text and true, or "" and false when the
// page cannot be fetched or yields too little prose. It never returns an error.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, bool) {
	res, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		telemetry.RecordExtraction(telemetry.OutcomeFetchFailed)
		e.log.WithError(err).WithField("url", pageURL).Warn("page fetch failed")
		return "", false
	}

	content := Clean(res.HTML, pageURL, e.opts)
	if !Accept(content, e.opts) {
		telemetry.RecordExtraction(telemetry.OutcomeTooThin)
		e.log.WithFields(logrus.Fields{
			"url":       pageURL,
			"chars":     utf8.RuneCountInString(content),
			"html_hash": web_fetch.Hash(res.HTML),
		}).Debug("page rejected: too little text")
		return "", false
	}
	telemetry.RecordExtraction(telemetry.OutcomeAccepted)
	return content, true
}

// Clean strips page chrome, gathers paragraph text and removes trailing
// promos. The result may still be rejected by Accept.
func Clean(rawHTML, pageURL string, opts Options) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	doc.Find(denylist).Remove()

	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := utils.CollapseSpace(s.Text())
		if utf8.RuneCountInString(text) >= opts.MinParagraphChars {
			paragraphs = append(paragraphs, text)
		}
		return opts.MaxParagraphs <= 0 || len(paragraphs) < opts.MaxParagraphs
	})

	content := strings.Join(paragraphs, " ")
	if content == "" {
		content = readable(doc, pageURL)
	}

	content = utils.CollapseSpace(StripBoilerplate(utils.CollapseSpace(content)))
	return utils.CollapseSpace(helpers.PlainText(content))
}

// readable falls back to readability on the already cleaned document, for
// pages whose body is not built from <p> elements.
func readable(doc *goquery.Document, pageURL string) string {
	cleaned, err := doc.Html()
	if err != nil {
		return ""
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(cleaned), u)
	if err != nil {
		return ""
	}
	return article.TextContent
}

// StripBoilerplate cuts s at the first promo phrase.
func StripBoilerplate(s string) string {
	return strings.TrimSpace(boilerplate.ReplaceAllString(s, ""))
}

// Accept reports whether content is long enough to summarize.
func Accept(content string, opts Options) bool {
	if utf8.RuneCountInString(content) < opts.MinContentChars {
		return false
	}
	return utils.WordCount(content) >= opts.MinWords
}
