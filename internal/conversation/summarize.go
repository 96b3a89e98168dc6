package conversation

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/newsdigest/internal/summarizer"
	"github.com/mohammad-safakhou/newsdigest/models"
)

// Summarizer is the subset of the summarization client the pipeline needs.
type Summarizer interface {
	SummarizeWith(ctx context.Context, req summarizer.Request) string
	Neutralize(ctx context.Context, text string, maxLen, minLen int) string
}

// Result holds the summaries of one pipeline run. Slices are indexed like
// the articles they summarize.
type Result struct {
	Summaries        []string
	Overall          string
	NeutralSummaries []string
	NeutralOverall   string
}

// perArticle runs fn for every article concurrently and returns once all of
// them finished. The only error is cancellation of ctx.
func perArticle(ctx context.Context, articles []models.Article, fn func(ctx context.Context, a models.Article) string) ([]string, error) {
	out := make([]string, len(articles))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range articles {
		g.Go(func() error {
			out[i] = fn(gctx, a)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// overallInput joins usable summaries; sentinel strings carry no content.
func overallInput(summaries []string) string {
	parts := make([]string, 0, len(summaries))
	for _, s := range summaries {
		switch s {
		case "", summarizer.LimitedContent, summarizer.SummaryError, summarizer.NeutralSummaryError:
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// SummarizePlain summarizes every article, then condenses those summaries
// into an overall summary. The overall step starts only after every
// per-article call returned.
func SummarizePlain(ctx context.Context, s Summarizer, articles []models.Article) ([]string, string, error) {
	summaries, err := perArticle(ctx, articles, func(ctx context.Context, a models.Article) string {
		return s.SummarizeWith(ctx, summarizer.Request{
			Text: a.Content, MaxLength: summarizer.ArticleMaxLength, MinLength: summarizer.ArticleMinLength,
		})
	})
	if err != nil {
		return nil, "", err
	}
	overall := s.SummarizeWith(ctx, summarizer.Request{
		Text:      overallInput(summaries),
		MaxLength: summarizer.OverallMaxLength,
		MinLength: summarizer.OverallMinLength,
		Rewrite:   true,
	})
	return summaries, overall, ctx.Err()
}

// NeutralizeArticles produces bias-reduced summaries for every article.
func NeutralizeArticles(ctx context.Context, s Summarizer, articles []models.Article) ([]string, error) {
	return perArticle(ctx, articles, func(ctx context.Context, a models.Article) string {
		return s.Neutralize(ctx, a.Content, summarizer.ArticleMaxLength, summarizer.ArticleMinLength)
	})
}

// NeutralOverall produces the bias-reduced overall summary of text.
func NeutralOverall(ctx context.Context, s Summarizer, text string) (string, error) {
	out := s.Neutralize(ctx, text, summarizer.OverallMaxLength, summarizer.OverallMinLength)
	return out, ctx.Err()
}

// Summarize runs the interactive pipeline for mode. Unbiased mode adds the
// neutral path on top of the plain one.
func Summarize(ctx context.Context, s Summarizer, articles []models.Article, mode models.SummaryMode) (Result, error) {
	var r Result
	var err error
	r.Summaries, r.Overall, err = SummarizePlain(ctx, s, articles)
	if err != nil {
		return Result{}, err
	}
	if mode != models.SummaryModeUnbiased {
		return r, nil
	}
	if r.NeutralSummaries, err = NeutralizeArticles(ctx, s, articles); err != nil {
		return Result{}, err
	}
	if r.NeutralOverall, err = NeutralOverall(ctx, s, overallInput(r.NeutralSummaries)); err != nil {
		return Result{}, err
	}
	return r, nil
}

// contents joins the article bodies, the input of the streaming overall summary.
func contents(articles []models.Article) string {
	parts := make([]string, len(articles))
	for i, a := range articles {
		parts[i] = a.Content
	}
	return strings.Join(parts, " ")
}
