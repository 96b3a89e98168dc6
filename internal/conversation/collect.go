package conversation

import (
	"context"
	"iter"

	"github.com/mohammad-safakhou/newsdigest/models"
)

// Extractor turns an article URL into clean text, or reports false.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, bool)
}

// Accepted yields the candidates whose pages extract successfully, in
// candidate order. Each candidate is fetched only when the consumer asks for
// the next article, so stopping early leaves the rest untouched.
func Accepted(ctx context.Context, ex Extractor, candidates []models.ArticleCandidate) iter.Seq[models.Article] {
	return func(yield func(models.Article) bool) {
		for _, c := range candidates {
			if ctx.Err() != nil {
				return
			}
			content, ok := ex.Extract(ctx, c.URL)
			if !ok {
				continue
			}
			if !yield(models.Article{Title: c.Title, URL: c.URL, Content: content}) {
				return
			}
		}
	}
}

// Collect takes at most limit accepted articles.
func Collect(ctx context.Context, ex Extractor, candidates []models.ArticleCandidate, limit int) ([]models.Article, error) {
	var out []models.Article
	if limit <= 0 {
		return out, nil
	}
	for a := range Accepted(ctx, ex, candidates) {
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return out, ctx.Err()
}
