package news

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mohammad-safakhou/newsdigest/config"
	"github.com/mohammad-safakhou/newsdigest/internal/helpers"
	"github.com/mohammad-safakhou/newsdigest/internal/logging"
	"github.com/mohammad-safakhou/newsdigest/internal/telemetry"
	"github.com/mohammad-safakhou/newsdigest/models"
)

// ErrNoProvider is returned by NewProvider for unknown provider names.
var ErrNoProvider = errors.New("news: unknown provider")

// Provider searches an external news source for articles about a topic.
type Provider interface {
	Name() string
	Search(ctx context.Context, topic, language string, max int) ([]models.ArticleCandidate, error)
}

// Retriever fetches candidate articles, falling back to a secondary provider
// when the primary fails or finds nothing.
type Retriever struct {
	primary   Provider
	secondary Provider
	max       int
	timeout   time.Duration
	log       *logrus.Entry
}

// Option customises a Retriever.
type Option func(*Retriever)

// Language is the only language articles are searched in.
const Language = "en"

// WithMax sets the candidate cap; values outside 1..config.MaxSearchResults
// fall back to the maximum.
func WithMax(n int) Option { return func(r *Retriever) { r.max = n } }

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option { return func(r *Retriever) { r.timeout = d } }

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Retriever) { r.log = logging.Component(l, "news") }
}

// NewRetriever builds a retriever. secondary may be nil.
func NewRetriever(primary, secondary Provider, opts ...Option) *Retriever {
	r := &Retriever{
		primary:   primary,
		secondary: secondary,
		max:       6,
		timeout:   10 * time.Second,
		log:       logging.Component(nil, "news"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.max <= 0 || r.max > config.MaxSearchResults {
		r.max = config.MaxSearchResults
	}
	return r
}

// Fetch returns up to max candidates for topic. Provider failures are logged
// and never surface to the caller; when both providers fail the result is empty.
func (r *Retriever) Fetch(ctx context.Context, topic string) []models.ArticleCandidate {
	if out, ok := r.try(ctx, r.primary, topic); ok {
		return out
	}
	if r.secondary == nil {
		return nil
	}
	telemetry.ProviderFallbacks.Inc()
	out, _ := r.try(ctx, r.secondary, topic)
	return out
}

// try reports ok only when the provider returned at least one candidate.
func (r *Retriever) try(ctx context.Context, p Provider, topic string) ([]models.ArticleCandidate, bool) {
	if p == nil {
		return nil, false
	}
	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := p.Search(callCtx, topic, Language, r.max)
	if err != nil {
		telemetry.RecordProvider(p.Name(), "error")
		r.log.WithError(err).WithFields(logrus.Fields{"provider": p.Name(), "topic": topic}).Warn("provider search failed")
		return nil, false
	}
	if len(out) == 0 {
		telemetry.RecordProvider(p.Name(), "empty")
		r.log.WithFields(logrus.Fields{"provider": p.Name(), "topic": topic}).Info("provider returned no articles")
		return nil, false
	}
	out = dedupe(out)
	if len(out) == 0 {
		telemetry.RecordProvider(p.Name(), "empty")
		return nil, false
	}
	telemetry.RecordProvider(p.Name(), "ok")
	if r.max > 0 && len(out) > r.max {
		out = out[:r.max]
	}
	return out, true
}

// dedupe drops candidates without a usable link and later copies of the same
// canonical link, keeping provider order.
func dedupe(in []models.ArticleCandidate) []models.ArticleCandidate {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, c := range in {
		key, err := helpers.CanonicalURL(c.URL)
		if err != nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
