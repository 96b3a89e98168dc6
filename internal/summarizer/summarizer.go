// Package summarizer is the client for the remote summarize and reduce_bias
// service. Every failure degrades to a fixed sentinel string; callers never
// see an error.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/mohammad-safakhou/newsdigest/config"
	"github.com/mohammad-safakhou/newsdigest/internal/helpers"
	"github.com/mohammad-safakhou/newsdigest/internal/logging"
	"github.com/mohammad-safakhou/newsdigest/internal/telemetry"
)

const (
	LimitedContent      = "Summary unavailable due to limited content."
	SummaryError        = "Error generating summary"
	NeutralSummaryError = "Error generating neutral summary"
)

// Length bounds, in model tokens, passed through to the service.
const (
	ArticleMaxLength = 100
	ArticleMinLength = 80
	OverallMaxLength = 200
	OverallMinLength = 150
)

const (
	endpointSummarize  = "summarize"
	endpointReduceBias = "reduce_bias"
)

// Request is a summarize call.
type Request struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
	MinLength int    `json:"min_length"`
	// Rewrite asks for a more paraphrastic summary, used when the input is
	// itself a set of summaries.
	Rewrite bool `json:"rewrite,omitempty"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type reduceBiasRequest struct {
	Text string `json:"text"`
}

type reduceBiasResponse struct {
	NeutralText string `json:"neutral_text"`
}

// statusError is a non-2xx answer from the service.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return fmt.Sprintf("status %d: %s", e.code, e.body) }

type Client struct {
	baseURL  string
	http     *http.Client
	retries  int
	backoff  time.Duration
	minInput int
	breaker  *gobreaker.CircuitBreaker
	log      *logrus.Entry
}

func New(cfg config.SummarizerConfig, logger logrus.FieldLogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}
	minInput := cfg.MinInput
	if minInput <= 0 {
		minInput = 50
	}
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	log := logging.Component(logger, "summarizer")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "summarizer",
		Timeout: cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		retries:  cfg.MaxRetries,
		backoff:  backoff,
		minInput: minInput,
		breaker:  breaker,
		log:      log,
	}
}

// Summarize condenses text within the given length bounds.
func (c *Client) Summarize(ctx context.Context, text string, maxLen, minLen int) string {
	return c.SummarizeWith(ctx, Request{Text: text, MaxLength: maxLen, MinLength: minLen})
}

// SummarizeWith is Summarize with the full request, including Rewrite.
func (c *Client) SummarizeWith(ctx context.Context, req Request) string {
	if c.tooShort(req.Text) {
		telemetry.RecordSummarizer(endpointSummarize, "sentinel_short")
		return LimitedContent
	}
	var out summarizeResponse
	if err := c.call(ctx, endpointSummarize, req, &out); err != nil {
		c.fail(endpointSummarize, err)
		return SummaryError
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		c.fail(endpointSummarize, errors.New("empty summary"))
		return SummaryError
	}
	telemetry.RecordSummarizer(endpointSummarize, "ok")
	return summary
}

// Neutralize rewrites text to reduce biased wording, then summarizes the
// rewrite. A failed rewrite yields NeutralSummaryError; a failed summary of
// the rewrite yields SummaryError.
func (c *Client) Neutralize(ctx context.Context, text string, maxLen, minLen int) string {
	if c.tooShort(text) {
		telemetry.RecordSummarizer(endpointReduceBias, "sentinel_short")
		return LimitedContent
	}
	var out reduceBiasResponse
	if err := c.call(ctx, endpointReduceBias, reduceBiasRequest{Text: text}, &out); err != nil {
		c.fail(endpointReduceBias, err)
		return NeutralSummaryError
	}
	if strings.TrimSpace(out.NeutralText) == "" {
		c.fail(endpointReduceBias, errors.New("empty neutral_text"))
		return NeutralSummaryError
	}
	telemetry.RecordSummarizer(endpointReduceBias, "ok")
	return c.Summarize(ctx, out.NeutralText, maxLen, minLen)
}

func (c *Client) tooShort(text string) bool {
	return len([]rune(strings.TrimSpace(text))) < c.minInput
}

func (c *Client) fail(endpoint string, err error) {
	outcome := "error"
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		outcome = "open"
	}
	telemetry.RecordSummarizer(endpoint, outcome)
	c.log.WithError(err).WithField("endpoint", endpoint).Warn("summarizer call failed")
}

// call runs one logical request through the breaker.
func (c *Client) call(ctx context.Context, endpoint string, body, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.postJSON(ctx, c.baseURL+"/"+endpoint, body, out)
	})
	return err
}

// postJSON posts body and decodes a 2xx answer into out. Transport errors and
// 5xx answers are retried with exponential backoff.
func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		lastErr = c.once(ctx, url, payload, out)
		if lastErr == nil {
			return nil
		}
		var se *statusError
		if errors.As(lastErr, &se) && se.code < 500 {
			return lastErr
		}
		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, url string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := helpers.ReadAllAndClose(io.NopCloser(io.LimitReader(resp.Body, 4096)))
		helpers.DrainAndClose(resp.Body)
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}
	defer helpers.DrainAndClose(resp.Body)
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
