// Package presenter streams chat replies as paced plain text.
package presenter

import (
	"context"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/mohammad-safakhou/newsdigest/models"
)

// ErrorLine ends a stream whose turn failed.
const ErrorLine = "\nError: Internal server error.\n"

const doneMark = "✓\n"

// Sink is a writer whose output can be pushed to the client immediately.
type Sink interface {
	io.Writer
	Flush()
}

// token is a word with the whitespace that follows it, so joining the tokens
// reproduces the text exactly, newlines included.
var token = regexp.MustCompile(`\s*\S+\s*`)

// Presenter writes to one response. It is safe for use by one turn at a time.
type Presenter struct {
	w      Sink
	delay  time.Duration
	mu     sync.Mutex
	failed bool
}

// New returns a presenter pausing delay between words.
func New(w Sink, delay time.Duration) *Presenter {
	return &Presenter{w: w, delay: delay}
}

func (p *Presenter) write(s string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.w, s); err != nil {
		return err
	}
	p.w.Flush()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Words emits text one word at a time. It stops when ctx is done.
func (p *Presenter) Words(ctx context.Context, text string) error {
	for i, tok := range token.FindAllString(text, -1) {
		if i > 0 {
			if err := sleep(ctx, p.delay); err != nil {
				return err
			}
		}
		if err := p.write(tok); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// Phase writes the label, runs work, and marks the phase done once work has
// finished and at least minDuration has passed. A failing work writes the
// error line instead and returns its error.
func (p *Presenter) Phase(ctx context.Context, label string, minDuration time.Duration, work func(ctx context.Context) error) error {
	if err := p.write(label + " "); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- work(ctx) }()

	waitErr := sleep(ctx, minDuration)
	workErr := <-done
	if workErr != nil {
		p.Error()
		return workErr
	}
	if waitErr != nil {
		return waitErr
	}
	return p.write(doneMark)
}

// Reply streams every message of r, separated by blank lines.
func (p *Presenter) Reply(ctx context.Context, r models.Reply) error {
	return p.Words(ctx, r.Text())
}

// Error writes the terminal error line. Write failures are ignored because
// the client is usually gone by then.
func (p *Presenter) Error() {
	p.mu.Lock()
	p.failed = true
	p.mu.Unlock()
	_ = p.write(ErrorLine)
}

// Failed reports whether the error line was written.
func (p *Presenter) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}
