package session

import (
	"context"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/sirupsen/logrus"

	"github.com/mohammad-safakhou/newsdigest/internal/logging"
	"github.com/mohammad-safakhou/newsdigest/internal/telemetry"
)

// Sweeper evicts idle conversations on a cron schedule.
type Sweeper struct {
	store   Store
	expr    *cronexpr.Expression
	idleTTL time.Duration
	now     func() time.Time
	log     *logrus.Entry
}

func NewSweeper(store Store, cronSpec string, idleTTL time.Duration, logger logrus.FieldLogger) (*Sweeper, error) {
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", cronSpec, err)
	}
	return &Sweeper{
		store:   store,
		expr:    expr,
		idleTTL: idleTTL,
		now:     time.Now,
		log:     logging.Component(logger, "session_sweeper"),
	}, nil
}

// Sweep runs one eviction pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.EvictIdle(ctx, s.now().Add(-s.idleTTL))
	if err != nil {
		return n, err
	}
	if size, err := s.store.Len(ctx); err == nil {
		telemetry.ActiveSessions.Set(float64(size))
	}
	return n, nil
}

// Run sweeps at each scheduled time until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		next := s.expr.Next(s.now())
		if next.IsZero() {
			s.log.Warn("sweep schedule has no future run; stopping")
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		n, err := s.Sweep(ctx)
		if err != nil {
			s.log.WithError(err).Warn("session sweep failed")
			continue
		}
		if n > 0 {
			s.log.WithField("evicted", n).Info("evicted idle conversations")
		}
	}
}
