package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/newsdigest/config"
	"github.com/mohammad-safakhou/newsdigest/internal/logging"
	"github.com/mohammad-safakhou/newsdigest/internal/telemetry"
	"github.com/mohammad-safakhou/newsdigest/models"
	"github.com/mohammad-safakhou/newsdigest/session"
	"github.com/mohammad-safakhou/newsdigest/session/session_models"
)

// Phase labels shown while the streaming flow works.
const (
	PhaseFetching    = "Fetching articles…"
	PhaseReducing    = "Reducing bias…"
	PhaseSummarizing = "Generating summaries…"
)

// Retriever finds candidate articles for a topic.
type Retriever interface {
	Fetch(ctx context.Context, topic string) []models.ArticleCandidate
}

// SummaryRecorder persists the final overall summary on the chat record.
type SummaryRecorder interface {
	SetOverallSummary(ctx context.Context, chatID int64, summary string) error
}

// Progress reports labelled phases of work. Phase runs work and returns its
// error; implementations may hold the phase open for at least minDuration.
type Progress interface {
	Phase(ctx context.Context, label string, minDuration time.Duration, work func(ctx context.Context) error) error
}

type noProgress struct{}

func (noProgress) Phase(ctx context.Context, _ string, _ time.Duration, work func(ctx context.Context) error) error {
	return work(ctx)
}

// Options configures an Orchestrator.
type Options struct {
	Flow              Flow
	MaxArticles       int
	FetchPhaseDelay   time.Duration
	SummaryPhaseDelay time.Duration
}

// Orchestrator owns conversation state and runs the pipeline for each turn.
type Orchestrator struct {
	sessions   session.Store
	news       Retriever
	extractor  Extractor
	summarizer Summarizer
	chats      SummaryRecorder
	opts       Options
	now        func() time.Time
	log        *logrus.Entry
	tracer     trace.Tracer
}

// New builds an orchestrator. chats may be nil, in which case overall
// summaries are not persisted.
func New(sessions session.Store, news Retriever, extractor Extractor, s Summarizer, chats SummaryRecorder, opts Options, logger logrus.FieldLogger) *Orchestrator {
	if opts.Flow == "" {
		opts.Flow = FlowInteractive
	}
	if opts.MaxArticles <= 0 || opts.MaxArticles > config.MaxDigestArticles {
		opts.MaxArticles = config.MaxDigestArticles
	}
	return &Orchestrator{
		sessions:   sessions,
		news:       news,
		extractor:  extractor,
		summarizer: s,
		chats:      chats,
		opts:       opts,
		now:        time.Now,
		log:        logging.Component(logger, "orchestrator"),
		tracer:     telemetry.Tracer("conversation"),
	}
}

// Flow returns the configured conversation flow.
func (o *Orchestrator) Flow() Flow { return o.opts.Flow }

// Turn advances conversation chatID by one user message. progress may be nil.
// The returned error is session.ErrBusy when another turn for chatID is
// running, or an unexpected failure; the Reply is meaningful in both cases.
func (o *Orchestrator) Turn(ctx context.Context, chatID, message string, progress Progress) (models.Reply, error) {
	if progress == nil {
		progress = noProgress{}
	}
	start := o.now()
	runID := uuid.NewString()
	log := o.log.WithFields(logrus.Fields{"chat_id": chatID, "run_id": runID})

	ctx, span := o.tracer.Start(ctx, "conversation.turn", trace.WithAttributes(
		attribute.String("chat_id", chatID),
		attribute.String("run_id", runID),
	))
	defer span.End()

	release, err := o.sessions.Acquire(ctx, chatID)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			log.Info("turn rejected: conversation busy")
			return BusyReply(), err
		}
		return o.fail(span, log, fmt.Errorf("acquire conversation: %w", err))
	}
	defer release()

	state, ok, err := o.sessions.Get(ctx, chatID)
	if err != nil {
		return o.fail(span, log, fmt.Errorf("load conversation: %w", err))
	}

	d := Decide(state, message, o.opts.Flow)
	span.SetAttributes(attribute.String("action", d.Action.String()))
	log = log.WithFields(logrus.Fields{"stage": state.Stage, "action": d.Action.String()})
	defer func() {
		telemetry.TurnDuration.WithLabelValues(d.Action.String()).Observe(o.now().Sub(start).Seconds())
	}()

	// greeting never creates state
	if d.Action == ActionGreet && !ok {
		return GreetReply(), nil
	}
	if !ok {
		state = session_models.New(chatID, o.now())
	}

	var reply models.Reply
	switch d.Action {
	case ActionGreet:
		reply = GreetReply()
	case ActionCompleted:
		reply = completedReply()
	case ActionReprompt:
		reply = repromptReply()
	case ActionFetch:
		reply, err = o.fetch(ctx, state, d.Topic, progress, log)
	case ActionSummarize:
		reply, err = o.summarize(ctx, state, d.Mode, log)
	}
	if err != nil {
		return o.fail(span, log, err)
	}
	if d.Action == ActionGreet || d.Action == ActionCompleted || d.Action == ActionReprompt {
		state.UpdatedAt = o.now()
		if err := o.sessions.Save(ctx, state); err != nil {
			return o.fail(span, log, fmt.Errorf("save conversation: %w", err))
		}
	}
	log.Debug("turn finished")
	return reply, nil
}

func (o *Orchestrator) fail(span trace.Span, log *logrus.Entry, err error) (models.Reply, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.WithError(err).Error("turn failed")
	return ErrorReply(), err
}

func (o *Orchestrator) save(ctx context.Context, state State) error {
	if err := o.sessions.Save(ctx, state); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// fetch runs retrieval and extraction. In the streaming flow it continues
// straight into the neutral summaries.
func (o *Orchestrator) fetch(ctx context.Context, state State, topic string, progress Progress, log *logrus.Entry) (models.Reply, error) {
	state = BeginFetch(state, topic, o.opts.Flow, o.now())
	if err := o.save(ctx, state); err != nil {
		return models.Reply{}, err
	}

	var articles []models.Article
	err := progress.Phase(ctx, PhaseFetching, o.opts.FetchPhaseDelay, func(ctx context.Context) error {
		candidates := o.news.Fetch(ctx, topic)
		var err error
		articles, err = Collect(ctx, o.extractor, candidates, o.opts.MaxArticles)
		log.WithFields(logrus.Fields{"candidates": len(candidates), "accepted": len(articles)}).Info("articles collected")
		return err
	})
	if err != nil {
		return models.Reply{}, err
	}

	state = ApplyArticles(state, articles, o.opts.Flow, o.now())
	if err := o.save(ctx, state); err != nil {
		return models.Reply{}, err
	}
	if len(articles) == 0 {
		return noArticlesReply(topic), nil
	}
	if o.opts.Flow == FlowStreaming {
		return o.streamSummaries(ctx, state, progress, log)
	}
	return articlesReply(topic, articles), nil
}

// summarize runs the interactive summarization for the chosen mode.
func (o *Orchestrator) summarize(ctx context.Context, state State, mode models.SummaryMode, log *logrus.Entry) (models.Reply, error) {
	state = BeginSummaries(state, mode, o.now())
	if err := o.save(ctx, state); err != nil {
		return models.Reply{}, err
	}
	r, err := Summarize(ctx, o.summarizer, state.Articles, mode)
	if err != nil {
		return models.Reply{}, err
	}
	state = ApplySummaries(state, r, o.opts.Flow, o.now())
	if err := o.save(ctx, state); err != nil {
		return models.Reply{}, err
	}
	log.WithField("mode", mode).Info("summaries generated")
	return digestReply(state.Articles, r), nil
}

// streamSummaries computes only the neutral path, as two progress phases.
func (o *Orchestrator) streamSummaries(ctx context.Context, state State, progress Progress, log *logrus.Entry) (models.Reply, error) {
	state.SummaryMode = models.SummaryModeUnbiased
	var r Result
	err := progress.Phase(ctx, PhaseReducing, o.opts.SummaryPhaseDelay, func(ctx context.Context) error {
		var err error
		r.NeutralSummaries, err = NeutralizeArticles(ctx, o.summarizer, state.Articles)
		return err
	})
	if err != nil {
		return models.Reply{}, err
	}
	err = progress.Phase(ctx, PhaseSummarizing, o.opts.SummaryPhaseDelay, func(ctx context.Context) error {
		var err error
		r.NeutralOverall, err = NeutralOverall(ctx, o.summarizer, contents(state.Articles))
		return err
	})
	if err != nil {
		return models.Reply{}, err
	}

	state = ApplySummaries(state, r, o.opts.Flow, o.now())
	if err := o.save(ctx, state); err != nil {
		return models.Reply{}, err
	}
	o.recordOverall(ctx, state.ID, r.NeutralOverall, log)
	return streamingDigestReply(state.Articles, r), nil
}

// recordOverall is best effort; the digest is delivered either way.
func (o *Orchestrator) recordOverall(ctx context.Context, chatID, summary string, log *logrus.Entry) {
	if o.chats == nil {
		return
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		log.WithError(err).Warn("chat id is not numeric; overall summary not stored")
		return
	}
	if err := o.chats.SetOverallSummary(ctx, id, summary); err != nil {
		log.WithError(err).Warn("failed to store overall summary")
	}
}
