// Package conversation drives a chat from topic to digest. Decide and the
// Apply/Begin functions are pure; Orchestrator performs the I/O they ask for.
package conversation

import (
	"strings"
	"time"

	"github.com/mohammad-safakhou/newsdigest/config"
	"github.com/mohammad-safakhou/newsdigest/models"
	"github.com/mohammad-safakhou/newsdigest/session/session_models"
)

// State is the per-conversation state.
type State = session_models.Conversation

// Flow selects the conversation contract.
type Flow string

const (
	// FlowInteractive lists the articles and lets the user choose the summary mode.
	FlowInteractive Flow = config.FlowInteractive
	// FlowStreaming runs the whole pipeline in one turn and always produces
	// bias-reduced summaries.
	FlowStreaming Flow = config.FlowStreaming
)

// Action is what a turn must do next.
type Action int

const (
	ActionGreet Action = iota
	ActionFetch
	ActionReprompt
	ActionSummarize
	ActionCompleted
)

func (a Action) String() string {
	switch a {
	case ActionGreet:
		return "greet"
	case ActionFetch:
		return "fetch"
	case ActionReprompt:
		return "reprompt"
	case ActionSummarize:
		return "summarize"
	case ActionCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	Topic  string
	Mode   models.SummaryMode
}

// Decide maps the stored state and the user's message to the next action.
// It performs no I/O and never mutates state.
func Decide(state State, input string, flow Flow) Decision {
	text := strings.TrimSpace(input)
	switch state.Stage {
	case models.StageInitial, "":
		if text == "" {
			return Decision{Action: ActionGreet}
		}
		return Decision{Action: ActionFetch, Topic: text}
	case models.StageDisplayArticles:
		if flow == FlowStreaming {
			return Decision{Action: ActionCompleted}
		}
		if mode, ok := models.ParseSummaryMode(text); ok {
			return Decision{Action: ActionSummarize, Mode: mode}
		}
		return Decision{Action: ActionReprompt}
	default:
		// terminal stages absorb every turn; so do in-flight stages left
		// behind by a failed turn
		return Decision{Action: ActionCompleted}
	}
}

// advance moves the stage forward only.
func advance(s State, to models.Stage, now time.Time) State {
	if to.Rank() >= s.Stage.Rank() {
		s.Stage = to
	}
	s.UpdatedAt = now
	return s
}

// BeginFetch records the topic and marks the fetch as in flight.
func BeginFetch(s State, topic string, flow Flow, now time.Time) State {
	s.Topic = topic
	if flow == FlowStreaming {
		return advance(s, models.StageProcessing, now)
	}
	return advance(s, models.StageFetchingArticles, now)
}

// ApplyArticles stores the accepted articles. With none, the conversation
// completes; interactive conversations otherwise wait for the mode choice.
func ApplyArticles(s State, articles []models.Article, flow Flow, now time.Time) State {
	s.Articles = append([]models.Article(nil), articles...)
	if len(articles) == 0 {
		return advance(s, models.StageCompleted, now)
	}
	if flow == FlowStreaming {
		s.UpdatedAt = now
		return s
	}
	return advance(s, models.StageDisplayArticles, now)
}

// BeginSummaries records the chosen mode.
func BeginSummaries(s State, mode models.SummaryMode, now time.Time) State {
	s.SummaryMode = mode
	return advance(s, models.StageGeneratingSummaries, now)
}

// ApplySummaries stores the generated summaries and finishes the pipeline.
func ApplySummaries(s State, r Result, flow Flow, now time.Time) State {
	s.Summaries = append([]string(nil), r.Summaries...)
	s.OverallSummary = r.Overall
	s.NeutralSummaries = append([]string(nil), r.NeutralSummaries...)
	s.NeutralOverallSummary = r.NeutralOverall
	if flow == FlowStreaming {
		return advance(s, models.StageCompleted, now)
	}
	return advance(s, models.StageDisplaySummaries, now)
}
