package session_models

import (
	"errors"
	"time"

	"github.com/mohammad-safakhou/newsdigest/models"
)

// ErrBusy is returned when a turn is already running for the conversation.
var ErrBusy = errors.New("session: conversation busy")

// Conversation is the per-conversation state owned by the orchestrator.
type Conversation struct {
	ID                    string             `json:"id"`
	Stage                 models.Stage       `json:"stage"`
	Topic                 string             `json:"topic,omitempty"`
	SummaryMode           models.SummaryMode `json:"summary_mode,omitempty"`
	Articles              []models.Article   `json:"articles,omitempty"`
	Summaries             []string           `json:"summaries,omitempty"`
	NeutralSummaries      []string           `json:"neutral_summaries,omitempty"`
	OverallSummary        string             `json:"overall_summary,omitempty"`
	NeutralOverallSummary string             `json:"neutral_overall_summary,omitempty"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// New returns a fresh conversation at the initial stage.
func New(id string, now time.Time) Conversation {
	return Conversation{ID: id, Stage: models.StageInitial, UpdatedAt: now}
}

// Clone returns a deep copy so stored state is never aliased by callers.
func (c Conversation) Clone() Conversation {
	out := c
	out.Articles = append([]models.Article(nil), c.Articles...)
	out.Summaries = append([]string(nil), c.Summaries...)
	out.NeutralSummaries = append([]string(nil), c.NeutralSummaries...)
	return out
}
