package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ArticleCandidate is an article reference returned by a news provider before
// any content has been fetched.
type ArticleCandidate struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Article is a candidate whose page content was extracted successfully.
// Content is empty until extraction succeeds; articles without content never
// reach summarization.
type Article struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
}

// Stage is the position of a conversation in the fetch → extract → summarize sequence.
type Stage string

const (
	StageInitial             Stage = "initial"
	StageFetchingArticles    Stage = "fetchingArticles"
	StageDisplayArticles     Stage = "displayArticles"
	StageGeneratingSummaries Stage = "generatingSummaries"
	StageDisplaySummaries    Stage = "displaySummaries"
	StageProcessing          Stage = "processing"
	StageCompleted           Stage = "completed"
)

var stageOrder = map[Stage]int{
	StageInitial:             0,
	StageFetchingArticles:    1,
	StageProcessing:          1,
	StageDisplayArticles:     2,
	StageGeneratingSummaries: 3,
	StageDisplaySummaries:    4,
	StageCompleted:           5,
}

// Rank orders stages so callers can check that a transition only moves forward.
// Unknown stages rank below initial.
func (s Stage) Rank() int {
	r, ok := stageOrder[s]
	if !ok {
		return -1
	}
	return r
}

// SummaryMode selects plain or bias-reduced summaries.
type SummaryMode string

const (
	SummaryModeNone     SummaryMode = ""
	SummaryModeGeneric  SummaryMode = "generic"
	SummaryModeUnbiased SummaryMode = "unbiased"
)

// ParseSummaryMode accepts "generic" or "unbiased" in any case.
func ParseSummaryMode(s string) (SummaryMode, bool) {
	switch SummaryMode(strings.ToLower(strings.TrimSpace(s))) {
	case SummaryModeGeneric:
		return SummaryModeGeneric, true
	case SummaryModeUnbiased:
		return SummaryModeUnbiased, true
	default:
		return SummaryModeNone, false
	}
}

// ReplyKind discriminates what a chat turn produced.
type ReplyKind string

const (
	ReplyPrompt    ReplyKind = "prompt"
	ReplyDigest    ReplyKind = "digest"
	ReplyCompleted ReplyKind = "completed"
	ReplyError     ReplyKind = "error"
)

// Reply is the single response contract of a chat turn. The JSON and the
// streamed text bodies are two serializations of the same value.
type Reply struct {
	Kind     ReplyKind `json:"kind"`
	Messages []string  `json:"messages"`
}

// Text joins the reply messages with blank lines.
func (r Reply) Text() string {
	return strings.Join(r.Messages, "\n\n")
}

// MarshalJSON adds "message", the joined text, for clients that render a
// single bubble per turn.
func (r Reply) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind     ReplyKind `json:"kind"`
		Message  string    `json:"message"`
		Messages []string  `json:"messages"`
	}
	msgs := r.Messages
	if msgs == nil {
		msgs = []string{}
	}
	return json.Marshal(wire{Kind: r.Kind, Message: r.Text(), Messages: msgs})
}

// Chat is a stored conversation.
type Chat struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	LastUpdated    time.Time `json:"last_updated"`
	OverallSummary *string   `json:"overall_summary,omitempty"`
}

// Message is a stored chat message.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SenderUser = "user"
	SenderBot  = "bot"
)
