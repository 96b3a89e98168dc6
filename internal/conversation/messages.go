package conversation

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/newsdigest/models"
)

const (
	MsgGreeting   = "Hello! Please enter a topic."
	MsgCompleted  = "Conversation completed. Please start a new chat."
	MsgModePrompt = "Would you like a generic summary or an unbiased summary? Reply \"generic\" or \"unbiased\"."
	MsgReprompt   = "Please reply with \"generic\" or \"unbiased\" to choose the kind of summary."
	MsgError      = "An error occurred while processing your request."
	MsgBusy       = "I'm still working on your previous request. Please wait for it to finish."
)

// GreetReply asks for a topic.
func GreetReply() models.Reply {
	return models.Reply{Kind: models.ReplyPrompt, Messages: []string{MsgGreeting}}
}

func completedReply() models.Reply {
	return models.Reply{Kind: models.ReplyCompleted, Messages: []string{MsgCompleted}}
}

func repromptReply() models.Reply {
	return models.Reply{Kind: models.ReplyPrompt, Messages: []string{MsgReprompt}}
}

// ErrorReply is the in-band reply for a failed turn.
func ErrorReply() models.Reply {
	return models.Reply{Kind: models.ReplyError, Messages: []string{MsgError}}
}

// BusyReply answers a turn that arrived while another one is running.
func BusyReply() models.Reply {
	return models.Reply{Kind: models.ReplyError, Messages: []string{MsgBusy}}
}

func noArticlesReply(topic string) models.Reply {
	return models.Reply{Kind: models.ReplyCompleted, Messages: []string{
		fmt.Sprintf("Sorry, no articles found for %q. Please start a new chat to try another topic.", topic),
	}}
}

func articlesReply(topic string, articles []models.Article) models.Reply {
	var b strings.Builder
	for i, a := range articles {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, a.Title, a.URL)
	}
	return models.Reply{Kind: models.ReplyPrompt, Messages: []string{
		fmt.Sprintf("I found %d articles about %q:", len(articles), topic),
		b.String(),
		MsgModePrompt,
	}}
}

func section(heading, body string) string {
	return "**" + heading + "**\n" + body
}

// digestReply lists plain per-article summaries, the plain overall summary,
// then the neutral ones when present.
func digestReply(articles []models.Article, r Result) models.Reply {
	msgs := make([]string, 0, 2*len(articles)+2)
	for i, a := range articles {
		msgs = append(msgs, section(fmt.Sprintf("Article %d: %s", i+1, a.Title), r.Summaries[i]))
	}
	msgs = append(msgs, section("Overall Summary:", r.Overall))
	if len(r.NeutralSummaries) > 0 {
		for i, a := range articles {
			msgs = append(msgs, section(fmt.Sprintf("Unbiased Article %d: %s", i+1, a.Title), r.NeutralSummaries[i]))
		}
		msgs = append(msgs, section("Unbiased Overall Summary:", r.NeutralOverall))
	}
	return models.Reply{Kind: models.ReplyDigest, Messages: msgs}
}

// FormatDigest renders summaries as one block: a header, one section per
// article and the overall summary.
func FormatDigest(header string, articles []models.Article, summaries []string, overall string) string {
	var b strings.Builder
	b.WriteString("**" + header + "**\n\n")
	for i, a := range articles {
		fmt.Fprintf(&b, "**Article %d: %s**\n%s\n\n", i+1, a.Title, summaries[i])
	}
	b.WriteString("**Overall Summary:**\n" + overall)
	return b.String()
}

// streamingDigestReply is the single-message digest of the streaming flow.
func streamingDigestReply(articles []models.Article, r Result) models.Reply {
	return models.Reply{Kind: models.ReplyDigest, Messages: []string{
		FormatDigest("Unbiased Article Summaries:", articles, r.NeutralSummaries, r.NeutralOverall),
	}}
}
