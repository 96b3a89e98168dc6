package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/mohammad-safakhou/newsdigest/internal/conversation"
	"github.com/mohammad-safakhou/newsdigest/internal/presenter"
	"github.com/mohammad-safakhou/newsdigest/models"
	"github.com/mohammad-safakhou/newsdigest/session"
)

// Turner runs one conversation turn.
type Turner interface {
	Turn(ctx context.Context, chatID, message string, progress conversation.Progress) (models.Reply, error)
	Flow() conversation.Flow
}

// ChatHandler serves POST /chat.
type ChatHandler struct {
	Turner    Turner
	WordDelay time.Duration
	Logger    *logrus.Entry
}

// chatID accepts both JSON numbers and strings.
type chatID string

func (id *chatID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*id = chatID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = chatID(s)
	return nil
}

type chatRequest struct {
	ChatID  chatID `json:"chatId"`
	Message string `json:"message"`
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	// an empty message is always answered with the greeting
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusOK, conversation.GreetReply())
	}
	id := strings.TrimSpace(string(req.ChatID))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chatId required")
	}
	if h.wantsStream(c) {
		return h.stream(c, id, req.Message)
	}

	reply, err := h.Turner.Turn(c.Request().Context(), id, req.Message, nil)
	switch {
	case errors.Is(err, session.ErrBusy):
		return c.JSON(http.StatusConflict, reply)
	case err != nil:
		return c.JSON(http.StatusInternalServerError, reply)
	}
	return c.JSON(http.StatusOK, reply)
}

func (h *ChatHandler) wantsStream(c echo.Context) bool {
	if h.Turner.Flow() == conversation.FlowStreaming {
		return true
	}
	if c.QueryParam("stream") == "1" {
		return true
	}
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextPlain)
}

func (h *ChatHandler) stream(c echo.Context, id, message string) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("X-Accel-Buffering", "no")

	ctx := c.Request().Context()
	p := presenter.New(res, h.WordDelay)
	reply, err := h.Turner.Turn(ctx, id, message, p)
	if errors.Is(err, session.ErrBusy) {
		if !res.Committed {
			res.WriteHeader(http.StatusConflict)
		}
		_ = p.Reply(ctx, reply)
		return nil
	}
	if err != nil {
		if !p.Failed() {
			p.Error()
		}
		return nil
	}
	if reply.Kind == models.ReplyDigest {
		reply.Messages = append([]string{""}, reply.Messages...)
	}
	if err := p.Reply(ctx, reply); err != nil && h.Logger != nil {
		h.Logger.WithError(err).WithField("chat_id", id).Debug("stream ended early")
	}
	return nil
}
