package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/newsdigest/internal/store"
)

// ChatsHandler serves chat and message history.
type ChatsHandler struct {
	Store *store.Store
}

func (h *ChatsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:chatId/messages", h.listMessages)
	g.POST("/:chatId/messages", h.addMessage)
}

func (h *ChatsHandler) list(c echo.Context) error {
	items, err := h.Store.ListChats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ChatsHandler) create(c echo.Context) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	chat, err := h.Store.CreateChat(c.Request().Context(), req.Title)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": chat.ID, "title": chat.Title})
}

func (h *ChatsHandler) listMessages(c echo.Context) error {
	id, err := chatIDParam(c)
	if err != nil {
		return err
	}
	msgs, err := h.Store.ListMessages(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *ChatsHandler) addMessage(c echo.Context) error {
	id, err := chatIDParam(c)
	if err != nil {
		return err
	}
	var req struct {
		Sender  string `json:"sender"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	msg, err := h.Store.AddMessage(c.Request().Context(), id, req.Sender, req.Content)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, msg)
}

func chatIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid chat id")
	}
	return id, nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	default:
		return err
	}
}
