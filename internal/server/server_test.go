package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/newsdigest/config"
	"github.com/mohammad-safakhou/newsdigest/internal/conversation"
	"github.com/mohammad-safakhou/newsdigest/internal/presenter"
	"github.com/mohammad-safakhou/newsdigest/internal/store"
	"github.com/mohammad-safakhou/newsdigest/models"
	"github.com/mohammad-safakhou/newsdigest/session"
)

type fakeTurner struct {
	mu    sync.Mutex
	flow  conversation.Flow
	calls []string
	turn  func(ctx context.Context, progress conversation.Progress) (models.Reply, error)
}

func (f *fakeTurner) Turn(ctx context.Context, chatID, message string, progress conversation.Progress) (models.Reply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, chatID+":"+message)
	f.mu.Unlock()
	if f.turn == nil {
		return models.Reply{Kind: models.ReplyPrompt, Messages: []string{"ok"}}, nil
	}
	return f.turn(ctx, progress)
}

func (f *fakeTurner) Flow() conversation.Flow {
	if f.flow == "" {
		return conversation.FlowInteractive
	}
	return f.flow
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func newMockServer(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(Options{Store: &store.Store{DB: db}}), mock
}

func TestListChatsRoute(t *testing.T) {
	e, mock := newMockServer(t)
	mock.ExpectQuery(`SELECT id, title, last_updated, overall_summary FROM chats`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "last_updated", "overall_summary"}).
			AddRow(int64(1), "EVs", time.Now(), nil))

	rec := do(t, e, http.MethodGet, "/api/chats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var chats []models.Chat
	if err := json.Unmarshal(rec.Body.Bytes(), &chats); err != nil || len(chats) != 1 || chats[0].Title != "EVs" {
		t.Fatalf("unexpected body %s (%v)", rec.Body.String(), err)
	}
}

func TestListChatsStorageFailure(t *testing.T) {
	e, mock := newMockServer(t)
	mock.ExpectQuery(`SELECT id, title`).WillReturnError(errors.New("connection refused"))

	rec := do(t, e, http.MethodGet, "/api/chats", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if body := decodeReply(t, rec); body["error"] == nil {
		t.Fatalf("expected error field, got %v", body)
	}
}

func TestCreateChatRoute(t *testing.T) {
	e, mock := newMockServer(t)
	mock.ExpectQuery(`INSERT INTO chats`).WithArgs("Energy").
		WillReturnRows(sqlmock.NewRows([]string{"id", "last_updated"}).AddRow(int64(4), time.Now()))

	rec := do(t, e, http.MethodPost, "/api/chats", `{"title":"Energy"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeReply(t, rec)
	if body["id"] != float64(4) || body["title"] != "Energy" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCreateChatRequiresTitle(t *testing.T) {
	e, _ := newMockServer(t)
	rec := do(t, e, http.MethodPost, "/api/chats", `{"title":"  "}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAddMessageRoute(t *testing.T) {
	e, mock := newMockServer(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO messages`).WithArgs(int64(3), "bot", "hi").
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(8), now))
	mock.ExpectExec(`UPDATE chats SET last_updated`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := do(t, e, http.MethodPost, "/api/chats/3/messages", `{"sender":"bot","content":"hi"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var m models.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil || m.ID != 8 || m.ChatID != 3 {
		t.Fatalf("unexpected message %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListMessagesRoute(t *testing.T) {
	e, mock := newMockServer(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT id, chat_id, sender, content, timestamp FROM messages`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "chat_id", "sender", "content", "timestamp"}).
			AddRow(int64(1), int64(3), "user", "solar", now).
			AddRow(int64(2), int64(3), "bot", "here you go", now.Add(time.Second)))

	rec := do(t, e, http.MethodGet, "/api/chats/3/messages", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var msgs []models.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != 1 || msgs[1].Sender != "bot" || msgs[1].ChatID != 3 {
		t.Fatalf("unexpected messages %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}

	rec = do(t, e, http.MethodGet, "/api/chats/abc/messages", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for chat id, got %d", rec.Code)
	}
}

func TestAddMessageValidation(t *testing.T) {
	e, _ := newMockServer(t)
	if rec := do(t, e, http.MethodPost, "/api/chats/3/messages", `{"sender":"system","content":"x"}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for sender, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/api/chats/abc/messages", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for chat id, got %d", rec.Code)
	}
}

func TestChatGreetsOnEmptyMessage(t *testing.T) {
	ft := &fakeTurner{}
	e := New(Options{Turner: ft})
	rec := do(t, e, http.MethodPost, "/chat", `{"message":""}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if body := decodeReply(t, rec); body["message"] != conversation.MsgGreeting {
		t.Fatalf("unexpected greeting %v", body)
	}
	if len(ft.calls) != 0 {
		t.Fatalf("greeting must not run a turn")
	}
}

func TestChatRequiresChatID(t *testing.T) {
	e := New(Options{Turner: &fakeTurner{}})
	if rec := do(t, e, http.MethodPost, "/chat", `{"message":"ev"}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestChatJSONReply(t *testing.T) {
	ft := &fakeTurner{}
	e := New(Options{Turner: ft})
	rec := do(t, e, http.MethodPost, "/chat", `{"chatId":42,"message":"ev batteries"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := decodeReply(t, rec)
	if body["kind"] != "prompt" || body["message"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
	if len(ft.calls) != 1 || ft.calls[0] != "42:ev batteries" {
		t.Fatalf("unexpected turn calls %v", ft.calls)
	}
}

func TestChatBusyAndError(t *testing.T) {
	busy := &fakeTurner{turn: func(context.Context, conversation.Progress) (models.Reply, error) {
		return conversation.BusyReply(), session.ErrBusy
	}}
	rec := do(t, New(Options{Turner: busy}), http.MethodPost, "/chat", `{"chatId":"a","message":"x"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}

	failing := &fakeTurner{turn: func(context.Context, conversation.Progress) (models.Reply, error) {
		return conversation.ErrorReply(), errors.New("boom")
	}}
	rec = do(t, New(Options{Turner: failing}), http.MethodPost, "/chat", `{"chatId":"a","message":"x"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if body := decodeReply(t, rec); body["message"] != conversation.MsgError {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestChatStreams(t *testing.T) {
	ft := &fakeTurner{flow: conversation.FlowStreaming, turn: func(ctx context.Context, p conversation.Progress) (models.Reply, error) {
		if err := p.Phase(ctx, conversation.PhaseFetching, 0, func(context.Context) error { return nil }); err != nil {
			return models.Reply{}, err
		}
		return models.Reply{Kind: models.ReplyDigest, Messages: []string{"**Overall Summary:**\nbalanced"}}, nil
	}}
	rec := do(t, New(Options{Turner: ft}), http.MethodPost, "/chat", `{"chatId":"7","message":"ev"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	want := "Fetching articles… ✓\n\n\n**Overall Summary:**\nbalanced"
	if rec.Body.String() != want {
		t.Fatalf("unexpected stream:\n got %q\nwant %q", rec.Body.String(), want)
	}
}

func TestChatStreamOnRequest(t *testing.T) {
	ft := &fakeTurner{}
	rec := do(t, New(Options{Turner: ft}), http.MethodPost, "/chat?stream=1", `{"chatId":"7","message":"ev"}`, nil)
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") || rec.Body.String() != "ok" {
		t.Fatalf("expected plain stream, got %q %q", rec.Header().Get("Content-Type"), rec.Body.String())
	}
	rec = do(t, New(Options{Turner: ft}), http.MethodPost, "/chat", `{"chatId":"7","message":"ev"}`, map[string]string{"Accept": "text/plain"})
	if rec.Body.String() != "ok" {
		t.Fatalf("expected plain stream via Accept, got %q", rec.Body.String())
	}
}

func TestChatStreamErrorLineWrittenOnce(t *testing.T) {
	boom := errors.New("summarizer exploded")
	ft := &fakeTurner{flow: conversation.FlowStreaming, turn: func(ctx context.Context, p conversation.Progress) (models.Reply, error) {
		err := p.Phase(ctx, conversation.PhaseReducing, 0, func(context.Context) error { return boom })
		return conversation.ErrorReply(), err
	}}
	rec := do(t, New(Options{Turner: ft}), http.MethodPost, "/chat", `{"chatId":"7","message":"ev"}`, nil)
	body := rec.Body.String()
	if body != conversation.PhaseReducing+" "+presenter.ErrorLine {
		t.Fatalf("unexpected stream %q", body)
	}

	outside := &fakeTurner{flow: conversation.FlowStreaming, turn: func(context.Context, conversation.Progress) (models.Reply, error) {
		return conversation.ErrorReply(), boom
	}}
	rec = do(t, New(Options{Turner: outside}), http.MethodPost, "/chat", `{"chatId":"7","message":"ev"}`, nil)
	if rec.Body.String() != presenter.ErrorLine {
		t.Fatalf("unexpected stream %q", rec.Body.String())
	}
}

func TestStaticFallbackAndHealth(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "script.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	e := New(Options{Server: config.ServerConfig{StaticDir: dir}, Turner: &fakeTurner{}})

	if rec := do(t, e, http.MethodGet, "/script.js", "", nil); rec.Body.String() != "console.log(1)" {
		t.Fatalf("expected asset, got %q", rec.Body.String())
	}
	if rec := do(t, e, http.MethodGet, "/chats/123", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "app") {
		t.Fatalf("expected index fallback, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, e, http.MethodGet, "/healthz", "", nil); rec.Body.String() != "ok" {
		t.Fatalf("unexpected health %q", rec.Body.String())
	}
}
