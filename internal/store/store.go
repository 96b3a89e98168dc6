// Package store persists chats and their messages in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/newsdigest/models"
)

// ErrNotFound is returned when the referenced chat does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalid is returned for input the schema would reject.
var ErrInvalid = errors.New("invalid input")

type Store struct {
	DB *sql.DB
}

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// ListChats returns every chat, most recently updated first.
func (s *Store) ListChats(ctx context.Context) ([]models.Chat, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, title, last_updated, overall_summary FROM chats ORDER BY last_updated DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()
	out := []models.Chat{}
	for rows.Next() {
		var c models.Chat
		var summary sql.NullString
		if err := rows.Scan(&c.ID, &c.Title, &c.LastUpdated, &summary); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		if summary.Valid {
			c.OverallSummary = &summary.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateChat inserts a chat with the given title.
func (s *Store) CreateChat(ctx context.Context, title string) (models.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Chat{}, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	c := models.Chat{Title: title}
	err := s.DB.QueryRowContext(ctx, `INSERT INTO chats (title) VALUES ($1) RETURNING id, last_updated`, title).Scan(&c.ID, &c.LastUpdated)
	if err != nil {
		return models.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return c, nil
}

// ListMessages returns the messages of a chat in timestamp order.
func (s *Store) ListMessages(ctx context.Context, chatID int64) ([]models.Message, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, chat_id, sender, content, timestamp FROM messages WHERE chat_id=$1 ORDER BY timestamp ASC, id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	out := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMessage stores a message and bumps the chat's last_updated in the same
// transaction.
func (s *Store) AddMessage(ctx context.Context, chatID int64, sender, content string) (models.Message, error) {
	if sender != models.SenderUser && sender != models.SenderBot {
		return models.Message{}, fmt.Errorf("%w: sender must be %q or %q", ErrInvalid, models.SenderUser, models.SenderBot)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Message{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m := models.Message{ChatID: chatID, Sender: sender, Content: content}
	err = tx.QueryRowContext(ctx, `INSERT INTO messages (chat_id, sender, content) VALUES ($1,$2,$3) RETURNING id, timestamp`, chatID, sender, content).Scan(&m.ID, &m.Timestamp)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := touch(ctx, tx, chatID, m.Timestamp); err != nil {
		return models.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

// SetOverallSummary records the final digest summary on a chat.
func (s *Store) SetOverallSummary(ctx context.Context, chatID int64, summary string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE chats SET overall_summary=$1, last_updated=NOW() WHERE id=$2`, summary, chatID)
	if err != nil {
		return fmt.Errorf("set overall summary: %w", err)
	}
	return requireRow(res)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func touch(ctx context.Context, db execer, chatID int64, at time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE chats SET last_updated=$1 WHERE id=$2`, at, chatID)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
