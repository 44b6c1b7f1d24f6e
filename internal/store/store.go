package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mbeoliero/chatsync/internal/entity"
)

// Store is the local snapshot cache. A restarted client loads the last known
// conversation list from here and renders immediately, before the first
// resync against the server completes.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	conversation_id TEXT PRIMARY KEY,
	kind            INTEGER NOT NULL,
	peer_user_id    TEXT NOT NULL DEFAULT '',
	is_favorite     INTEGER NOT NULL DEFAULT 0,
	unread_count    INTEGER NOT NULL DEFAULT 0,
	last_activity   INTEGER NOT NULL DEFAULT 0,
	last_msg        TEXT NOT NULL DEFAULT '{}',
	participants    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_conversations_activity ON conversations(last_activity DESC);

CREATE TABLE IF NOT EXISTS messages (
	msg_id          TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	sender_id       TEXT NOT NULL,
	sender_name     TEXT NOT NULL DEFAULT '',
	text            TEXT NOT NULL DEFAULT '',
	media_kind      INTEGER NOT NULL DEFAULT 0,
	sent_at         INTEGER NOT NULL,
	thread_replies  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, sent_at);
`

// Open opens (creating if needed) the snapshot database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveConversations replaces the cached conversation list with convs
func (s *Store) SaveConversations(ctx context.Context, convs []*entity.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversations
			(conversation_id, kind, peer_user_id, is_favorite, unread_count, last_activity, last_msg, participants)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, conv := range convs {
		lastMsg, err := json.Marshal(conv.LastMessage)
		if err != nil {
			return err
		}
		participants, err := json.Marshal(conv.Participants)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			conv.ConversationId, conv.Kind, conv.PeerUserId,
			boolToInt(conv.IsFavorite), conv.UnreadCount, conv.LastActivity,
			string(lastMsg), string(participants),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadConversations loads the cached conversation list, most recent first
func (s *Store) LoadConversations(ctx context.Context) ([]*entity.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, kind, peer_user_id, is_favorite, unread_count, last_activity, last_msg, participants
		FROM conversations
		ORDER BY last_activity DESC, conversation_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*entity.Conversation
	for rows.Next() {
		var (
			conv         entity.Conversation
			favorite     int
			lastMsg      string
			participants string
		)
		if err := rows.Scan(
			&conv.ConversationId, &conv.Kind, &conv.PeerUserId,
			&favorite, &conv.UnreadCount, &conv.LastActivity,
			&lastMsg, &participants,
		); err != nil {
			return nil, err
		}
		conv.IsFavorite = favorite != 0
		if err := json.Unmarshal([]byte(lastMsg), &conv.LastMessage); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(participants), &conv.Participants); err != nil {
			return nil, err
		}
		convs = append(convs, &conv)
	}
	return convs, rows.Err()
}

// SaveMessages upserts message history for a conversation. Confirmed ids
// only; provisional entries never reach the cache.
func (s *Store) SaveMessages(ctx context.Context, msgs []*entity.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages
			(msg_id, conversation_id, sender_id, sender_name, text, media_kind, sent_at, thread_replies)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id) DO UPDATE SET
			text = excluded.text,
			thread_replies = excluded.thread_replies`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, msg := range msgs {
		if !msg.Confirmed() {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			msg.Id, msg.ConversationId, msg.SenderId, msg.SenderName,
			msg.Text, msg.MediaKind, msg.SentAt, msg.ThreadReplyCount,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadMessages loads cached history for a conversation, oldest first
func (s *Store) LoadMessages(ctx context.Context, conversationId string, limit int) ([]*entity.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT msg_id, conversation_id, sender_id, sender_name, text, media_kind, sent_at, thread_replies
		FROM messages
		WHERE conversation_id = ?
		ORDER BY sent_at DESC
		LIMIT ?`, conversationId, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*entity.Message
	for rows.Next() {
		var msg entity.Message
		if err := rows.Scan(
			&msg.Id, &msg.ConversationId, &msg.SenderId, &msg.SenderName,
			&msg.Text, &msg.MediaKind, &msg.SentAt, &msg.ThreadReplyCount,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
