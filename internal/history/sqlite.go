package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"convo/internal/logging"
	"convo/internal/session"
)

// SQLiteStore keeps conversation records in a single sqlite database,
// keyed by chat id and character file. The record payload is the same
// JSON the file store writes, so the two stores are interchangeable.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore creates or opens the history database at dir/history.db.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	dbPath := filepath.Join(dir, "history.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		chat_id   INTEGER NOT NULL,
		char_file TEXT NOT NULL,
		data      TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (chat_id, char_file)
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_chat ON conversations(chat_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save upserts the conversation under its character key and the default
// (empty) key.
func (s *SQLiteStore) Save(conv *session.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	charFile := conv.CharFile
	if charFile == "" {
		charFile = conv.BotName
	}
	now := time.Now().UTC()
	for _, key := range []string{charFile, ""} {
		_, err := s.db.Exec(`
			INSERT INTO conversations (chat_id, char_file, data, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(chat_id, char_file) DO UPDATE SET
				data = excluded.data,
				updated_at = excluded.updated_at`,
			conv.ChatID, key, string(data), now)
		if err != nil {
			return fmt.Errorf("save history: %w", err)
		}
	}
	return nil
}

// Load hydrates from the chat-id+character record, falling back to the
// bot-name key for rows written before the character file was known.
func (s *SQLiteStore) Load(conv *session.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{conv.CharFile, conv.BotName} {
		if key == "" {
			continue
		}
		if s.loadKey(conv, key) {
			return true
		}
	}
	return false
}

// LoadDefault hydrates from the empty-key record for the chat id.
func (s *SQLiteStore) LoadDefault(conv *session.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadKey(conv, "")
}

func (s *SQLiteStore) loadKey(conv *session.Conversation, key string) bool {
	var data string
	err := s.db.QueryRow(
		`SELECT data FROM conversations WHERE chat_id = ? AND char_file = ?`,
		conv.ChatID, key).Scan(&data)
	if err != nil {
		if err != sql.ErrNoRows {
			logging.Get(logging.CategorySession).Error("query history: %v", err)
		}
		return false
	}
	if !conv.LoadJSON([]byte(data)) {
		return false
	}
	if conv.CharFile == "" {
		conv.CharFile = conv.BotName
	}
	return true
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
