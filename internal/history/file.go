package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"convo/internal/logging"
	"convo/internal/session"
)

// FileStore persists conversations as JSON files: one per chat id and one
// per chat-id+character pair, matching the layout older installs already
// have on disk.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileStore creates a file-backed store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("history directory must be provided")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) charPath(conv *session.Conversation) string {
	charFile := conv.CharFile
	if charFile == "" {
		charFile = conv.BotName
	}
	return filepath.Join(s.baseDir, fmt.Sprintf("%d%s.json", conv.ChatID, charFile))
}

func (s *FileStore) defaultPath(chatID int64) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%d.json", chatID))
}

// Save writes the conversation to its character-specific file and the
// chat-id default file. Writes are atomic (temp file + rename).
func (s *FileStore) Save(conv *session.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.writeAtomic(s.charPath(conv), data); err != nil {
		return err
	}
	return s.writeAtomic(s.defaultPath(conv.ChatID), data)
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.baseDir, "history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close history file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Load hydrates from the chat-id+character file, falling back to the
// legacy chat-id+bot-name file.
func (s *FileStore) Load(conv *session.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := []string{
		filepath.Join(s.baseDir, fmt.Sprintf("%d%s.json", conv.ChatID, conv.CharFile)),
		filepath.Join(s.baseDir, fmt.Sprintf("%d%s.json", conv.ChatID, conv.BotName)),
	}
	for _, path := range paths {
		if s.loadPath(conv, path) {
			return true
		}
	}
	return false
}

// LoadDefault hydrates from the chat-id-only file.
func (s *FileStore) LoadDefault(conv *session.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadPath(conv, s.defaultPath(conv.ChatID))
}

func (s *FileStore) loadPath(conv *session.Conversation, path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Get(logging.CategorySession).Error("read history %s: %v", path, err)
		}
		return false
	}
	if !conv.LoadJSON(data) {
		return false
	}
	if conv.CharFile == "" {
		conv.CharFile = conv.BotName
	}
	return true
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }
