package dialog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"convo/internal/character"
	"convo/internal/config"
	"convo/internal/generator"
	"convo/internal/history"
	"convo/internal/logging"
	"convo/internal/session"
)

// Service is the top-level turn-processing entry point. It owns the
// per-chat conversation registry, hydrates new sessions from character
// cards and persisted history, applies flood control, and persists state
// after each turn. Nothing below it propagates an unhandled failure.
type Service struct {
	cfg   *config.Config
	disp  *Dispatcher
	store history.Store

	mu       sync.Mutex
	sessions map[int64]*session.Conversation
}

// NewService wires the service around a dispatcher and a history store.
// The store may be nil; sessions are then memory-only.
func NewService(cfg *config.Config, disp *Dispatcher, store history.Store) *Service {
	return &Service{
		cfg:      cfg,
		disp:     disp,
		store:    store,
		sessions: make(map[int64]*session.Conversation),
	}
}

// Dispatcher exposes the underlying dispatcher for model management.
func (s *Service) Dispatcher() *Dispatcher { return s.disp }

// Session returns the conversation for a chat id, creating and hydrating
// it on first contact: character card first, then persisted history on
// top (names and turns survive restarts).
func (s *Service) Session(chatID int64) *session.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.sessions[chatID]; ok {
		return conv
	}
	conv := session.New(chatID)
	character.Load(conv, s.cfg.CharactersDir, s.cfg.CharacterFile)
	if s.store != nil {
		if !s.store.Load(conv) {
			s.store.LoadDefault(conv)
		}
	}
	s.sessions[chatID] = conv
	return conv
}

// Result is the outcome of one processed turn.
type Result struct {
	Answer string
	Action Action
}

// ProcessMessage runs one raw input through flood control, command
// classification, and the dispatcher, then persists the conversation.
func (s *Service) ProcessMessage(ctx context.Context, chatID int64, text string) Result {
	conv := s.Session(chatID)

	if interval := s.cfg.FloodInterval(); interval > 0 && !conv.CheckFlooding(interval) {
		logging.Get(logging.CategoryDispatch).Debug("chat %d throttled", chatID)
		return Result{Action: ActionNothing}
	}

	cmd := ParseCommand(text, s.cfg)
	answer, action := s.disp.ProcessTurn(ctx, conv, cmd, s.cfg.Mode)

	if action != ActionNothing {
		s.persist(conv)
	}
	return Result{Answer: answer, Action: action}
}

// ProcessMessageAsync runs ProcessMessage on its own goroutine and
// delivers the result on the returned channel. Cancelling ctx stops the
// caller's wait, not the in-flight generation; the dispatcher always
// releases its slot on its own.
func (s *Service) ProcessMessageAsync(ctx context.Context, chatID int64, text string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- s.ProcessMessage(context.WithoutCancel(ctx), chatID, text)
	}()
	return ch
}

// SwitchCharacter loads a different character card into the chat's
// conversation and restores any saved history for that pairing.
func (s *Service) SwitchCharacter(chatID int64, fileName string) string {
	conv := s.Session(chatID)
	character.Load(conv, s.cfg.CharactersDir, fileName)
	if s.store != nil {
		s.store.Load(conv)
	}
	s.persist(conv)
	return conv.BotName
}

// SwitchGreeting rotates to the next alternate greeting, clearing the
// history. Returns false when the card has no alternates.
func (s *Service) SwitchGreeting(chatID int64) bool {
	conv := s.Session(chatID)
	if !conv.SwitchGreeting() {
		return false
	}
	s.persist(conv)
	return true
}

// Reset returns the chat's conversation to defaults.
func (s *Service) Reset(chatID int64) {
	conv := s.Session(chatID)
	conv.Reset()
	s.persist(conv)
}

// TruncateLast drops the newest turn, returning its input text and
// transport message id for the caller to act on.
func (s *Service) TruncateLast(chatID int64) (input string, messageID int64, ok bool) {
	conv := s.Session(chatID)
	input, messageID, ok = conv.TruncateLast()
	if ok {
		s.persist(conv)
	}
	return input, messageID, ok
}

// RollbackLastResponse swaps the identified turn's response with its most
// recently superseded one.
func (s *Service) RollbackLastResponse(chatID, messageID int64) (string, bool) {
	conv := s.Session(chatID)
	response, ok := conv.RollbackLastResponse(messageID)
	if ok {
		s.persist(conv)
	}
	return response, ok
}

// StartCardWatcher watches the characters directory and rehydrates any
// live session whose card file changed, keeping its turn history. The
// returned watcher must be closed at shutdown.
func (s *Service) StartCardWatcher() (*character.Watcher, error) {
	w, err := character.Watch(s.cfg.CharactersDir)
	if err != nil {
		return nil, err
	}
	go func() {
		for name := range w.Changes {
			s.reloadCard(name)
		}
	}()
	return w, nil
}

func (s *Service) reloadCard(fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.sessions {
		if conv.CharFile != fileName {
			continue
		}
		turns := conv.Turns
		character.Load(conv, s.cfg.CharactersDir, fileName)
		conv.Turns = turns
		logging.Get(logging.CategoryCharacter).Info(
			"reloaded card %s for chat %d", fileName, conv.ChatID)
	}
}

// ConversationInfo renders a short token-accounting summary for a chat.
func (s *Service) ConversationInfo(ctx context.Context, chatID int64) string {
	conv := s.Session(chatID)
	g := s.disp.Generator()

	contextTokens := generator.TokenCount(ctx, g, conv.Context)
	greetingTokens := generator.TokenCount(ctx, g, conv.Greeting)
	historyTokens := generator.TokenCount(ctx, g, conv.HistoryString())

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s (%s)\n", conv.BotName, conv.CharFile)
	fmt.Fprintf(&b, "Turns: %d\n", conv.Len())
	fmt.Fprintf(&b, "Context tokens: %d\n", contextTokens)
	fmt.Fprintf(&b, "Greeting tokens: %d\n", greetingTokens)
	fmt.Fprintf(&b, "History tokens: %d\n", historyTokens)
	fmt.Fprintf(&b, "Budget: %d", s.cfg.Generation.TruncationLength)
	return b.String()
}

// Characters lists the loadable card files.
func (s *Service) Characters() []string {
	cards, err := character.ListCards(s.cfg.CharactersDir)
	if err != nil {
		logging.Get(logging.CategoryCharacter).Error("list cards: %v", err)
		return nil
	}
	return cards
}

func (s *Service) persist(conv *session.Conversation) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(conv); err != nil {
		logging.Get(logging.CategorySession).Error("save chat %d: %v", conv.ChatID, err)
	}
}
