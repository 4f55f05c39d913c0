// Package session owns the mutable per-user conversation record: names,
// persona context, greetings, and the ordered turn history that prompt
// assembly reads from. A Conversation is single-writer; callers serialize
// access per user (the flood check enforces the discipline at the edge).
package session

import (
	"time"
)

// Turn is one exchange unit in a conversation history.
type Turn struct {
	// Name is the display name the input was attributed to.
	Name string `json:"name_in"`
	// Input is the raw user text as typed.
	Input string `json:"text_in"`
	// Request is the formatted text that entered the prompt ("Name: text").
	Request string `json:"msg_in"`
	// Response is the bot side of the turn ("Bot: answer"). May be empty
	// independently of Request.
	Response string `json:"msg_out"`
	// PreviousResponses holds superseded responses for rollback, most
	// recently superseded last.
	PreviousResponses []string `json:"msg_previous_out,omitempty"`
	// MessageID is the transport's identifier for the delivered response,
	// kept so the transport can delete or edit it later.
	MessageID int64 `json:"msg_id"`
}

// Defaults applied by New and Reset.
const (
	DefaultUserName = "You"
	DefaultBotName  = "Bot"
	DefaultGreeting = "Hello."
)

// Conversation is the per-user state record.
type Conversation struct {
	ChatID   int64  `json:"chat_id"`
	CharFile string `json:"char_file"`

	UserName string `json:"user_name"`
	BotName  string `json:"bot_name"`

	Context string `json:"context"`
	Example string `json:"example"`

	Greeting           string   `json:"greeting"`
	AlternateGreetings []string `json:"alternate_greetings,omitempty"`

	TurnTemplate string `json:"turn_template,omitempty"`

	Language      string `json:"language,omitempty"`
	SpeechSpeaker string `json:"speech_speaker,omitempty"`
	SpeechModel   string `json:"speech_model,omitempty"`

	Turns []Turn `json:"messages"`

	// lastActivity is flood-control bookkeeping, not persisted.
	lastActivity time.Time

	// now is swappable for tests.
	now func() time.Time
}

// New returns a default-seeded conversation for a chat id.
func New(chatID int64) *Conversation {
	return &Conversation{
		ChatID:   chatID,
		UserName: DefaultUserName,
		BotName:  DefaultBotName,
		Greeting: DefaultGreeting,
		Language: "en",
		now:      time.Now,
	}
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.Turns) }

// Last returns a pointer to the newest turn, or nil when history is empty.
func (c *Conversation) Last() *Turn {
	if len(c.Turns) == 0 {
		return nil
	}
	return &c.Turns[len(c.Turns)-1]
}

// LastResponse returns the newest turn's response, or "" when history is
// empty.
func (c *Conversation) LastResponse() string {
	if last := c.Last(); last != nil {
		return last.Response
	}
	return ""
}

// AppendTurn adds a turn attributed to the current user name. The request
// text mirrors the input, the response starts as given.
func (c *Conversation) AppendTurn(input, response string) {
	c.Turns = append(c.Turns, Turn{
		Name:     c.UserName,
		Input:    input,
		Request:  input,
		Response: response,
	})
}

// ExtendLastTurn appends "\n"+text to the request and/or response of the
// newest turn. No-op when history is empty or an addition is "".
func (c *Conversation) ExtendLastTurn(requestAdd, responseAdd string) {
	last := c.Last()
	if last == nil {
		return
	}
	if requestAdd != "" {
		last.Request += "\n" + requestAdd
	}
	if responseAdd != "" {
		last.Response += "\n" + responseAdd
	}
}

// SetLastTurn overwrites individual fields of the newest turn. Nil fields
// are left untouched. No-op when history is empty.
func (c *Conversation) SetLastTurn(input, name, request, response *string, messageID *int64) {
	last := c.Last()
	if last == nil {
		return
	}
	if input != nil {
		last.Input = *input
	}
	if name != nil {
		last.Name = *name
	}
	if request != nil {
		last.Request = *request
	}
	if response != nil {
		last.Response = *response
	}
	if messageID != nil {
		last.MessageID = *messageID
	}
}

// TruncateLast removes the newest turn and returns its input text and
// transport message id so the caller can delete the delivered message.
// ok is false when history is empty.
func (c *Conversation) TruncateLast() (input string, messageID int64, ok bool) {
	if len(c.Turns) == 0 {
		return "", 0, false
	}
	last := c.Turns[len(c.Turns)-1]
	c.Turns = c.Turns[:len(c.Turns)-1]
	return last.Input, last.MessageID, true
}

// RollbackLastResponse scans newest-first for the turn with the given
// transport message id that has at least one superseded response, then
// swaps: the most recently superseded response becomes current, and the
// old current is pushed onto the front of the stack. Repeated calls cycle
// through the stored responses without losing any of them. ok is false
// when no eligible turn exists.
func (c *Conversation) RollbackLastResponse(messageID int64) (response string, ok bool) {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		t := &c.Turns[i]
		if t.MessageID != messageID || len(t.PreviousResponses) == 0 {
			continue
		}
		current := t.Response
		t.Response = t.PreviousResponses[len(t.PreviousResponses)-1]
		t.PreviousResponses = append([]string{current}, t.PreviousResponses[:len(t.PreviousResponses)-1]...)
		return t.Response, true
	}
	return "", false
}

// SwitchGreeting rotates the greeting with the newest alternate and clears
// the history. The displaced greeting goes to the front of the alternates,
// so the total greeting count is conserved. Returns false when there are
// no alternates.
func (c *Conversation) SwitchGreeting() bool {
	if len(c.AlternateGreetings) == 0 {
		return false
	}
	displaced := c.Greeting
	c.Greeting = c.AlternateGreetings[len(c.AlternateGreetings)-1]
	c.AlternateGreetings = append([]string{displaced}, c.AlternateGreetings[:len(c.AlternateGreetings)-1]...)
	c.Turns = nil
	return true
}

// CheckFlooding returns true and stamps the activity time when at least
// minInterval has elapsed since the previous stamp. Otherwise returns
// false without updating, so a throttled caller stays throttled.
func (c *Conversation) CheckFlooding(minInterval time.Duration) bool {
	if c.now == nil {
		c.now = time.Now
	}
	now := c.now()
	if now.Sub(c.lastActivity) > minInterval {
		c.lastActivity = now
		return true
	}
	return false
}

// Reset returns persona and template fields to defaults and clears the
// history. Identity and locale fields (chat id, language, voice) survive.
func (c *Conversation) Reset() {
	c.UserName = DefaultUserName
	c.BotName = DefaultBotName
	c.Context = ""
	c.Example = ""
	c.TurnTemplate = ""
	c.Greeting = DefaultGreeting
	c.AlternateGreetings = nil
	c.Turns = nil
}

// HistoryString concatenates all request and response texts in order.
func (c *Conversation) HistoryString() string {
	out := ""
	for _, t := range c.Turns {
		if t.Request != "" {
			out += t.Request
		}
		if t.Response != "" {
			out += t.Response
		}
	}
	return out
}

// HistoryList returns the non-empty request/response texts in order.
func (c *Conversation) HistoryList() []string {
	var out []string
	for _, t := range c.Turns {
		if t.Request != "" {
			out = append(out, t.Request)
		}
		if t.Response != "" {
			out = append(out, t.Response)
		}
	}
	return out
}
