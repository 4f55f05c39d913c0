package session

import (
	"encoding/json"

	"convo/internal/logging"
)

// persisted is the on-disk shape. It carries both the current turn-record
// fields and the legacy parallel-array fields so old history files load.
type persisted struct {
	ChatID   int64  `json:"chat_id"`
	CharFile string `json:"char_file"`

	UserName string `json:"user_name"`
	BotName  string `json:"bot_name"`

	// Aliases written by the previous implementation.
	LegacyUserName string `json:"name1,omitempty"`
	LegacyBotName  string `json:"name2,omitempty"`

	Context string `json:"context"`
	Example string `json:"example"`

	Greeting           string   `json:"greeting"`
	AlternateGreetings []string `json:"alternate_greetings,omitempty"`

	TurnTemplate  string `json:"turn_template,omitempty"`
	Language      string `json:"language,omitempty"`
	SpeechSpeaker string `json:"speech_speaker,omitempty"`
	SpeechModel   string `json:"speech_model,omitempty"`

	Turns []json.RawMessage `json:"messages,omitempty"`

	// Legacy parallel-array history: flat alternating request/response
	// strings, user inputs, and transport message ids.
	LegacyHistory []string `json:"history,omitempty"`
	LegacyUserIn  []string `json:"user_in,omitempty"`
	LegacyMsgIDs  []int64  `json:"msg_id,omitempty"`
}

// MarshalJSON serializes the conversation for persistence.
func (c *Conversation) MarshalJSON() ([]byte, error) {
	p := persisted{
		ChatID:             c.ChatID,
		CharFile:           c.CharFile,
		UserName:           c.UserName,
		BotName:            c.BotName,
		Context:            c.Context,
		Example:            c.Example,
		Greeting:           c.Greeting,
		AlternateGreetings: c.AlternateGreetings,
		TurnTemplate:       c.TurnTemplate,
		Language:           c.Language,
		SpeechSpeaker:      c.SpeechSpeaker,
		SpeechModel:        c.SpeechModel,
	}
	for _, t := range c.Turns {
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		p.Turns = append(p.Turns, raw)
	}
	return json.Marshal(p)
}

// LoadJSON restores the conversation from persisted data. Missing fields
// keep their defaults; a parse failure is logged and leaves the
// conversation untouched, so callers always end up with a usable object.
func (c *Conversation) LoadJSON(data []byte) bool {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		logging.Get(logging.CategorySession).Error("history parse failed: %v", err)
		return false
	}

	fresh := New(c.ChatID)
	if p.ChatID != 0 {
		fresh.ChatID = p.ChatID
	}
	fresh.CharFile = p.CharFile
	if p.UserName != "" {
		fresh.UserName = p.UserName
	} else if p.LegacyUserName != "" {
		fresh.UserName = p.LegacyUserName
	}
	if p.BotName != "" {
		fresh.BotName = p.BotName
	} else if p.LegacyBotName != "" {
		fresh.BotName = p.LegacyBotName
	}
	fresh.Context = p.Context
	fresh.Example = p.Example
	if p.Greeting != "" {
		fresh.Greeting = p.Greeting
	}
	fresh.AlternateGreetings = p.AlternateGreetings
	fresh.TurnTemplate = p.TurnTemplate
	if p.Language != "" {
		fresh.Language = p.Language
	}
	fresh.SpeechSpeaker = p.SpeechSpeaker
	fresh.SpeechModel = p.SpeechModel

	switch {
	case len(p.Turns) > 0:
		for _, raw := range p.Turns {
			t, ok := decodeTurn(raw)
			if !ok {
				logging.Get(logging.CategorySession).Error("skipping malformed turn record")
				continue
			}
			fresh.Turns = append(fresh.Turns, t)
		}
	case len(p.LegacyHistory) > 0:
		fresh.Turns = upcastLegacy(p.LegacyHistory, p.LegacyUserIn, p.LegacyMsgIDs)
		logging.Get(logging.CategorySession).Info(
			"upcast legacy history: %d entries -> %d turns", len(p.LegacyHistory), len(fresh.Turns))
	}

	*c = *fresh
	return true
}

// decodeTurn accepts both a turn object and the older string-encoded form
// (each history entry was itself a JSON string).
func decodeTurn(raw json.RawMessage) (Turn, bool) {
	var t Turn
	if err := json.Unmarshal(raw, &t); err == nil {
		return t, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Turn{}, false
	}
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return Turn{}, false
	}
	return t, true
}

// upcastLegacy converts the parallel-array history shape into turn records.
// The flat history alternates request/response; user inputs and message ids
// line up per pair where present.
func upcastLegacy(history, userIn []string, msgIDs []int64) []Turn {
	var turns []Turn
	for i := 0; i*2 < len(history); i++ {
		t := Turn{Request: history[i*2]}
		if i*2+1 < len(history) {
			t.Response = history[i*2+1]
		}
		if i < len(userIn) {
			t.Input = userIn[i]
		} else {
			t.Input = t.Request
		}
		if i < len(msgIDs) {
			t.MessageID = msgIDs[i]
		}
		turns = append(turns, t)
	}
	return turns
}
