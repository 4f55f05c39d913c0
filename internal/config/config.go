// Package config holds ALL convo configuration loaded from config.json.
// This is the single source of truth for settings; the core packages treat
// it as a read-only object.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// GenerationDefaults are the sampling parameters handed to the backend on
// every request unless the caller overrides them.
type GenerationDefaults struct {
	Temperature       float64  `json:"temperature,omitempty"`
	TopP              float64  `json:"top_p,omitempty"`
	TopK              int      `json:"top_k,omitempty"`
	MaxNewTokens      int      `json:"max_new_tokens,omitempty"`
	RepetitionPenalty float64  `json:"repetition_penalty,omitempty"`
	TruncationLength  int      `json:"truncation_length,omitempty"`
	EOSTokens         []string `json:"eos_tokens,omitempty"`
	StoppingStrings   []string `json:"stopping_strings,omitempty"`
}

// ReasoningTag is an open/close tag pair delimiting a reasoning block that
// should be stripped from backend output.
type ReasoningTag struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Config is the full convo configuration.
type Config struct {
	// =========================================================================
	// PATHS
	// =========================================================================

	CharactersDir string `json:"characters_dir,omitempty"`
	HistoryDir    string `json:"history_dir,omitempty"`

	// Default character card loaded for new sessions.
	CharacterFile string `json:"character_file,omitempty"`

	// =========================================================================
	// BACKEND
	// =========================================================================

	// Backend selection: "llama-server", "openai", "gemini", "echo"
	Backend    string `json:"backend,omitempty"`
	BackendURL string `json:"backend_url,omitempty"`
	Model      string `json:"model,omitempty"`

	// API key for hosted backends. Overridden by CONVO_API_KEY.
	APIKey string `json:"api_key,omitempty"`

	Generation GenerationDefaults `json:"generation,omitempty"`

	// =========================================================================
	// DISPATCH
	// =========================================================================

	// Mode is the default bot mode: chat, chat_restricted, admin, notebook, query.
	Mode string `json:"mode,omitempty"`

	// LockTimeoutSeconds bounds the wait for the single generation slot.
	LockTimeoutSeconds float64 `json:"lock_timeout_seconds,omitempty"`

	// AnswerDelaySeconds is an artificial delay before each generation.
	AnswerDelaySeconds float64 `json:"answer_delay_seconds,omitempty"`

	// FloodIntervalSeconds is the minimum gap between turns per user.
	FloodIntervalSeconds float64 `json:"flood_interval_seconds,omitempty"`

	// =========================================================================
	// PROMPT MARKERS
	// =========================================================================

	ContextPromptBegin string `json:"context_prompt_begin,omitempty"`
	ContextPromptEnd   string `json:"context_prompt_end,omitempty"`
	UserPromptBegin    string `json:"user_prompt_begin,omitempty"`
	UserPromptEnd      string `json:"user_prompt_end,omitempty"`
	BotPromptBegin     string `json:"bot_prompt_begin,omitempty"`
	BotPromptEnd       string `json:"bot_prompt_end,omitempty"`

	// =========================================================================
	// COMMAND PREFIXES
	// =========================================================================

	RenameBotPrefixes     []string `json:"rename_bot_prefixes,omitempty"`
	RenameUserPrefixes    []string `json:"rename_user_prefixes,omitempty"`
	AppendContextPrefixes []string `json:"append_context_prefixes,omitempty"`
	ReplaceLastPrefixes   []string `json:"replace_last_prefixes,omitempty"`
	ImpersonatePrefixes   []string `json:"impersonate_prefixes,omitempty"`
	ImagePrefixes         []string `json:"image_prefixes,omitempty"`

	// Image side-channel prompt stubs. ImagePromptOf contains the literal
	// OBJECT placeholder replaced with the requested subject.
	ImagePromptSelf string `json:"image_prompt_self,omitempty"`
	ImagePromptOf   string `json:"image_prompt_of,omitempty"`

	// =========================================================================
	// POST-PROCESSING
	// =========================================================================

	DeleteReasoning bool           `json:"delete_reasoning,omitempty"`
	ReasoningTags   []ReasoningTag `json:"reasoning_tags,omitempty"`
}

// Bot modes.
const (
	ModeChat           = "chat"
	ModeChatRestricted = "chat_restricted"
	ModeAdmin          = "admin"
	ModeNotebook       = "notebook"
	ModeQuery          = "query"
)

// ChatLike reports whether the mode gets name-based stop sequences.
func ChatLike(mode string) bool {
	switch mode {
	case ModeChat, ModeChatRestricted, ModeAdmin:
		return true
	}
	return false
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		CharactersDir:         "characters",
		HistoryDir:            "history",
		Backend:               "echo",
		Mode:                  ModeChat,
		Generation: GenerationDefaults{
			Temperature:       0.7,
			TopP:              0.9,
			TopK:              40,
			MaxNewTokens:      512,
			RepetitionPenalty: 1.1,
			TruncationLength:  4096,
		},
		LockTimeoutSeconds:    60,
		FloodIntervalSeconds:  5,
		RenameBotPrefixes:     []string{"++"},
		RenameUserPrefixes:    []string{"--"},
		AppendContextPrefixes: []string{"=="},
		ReplaceLastPrefixes:   []string{"!!"},
		ImpersonatePrefixes:   []string{"##"},
		ImagePrefixes:         []string{"📷", "📸", "/image"},
		ImagePromptSelf:       "Give a detailed description of your appearance right now.",
		ImagePromptOf:         "Give a detailed description of OBJECT.",
		DeleteReasoning:       true,
		ReasoningTags: []ReasoningTag{
			{Open: "<think>", Close: "</think>"},
			{Open: "<reasoning>", Close: "</reasoning>"},
		},
	}
}

// Load reads the config file at path, applying defaults for absent fields.
// A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv("CONVO_API_KEY"); key != "" {
		c.APIKey = key
	}
}

// LockTimeout returns the generation-lock acquire timeout as a duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds * float64(time.Second))
}

// AnswerDelay returns the pre-generation delay as a duration.
func (c *Config) AnswerDelay() time.Duration {
	return time.Duration(c.AnswerDelaySeconds * float64(time.Second))
}

// FloodInterval returns the per-user minimum turn gap as a duration.
func (c *Config) FloodInterval() time.Duration {
	return time.Duration(c.FloodIntervalSeconds * float64(time.Second))
}
