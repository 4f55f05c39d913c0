// Package dialog implements the conversation pipeline: typed command
// routing, token-budgeted prompt assembly, serialized generation dispatch,
// and answer post-processing.
package dialog

import (
	"strings"

	"convo/internal/config"
)

// Kind is the closed set of command kinds a raw input can classify into.
// Classification happens once at the transport boundary; the dispatcher
// switches over the typed value.
type Kind int

const (
	// KindMessage is an ordinary conversation turn.
	KindMessage Kind = iota
	// KindRenameBot permanently renames the bot persona.
	KindRenameBot
	// KindRenameUser permanently renames the user.
	KindRenameUser
	// KindAppendContext appends text to the persona context.
	KindAppendContext
	// KindReplaceLast overwrites the last response verbatim.
	KindReplaceLast
	// KindDeleteWord trims the last block/sentence/word off the last response.
	KindDeleteWord
	// KindRegenerate replays the last turn for a fresh answer.
	KindRegenerate
	// KindImpersonate asks the backend to produce the user's next line.
	KindImpersonate
	// KindImpersonateAs is KindImpersonate for an arbitrary speaker name.
	KindImpersonateAs
	// KindNext asks for another bot line without user input.
	KindNext
	// KindContinue extends the last bot line in place.
	KindContinue
	// KindImage is the image-generation side channel.
	KindImage
)

// Command is a classified input: the kind plus its payload (message text,
// new name, context addition, replacement text, speaker name, or image
// subject, depending on the kind).
type Command struct {
	Kind Kind
	Text string
}

// Transport-level sentinels for button-style commands.
const (
	SentinelRegenerate  = "/regenerate"
	SentinelDeleteWord  = "/delete_word"
	SentinelImpersonate = "/impersonate"
	SentinelNext        = "/next"
	SentinelContinue    = "/continue"
)

// ParseCommand classifies raw input text. Rules are checked in fixed
// priority order; the first match wins.
func ParseCommand(text string, cfg *config.Config) Command {
	if rest, ok := matchPrefix(text, cfg.RenameBotPrefixes); ok {
		return Command{Kind: KindRenameBot, Text: rest}
	}
	if rest, ok := matchPrefix(text, cfg.RenameUserPrefixes); ok {
		return Command{Kind: KindRenameUser, Text: rest}
	}
	if rest, ok := matchPrefix(text, cfg.AppendContextPrefixes); ok {
		return Command{Kind: KindAppendContext, Text: rest}
	}
	if rest, ok := matchPrefix(text, cfg.ReplaceLastPrefixes); ok {
		return Command{Kind: KindReplaceLast, Text: rest}
	}

	switch text {
	case SentinelDeleteWord:
		return Command{Kind: KindDeleteWord}
	case SentinelRegenerate:
		return Command{Kind: KindRegenerate}
	case SentinelImpersonate:
		return Command{Kind: KindImpersonate}
	case SentinelNext:
		return Command{Kind: KindNext}
	case SentinelContinue:
		return Command{Kind: KindContinue}
	}

	if rest, ok := matchPrefix(text, cfg.ImagePrefixes); ok {
		return Command{Kind: KindImage, Text: strings.TrimSpace(rest)}
	}
	if rest, ok := matchPrefix(text, cfg.ImpersonatePrefixes); ok {
		return Command{Kind: KindImpersonateAs, Text: rest}
	}
	return Command{Kind: KindMessage, Text: text}
}

func matchPrefix(text string, prefixes []string) (rest string, ok bool) {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(text, p) {
			return text[len(p):], true
		}
	}
	return "", false
}
