package dialog

import (
	"context"
	"regexp"
	"strings"

	"convo/internal/config"
	"convo/internal/generator"
	"convo/internal/logging"
	"convo/internal/session"
)

// colonSpaces collapses runs of spaces after a colon; some backends are
// sensitive to the extra whitespace left by marker concatenation.
var colonSpaces = regexp.MustCompile(`: +`)

// BuildPrompt assembles the generation prompt: the marker-wrapped persona
// context followed by as much of the conversation tail as fits the token
// budget. Segments are walked newest to oldest and dropped whole; an older
// segment is never kept when a newer one was dropped.
func BuildPrompt(ctx context.Context, g generator.Generator, conv *session.Conversation, cfg *config.Config, truncationLength int) string {
	wrapped := cfg.ContextPromptBegin + strings.TrimRight(conv.Context, "\n") + "\n" + cfg.ContextPromptEnd

	available := truncationLength - generator.TokenCount(ctx, g, wrapped)
	if available < 0 {
		logging.Get(logging.CategoryPrompt).Warn(
			"context alone exceeds token budget %d for chat %d", truncationLength, conv.ChatID)
		available = 0
	}

	segments := promptSegments(conv, cfg)

	tail := ""
	for i := len(segments) - 1; i >= 0; i-- {
		s := segments[i]
		if s != "" {
			s = "\n" + s
		}
		n := generator.TokenCount(ctx, g, s)
		if n > available {
			break
		}
		tail = s + tail
		available -= n
	}

	return colonSpaces.ReplaceAllString(wrapped+tail, ": ")
}

// promptSegments builds the candidate list: example, formatted greeting,
// then up to two marker-wrapped segments per turn. The closing bot marker
// is stripped from the final segment when it ends a response, so the
// backend continues the turn instead of closing it.
func promptSegments(conv *session.Conversation, cfg *config.Config) []string {
	var segments []string
	if conv.Example != "" {
		segments = append(segments, conv.Example)
	}
	if conv.Greeting != "" {
		segments = append(segments, "\n"+conv.BotName+": "+conv.Greeting)
	}
	for _, t := range conv.Turns {
		if t.Request != "" {
			segments = append(segments, cfg.UserPromptBegin+t.Request+cfg.UserPromptEnd)
		}
		if t.Response != "" {
			segments = append(segments, cfg.BotPromptBegin+t.Response+cfg.BotPromptEnd)
		}
	}
	if cfg.BotPromptEnd != "" && len(segments) > 0 && conv.LastResponse() != "" {
		last := len(segments) - 1
		segments[last] = strings.TrimSuffix(segments[last], cfg.BotPromptEnd)
	}
	return segments
}
