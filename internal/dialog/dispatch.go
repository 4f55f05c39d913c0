package dialog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"convo/internal/config"
	"convo/internal/generator"
	"convo/internal/logging"
	"convo/internal/session"
)

// Action tells the transport layer what to do with the returned text.
type Action int

const (
	// ActionSend delivers the text as a normal chat message.
	ActionSend Action = iota
	// ActionSystem delivers an informational message; nothing is deleted.
	ActionSystem
	// ActionDeleteLast asks the transport to replace the previous message.
	ActionDeleteLast
	// ActionNothing means no new content was produced.
	ActionNothing
	// ActionImage routes the text to the image-generation side channel.
	ActionImage
)

// Answer sentinels, distinct so callers can tell "backend unreachable"
// from "backend produced nothing".
const (
	AnswerFail  = "Generator fail"
	AnswerEmpty = "Empty answer"
)

// Dispatcher serializes access to the single generation backend. The
// backend is assumed to be one GPU/CPU resource that cannot serve
// concurrent requests, so one weighted slot guards the whole path from
// token counting through post-processing.
type Dispatcher struct {
	cfg  *config.Config
	slot *semaphore.Weighted

	mu  sync.RWMutex
	gen generator.Generator
}

// NewDispatcher wires a dispatcher around the given backend.
func NewDispatcher(cfg *config.Config, gen generator.Generator) *Dispatcher {
	return &Dispatcher{
		cfg:  cfg,
		slot: semaphore.NewWeighted(1),
		gen:  gen,
	}
}

// Generator returns the current backend.
func (d *Dispatcher) Generator() generator.Generator {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.gen
}

// SetGenerator swaps the backend. Callers should drain in-flight work
// first; the swap itself is safe at any time.
func (d *Dispatcher) SetGenerator(gen generator.Generator) {
	d.mu.Lock()
	d.gen = gen
	d.mu.Unlock()
}

// Models lists the backend's switchable models, or nil when the backend
// does not support switching.
func (d *Dispatcher) Models(ctx context.Context) []string {
	g := d.Generator()
	if !g.ModelSwitchSupported() {
		return nil
	}
	return g.ListModels(ctx)
}

// SwitchModel loads the named model while holding the generation slot.
func (d *Dispatcher) SwitchModel(ctx context.Context, name string) bool {
	g := d.Generator()
	if !g.ModelSwitchSupported() {
		return false
	}
	lockCtx, cancel := context.WithTimeout(ctx, d.cfg.LockTimeout())
	defer cancel()
	if err := d.slot.Acquire(lockCtx, 1); err != nil {
		return false
	}
	defer d.slot.Release(1)
	return g.LoadModel(ctx, name)
}

// ProcessTurn runs one classified command against the conversation and
// returns the display text plus its action. Short-circuit commands mutate
// state and return without touching the backend; everything else goes
// through the serialized generation path.
func (d *Dispatcher) ProcessTurn(ctx context.Context, conv *session.Conversation, cmd Command, mode string) (string, Action) {
	switch cmd.Kind {
	case KindRenameBot:
		conv.BotName = cmd.Text
		return "New bot name: " + cmd.Text, ActionSystem
	case KindRenameUser:
		conv.UserName = cmd.Text
		return "New user name: " + cmd.Text, ActionSystem
	case KindAppendContext:
		if conv.Context != "" && !strings.HasSuffix(conv.Context, "\n") {
			conv.Context += "\n"
		}
		conv.Context += cmd.Text
		return "Added to context: " + cmd.Text, ActionSystem
	case KindReplaceLast:
		if conv.Len() == 0 {
			return "", ActionNothing
		}
		conv.Last().Response = cmd.Text
		return conv.LastResponse(), ActionDeleteLast
	case KindDeleteWord:
		if conv.Len() == 0 {
			return "", ActionNothing
		}
		trimmed := DeleteLastBlock(conv.LastResponse())
		if strings.TrimSpace(trimmed) == "" {
			return conv.LastResponse(), ActionNothing
		}
		conv.Last().Response = trimmed
		return conv.LastResponse(), ActionDeleteLast
	}
	return d.generateTurn(ctx, conv, cmd, mode)
}

func (d *Dispatcher) generateTurn(ctx context.Context, conv *session.Conversation, cmd Command, mode string) (string, Action) {
	if delay := d.cfg.AnswerDelay(); delay > 0 {
		time.Sleep(delay)
	}

	reqID := uuid.NewString()[:8]
	log := logging.Get(logging.CategoryDispatch)

	lockCtx, cancel := context.WithTimeout(ctx, d.cfg.LockTimeout())
	defer cancel()
	if err := d.slot.Acquire(lockCtx, 1); err != nil {
		log.Warn("[%s] generation slot not acquired within %s: %v", reqID, d.cfg.LockTimeout(), err)
		return AnswerFail, ActionSystem
	}
	// Released on every exit path, including backend failure.
	defer d.slot.Release(1)

	timer := logging.StartTimer(logging.CategoryDispatch, "generate "+reqID)
	defer timer.Stop()

	// Snapshot for restore if the backend raises; absorbed failures (the
	// sentinel path) leave the prepared turn in place.
	savedTurns := append([]session.Turn(nil), conv.Turns...)

	if mode == config.ModeQuery {
		conv.Turns = nil
	}

	action := ActionSend
	nameIn := conv.UserName
	switch cmd.Kind {
	case KindRegenerate:
		if last := conv.Last(); last != nil {
			last.PreviousResponses = append(last.PreviousResponses, last.Response)
			cmd.Text = last.Input
			if last.Name != "" {
				nameIn = last.Name
			}
			last.Request = ""
			last.Response = ""
		}
	case KindImpersonate:
		conv.AppendTurn("", conv.UserName+":")
	case KindImpersonateAs:
		nameIn = cmd.Text
		conv.AppendTurn("", cmd.Text+":")
	case KindNext:
		conv.AppendTurn("", conv.BotName+":")
	case KindContinue:
		// Extend the last response in place; no new turn.
	case KindImage:
		stub := d.cfg.ImagePromptSelf
		if cmd.Text != "" {
			stub = strings.ReplaceAll(d.cfg.ImagePromptOf, "OBJECT", cmd.Text)
		}
		conv.AppendTurn("", stub)
		action = ActionImage
	default:
		if mode == config.ModeNotebook {
			conv.AppendTurn(cmd.Text, "")
		} else {
			conv.AppendTurn(conv.UserName+": "+cmd.Text, conv.BotName+":")
		}
	}

	params := d.params()
	stop := d.stopStrings(conv, nameIn, mode, params)

	g := d.Generator()
	prompt := BuildPrompt(ctx, g, conv, d.cfg, params.TruncationLength)

	result, err := g.Generate(ctx, generator.Request{
		Prompt:        prompt,
		Params:        withStops(params, stop),
		DefaultAnswer: AnswerFail,
		Snapshot:      snapshot(conv),
	})
	if err != nil {
		log.Error("[%s] backend generate failed: %v", reqID, err)
		conv.Turns = savedTurns
		return AnswerFail, ActionSystem
	}

	answer := d.postProcess(result, stop)
	if answer == AnswerEmpty || answer == AnswerFail || conv.Len() == 0 {
		return answer, action
	}
	last := conv.Last()
	last.Response = conv.LastResponse() + " " + answer
	if len(last.PreviousResponses) > 0 &&
		last.PreviousResponses[len(last.PreviousResponses)-1] == last.Response {
		action = ActionNothing
	}

	if action == ActionImage && conv.Len() > 0 {
		out := conv.LastResponse()
		out = strings.ReplaceAll(out, d.cfg.ImagePromptSelf, "")
		out = strings.ReplaceAll(out, strings.ReplaceAll(d.cfg.ImagePromptOf, "OBJECT", cmd.Text), "")
		conv.Last().Response = strings.TrimSpace(out)
	}

	return conv.LastResponse(), action
}

// postProcess strips reasoning blocks, prompt markers, and leaked stop
// sequences, substituting the empty-answer sentinel when nothing remains.
func (d *Dispatcher) postProcess(answer string, stop []string) string {
	if d.cfg.DeleteReasoning {
		for _, tag := range d.cfg.ReasoningTags {
			answer = StripReasoning(answer, tag)
		}
	}
	if end := d.cfg.BotPromptEnd; end != "" {
		answer = strings.TrimSuffix(answer, end)
		if len(end) > 2 {
			answer = strings.TrimSuffix(answer, end[:len(end)-1])
		}
	}
	if begin := d.cfg.BotPromptBegin; begin != "" {
		answer = strings.TrimPrefix(answer, begin)
	}
	for _, s := range stop {
		answer = strings.TrimSuffix(answer, s)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return AnswerEmpty
	}
	return answer
}

// stopStrings composes the stop set: configured stopping strings, the
// three name-based markers in chat-like modes, and the closing bot marker.
func (d *Dispatcher) stopStrings(conv *session.Conversation, nameIn, mode string, p generator.Params) []string {
	stop := append([]string{}, p.StoppingStrings...)
	if config.ChatLike(mode) {
		stop = append(stop, nameIn+":", conv.UserName+":", conv.BotName+":")
	}
	if d.cfg.BotPromptEnd != "" {
		stop = append(stop, d.cfg.BotPromptEnd)
	}
	return stop
}

func (d *Dispatcher) params() generator.Params {
	gd := d.cfg.Generation
	return generator.Params{
		Temperature:       gd.Temperature,
		TopP:              gd.TopP,
		TopK:              gd.TopK,
		MaxNewTokens:      gd.MaxNewTokens,
		RepetitionPenalty: gd.RepetitionPenalty,
		TruncationLength:  gd.TruncationLength,
		EOSTokens:         gd.EOSTokens,
		StoppingStrings:   gd.StoppingStrings,
	}
}

func withStops(p generator.Params, stop []string) generator.Params {
	p.StoppingStrings = stop
	return p
}

// snapshot shapes the conversation for backends that build their own
// message structure instead of consuming the flat prompt.
func snapshot(conv *session.Conversation) generator.Snapshot {
	s := generator.Snapshot{
		Context:      conv.Context,
		Greeting:     conv.Greeting,
		Example:      conv.Example,
		TurnTemplate: conv.TurnTemplate,
	}
	for _, t := range conv.Turns {
		s.History = append(s.History, generator.TurnSnapshot{
			Request:  t.Request,
			Response: t.Response,
		})
	}
	return s
}
