// Package character loads character definition cards (JSON or YAML) into
// conversation state: persona context, dialogue example, greetings, and
// name bindings. Cards follow the common community formats, so several
// legacy field aliases are recognized and unknown keys are ignored.
package character

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"convo/internal/logging"
	"convo/internal/session"
)

// card mirrors the recognized keys of a character file. YAML tags cover
// the JSON case as well because yaml.v3 parses JSON input.
type card struct {
	User     string `yaml:"user" json:"user"`
	Bot      string `yaml:"bot" json:"bot"`
	YouName  string `yaml:"you_name" json:"you_name"`
	CharName string `yaml:"char_name" json:"char_name"`
	Name     string `yaml:"name" json:"name"`

	TurnTemplate string `yaml:"turn_template" json:"turn_template"`

	CharPersona   string `yaml:"char_persona" json:"char_persona"`
	Context       string `yaml:"context" json:"context"`
	WorldScenario string `yaml:"world_scenario" json:"world_scenario"`
	Scenario      string `yaml:"scenario" json:"scenario"`
	Personality   string `yaml:"personality" json:"personality"`
	Description   string `yaml:"description" json:"description"`

	ExampleDialogue string `yaml:"example_dialogue" json:"example_dialogue"`

	CharGreeting       string   `yaml:"char_greeting" json:"char_greeting"`
	FirstMes           string   `yaml:"first_mes" json:"first_mes"`
	Greeting           string   `yaml:"greeting" json:"greeting"`
	AlternateGreetings []string `yaml:"alternate_greetings" json:"alternate_greetings"`
}

// envelope unwraps cards exported with a "data" wrapper.
type envelope struct {
	Data *card `yaml:"data" json:"data"`
}

// Load resets the conversation to defaults and populates it from the card
// at charsDir/fileName. Any failure is logged and leaves the default-seeded
// state in place; the conversation is always usable afterwards.
func Load(conv *session.Conversation, charsDir, fileName string) {
	conv.Reset()
	conv.CharFile = fileName

	path := filepath.Join(charsDir, fileName)
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Get(logging.CategoryCharacter).Error("read card %s: %v", path, err)
		return
	}

	c, err := parse(data, fileName)
	if err != nil {
		logging.Get(logging.CategoryCharacter).Error("parse card %s: %v", path, err)
		return
	}

	apply(conv, c)
	logging.Get(logging.CategoryCharacter).Info(
		"loaded card %s: bot=%s greetings=%d", fileName, conv.BotName, 1+len(conv.AlternateGreetings))
}

func parse(data []byte, fileName string) (*card, error) {
	var env envelope
	var c card
	if strings.HasSuffix(fileName, ".json") {
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		if env.Data != nil {
			return env.Data, nil
		}
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	}
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Data != nil {
		return env.Data, nil
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// apply maps card fields onto the conversation. Later aliases win, and
// context sections are labeled and deduplicated the way existing card
// collections expect.
func apply(conv *session.Conversation, c *card) {
	if c.User != "" {
		conv.UserName = c.User
	}
	if c.Bot != "" {
		conv.BotName = c.Bot
	}
	if c.YouName != "" {
		conv.UserName = c.YouName
	}
	if c.CharName != "" {
		conv.BotName = c.CharName
	}
	if c.Name != "" {
		conv.BotName = c.Name
	}
	if c.TurnTemplate != "" {
		conv.TurnTemplate = c.TurnTemplate
	}

	ctx := ""
	if c.CharPersona != "" {
		ctx += fmt.Sprintf("%s's persona: %s\n", conv.BotName, strings.TrimSpace(c.CharPersona))
	}
	addSection := func(label, text string) {
		text = strings.TrimSpace(text)
		if text == "" || strings.Contains(ctx, text) {
			return
		}
		if label == "" {
			ctx += text + "\n"
			return
		}
		ctx += label + ": " + text + "\n"
	}
	addSection("", c.Context)
	addSection("Scenario", c.WorldScenario)
	addSection("Scenario", c.Scenario)
	addSection("Personality", c.Personality)
	addSection("Description", c.Description)
	conv.Context = ctx

	if c.ExampleDialogue != "" {
		conv.Example = "\n" + strings.TrimSpace(c.ExampleDialogue) + "\n"
	}

	if c.CharGreeting != "" {
		conv.Greeting = strings.TrimSpace(c.CharGreeting)
	}
	if c.FirstMes != "" {
		conv.Greeting = strings.TrimSpace(c.FirstMes)
	}
	if c.Greeting != "" {
		conv.Greeting = strings.TrimSpace(c.Greeting)
	}
	conv.AlternateGreetings = append([]string(nil), c.AlternateGreetings...)

	conv.Context = Substitute(conv.Context, conv.UserName, conv.BotName)
	conv.Greeting = Substitute(conv.Greeting, conv.UserName, conv.BotName)
	conv.Example = Substitute(conv.Example, conv.UserName, conv.BotName)
	for i, g := range conv.AlternateGreetings {
		conv.AlternateGreetings[i] = Substitute(g, conv.UserName, conv.BotName)
	}
	conv.Turns = nil
}

// Substitute replaces the template placeholders with the bound names.
func Substitute(s, userName, botName string) string {
	r := strings.NewReplacer(
		"{{char}}", botName,
		"{{Char}}", botName,
		"<BOT>", botName,
		"{{user}}", userName,
		"{{User}}", userName,
		"<USER>", userName,
	)
	return r.Replace(s)
}

// ListCards returns the character file names available in dir.
func ListCards(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read characters dir: %w", err)
	}
	var cards []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			cards = append(cards, name)
		}
	}
	return cards, nil
}
