// Package i18n provides the user-facing message catalog.
// This is part of the platform layer and contains no business logic.
package i18n

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Supported language codes.
const (
	English = "en"
	French  = "fr"
	Pidgin  = "pcm"
)

// Default is used when a session has no language or an unknown one.
const Default = English

//go:embed messages.yaml
var messagesYAML []byte

// Catalog resolves message keys to localized text.
type Catalog struct {
	messages map[string]map[string]string
	matcher  language.Matcher
	codes    []string
}

// Load parses the embedded catalog. It panics on a malformed catalog since the
// file ships with the binary.
func Load() *Catalog {
	c, err := Parse(messagesYAML)
	if err != nil {
		panic(fmt.Sprintf("i18n: invalid embedded catalog: %v", err))
	}
	return c
}

// Parse builds a catalog from YAML of the form key -> lang -> text.
func Parse(data []byte) (*Catalog, error) {
	var messages map[string]map[string]string
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	for key, texts := range messages {
		if _, ok := texts[Default]; !ok {
			return nil, fmt.Errorf("message %q has no %s text", key, Default)
		}
	}

	codes := []string{English, French, Pidgin}
	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		tags = append(tags, language.Make(code))
	}

	return &Catalog{
		messages: messages,
		matcher:  language.NewMatcher(tags),
		codes:    codes,
	}, nil
}

// Normalize maps a user-supplied language code or name to a supported code.
// The second result is false when nothing reasonable matches.
func (c *Catalog) Normalize(raw string) (string, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return Default, false
	case "english":
		return English, true
	case "french", "francais", "français":
		return French, true
	case "pidgin", "naija":
		return Pidgin, true
	}

	tag, err := language.Parse(raw)
	if err != nil {
		return Default, false
	}
	_, index, confidence := c.matcher.Match(tag)
	if confidence == language.No {
		return Default, false
	}
	return c.codes[index], true
}

// Codes returns the supported language codes.
func (c *Catalog) Codes() []string {
	out := append([]string(nil), c.codes...)
	sort.Strings(out)
	return out
}

// T returns the text for key in lang, falling back to the default language.
// Placeholders of the form {name} are replaced from args given as
// alternating name/value pairs.
func (c *Catalog) T(lang, key string, args ...string) string {
	texts, ok := c.messages[key]
	if !ok {
		return key
	}
	text, ok := texts[lang]
	if !ok || text == "" {
		text = texts[Default]
	}
	if len(args) < 2 {
		return text
	}

	pairs := make([]string, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, "{"+args[i]+"}", args[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
