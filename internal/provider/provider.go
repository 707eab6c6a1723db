// Package provider models AI text generation backends behind one capability
// and decides which of them a request may use.
package provider

import (
	"context"
	"fmt"
	"strings"
)

const (
	OpenAI     = "openai"
	Perplexity = "perplexity"
	Google     = "google"
)

// KnownProviders lists every provider name in a stable order.
var KnownProviders = []string{OpenAI, Google, Perplexity}

func IsKnown(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}

type KeySource string

const (
	KeySourcePlatform KeySource = "platform"
	KeySourceBYOK     KeySource = "byok"
)

type Style string

const (
	StyleProfessional  Style = "professional"
	StyleCasual        Style = "casual"
	StyleHumorous      Style = "humorous"
	StyleInformative   Style = "informative"
	StyleInspirational Style = "inspirational"
)

func ParseStyle(s string) (Style, error) {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StyleProfessional, nil
	case StyleProfessional, StyleCasual, StyleHumorous, StyleInformative, StyleInspirational:
		return st, nil
	default:
		return "", fmt.Errorf("unsupported style %q", s)
	}
}

type Request struct {
	Prompt string
	Style  Style
	Thread bool
	Count  int
}

// ContentProvider generates raw post text for a prompt.
type ContentProvider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// SystemPrompt is the instruction every provider receives ahead of the
// caller's prompt.
func SystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You write social media posts for X. ")
	fmt.Fprintf(&b, "Use a %s tone. ", req.Style)
	if req.Thread {
		count := req.Count
		if count < 1 {
			count = 5
		}
		fmt.Fprintf(&b, "Write a thread of exactly %d posts. Separate posts with a line containing only ---. ", count)
		b.WriteString("Each post must be at most 280 characters. Do not number the posts. ")
	} else {
		b.WriteString("Write a single post of at most 280 characters. ")
	}
	b.WriteString("Return only the post text, with no preface, no markdown and no hashtags unless asked.")
	return b.String()
}
