package generation

import (
	"errors"
	"html"
	"regexp"
	"strings"

	"github.com/maheshrc27/threadcraft/internal/thread"
)

// ErrRefusal means the provider answered with a refusal or talked about
// itself instead of producing a post.
var ErrRefusal = errors.New("provider returned a refusal instead of content")

var refusalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bas an ai(?:\s+language)?\s+model\b`),
	regexp.MustCompile(`(?i)\bi(?:'m| am) (?:just )?an ai\b`),
	regexp.MustCompile(`(?i)^\s*i(?:'m| am) sorry,? but i (?:can(?:'t|not)|won't|am unable)`),
	regexp.MustCompile(`(?i)^\s*i (?:can(?:'t|not)|won't|am unable to) (?:help|assist|comply|create|write|fulfill)`),
	regexp.MustCompile(`(?i)\bi(?:'m| am) not able to (?:help|assist|comply) with (?:that|this)\b`),
}

var (
	codeFenceRe   = regexp.MustCompile("(?m)^\\s*```[a-zA-Z0-9_-]*\\s*$")
	headerRe      = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	boldRe        = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	boldUnderRe   = regexp.MustCompile(`__([^_\n]+)__`)
	italicRe      = regexp.MustCompile(`(^|[^*\w])\*([^*\s][^*\n]*?)\*`)
	strikeRe      = regexp.MustCompile(`~~([^~\n]+)~~`)
	inlineCodeRe  = regexp.MustCompile("`([^`\n]+)`")
	leadInRe      = regexp.MustCompile(`(?i)^\s*(?:(?:sure|certainly|absolutely|of course|okay|ok)[!,.]?\s*)?(?:here(?:'s| is| are)\b[^\n:]{0,100}:)\s*`)
	leadInWordRe  = regexp.MustCompile(`(?i)^\s*(?:sure|certainly|absolutely|of course)[!,.]\s*`)
	citationRe    = regexp.MustCompile(`\s*\[\d+(?:\s*[,-]\s*\d+)*\]`)
	listNumberRe  = regexp.MustCompile(`(?m)^\s*(?:\d{1,2}\s*[/.):]|\d{1,2}/\d{1,2})\s+`)
	spacesRe      = regexp.MustCompile(`[ \t]+`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	spaceAroundNL = regexp.MustCompile(` *\n *`)
)

func isRefusal(text string) bool {
	for _, re := range refusalPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Clean sanitizes a single post.
func Clean(raw string) (string, error) {
	if isRefusal(raw) {
		return "", ErrRefusal
	}
	text := cleanText(prepare(raw), true)
	if text == "" {
		return "", errors.New("provider returned empty content")
	}
	return text, nil
}

// CleanThread splits raw provider output into thread items and sanitizes
// each one. Numbering is removed after splitting so numbered lists still
// separate cleanly.
func CleanThread(raw string) ([]string, error) {
	if isRefusal(raw) {
		return nil, ErrRefusal
	}
	text := prepare(raw)
	text = leadInRe.ReplaceAllString(text, "")

	var out []string
	for i, seg := range thread.Normalize(text, 2, MaxThreadCount) {
		if s := cleanText(seg, i == 0); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("provider returned empty content")
	}
	return out, nil
}

func prepare(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = html.UnescapeString(text)
	return codeFenceRe.ReplaceAllString(text, "")
}

func cleanText(text string, first bool) string {
	text = headerRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = boldUnderRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1$2")
	text = strikeRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	if first {
		text = leadInRe.ReplaceAllString(text, "")
		text = leadInWordRe.ReplaceAllString(text, "")
	}
	text = citationRe.ReplaceAllString(text, "")
	text = listNumberRe.ReplaceAllString(text, "")
	text = strings.Trim(text, " \t\n\"")
	text = spacesRe.ReplaceAllString(text, " ")
	text = spaceAroundNL.ReplaceAllString(text, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
