// Package thread turns raw generated text into ordered thread segments.
package thread

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxSegmentLen is the hard limit for one posted item.
	MaxSegmentLen = 280
	// SentenceGroupLen is the soft target when grouping sentences.
	SentenceGroupLen = 250
)

// Strategy splits text into segments. Empty segments are never returned.
type Strategy struct {
	Name  string
	Split func(text string) []string
}

var (
	separatorRe   = regexp.MustCompile(`(?m)^\s*(?:-{3,}|={3,}|\*{3,})\s*$`)
	ruleOnlyRe    = regexp.MustCompile(`^(?:-{3,}|={3,}|\*{3,})$`)
	numberedRe    = regexp.MustCompile(`(?m)^\s*(?:\d{1,2}\s*[/.)\]:]|\d{1,2}/\d{1,2})\s+`)
	blankLineRe   = regexp.MustCompile(`\n\s*\n`)
	sentenceEndRe = regexp.MustCompile(`([.!?…]+["')\]]?)\s+`)
)

// Strategies is the ordered list tried by Normalize.
var Strategies = []Strategy{
	{Name: "separator", Split: BySeparator},
	{Name: "numbered", Split: ByNumberedList},
	{Name: "paragraph", Split: ByBlankLines},
	{Name: "line", Split: ByLines},
	{Name: "sentence", Split: BySentences},
}

func BySeparator(text string) []string {
	if !separatorRe.MatchString(text) {
		return nil
	}
	return clean(separatorRe.Split(text, -1))
}

func ByNumberedList(text string) []string {
	locs := numberedRe.FindAllStringIndex(text, -1)
	if len(locs) < 2 {
		return nil
	}
	var parts []string
	if pre := strings.TrimSpace(text[:locs[0][0]]); pre != "" {
		parts = append(parts, pre)
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		parts = append(parts, text[loc[1]:end])
	}
	return clean(parts)
}

func ByBlankLines(text string) []string {
	return clean(blankLineRe.Split(text, -1))
}

func ByLines(text string) []string {
	return clean(strings.Split(text, "\n"))
}

// BySentences groups whole sentences into segments of about SentenceGroupLen
// characters. A single sentence longer than that stays on its own.
func BySentences(text string) []string {
	flat := strings.Join(strings.Fields(text), " ")
	if flat == "" {
		return nil
	}

	var sentences []string
	last := 0
	for _, loc := range sentenceEndRe.FindAllStringSubmatchIndex(flat, -1) {
		sentences = append(sentences, flat[last:loc[3]])
		last = loc[1]
	}
	if last < len(flat) {
		sentences = append(sentences, flat[last:])
	}

	var (
		out     []string
		current string
	)
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if current == "" {
			current = s
			continue
		}
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(s) > SentenceGroupLen {
			out = append(out, current)
			current = s
			continue
		}
		current += " " + s
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// Normalize tries each strategy in order and returns the first result whose
// segment count, after merging down to max, lies in [min, max]. When no
// strategy fits, the result of the strategy that produced the most segments
// is returned so callers can still report on it.
func Normalize(text string, min, max int) []string {
	var best []string
	for _, s := range Strategies {
		segs := MergeShortest(s.Split(text), max)
		if len(segs) >= min && len(segs) <= max {
			return segs
		}
		if len(segs) > len(best) {
			best = segs
		}
	}
	if best == nil {
		if t := strings.TrimSpace(text); t != "" {
			best = []string{t}
		}
	}
	return best
}

// MergeShortest repeatedly joins the adjacent pair with the smallest combined
// length until at most max segments remain.
func MergeShortest(segs []string, max int) []string {
	if max < 1 || len(segs) <= max {
		return segs
	}
	out := append([]string(nil), segs...)
	for len(out) > max {
		at := 0
		shortest := -1
		for i := 0; i+1 < len(out); i++ {
			n := utf8.RuneCountInString(out[i]) + utf8.RuneCountInString(out[i+1])
			if shortest < 0 || n < shortest {
				shortest = n
				at = i
			}
		}
		merged := out[at] + " " + out[at+1]
		out = append(out[:at], append([]string{merged}, out[at+2:]...)...)
	}
	return out
}

func clean(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		// a bare separator line is never a post
		if p = strings.TrimSpace(p); p != "" && !ruleOnlyRe.MatchString(p) {
			out = append(out, p)
		}
	}
	return out
}
