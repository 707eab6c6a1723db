// Package quality validates strategy-mode output and regenerates once when
// the first result does not hold up.
package quality

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/generation"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/maheshrc27/threadcraft/internal/thread"
	"go.uber.org/zap"
)

const (
	MinSingleLen   = 25
	MinThreadItems = 3
	MaxThreadItems = 5

	RequestedThreadItems = 4
)

var (
	metaPrefaceRe = regexp.MustCompile(`(?i)^\s*(?:here(?:'s| is| are)\b|sure\b|certainly\b|absolutely\b|below is\b|as requested\b|this (?:post|thread|tweet) (?:is|will)\b|(?:tweet|post|thread)\s*\d*\s*:)`)
	unfinishedRe  = regexp.MustCompile(`(?i)(?:\b(?:and|or|but|because|with|the|a|an|to|of|for|so|which|that|in|on|at|by|as|if|then|than|like)|[,:;(\[{\-–])\s*$`)
)

// Input is the structured context of a strategy request.
type Input struct {
	Idea        string
	Instruction string
	Context     string
	Style       provider.Style
	Thread      bool
}

// BuildPrompt synthesizes the engine prompt from the strategy fields.
func BuildPrompt(in Input) (string, error) {
	idea := strings.TrimSpace(in.Idea)
	if idea == "" {
		return "", apperr.Validation("idea", "is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", idea)
	if s := strings.TrimSpace(in.Instruction); s != "" {
		fmt.Fprintf(&b, "Instruction: %s\n", s)
	}
	if s := strings.TrimSpace(in.Context); s != "" {
		fmt.Fprintf(&b, "Background: %s\n", s)
	}
	if in.Thread {
		fmt.Fprintf(&b, "Write a thread of %d to %d posts. Each post must stand on its own, stay under %d characters and the last one must end with a complete sentence.",
			MinThreadItems, MaxThreadItems, thread.MaxSegmentLen)
	} else {
		fmt.Fprintf(&b, "Write one complete post of at least %d characters that ends with a complete sentence.", MinSingleLen)
	}
	return b.String(), nil
}

// Report is the verdict on one piece of content.
type Report struct {
	Passed   bool     `json:"passed"`
	Segments []string `json:"segments"`
	Issues   []string `json:"issues,omitempty"`
	Critical bool     `json:"-"`
}

func looksUnfinished(s string) bool {
	return unfinishedRe.MatchString(strings.TrimSpace(s))
}

func hasMetaPreface(s string) bool {
	return metaPrefaceRe.MatchString(s)
}

// EvaluateSingle checks a single post.
func EvaluateSingle(content string) Report {
	content = strings.TrimSpace(content)
	r := Report{Segments: []string{content}}
	if content == "" {
		r.Segments = nil
		r.Issues = append(r.Issues, "content is empty")
		r.Critical = true
		return r
	}
	if n := utf8.RuneCountInString(content); n < MinSingleLen {
		r.Issues = append(r.Issues, fmt.Sprintf("post is too short (%d characters, need at least %d)", n, MinSingleLen))
	}
	if looksUnfinished(content) {
		r.Issues = append(r.Issues, "post ends mid-sentence")
	}
	if hasMetaPreface(content) {
		r.Issues = append(r.Issues, "post starts with a preface instead of the content")
	}
	r.Passed = len(r.Issues) == 0
	return r
}

// EvaluateThread normalizes the segments into 3 to 5 items and checks them.
// Segments are rejoined as paragraphs so no joiner can become a post.
func EvaluateThread(segments []string) Report {
	segs := thread.Normalize(strings.Join(segments, "\n\n"), MinThreadItems, MaxThreadItems)
	r := Report{Segments: segs}

	if len(segs) == 0 {
		r.Issues = append(r.Issues, "content is empty")
		r.Critical = true
		return r
	}
	if len(segs) < MinThreadItems || len(segs) > MaxThreadItems {
		r.Issues = append(r.Issues, fmt.Sprintf("thread has %d posts, need %d to %d", len(segs), MinThreadItems, MaxThreadItems))
		r.Critical = len(segs) < MinThreadItems
	}
	for i, s := range segs {
		if n := utf8.RuneCountInString(s); n > thread.MaxSegmentLen {
			r.Issues = append(r.Issues, fmt.Sprintf("post %d is %d characters, limit is %d", i+1, n, thread.MaxSegmentLen))
		}
	}
	if hasMetaPreface(segs[0]) {
		r.Issues = append(r.Issues, "first post starts with a preface instead of the content")
	}
	if looksUnfinished(segs[len(segs)-1]) {
		r.Issues = append(r.Issues, "last post ends mid-sentence")
	}
	r.Passed = len(r.Issues) == 0
	return r
}

func Evaluate(out *generation.Output, isThread bool) Report {
	if out == nil {
		return Report{Issues: []string{"content is empty"}, Critical: true}
	}
	if isThread {
		return EvaluateThread(out.Segments)
	}
	return EvaluateSingle(out.Content)
}

// Generator is the part of the generation engine the gate drives.
type Generator interface {
	Generate(ctx context.Context, candidates []provider.Candidate, req provider.Request) (*generation.Output, error)
}

type Gate struct {
	engine Generator
}

func NewGate(engine Generator) *Gate {
	return &Gate{engine: engine}
}

// Result is the accepted output. When Report.Passed is false the output is
// the better of two failing attempts.
type Result struct {
	Output  *generation.Output
	Report  Report
	Retried bool
}

// Run generates content for a strategy request. A failing first result is
// regenerated once with the failure reasons in the prompt. Output that is
// still unusable yields QualityGateCriticalError.
func (g *Gate) Run(ctx context.Context, candidates []provider.Candidate, prompt string, in Input) (*Result, error) {
	req := provider.Request{Prompt: prompt, Style: in.Style, Thread: in.Thread}
	if in.Thread {
		req.Count = RequestedThreadItems
	}

	first, err := g.engine.Generate(ctx, candidates, req)
	if err != nil {
		return nil, err
	}
	firstReport := Evaluate(first, in.Thread)
	if firstReport.Passed {
		return accept(first, firstReport, false), nil
	}

	zap.L().Info("quality gate rejected first attempt",
		zap.Strings("issues", firstReport.Issues),
		zap.Bool("critical", firstReport.Critical))

	req.Prompt = RetryPrompt(prompt, firstReport.Issues)
	second, err := g.engine.Generate(ctx, candidates, req)
	if err != nil {
		if firstReport.Critical {
			return nil, &apperr.QualityGateCriticalError{Reasons: firstReport.Issues}
		}
		zap.L().Warn("quality gate retry failed, keeping first attempt", zap.Error(err))
		return accept(first, firstReport, true), nil
	}
	secondReport := Evaluate(second, in.Thread)

	switch {
	case secondReport.Passed:
		return accept(second, secondReport, true), nil
	case firstReport.Critical && secondReport.Critical:
		return nil, &apperr.QualityGateCriticalError{Reasons: secondReport.Issues}
	case secondReport.Critical:
		return accept(first, firstReport, true), nil
	case firstReport.Critical:
		return accept(second, secondReport, true), nil
	case len(secondReport.Issues) < len(firstReport.Issues):
		return accept(second, secondReport, true), nil
	default:
		return accept(first, firstReport, true), nil
	}
}

// RetryPrompt embeds the reasons the previous attempt failed.
func RetryPrompt(prompt string, issues []string) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nThe previous answer was rejected for these reasons:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	b.WriteString("Write it again and fix every one of them.")
	return b.String()
}

func accept(out *generation.Output, report Report, retried bool) *Result {
	final := *out
	final.Segments = report.Segments
	final.Content = strings.Join(report.Segments, "\n\n")
	return &Result{Output: &final, Report: report, Retried: retried}
}
