package quality

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/generation"
	"github.com/maheshrc27/threadcraft/internal/provider"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type engineMock struct {
	outputs []*generation.Output
	errs    []error
	prompts []string
}

func (m *engineMock) Generate(ctx context.Context, candidates []provider.Candidate, req provider.Request) (*generation.Output, error) {
	i := len(m.prompts)
	m.prompts = append(m.prompts, req.Prompt)
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if err != nil {
		return nil, err
	}
	return m.outputs[i], nil
}

func threadOutput(segs ...string) *generation.Output {
	return &generation.Output{Content: strings.Join(segs, "\n\n"), Segments: segs, Provider: provider.OpenAI}
}

func TestEvaluateSingle(t *testing.T) {
	require.True(t, EvaluateSingle("Coffee is the quiet engine behind most great mornings.").Passed)

	r := EvaluateSingle("Too short.")
	require.False(t, r.Passed)
	require.False(t, r.Critical)

	r = EvaluateSingle("Coffee is great for focus and")
	require.Contains(t, r.Issues, "post ends mid-sentence")

	r = EvaluateSingle("Here's a post: coffee keeps the whole team going.")
	require.Contains(t, r.Issues, "post starts with a preface instead of the content")

	require.True(t, EvaluateSingle("  ").Critical)
}

func TestEvaluateThreadPassedInvariant(t *testing.T) {
	inputs := [][]string{
		{"One.", "Two.", "Three."},
		{"One.", "Two.", "Three.", "Four.", "Five.", "Six.", "Seven."},
		{strings.Repeat("long words here ", 30) + "end."},
		{"Only one paragraph of text."},
		{"Here is a thread:", "Two.", "Three and"},
	}
	for _, in := range inputs {
		r := EvaluateThread(in)
		if !r.Passed {
			continue
		}
		require.GreaterOrEqual(t, len(r.Segments), MinThreadItems)
		require.LessOrEqual(t, len(r.Segments), MaxThreadItems)
		for _, s := range r.Segments {
			require.LessOrEqual(t, utf8.RuneCountInString(s), 280)
		}
	}

	r := EvaluateThread([]string{"One.", "Two.", "Three.", "Four.", "Five.", "Six.", "Seven."})
	require.True(t, r.Passed)
	require.Len(t, r.Segments, 5)

	r = EvaluateThread([]string{"Only one paragraph of text."})
	require.False(t, r.Passed)
	require.True(t, r.Critical)

	r = EvaluateThread([]string{"Here is a thread:", "Two.", "Three and"})
	require.False(t, r.Passed)
	require.False(t, r.Critical)
	require.Len(t, r.Issues, 2)
}

func TestEvaluateThreadTwoSegmentsNeverYieldsSeparatorPost(t *testing.T) {
	segs := []string{
		"Coffee is older than most people think. It started in Ethiopia.",
		"From there it spread across the Arab world and became the drink of work.",
	}

	r := EvaluateThread(segs)
	require.False(t, r.Passed)
	require.True(t, r.Critical)
	require.Equal(t, segs, r.Segments)

	m := &engineMock{outputs: []*generation.Output{threadOutput(segs...), threadOutput(segs...)}}
	_, err := NewGate(m).Run(context.Background(), nil, "prompt", Input{Idea: "coffee", Thread: true})
	var critical *apperr.QualityGateCriticalError
	require.True(t, errors.As(err, &critical))
}

func TestGatePassesFirstAttempt(t *testing.T) {
	m := &engineMock{outputs: []*generation.Output{threadOutput("Coffee first.", "Then code.", "Then ship it.")}}

	res, err := NewGate(m).Run(context.Background(), nil, "prompt", Input{Idea: "coffee", Thread: true})
	require.NoError(t, err)
	require.True(t, res.Report.Passed)
	require.False(t, res.Retried)
	require.Len(t, m.prompts, 1)
}

func TestGateRetriesWithReasonsAndKeepsPassingAttempt(t *testing.T) {
	m := &engineMock{outputs: []*generation.Output{
		threadOutput("Here is a thread:", "Two.", "Three and"),
		threadOutput("Coffee first.", "Then code.", "Then ship it."),
	}}

	res, err := NewGate(m).Run(context.Background(), nil, "prompt", Input{Idea: "coffee", Thread: true})
	require.NoError(t, err)
	require.True(t, res.Retried)
	require.True(t, res.Report.Passed)
	require.Equal(t, []string{"Coffee first.", "Then code.", "Then ship it."}, res.Output.Segments)
	require.Len(t, m.prompts, 2)
	require.Contains(t, m.prompts[1], "last post ends mid-sentence")
}

func TestGateKeepsAttemptWithFewerIssues(t *testing.T) {
	m := &engineMock{outputs: []*generation.Output{
		threadOutput("Coffee first.", "Then code.", "Then ship it and"),
		threadOutput("Here is a thread:", "Two.", "Three and"),
	}}

	res, err := NewGate(m).Run(context.Background(), nil, "prompt", Input{Idea: "coffee", Thread: true})
	require.NoError(t, err)
	require.False(t, res.Report.Passed)
	require.Equal(t, "Coffee first.", res.Output.Segments[0])
}

func TestGateCriticalAfterRetry(t *testing.T) {
	m := &engineMock{outputs: []*generation.Output{
		threadOutput("Just one thing."),
		threadOutput("Still one thing."),
	}}

	_, err := NewGate(m).Run(context.Background(), nil, "prompt", Input{Idea: "coffee", Thread: true})
	var critical *apperr.QualityGateCriticalError
	require.True(t, errors.As(err, &critical))
}

func TestGateEngineErrorPropagates(t *testing.T) {
	m := &engineMock{errs: []error{apperr.ErrNoProvidersConfigured}}

	_, err := NewGate(m).Run(context.Background(), nil, "prompt", Input{Idea: "coffee"})
	require.ErrorIs(t, err, apperr.ErrNoProvidersConfigured)
}

func TestBuildPrompt(t *testing.T) {
	_, err := BuildPrompt(Input{})
	require.True(t, apperr.IsValidation(err))

	p, err := BuildPrompt(Input{Idea: "coffee", Instruction: "be punchy", Context: "for devs", Thread: true})
	require.NoError(t, err)
	require.Contains(t, p, "Topic: coffee")
	require.Contains(t, p, "Instruction: be punchy")
	require.Contains(t, p, "Background: for devs")
	require.Contains(t, p, "3 to 5 posts")
}
