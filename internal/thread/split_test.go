package thread

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestBySeparator(t *testing.T) {
	text := "First post\n---\nSecond post\n---\n\nThird post\n"
	require.Equal(t, []string{"First post", "Second post", "Third post"}, BySeparator(text))
	require.Nil(t, BySeparator("no markers here"))
}

func TestByLinesDropsSeparatorLines(t *testing.T) {
	require.Equal(t, []string{"First post", "Second post"}, ByLines("First post\n---\nSecond post"))
	require.Equal(t, []string{"First post", "Second post"}, ByBlankLines("First post\n\n***\n\nSecond post"))
}

func TestByNumberedList(t *testing.T) {
	text := "1/ Coffee wakes you up.\n2/ It tastes good.\n3) It is social."
	require.Equal(t, []string{"Coffee wakes you up.", "It tastes good.", "It is social."}, ByNumberedList(text))
	require.Nil(t, ByNumberedList("1. only one"))
}

func TestBySentencesGroupsUnderLimit(t *testing.T) {
	sentence := strings.Repeat("word ", 20) + "end."
	text := strings.Repeat(sentence+" ", 6)

	segs := BySentences(text)
	require.Greater(t, len(segs), 1)
	for _, s := range segs {
		require.LessOrEqual(t, utf8.RuneCountInString(s), SentenceGroupLen)
		require.True(t, strings.HasSuffix(s, "end."))
	}
}

func TestMergeShortest(t *testing.T) {
	segs := []string{"aaaa", "b", "c", "dddd", "e", "ffff", "gggg"}
	out := MergeShortest(segs, 5)
	require.Equal(t, []string{"aaaa", "b c", "dddd e", "ffff", "gggg"}, out)
}

func TestNormalizePicksFirstFittingStrategy(t *testing.T) {
	// Paragraph breaks give 3, single lines would give 6.
	text := "One a\nOne b\n\nTwo a\nTwo b\n\nThree a\nThree b"
	require.Equal(t, []string{"One a\nOne b", "Two a\nTwo b", "Three a\nThree b"}, Normalize(text, 3, 5))
}

func TestNormalizeMergesOversizedResult(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteString("Point number here\n---\n")
	}
	segs := Normalize(b.String(), 3, 5)
	require.Len(t, segs, 5)
}

func TestNormalizeNoFit(t *testing.T) {
	segs := Normalize("Just one short sentence", 3, 5)
	require.Equal(t, []string{"Just one short sentence"}, segs)
	require.Nil(t, Normalize("   ", 3, 5))
}
