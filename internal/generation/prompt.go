package generation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/maheshrc27/threadcraft/internal/apperr"
)

const (
	MinPromptLen = 5
	MaxPromptLen = 2000

	MinThreadCount = 1
	MaxThreadCount = 10
)

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bignore\s+(?:all\s+)?(?:the\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)\bdisregard\s+(?:all\s+)?(?:the\s+)?(?:previous|prior|above|your)\s+(?:instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)\bforget\s+(?:all\s+)?(?:your|the|previous)\s+(?:instructions|rules|training)`),
	regexp.MustCompile(`(?i)\b(?:reveal|print|show)\s+(?:me\s+)?(?:your|the)\s+system\s+prompt`),
	regexp.MustCompile(`(?i)\byou\s+are\s+now\s+(?:in\s+)?(?:developer|dan|jailbreak)`),
	regexp.MustCompile(`(?i)\bdeveloper\s+mode\s+enabled\b`),
}

// ValidatePrompt trims the prompt and rejects it when it is out of bounds or
// looks like an attempt to override the system instructions.
func ValidatePrompt(prompt string) (string, error) {
	p := strings.TrimSpace(prompt)
	n := utf8.RuneCountInString(p)
	if n < MinPromptLen {
		return "", apperr.Validation("prompt", "must be at least 5 characters")
	}
	if n > MaxPromptLen {
		return "", apperr.Validation("prompt", "must be at most 2000 characters")
	}
	for _, re := range injectionPatterns {
		if re.MatchString(p) {
			return "", apperr.Validation("prompt", "contains disallowed instructions")
		}
	}
	return p, nil
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "fifteen": 15, "twenty": 20,
}

const countToken = `(\d{1,3}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|fifteen|twenty)`

var threadCountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b` + countToken + `\s*-?\s*(?:part\s+)?(?:threads?|tweets?|posts?|parts?)\b`),
	regexp.MustCompile(`(?i)\b(?:thread|series)\s+(?:of|with)\s+` + countToken + `\b`),
}

// ParseThreadCount looks for an explicit item count such as "3 threads",
// "a 5-tweet thread" or "thread of seven posts". The result is clamped to
// [MinThreadCount, MaxThreadCount].
func ParseThreadCount(prompt string) (int, bool) {
	for _, re := range threadCountPatterns {
		m := re.FindStringSubmatch(prompt)
		if m == nil {
			continue
		}
		n, ok := numberWords[strings.ToLower(m[1])]
		if !ok {
			var err error
			n, err = strconv.Atoi(m[1])
			if err != nil {
				continue
			}
		}
		return ClampThreadCount(n), true
	}
	return 0, false
}

func ClampThreadCount(n int) int {
	if n < MinThreadCount {
		return MinThreadCount
	}
	if n > MaxThreadCount {
		return MaxThreadCount
	}
	return n
}
