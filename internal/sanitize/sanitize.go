package sanitize

import (
	"errors"
	"strings"
	"unicode"
)

// MaxPromptLen bounds prompt input; anything longer is rejected up front.
const MaxPromptLen = 10000

// ErrEmptyPrompt is returned when a prompt is empty or whitespace-only.
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// ErrPromptTooLong is returned when a prompt exceeds MaxPromptLen.
var ErrPromptTooLong = errors.New("prompt too long")

// Scrub removes null bytes and other control characters from s, keeping
// newlines and tabs intact.
func Scrub(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// NormalizePrompt collapses all runs of whitespace into single spaces and
// trims the result. Formatting-only variants of the same prompt normalize to
// the same string, which is what makes response-cache keys stable.
func NormalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(Scrub(prompt)), " ")
}

// ValidatePrompt checks and normalizes caller-supplied prompt text.
func ValidatePrompt(prompt string) (string, error) {
	if len(prompt) > MaxPromptLen {
		return "", ErrPromptTooLong
	}
	normalized := NormalizePrompt(prompt)
	if normalized == "" {
		return "", ErrEmptyPrompt
	}
	return normalized, nil
}
