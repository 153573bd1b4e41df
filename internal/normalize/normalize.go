// Package normalize reduces titles and artist names to comparable forms.
package normalize

import (
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/longbridgeapp/opencc"
)

// Normalize lowercases s and drops every rune that is not a Unicode letter or number.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isOpenParen(r rune) bool  { return r == '(' || r == '（' }
func isCloseParen(r rune) bool { return r == ')' || r == '）' }

// StripParentheticals removes every balanced (...) or （...） span, parentheses
// included, and collapses the remaining whitespace. Unbalanced parentheses stay.
func StripParentheticals(s string) string {
	runes := []rune(s)
	drop := make([]bool, len(runes))
	var open []int
	for i, r := range runes {
		switch {
		case isOpenParen(r):
			open = append(open, i)
		case isCloseParen(r) && len(open) > 0:
			start := open[len(open)-1]
			open = open[:len(open)-1]
			for j := start; j <= i; j++ {
				drop[j] = true
			}
		}
	}

	var b strings.Builder
	for i, r := range runes {
		if !drop[i] {
			b.WriteRune(r)
		} else if i > 0 && !drop[i-1] {
			// keep words on either side of a removed span apart
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var (
	converterOnce sync.Once
	converter     *opencc.OpenCC
	converterErr  error
)

func scriptConverter() (*opencc.OpenCC, error) {
	converterOnce.Do(func() {
		converter, converterErr = opencc.New("s2tw")
		if converterErr != nil {
			slog.Warn("Script converter unavailable, variant matching disabled", "error", converterErr)
		}
	})
	return converter, converterErr
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// ToScriptVariant converts Simplified Chinese to the Taiwan Traditional variant.
// The result is only used for comparisons. Input without Han characters, or a
// conversion failure, yields s unchanged.
func ToScriptVariant(s string) string {
	if !hasHan(s) {
		return s
	}
	cc, err := scriptConverter()
	if err != nil {
		return s
	}
	out, err := cc.Convert(s)
	if err != nil {
		return s
	}
	return out
}

// Variants returns the distinct non-empty normalized forms of s in both scripts.
func Variants(s string) []string {
	forms := make([]string, 0, 2)
	for _, f := range []string{Normalize(s), Normalize(ToScriptVariant(s))} {
		if f == "" {
			continue
		}
		dup := false
		for _, existing := range forms {
			if existing == f {
				dup = true
				break
			}
		}
		if !dup {
			forms = append(forms, f)
		}
	}
	return forms
}
