package keyword

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds s for substring comparison: NFKC, lower case, and every
// rune that is not a letter or digit removed.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Tokenize splits text into normalized word tokens. Runs of Hangul and runs
// of other letters or digits form separate tokens, so "KTX열차" yields
// "ktx" and "열차". Duplicates are dropped; order is preserved.
func Tokenize(text string) []string {
	text = norm.NFKC.String(text)
	var (
		out  []string
		seen = make(map[string]struct{})
		cur  strings.Builder
		prev = scriptNone
	)
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		t := cur.String()
		cur.Reset()
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, r := range text {
		sc := scriptOf(r)
		if sc != prev {
			flush()
		}
		prev = sc
		if sc != scriptNone {
			cur.WriteRune(unicode.ToLower(r))
		}
	}
	flush()
	return out
}

type script int

const (
	scriptNone script = iota
	scriptHangul
	scriptWord
)

func scriptOf(r rune) script {
	switch {
	case unicode.Is(unicode.Hangul, r):
		return scriptHangul
	case unicode.IsLetter(r) || unicode.IsDigit(r):
		return scriptWord
	default:
		return scriptNone
	}
}
