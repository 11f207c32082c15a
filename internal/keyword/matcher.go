// Package keyword decides whether a transcript mentions an expected keyword.
//
// Two judgements are made for every transcript:
//
//   - Contains is the strict baseline: the normalized keyword must occur as a
//     substring of the normalized transcript.
//   - Match is lenient. The keyword and each of its aliases are tokenized;
//     each keyword token counts as found when it appears among the transcript
//     tokens exactly, with a Jaro-Winkler similarity at or above the fuzzy
//     threshold, or with overlapping Double Metaphone codes and a similarity
//     at or above the phonetic threshold. Found tokens are weighted, the
//     longest tokens acting as anchors, and the weighted recall must reach
//     the minimum. When it does not, a character trigram Jaccard similarity
//     between keyword and transcript serves as a last check.
//
// A Matcher is read-only after construction and safe for concurrent use.
package keyword

import (
	"cmp"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultFuzzyThreshold    = 0.84
	defaultPhoneticThreshold = 0.70
	defaultMinRecall         = 0.50
	defaultAnchors           = 3
	defaultAnchorWeight      = 2.5
	defaultTrigramThreshold  = 0.16
)

// Method names how a match was established.
type Method string

const (
	MethodNone    Method = "none"
	MethodToken   Method = "token"
	MethodTrigram Method = "trigram"
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithAliases sets alternative spellings per keyword. Any alias matching is
// as good as the keyword itself.
func WithAliases(aliases map[string][]string) Option {
	return func(m *Matcher) {
		m.aliases = make(map[string][]string, len(aliases))
		for k, v := range aliases {
			m.aliases[Normalize(k)] = slices.Clone(v)
		}
	}
}

// WithFuzzyThreshold sets the Jaro-Winkler score at which a token counts as
// found. Default: 0.84.
func WithFuzzyThreshold(t float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = t }
}

// WithPhoneticThreshold sets the Jaro-Winkler score required for tokens that
// share a Double Metaphone code. Default: 0.70.
func WithPhoneticThreshold(t float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = t }
}

// WithMinRecall sets the weighted token recall needed for a match.
// Default: 0.5.
func WithMinRecall(r float64) Option {
	return func(m *Matcher) { m.minRecall = r }
}

// WithAnchors sets how many of the longest keyword tokens are weighted and
// by how much. Defaults: 3 tokens, weight 2.5.
func WithAnchors(n int, weight float64) Option {
	return func(m *Matcher) {
		m.anchors = n
		m.anchorWeight = weight
	}
}

// WithTrigramThreshold sets the trigram Jaccard similarity that matches when
// token recall falls short. Zero or less disables the check. Default: 0.16.
func WithTrigramThreshold(t float64) Option {
	return func(m *Matcher) { m.trigramThreshold = t }
}

// Matcher scores transcripts against keywords.
type Matcher struct {
	aliases           map[string][]string
	fuzzyThreshold    float64
	phoneticThreshold float64
	minRecall         float64
	anchors           int
	anchorWeight      float64
	trigramThreshold  float64
}

// New returns a Matcher with the given options applied over the defaults.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		fuzzyThreshold:    defaultFuzzyThreshold,
		phoneticThreshold: defaultPhoneticThreshold,
		minRecall:         defaultMinRecall,
		anchors:           defaultAnchors,
		anchorWeight:      defaultAnchorWeight,
		trigramThreshold:  defaultTrigramThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	if m.anchors < 1 {
		m.anchors = 1
	}
	return m
}

// Result is the outcome of [Matcher.Match].
type Result struct {
	Matched bool
	Method  Method
	// Form is the keyword or alias that matched.
	Form string
	// Recall is the best weighted token recall over all forms.
	Recall float64
	// Trigram is the best trigram Jaccard similarity computed, if any.
	Trigram float64
}

// Contains reports whether the normalized keyword occurs in the normalized
// text. An empty keyword never matches.
func Contains(text, keyword string) bool {
	k := Normalize(keyword)
	return k != "" && strings.Contains(Normalize(text), k)
}

// Forms returns keyword followed by its distinct aliases.
func (m *Matcher) Forms(keyword string) []string {
	out := []string{keyword}
	seen := map[string]struct{}{Normalize(keyword): {}}
	for _, a := range m.aliases[Normalize(keyword)] {
		n := Normalize(a)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Match tests text against keyword and its aliases.
func (m *Matcher) Match(text, keyword string) Result {
	return m.MatchTokens(Tokenize(text), text, keyword)
}

// MatchTokens is Match with a caller-supplied token set, for example the
// union of the tokens of two transcripts of the same recording. text is used
// only for the trigram check.
func (m *Matcher) MatchTokens(tokens []string, text, keyword string) Result {
	res := Result{Method: MethodNone}
	if len(tokens) == 0 && Normalize(text) == "" {
		return res
	}
	found := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if n := Normalize(t); n != "" {
			found[n] = struct{}{}
		}
	}
	foundCodes := make(map[string]map[string]struct{}, len(found))
	for f := range found {
		foundCodes[f] = metaphoneCodes(f)
	}

	for _, form := range m.Forms(keyword) {
		recall := m.recall(Tokenize(form), found, foundCodes)
		if recall > res.Recall {
			res.Recall = recall
		}
		if recall >= m.minRecall && recall > 0 {
			res.Matched, res.Method, res.Form = true, MethodToken, form
			return res
		}
		if m.trigramThreshold <= 0 {
			continue
		}
		j := trigramJaccard(form, text)
		if j > res.Trigram {
			res.Trigram = j
		}
		if j >= m.trigramThreshold {
			res.Matched, res.Method, res.Form = true, MethodTrigram, form
			return res
		}
	}
	return res
}

// recall returns the anchor-weighted fraction of required tokens found.
func (m *Matcher) recall(required []string, found map[string]struct{}, foundCodes map[string]map[string]struct{}) float64 {
	if len(required) == 0 {
		return 0
	}
	byLen := slices.Clone(required)
	slices.SortStableFunc(byLen, func(a, b string) int {
		return cmp.Compare(len([]rune(b)), len([]rune(a)))
	})
	anchors := make(map[string]struct{}, m.anchors)
	for _, t := range byLen[:min(m.anchors, len(byLen))] {
		anchors[t] = struct{}{}
	}

	var hit, total float64
	for _, t := range required {
		w := 1.0
		if _, ok := anchors[t]; ok {
			w = m.anchorWeight
		}
		total += w
		if m.tokenFound(t, found, foundCodes) {
			hit += w
		}
	}
	return hit / total
}

func (m *Matcher) tokenFound(t string, found map[string]struct{}, foundCodes map[string]map[string]struct{}) bool {
	if _, ok := found[t]; ok {
		return true
	}
	codes := metaphoneCodes(t)
	for f := range found {
		score := matchr.JaroWinkler(t, f, false)
		if score >= m.fuzzyThreshold {
			return true
		}
		if score >= m.phoneticThreshold && codesOverlap(codes, foundCodes[f]) {
			return true
		}
	}
	return false
}
