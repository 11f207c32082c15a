package keyword

import "github.com/antzucaro/matchr"

// metaphoneCodes returns the non-empty Double Metaphone codes of token.
// Only ASCII tokens are encoded.
func metaphoneCodes(token string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	for i := 0; i < len(token); i++ {
		if token[i] >= 0x80 {
			return codes
		}
	}
	p, s := matchr.DoubleMetaphone(token)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap reports whether a and b share a code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// trigrams returns the set of rune trigrams of the normalized s. Strings
// shorter than three runes yield themselves.
func trigrams(s string) map[string]struct{} {
	r := []rune(Normalize(s))
	out := make(map[string]struct{})
	if len(r) == 0 {
		return out
	}
	if len(r) < 3 {
		out[string(r)] = struct{}{}
		return out
	}
	for i := 0; i+3 <= len(r); i++ {
		out[string(r[i:i+3])] = struct{}{}
	}
	return out
}

// trigramJaccard returns |A∩B| / |A∪B| over the trigram sets of a and b, or
// 0 when either is empty.
func trigramJaccard(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(ta)+len(tb)-inter)
}
