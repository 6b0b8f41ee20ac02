package grading

import "strings"

// DefaultThreshold is the edit-distance similarity cutoff used when a caller
// supplies no explicit threshold.
const DefaultThreshold = 0.8

// strippedRunes is the fixed set of half-width and full-width punctuation
// removed during normalization, so "北京 ;上海" and "北京;上海" compare equal.
const strippedRunes = ",.!?;:'\"()[]{}<>-_/\\|@#$%^&*+=~`" +
	"，。！？；：“”‘’（）【】《》、·～—…　"

// Normalize trims, case-folds, and strips whitespace plus the fixed
// punctuation set from s.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if strings.ContainsRune(strippedRunes, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// synonyms maps a canonical term to equivalent free-text answers. Expansion
// is symmetric: every term in an entry matches every other term of the same
// entry, regardless of which one the student wrote.
var synonyms = map[string][]string{
	"对":  {"正确", "√", "是", "yes", "true", "t", "right"},
	"错":  {"错误", "×", "不对", "否", "no", "false", "f", "wrong"},
	"能":  {"可以", "行"},
	"不能": {"不可以", "不行"},
}

// expandSynonyms returns the normalized equivalence set of s: s itself plus
// every term sharing a synonym entry with it.
func expandSynonyms(s string) map[string]struct{} {
	set := map[string]struct{}{s: {}}
	for key, values := range synonyms {
		normalizedKey := Normalize(key)
		group := make([]string, 0, len(values)+1)
		group = append(group, normalizedKey)
		member := s == normalizedKey
		for _, value := range values {
			normalized := Normalize(value)
			group = append(group, normalized)
			if s == normalized {
				member = true
			}
		}
		if member {
			for _, term := range group {
				set[term] = struct{}{}
			}
		}
	}
	return set
}

// Matches reports whether candidate is an acceptable rendering of reference.
// Stages run in order and short-circuit on the first success: normalized
// equality, containment either direction, symmetric synonym expansion, and
// finally normalized Levenshtein similarity against threshold (DefaultThreshold
// when threshold <= 0).
func Matches(candidate, reference string, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	a := Normalize(candidate)
	b := Normalize(reference)

	if a == b {
		return true
	}
	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return true
	}

	expanded := expandSynonyms(a)
	for term := range expandSynonyms(b) {
		if _, ok := expanded[term]; ok {
			return true
		}
	}

	return Similarity(a, b) >= threshold
}

// MatchesSequence requires candidates and references to have equal length and
// to match pairwise at the same index. Any length mismatch is a non-match.
func MatchesSequence(candidates, references []string, threshold float64) bool {
	if len(candidates) != len(references) {
		return false
	}
	for i := range candidates {
		if !Matches(candidates[i], references[i], threshold) {
			return false
		}
	}
	return true
}

// Similarity computes normalized edit-distance similarity between two
// already-normalized strings: 1 - distance/maxLen. Two empty strings are
// fully similar; exactly one empty string is fully dissimilar.
func Similarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes the rune-based edit distance with a two-row matrix.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	previous := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		previous[j] = j
	}

	for i := 1; i <= len(a); i++ {
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[j] = minOf(
				previous[j]+1,
				current[j-1]+1,
				previous[j-1]+cost,
			)
		}
		previous, current = current, previous
	}
	return previous[len(b)]
}

func minOf(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// SplitParts splits a multi-blank answer on the half- and full-width
// semicolon delimiters, trimming parts and dropping empties.
func SplitParts(answer string) []string {
	fields := strings.FieldsFunc(answer, func(r rune) bool {
		return r == ';' || r == '；'
	})
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
