package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchesIsReflexiveAfterNormalization(t *testing.T) {
	for _, s := range []string{"", "Answer", "  北京 ; 上海 ", "√", "la niña", "A B C"} {
		require.True(t, Matches(s, s, 0), "expected %q to match itself", s)
	}
}

func TestNormalizeStripsWhitespaceAndPunctuation(t *testing.T) {
	require.Equal(t, "北京上海", Normalize("北京 ;上海"))
	require.Equal(t, "北京上海", Normalize("北京；上海"))
	require.Equal(t, "helloworld", Normalize("  Hello, World!  "))
	require.Equal(t, "", Normalize(" ，。！ "))
}

func TestMatchesContainment(t *testing.T) {
	require.True(t, Matches("北京", "北京市", 0))
	require.True(t, Matches("中华人民共和国", "人民", 0))
	require.False(t, Matches("广州", "北京", 0))
}

func TestMatchesSynonymsAreSymmetric(t *testing.T) {
	// A -> [B, C] must make all of A, B, C mutually recognized.
	require.True(t, Matches("对", "正确", 0.8))
	require.True(t, Matches("正确", "对", 0.8))
	require.True(t, Matches("正确", "是", 0.8))
	require.True(t, Matches("√", "yes", 0.8))
	require.False(t, Matches("对", "错误", 0.8))
	require.False(t, Matches("能", "对", 0.8))
}

func TestSimilarityIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"光合作用", "光和作用"},
		{"", "abc"},
		{"", ""},
		{"same", "same"},
	}
	for _, pair := range pairs {
		require.Equal(t, Similarity(pair[0], pair[1]), Similarity(pair[1], pair[0]))
	}
}

func TestSimilarityEdgeCases(t *testing.T) {
	require.Equal(t, 1.0, Similarity("", ""))
	require.Equal(t, 0.0, Similarity("", "abc"))
	require.Equal(t, 1.0, Similarity("abc", "abc"))
	require.InDelta(t, 0.75, Similarity("abcd", "abcx"), 1e-9)
}

func TestMatchesEditDistanceThreshold(t *testing.T) {
	// One substitution in a four-rune answer: similarity 0.75.
	require.True(t, Matches("光合作用x", "光合作用", 0.8))
	require.False(t, Matches("光和做用", "光合作用", 0.8))
	require.True(t, Matches("光和做用", "光合作用", 0.5))
}

func TestMatchesSequenceRequiresEqualLengthAndPositions(t *testing.T) {
	require.True(t, MatchesSequence([]string{"对", "北京"}, []string{"正确", "北京市"}, 0.8))
	require.False(t, MatchesSequence([]string{"对"}, []string{"对", "错"}, 0.8))
	require.False(t, MatchesSequence([]string{"北京", "上海"}, []string{"上海", "北京"}, 0.8))
	require.True(t, MatchesSequence(nil, nil, 0.8))
}

func TestSplitParts(t *testing.T) {
	require.Equal(t, []string{"北京", "上海"}, SplitParts("北京;上海"))
	require.Equal(t, []string{"北京", "上海"}, SplitParts("北京 ；上海；"))
	require.Empty(t, SplitParts(" ; ; "))
}
