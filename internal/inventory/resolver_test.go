package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveFilterExactCaseInsensitive(t *testing.T) {
	value, score, ok := ResolveFilter("nike air zoom", []string{"Adidas Samba", "Nike Air Zoom"})
	require.True(t, ok)
	require.Equal(t, "Nike Air Zoom", value)
	require.Equal(t, 100, score)
}

func TestResolveFilterFuzzyMatch(t *testing.T) {
	value, score, ok := ResolveFilter("Air Max", []string{"Air Max 90", "Air Force 1"})
	require.True(t, ok)
	require.Equal(t, "Air Max 90", value)
	require.GreaterOrEqual(t, score, 80)
}

func TestResolveFilterNoMatch(t *testing.T) {
	value, _, ok := ResolveFilter("red", []string{"Blue", "Black", "White"})
	require.False(t, ok)
	require.Empty(t, value)
}

func TestResolveFilterShortQueryNeedsHigherScore(t *testing.T) {
	// "Nyke" scores around 75 against "Nike"; short queries need 90.
	value, score, ok := ResolveFilter("Nyke", []string{"Nike", "Adidas"})
	require.False(t, ok)
	require.Empty(t, value)
	require.Less(t, score, shortMatchThreshold)
}

func TestResolveFilterTieBreakFirstSeen(t *testing.T) {
	value, _, ok := ResolveFilter("Runner Pro", []string{"Runner Pro X", "Runner Pro Y"})
	require.True(t, ok)
	require.Equal(t, "Runner Pro X", value)
}

func TestResolveFilterEmptyInputs(t *testing.T) {
	_, score, ok := ResolveFilter("", []string{"Nike"})
	require.False(t, ok)
	require.Zero(t, score)

	_, score, ok = ResolveFilter("Nike", nil)
	require.False(t, ok)
	require.Zero(t, score)
}

func TestResolveFilterDeduplicatesCandidates(t *testing.T) {
	value, _, ok := ResolveFilter("air max", []string{"Air Max 90", "Air Max 90", "Air Max 90", "Air Force 1"})
	require.True(t, ok)
	require.Equal(t, "Air Max 90", value)
}

func TestDedupePreservesFirstSeenOrder(t *testing.T) {
	out := dedupe([]string{"b", "a", "b", "c", "a"})
	require.Equal(t, []string{"b", "a", "c"}, out)
}
