package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFirstEnabledMatchByAscendingID(t *testing.T) {
	resolver, err := NewResolver([]Rule{
		{ID: 1, ProjectPattern: "^a", Enabled: false},
		{ID: 2, ProjectPattern: "^a", Enabled: true},
	})
	require.NoError(t, err)

	rule := resolver.Resolve("abc")
	require.NotNil(t, rule)
	assert.Equal(t, int64(2), rule.ID)
}

func TestResolveOrdersByIDNotBySliceOrder(t *testing.T) {
	resolver, err := NewResolver([]Rule{
		{ID: 9, ProjectPattern: "demo", Enabled: true, ResolveKeyword: "later"},
		{ID: 3, ProjectPattern: "demo", Enabled: true, ResolveKeyword: "earlier"},
	})
	require.NoError(t, err)

	rule := resolver.Resolve("demo")
	require.NotNil(t, rule)
	assert.Equal(t, "earlier", rule.ResolveKeyword)
}

func TestResolveUsesSearchSemantics(t *testing.T) {
	resolver, err := NewResolver([]Rule{
		{ID: 1, ProjectPattern: "mid", Enabled: true},
	})
	require.NoError(t, err)

	// "mid" matches anywhere in the identifier, not only a full match.
	assert.NotNil(t, resolver.Resolve("pyramid-scheme"))
	assert.Nil(t, resolver.Resolve("summit"))
}

func TestResolveNoMatchReturnsNil(t *testing.T) {
	resolver, err := NewResolver([]Rule{
		{ID: 1, ProjectPattern: "^a", Enabled: true},
	})
	require.NoError(t, err)

	assert.Nil(t, resolver.Resolve("zzz"))
}

func TestNewResolverRejectsInvalidPattern(t *testing.T) {
	_, err := NewResolver([]Rule{{ID: 7, ProjectPattern: "(["}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule 7")
}
