package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityCanonicalSortsTagsByName(t *testing.T) {
	a, err := NewIdentity("api.latency", []Tag{
		{Name: "route", Value: "PutItem", HasValue: true},
		{Name: "env", Value: "prod", HasValue: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "api.latency;env:prod,route:PutItem", a.String())
}

func TestIdentityEqualIgnoresInputTagOrder(t *testing.T) {
	a, err := NewIdentity("errors", []Tag{
		{Name: "impact", Value: "medium", HasValue: true},
		{Name: "scope", Value: "app", HasValue: true},
	})
	require.NoError(t, err)

	b, err := NewIdentity("errors", []Tag{
		{Name: "scope", Value: "app", HasValue: true},
		{Name: "impact", Value: "medium", HasValue: true},
	})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
}

func TestIdentityRejectsEmptyName(t *testing.T) {
	_, err := NewIdentity("  ", nil)
	assert.Error(t, err)
}

func TestIdentityNoTagsCanonical(t *testing.T) {
	id, err := NewIdentity("errors", nil)
	require.NoError(t, err)
	assert.Equal(t, "errors", id.String())
}
