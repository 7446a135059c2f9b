package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategories_AllPresent(t *testing.T) {
	slugs := Categories()
	assert.Len(t, slugs, 11)
	assert.Contains(t, slugs, "escapegames")
	assert.Contains(t, slugs, "museums")
	assert.Contains(t, slugs, "therapists")
}

func TestLookup(t *testing.T) {
	c, ok := Lookup("escapegames")
	require.True(t, ok)
	assert.Equal(t, "escapegames", c.Yelp)
	assert.Equal(t, "escape room", c.Google)

	_, ok = Lookup("bowling")
	assert.False(t, ok)
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory("yoga"))
	assert.False(t, ValidCategory(""))
	assert.False(t, ValidCategory("YOGA"))
}
