package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)

	c := System(loc)
	assert.Equal(t, loc, c.Now().Location())
	assert.Equal(t, loc, c.Location())
}

func TestFixed(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Fixed(at)

	assert.Equal(t, at, c.Now())
	c.Advance(time.Hour)
	assert.Equal(t, at.Add(time.Hour), c.Now())
	assert.Equal(t, time.UTC, c.Location())
}
