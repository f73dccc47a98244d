package agentparty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPtr(t *testing.T) {
	n := ToPtr(42)
	require.NotNil(t, n)
	assert.Equal(t, 42, *n)

	s := ToPtr("implement")
	require.NotNil(t, s)
	assert.Equal(t, "implement", *s)

	// Each call yields an independent pointer
	ts := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	a, b := ToPtr(ts), ToPtr(ts)
	assert.NotSame(t, a, b)
	assert.Equal(t, *a, *b)
}
