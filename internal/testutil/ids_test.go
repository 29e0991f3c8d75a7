package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedIDs(t *testing.T) {
	ids := NewFixedIDs("")

	first, err := ids.NewID()
	require.NoError(t, err)
	second, err := ids.NewID()
	require.NoError(t, err)

	assert.Equal(t, "run-0001", first)
	assert.Equal(t, "run-0002", second)
}

func TestFixedIDs_Prefix(t *testing.T) {
	ids := NewFixedIDs("calc")
	id, err := ids.NewID()
	require.NoError(t, err)
	assert.Equal(t, "calc-0001", id)
}
