package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsBlankDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{DSN: "   "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}
