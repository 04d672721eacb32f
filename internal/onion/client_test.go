package onion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDormantModeString covers both modes and the zero value.
func TestDormantModeString(t *testing.T) {
	assert.Equal(t, "normal", DormantNormal.String())
	assert.Equal(t, "soft", DormantSoft.String())
	assert.Equal(t, "normal", DormantMode(0).String())
}

// TestClosedClient verifies a closed tor client rejects every operation
// instead of touching a dead process.
func TestClosedClient(t *testing.T) {
	c := &TorClient{}

	assert.ErrorIs(t, c.Bootstrap(context.Background()), ErrClosed)
	assert.ErrorIs(t, c.SetDormant(DormantSoft), ErrClosed)

	_, err := c.DialContext(context.Background(), "tcp", "example.com:80")
	assert.ErrorIs(t, err, ErrNotBootstrapped)

	assert.NoError(t, c.Close())
}
