package errstate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestTakeOnce verifies that reading an error clears the slot.
func TestTakeOnce(t *testing.T) {
	r := NewRegistry(nil)
	r.Record(1, errors.New("boom"))

	err := r.Take(1)
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())

	assert.NoError(t, r.Take(1))
}

// TestLastMessageTakeOnce verifies the boundary-facing read: message once,
// empty afterwards.
func TestLastMessageTakeOnce(t *testing.T) {
	r := NewRegistry(nil)
	r.Record(7, errors.New("bootstrap failed"))

	assert.Equal(t, "bootstrap failed", r.LastMessage(7))
	assert.Equal(t, "", r.LastMessage(7))
}

// TestOverwrite verifies a newer failure replaces an unread one.
func TestOverwrite(t *testing.T) {
	r := NewRegistry(nil)
	r.Record(1, errors.New("first"))
	r.Record(1, errors.New("second"))

	assert.Equal(t, "second", r.LastMessage(1))
	assert.Equal(t, "", r.LastMessage(1))
}

// TestPerKeyIsolation verifies errors never cross thread keys.
func TestPerKeyIsolation(t *testing.T) {
	r := NewRegistry(nil)
	r.Record(1, errors.New("thread one"))

	assert.Equal(t, "", r.LastMessage(2))
	assert.Equal(t, "thread one", r.LastMessage(1))
}

// TestRecordNil verifies recording nil leaves the slot untouched.
func TestRecordNil(t *testing.T) {
	r := NewRegistry(nil)
	r.Record(1, errors.New("real"))
	r.Record(1, nil)

	assert.Equal(t, "real", r.LastMessage(1))
}

// TestCauseChainLogged verifies the primary error is logged at error level
// and each cause at warn level.
func TestCauseChainLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRegistry(zap.New(core))

	root := errors.New("connection refused")
	mid := fmt.Errorf("directory fetch: %w", root)
	r.Record(1, fmt.Errorf("bootstrap: %w", mid))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
}
