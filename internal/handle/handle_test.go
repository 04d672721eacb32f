package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	name string
}

// TestBorrowPreserves verifies a borrowed handle stays valid for further
// calls.
func TestBorrowPreserves(t *testing.T) {
	ptr := Wrap(KindClient, &payload{name: "c"})

	for i := 0; i < 3; i++ {
		v, err := BorrowAs[*payload](ptr, KindClient)
		require.NoError(t, err)
		assert.Equal(t, "c", v.name)
	}

	// Still takeable after borrowing.
	v, err := TakeAs[*payload](ptr, KindClient)
	require.NoError(t, err)
	assert.Equal(t, "c", v.name)
}

// TestTakeReturnsValue verifies Take hands the wrapped value back.
func TestTakeReturnsValue(t *testing.T) {
	p := &payload{name: "x"}
	ptr := Wrap(KindProxyTask, p)

	v, err := TakeAs[*payload](ptr, KindProxyTask)
	require.NoError(t, err)
	assert.Same(t, p, v)
}

// TestKindMismatch verifies passing a handle to an operation of another
// kind is rejected and leaves the handle intact.
func TestKindMismatch(t *testing.T) {
	ptr := Wrap(KindProgressSend, &payload{name: "s"})

	_, err := Borrow(ptr, KindClient)
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = Take(ptr, KindProgressRecv)
	assert.ErrorIs(t, err, ErrKindMismatch)

	// The failed Take must not have consumed the handle.
	v, err := BorrowAs[*payload](ptr, KindProgressSend)
	require.NoError(t, err)
	assert.Equal(t, "s", v.name)
}

// TestNilHandle verifies null pointers are rejected before lookup.
func TestNilHandle(t *testing.T) {
	_, err := Borrow(0, KindClient)
	assert.ErrorIs(t, err, ErrNilHandle)

	_, err = Take(0, KindProxyTask)
	assert.ErrorIs(t, err, ErrNilHandle)
}

// TestWrongType verifies the typed accessors reject a value of an
// unexpected type without consuming it.
func TestWrongType(t *testing.T) {
	ptr := Wrap(KindClient, "not a payload")

	_, err := BorrowAs[*payload](ptr, KindClient)
	assert.ErrorIs(t, err, ErrWrongType)

	s, err := BorrowAs[string](ptr, KindClient)
	require.NoError(t, err)
	assert.Equal(t, "not a payload", s)
}

// TestKindString covers the closed set of kind names.
func TestKindString(t *testing.T) {
	assert.Equal(t, "client", KindClient.String())
	assert.Equal(t, "proxy-task", KindProxyTask.String())
	assert.Equal(t, "progress-send", KindProgressSend.String())
	assert.Equal(t, "progress-recv", KindProgressRecv.String())
}
