// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

// Package handle implements the opaque-handle bridge across the C boundary.
//
// Every long-lived object handed to the unmanaged caller is wrapped in a
// cgo.Handle tagged with its kind. The caller only ever sees an
// address-sized token; on each call the token is reconstituted here, with
// the kind checked before the value is touched so that passing the wrong
// handle to an operation becomes an error instead of memory corruption.
//
// Handles are either borrowed (the token stays valid) or taken (the token
// is consumed and must not be reused). Reusing a taken handle, or passing a
// value that never came from Wrap, is a caller programming error with
// undefined behavior — the same contract a raw pointer would have.
package handle

import (
	"errors"
	"fmt"
	"runtime/cgo"
)

// Kind tags the closed set of object types that may cross the boundary.
type Kind uint8

const (
	KindClient Kind = iota + 1
	KindProxyTask
	KindProgressSend
	KindProgressRecv
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindProxyTask:
		return "proxy-task"
	case KindProgressSend:
		return "progress-send"
	case KindProgressRecv:
		return "progress-recv"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	// ErrNilHandle indicates a null pointer was passed for a handle.
	ErrNilHandle = errors.New("nil handle")

	// ErrKindMismatch indicates a handle was passed to an operation meant
	// for a different handle kind.
	ErrKindMismatch = errors.New("handle kind mismatch")

	// ErrWrongType indicates the value behind a handle does not have the
	// type the operation expected.
	ErrWrongType = errors.New("unexpected value type behind handle")
)

type cell struct {
	kind  Kind
	value any
}

// Wrap places value behind an opaque address-sized token tagged with kind.
// The token carries no inspectable structure and must be released through
// Take exactly once.
func Wrap(kind Kind, value any) uintptr {
	return uintptr(cgo.NewHandle(cell{kind: kind, value: value}))
}

func lookup(ptr uintptr, kind Kind) (cgo.Handle, any, error) {
	if ptr == 0 {
		return 0, nil, fmt.Errorf("%w: expected %s", ErrNilHandle, kind)
	}
	h := cgo.Handle(ptr)
	c := h.Value().(cell)
	if c.kind != kind {
		return 0, nil, fmt.Errorf("%w: got %s, want %s", ErrKindMismatch, c.kind, kind)
	}
	return h, c.value, nil
}

// Borrow reconstitutes the value behind ptr without consuming the token;
// the handle remains valid for future calls.
func Borrow(ptr uintptr, kind Kind) (any, error) {
	_, v, err := lookup(ptr, kind)
	return v, err
}

// Take reconstitutes the value behind ptr and consumes the token. The
// handle must not be reused or independently freed afterwards.
func Take(ptr uintptr, kind Kind) (any, error) {
	h, v, err := lookup(ptr, kind)
	if err != nil {
		return nil, err
	}
	h.Delete()
	return v, nil
}

// BorrowAs is Borrow with a typed result.
func BorrowAs[T any](ptr uintptr, kind Kind) (T, error) {
	var zero T
	v, err := Borrow(ptr, kind)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrWrongType, kind, v)
	}
	return t, nil
}

// TakeAs is Take with a typed result.
func TakeAs[T any](ptr uintptr, kind Kind) (T, error) {
	var zero T
	v, err := Take(ptr, kind)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrWrongType, kind, v)
	}
	return t, nil
}
