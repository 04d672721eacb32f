// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

// Package errstate keeps the most recent failure per calling thread.
//
// The C boundary has no exception mechanism: failing calls return a sentinel
// value and the caller asks for the detail afterwards, on the same thread
// that made the failing call. The registry is keyed by an opaque thread key
// supplied by the boundary (the pthread id in practice, arbitrary values in
// tests) so that unrelated threads never observe each other's failures.
package errstate

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Registry stores the last error recorded for each thread key. Reads are
// take-once: retrieving an error clears the slot.
type Registry struct {
	log *zap.Logger

	mu    sync.Mutex
	slots map[uint64]error
}

// NewRegistry creates a registry. If logger is nil, a no-op logger is used.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		log:   logger,
		slots: make(map[uint64]error),
	}
}

// Record stores err in key's slot, overwriting any prior unread error.
// The primary error is logged at error level and each cause in its chain at
// warn level. Recording nil is a no-op.
func (r *Registry) Record(key uint64, err error) {
	if err == nil {
		return
	}

	r.log.Error("setting last error", zap.Uint64("thread", key), zap.Error(err))
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		r.log.Warn("caused by", zap.Uint64("thread", key), zap.String("cause", cause.Error()))
	}

	r.mu.Lock()
	r.slots[key] = err
	r.mu.Unlock()
}

// Take removes and returns the error stored for key, or nil if the slot is
// empty. A second consecutive call returns nil.
func (r *Registry) Take(key uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.slots[key]
	delete(r.slots, key)
	return err
}

// LastMessage takes the error stored for key and returns its primary
// message, or the empty string if no error is pending.
func (r *Registry) LastMessage(key uint64) string {
	if err := r.Take(key); err != nil {
		return err.Error()
	}
	return ""
}
