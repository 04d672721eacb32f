// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

// Package progress carries human-readable lifecycle notifications from
// background work to a polling consumer.
//
// A channel has two independently owned ends. The sender side may be cloned
// so that several producers share one channel; the receiver observes closure
// only once every sender has been closed and the buffer is drained.
package progress

import (
	"context"
	"errors"
	"sync"
)

// DefaultCapacity is the number of pending messages a channel buffers
// before senders block.
const DefaultCapacity = 100

// ErrClosed is returned by Send on a sender that has been closed.
var ErrClosed = errors.New("progress channel closed")

type state struct {
	ch chan string

	mu      sync.Mutex
	senders int
}

// Sender is the producer end of a progress channel. A Sender is single
// owner: clone it rather than sharing one instance across goroutines.
type Sender struct {
	st *state

	mu     sync.Mutex
	closed bool
}

// Receiver is the consumer end of a progress channel. A single consumer is
// assumed; concurrent pollers race for the same message with no replay.
type Receiver struct {
	st *state
}

// New creates a progress channel with the given capacity (DefaultCapacity
// when capacity <= 0) and returns its two ends.
func New(capacity int) (*Sender, *Receiver) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	st := &state{
		ch:      make(chan string, capacity),
		senders: 1,
	}
	return &Sender{st: st}, &Receiver{st: st}
}

// Send enqueues msg, blocking while the buffer is at capacity. Messages are
// never dropped: a full channel exerts backpressure on the producer until
// the consumer drains it or ctx is done. Send returns ErrClosed if this
// sender has been closed.
func (s *Sender) Send(ctx context.Context, msg string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case s.st.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clone returns a new sender for the same channel. The channel stays open
// for the receiver until every clone has been closed.
func (s *Sender) Clone() *Sender {
	s.st.mu.Lock()
	s.st.senders++
	s.st.mu.Unlock()
	return &Sender{st: s.st}
}

// Close releases this sender. Once all senders are closed the channel is
// closed for the receiver. Close is idempotent.
func (s *Sender) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.st.mu.Lock()
	s.st.senders--
	if s.st.senders == 0 {
		close(s.st.ch)
	}
	s.st.mu.Unlock()
}

// Next blocks until a message is available and returns it in send order.
// It returns ok=false once every sender has been closed and the buffer is
// drained.
func (r *Receiver) Next() (string, bool) {
	msg, ok := <-r.st.ch
	return msg, ok
}
