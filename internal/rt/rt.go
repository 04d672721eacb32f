// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

// Package rt provides the execution context for background work.
//
// Components receive a *Runtime at construction instead of reaching for a
// global, so tests can supply a scoped runtime and tear it down
// deterministically. The C boundary uses the single process-wide instance
// returned by Shared, created lazily on first use: all asynchronous work
// behind the boundary runs on that one runtime, never on a second competing
// one.
package rt

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runtime spawns and tracks cancellable background tasks.
type Runtime struct {
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a runtime. If logger is nil, a no-op logger is used.
func New(logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Task is one cancellable unit of background work. Abort is terminal;
// completion (success, error or cancellation) is observable through Done
// and Err.
type Task struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Spawn submits fn as a background task and returns immediately; fn has not
// necessarily begun executing when Spawn returns. The task's context is
// cancelled by Abort or by runtime shutdown.
func (r *Runtime) Spawn(name string, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(r.ctx)
	t := &Task{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	log := r.log.With(zap.String("task", name), zap.String("task_id", t.id))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		log.Debug("task started")

		err := fn(ctx)

		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)

		switch {
		case err == nil:
			log.Debug("task finished")
		case errors.Is(err, context.Canceled):
			log.Debug("task cancelled")
		default:
			log.Error("task failed", zap.Error(err))
		}
	}()

	return t
}

// ID returns the task's identity, used in logs.
func (t *Task) ID() string {
	return t.id
}

// Abort requests cancellation of the task. It does not block: the task may
// still be draining when Abort returns. Abort is terminal and idempotent.
func (t *Task) Abort() {
	t.cancel()
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's terminal error. It is meaningful only after Done
// is closed; until then it returns nil.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Shutdown cancels every task and waits for all of them to finish, bounded
// by ctx.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	sharedOnce sync.Once
	shared     *Runtime
)

// Shared returns the process-wide runtime, created on first use. The logger
// is only consulted on the creating call. The shared runtime lives for the
// rest of the process; it is never shut down.
func Shared(logger *zap.Logger) *Runtime {
	sharedOnce.Do(func() {
		shared = New(logger)
	})
	return shared
}
