// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

// libcloak is the C-callable interface to the embedded anonymity client.
//
// Build with:
//
//	go build -buildmode=c-shared -o libcloak.so ./cmd/libcloak
//
// Every exported function returns a sentinel value on failure and records
// the detailed error for retrieval via cloak_last_error_message on the same
// thread that made the failing call. Errors never unwind across the
// boundary. Each opaque handle is single-owner and single-in-flight-call:
// invoking two operations on the same handle concurrently is undefined and
// must be serialized by the caller.
package main

import (
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/cloaknet/cloak/internal/errstate"
	"github.com/cloaknet/cloak/internal/lifecycle"
	"github.com/cloaknet/cloak/internal/logging"
	"github.com/cloaknet/cloak/internal/rt"
)

var (
	setupOnce sync.Once
	logger    *zap.Logger
	errs      *errstate.Registry
	mgr       *lifecycle.Manager
)

// setup initializes the state shared by every exported call: one logger,
// one error registry, one lifecycle manager on the process-wide runtime.
// Runs at most once.
func setup() {
	setupOnce.Do(func() {
		l, err := logging.New(os.Getenv("CLOAK_LOG_LEVEL"))
		if err != nil {
			l = zap.NewNop()
		}
		logger = l.Named("libcloak")
		errs = errstate.NewRegistry(logger)
		mgr = lifecycle.NewManager(rt.Shared(logger), logger, nil, nil)
	})
}

func main() {}
