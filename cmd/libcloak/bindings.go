// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

package main

/*
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>

// Handle bundle returned by cloak_start. Every field is an opaque tagged
// handle: pass it back to the matching cloak_* operation, never dereference
// it. On failure client and proxy are NULL while both progress ends are
// valid and owned by the caller.
typedef struct {
	void *client;
	void *proxy;
	void *progress_send;
	void *progress_recv;
} cloak_handles;
*/
import "C"

import (
	"context"
	"unsafe"

	"github.com/cloaknet/cloak/internal/handle"
	"github.com/cloaknet/cloak/internal/lifecycle"
	"github.com/cloaknet/cloak/internal/onion"
	"github.com/cloaknet/cloak/internal/progress"
	"github.com/cloaknet/cloak/internal/rt"
)

// noProgress is returned by cloak_progress_next once the channel is closed
// and drained.
const noProgress = "No progress"

// wrap converts a tagged handle into the void* the C side carries. The
// address is a handle token, not a real pointer.
func wrap(kind handle.Kind, value any) unsafe.Pointer {
	return unsafe.Pointer(handle.Wrap(kind, value))
}

// cloak_start creates a client with the given storage directories, drives
// its bootstrap to completion (blocking the calling thread), and spawns the
// local SOCKS5 proxy on socks_port.
//
// The progress ends are allocated before any fallible work and are returned
// valid in every case, so the caller can begin polling immediately. On
// failure client/proxy are NULL and the error is retrievable via
// cloak_last_error_message on this thread.
//
//export cloak_start
func cloak_start(socksPort C.uint16_t, stateDir, cacheDir *C.char) C.cloak_handles {
	setup()
	key := threadKey()

	res, err := mgr.Start(context.Background(), lifecycle.StartOptions{
		Port:     uint16(socksPort),
		StateDir: C.GoString(stateDir),
		CacheDir: C.GoString(cacheDir),
	})

	out := C.cloak_handles{
		progress_send: wrap(handle.KindProgressSend, res.Send),
		progress_recv: wrap(handle.KindProgressRecv, res.Recv),
	}
	if err != nil {
		errs.Record(key, err)
		return out
	}
	out.client = wrap(handle.KindClient, res.Client)
	out.proxy = wrap(handle.KindProxyTask, res.ProxyTask)
	return out
}

// cloak_client_bootstrap re-runs the client's bootstrap sequence, blocking
// the calling thread, and reports success.
//
// This call CONSUMES the client handle: it must not be reused or
// independently freed afterwards, whatever the outcome. Passing an
// already-consumed handle is a programming error with undefined behavior.
//
//export cloak_client_bootstrap
func cloak_client_bootstrap(client unsafe.Pointer) C.bool {
	setup()
	key := threadKey()

	c, err := handle.TakeAs[onion.Client](uintptr(client), handle.KindClient)
	if err != nil {
		errs.Record(key, err)
		return C.bool(false)
	}
	if err := mgr.Bootstrap(context.Background(), c); err != nil {
		errs.Record(key, err)
		return C.bool(false)
	}
	return C.bool(true)
}

// cloak_client_set_dormant switches the client between soft dormancy
// (reduced background activity) and normal mode. Unlike
// cloak_client_bootstrap, the handle is NOT consumed and remains valid for
// any number of further calls.
//
//export cloak_client_set_dormant
func cloak_client_set_dormant(client unsafe.Pointer, soft C.bool) {
	setup()
	key := threadKey()

	c, err := handle.BorrowAs[onion.Client](uintptr(client), handle.KindClient)
	if err != nil {
		errs.Record(key, err)
		return
	}
	mode := onion.DormantNormal
	if bool(soft) {
		mode = onion.DormantSoft
	}
	if err := mgr.SetDormant(c, mode); err != nil {
		errs.Record(key, err)
	}
}

// cloak_proxy_stop requests cancellation of the proxy task. The request is
// non-blocking; the service may still drain in-flight connections. This
// call CONSUMES the proxy handle.
//
//export cloak_proxy_stop
func cloak_proxy_stop(proxyTask unsafe.Pointer) {
	setup()
	key := threadKey()

	t, err := handle.TakeAs[*rt.Task](uintptr(proxyTask), handle.KindProxyTask)
	if err != nil {
		errs.Record(key, err)
		return
	}
	mgr.StopProxy(t)
}

// cloak_progress_next blocks the calling thread until a progress message is
// available and returns it in send order, or returns "No progress" once the
// send end is closed and the queue drained. The returned string must be
// released with cloak_free_string.
//
//export cloak_progress_next
func cloak_progress_next(h *C.cloak_handles) *C.char {
	setup()
	key := threadKey()

	recv, err := handle.BorrowAs[*progress.Receiver](uintptr(h.progress_recv), handle.KindProgressRecv)
	if err != nil {
		errs.Record(key, err)
		return C.CString(noProgress)
	}
	msg, ok := recv.Next()
	if !ok {
		return C.CString(noProgress)
	}
	return C.CString(msg)
}

// cloak_last_error_message takes and returns the message of the last error
// recorded on this thread, or an empty string if none is pending. Reading
// is take-once: a second consecutive call returns empty. Never blocks. The
// returned string must be released with cloak_free_string.
//
//export cloak_last_error_message
func cloak_last_error_message() *C.char {
	setup()
	return C.CString(errs.LastMessage(threadKey()))
}

// cloak_free_string releases a string previously returned by any cloak_*
// function. Safe to call with NULL.
//
//export cloak_free_string
func cloak_free_string(s *C.char) {
	if s == nil {
		return
	}
	C.free(unsafe.Pointer(s))
}

// cloak_hello returns a fixed string, as a smoke test that the library
// loads and string ownership round-trips. Release with cloak_free_string.
//
//export cloak_hello
func cloak_hello() *C.char {
	return C.CString("Hello there")
}
