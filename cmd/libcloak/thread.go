// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

package main

/*
#include <pthread.h>

unsigned long cloak_thread_key(void) { return (unsigned long)pthread_self(); }
*/
import "C"

// threadKey identifies the calling OS thread. Calls from C run on the
// caller's own thread, so the key ties each recorded error to the thread
// that must later read it; errors do not survive a thread boundary.
func threadKey() uint64 {
	return uint64(C.cloak_thread_key())
}
