// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

// Package onion defines the anonymity-network client consumed by this
// module and its tor-backed implementation.
//
// Circuit building, directory consensus and connection encryption live
// behind the Client interface; this module only drives bootstrap, dormancy
// and dialing.
package onion

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/cloaknet/cloak/internal/config"
)

var (
	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("client closed")

	// ErrNotBootstrapped indicates a dial was attempted before Bootstrap
	// completed.
	ErrNotBootstrapped = errors.New("client not bootstrapped")
)

// DormantMode selects how much background activity the client keeps
// running.
type DormantMode int

const (
	// DormantNormal restores full background activity.
	DormantNormal DormantMode = iota

	// DormantSoft reduces background activity; existing connections are
	// preserved opportunistically.
	DormantSoft
)

func (m DormantMode) String() string {
	switch m {
	case DormantSoft:
		return "soft"
	default:
		return "normal"
	}
}

// Client is a handle on an anonymity-network client.
type Client interface {
	// Bootstrap drives the client until it has enough connectivity and
	// state to be usable. It blocks the caller until completion or until
	// ctx is done.
	Bootstrap(ctx context.Context) error

	// SetDormant switches the client's background activity without
	// destroying it. The client remains usable afterwards.
	SetDormant(mode DormantMode) error

	// DialContext opens a connection through the anonymity network.
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)

	// Close releases the client and its network resources.
	Close() error
}

// Factory creates an un-bootstrapped client from a validated
// configuration. Tests substitute their own factories.
type Factory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Client, error)
