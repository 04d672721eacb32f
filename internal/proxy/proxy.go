// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

// Package proxy runs the local SOCKS5 service that forwards connections
// through an anonymity-network client.
package proxy

import (
	"context"
	"fmt"
	"net"
	"strconv"

	socks5 "github.com/things-go/go-socks5"
	"go.uber.org/zap"

	"github.com/cloaknet/cloak/internal/onion"
)

// Run listens on 127.0.0.1:port and serves SOCKS5, dialing every outbound
// connection through client. It blocks until ctx is cancelled (returning
// ctx.Err()) or the listener fails. port 0 binds an ephemeral port.
func Run(ctx context.Context, logger *zap.Logger, client onion.Client, port uint16) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port)))
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return Serve(ctx, logger, client, l)
}

// Serve is Run on a caller-supplied listener. It takes ownership of l and
// closes it on return.
func Serve(ctx context.Context, logger *zap.Logger, client onion.Client, l net.Listener) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	defer l.Close()

	server := socks5.NewServer(
		socks5.WithDial(client.DialContext),
		socks5.WithLogger(socks5.NewLogger(zap.NewStdLog(logger))),
	)

	// Serve only returns on accept failure, so cancellation is delivered by
	// closing the listener out from under it.
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-stopped:
		}
	}()

	logger.Info("socks proxy listening", zap.String("addr", l.Addr().String()))
	err := server.Serve(l)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
