// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle owns creation, bootstrap, dormancy and teardown of the
// anonymity client and the local proxy task.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/cloaknet/cloak/internal/config"
	"github.com/cloaknet/cloak/internal/onion"
	"github.com/cloaknet/cloak/internal/progress"
	"github.com/cloaknet/cloak/internal/proxy"
	"github.com/cloaknet/cloak/internal/rt"
)

// StartOptions carries the caller-supplied startup parameters.
type StartOptions struct {
	// Port is the local SOCKS5 port; 0 binds an ephemeral port.
	Port uint16

	// StateDir and CacheDir are the client's storage directories, exactly
	// as the caller supplied them (validation happens inside Start).
	StateDir string
	CacheDir string
}

// StartResult bundles what a startup hands back to the caller.
//
// Send and Recv are always populated, even when Start fails, so the caller
// can still drain any events emitted before the failure; the caller owns
// both ends and releases them independently. Client and ProxyTask are nil
// on failure.
type StartResult struct {
	Client    onion.Client
	ProxyTask *rt.Task
	Send      *progress.Sender
	Recv      *progress.Receiver
}

// Manager drives client and proxy lifecycle on a shared runtime. Each Start
// call is fully independent: its own client, proxy task and progress
// channel.
type Manager struct {
	rt        *rt.Runtime
	log       *zap.Logger
	fs        afero.Fs
	newClient onion.Factory
}

// NewManager creates a manager. Nil logger, fs and factory fall back to a
// no-op logger, the OS filesystem and the tor-backed client.
func NewManager(runtime *rt.Runtime, logger *zap.Logger, fs afero.Fs, factory onion.Factory) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if factory == nil {
		factory = onion.NewTorClient
	}
	return &Manager{
		rt:        runtime,
		log:       logger,
		fs:        fs,
		newClient: factory,
	}
}

// Start builds the configuration, creates a client, drives its bootstrap to
// completion (blocking the caller), and spawns the local proxy. The
// progress channel is created before any fallible step, so the returned
// ends are valid in every case.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*StartResult, error) {
	send, recv := progress.New(progress.DefaultCapacity)
	res := &StartResult{Send: send, Recv: recv}

	cfg, err := config.New(opts.StateDir, opts.CacheDir)
	if err != nil {
		return res, err
	}
	if err := cfg.EnsureDirs(m.fs); err != nil {
		return res, err
	}

	client, err := m.newClient(ctx, cfg, m.log)
	if err != nil {
		return res, fmt.Errorf("create client: %w", err)
	}

	if err := m.Bootstrap(ctx, client); err != nil {
		if cerr := client.Close(); cerr != nil {
			m.log.Warn("failed to close client after bootstrap failure", zap.Error(cerr))
		}
		return res, err
	}
	_ = send.Send(ctx, "Bootstrap complete")

	res.Client = client
	res.ProxyTask = m.SpawnProxy(opts.Port, client, send)
	return res, nil
}

// Bootstrap drives the client's bootstrap sequence, blocking the caller
// until it completes or ctx is done.
func (m *Manager) Bootstrap(ctx context.Context, client onion.Client) error {
	m.log.Info("bootstrapping client")
	if err := client.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}

// SetDormant applies the dormancy mode. The client stays valid afterwards
// and SetDormant may be called any number of times, alternating modes.
func (m *Manager) SetDormant(client onion.Client, mode onion.DormantMode) error {
	m.log.Info("setting dormant mode", zap.Stringer("mode", mode))
	return client.SetDormant(mode)
}

// SpawnProxy submits the local proxy as a cancellable background task and
// returns immediately. The task holds its own clone of sender, publishes
// "Proxy started", then serves until aborted or failed; its terminal error
// is retained on the returned task.
func (m *Manager) SpawnProxy(port uint16, client onion.Client, sender *progress.Sender) *rt.Task {
	s := sender.Clone()
	return m.rt.Spawn("socks-proxy", func(ctx context.Context) error {
		defer s.Close()
		if err := s.Send(ctx, "Proxy started"); err != nil {
			return err
		}
		return proxy.Run(ctx, m.log, client, port)
	})
}

// StopProxy requests cancellation of the proxy task. Best-effort and
// asynchronous: in-flight connections may still drain, but no new work is
// dispatched. The task must not be reused afterwards.
func (m *Manager) StopProxy(task *rt.Task) {
	m.log.Info("stopping proxy", zap.String("task_id", task.ID()))
	task.Abort()
}
