// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

package onion

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/cretz/bine/tor"
	"go.uber.org/zap"

	"github.com/cloaknet/cloak/internal/config"
)

// TorClient drives a managed tor process through its control port.
type TorClient struct {
	log *zap.Logger

	mu     sync.Mutex
	proc   *tor.Tor
	dialer *tor.Dialer
	mode   DormantMode
}

// NewTorClient launches a tor process using the configured storage
// directories. The network is left disabled; the returned client becomes
// usable after Bootstrap. Satisfies Factory.
func NewTorClient(ctx context.Context, cfg config.Config, logger *zap.Logger) (Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("tor")

	proc, err := tor.Start(ctx, &tor.StartConf{
		DataDir:         cfg.StateDir,
		ExtraArgs:       []string{"--CacheDirectory", cfg.CacheDir},
		NoAutoSocksPort: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start tor: %w", err)
	}

	log.Info("tor process started",
		zap.String("state_dir", cfg.StateDir),
		zap.String("cache_dir", cfg.CacheDir))

	return &TorClient{
		log:  log,
		proc: proc,
	}, nil
}

// Bootstrap enables the network and waits until tor reports it is usable.
// Bootstrap may be called again later, e.g. after a soft-dormant phase on a
// changed network.
func (c *TorClient) Bootstrap(ctx context.Context) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return ErrClosed
	}

	if err := proc.EnableNetwork(ctx, true); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	dialer, err := proc.Dialer(ctx, nil)
	if err != nil {
		return fmt.Errorf("bootstrap: build dialer: %w", err)
	}

	c.mu.Lock()
	c.dialer = dialer
	c.mu.Unlock()

	c.log.Info("bootstrap complete")
	return nil
}

// SetDormant maps DormantSoft to tor's DORMANT signal and DormantNormal to
// ACTIVE. The client stays valid either way.
func (c *TorClient) SetDormant(mode DormantMode) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return ErrClosed
	}

	sig := "ACTIVE"
	if mode == DormantSoft {
		sig = "DORMANT"
	}
	if err := proc.Control.Signal(sig); err != nil {
		return fmt.Errorf("set dormant %s: %w", mode, err)
	}

	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()

	c.log.Info("dormant mode changed", zap.Stringer("mode", mode))
	return nil
}

// DialContext opens a connection through the tor network.
func (c *TorClient) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	c.mu.Lock()
	dialer := c.dialer
	c.mu.Unlock()
	if dialer == nil {
		return nil, ErrNotBootstrapped
	}
	return dialer.DialContext(ctx, network, addr)
}

// Close shuts the tor process down. Further calls on the client return
// ErrClosed.
func (c *TorClient) Close() error {
	c.mu.Lock()
	proc := c.proc
	c.proc = nil
	c.dialer = nil
	c.mu.Unlock()

	if proc == nil {
		return nil
	}
	if err := proc.Close(); err != nil {
		return fmt.Errorf("close tor: %w", err)
	}
	c.log.Info("tor process stopped")
	return nil
}
