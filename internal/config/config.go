// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

// Package config builds and validates the client configuration consumed by
// the anonymity-network collaborator.
package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
)

var (
	// ErrBadEncoding indicates a path argument was not valid UTF-8. Path
	// strings cross the C boundary in the caller's encoding and must decode
	// cleanly before they are used.
	ErrBadEncoding = errors.New("path is not valid UTF-8")

	// ErrInvalidPath indicates a storage path that cannot be used.
	ErrInvalidPath = errors.New("invalid storage path")
)

// Config holds the client's storage and reachability settings. No other
// knobs are exposed at the boundary.
type Config struct {
	// StateDir holds long-lived client state.
	StateDir string `koanf:"state_dir" yaml:"state_dir"`

	// CacheDir holds recreatable network caches.
	CacheDir string `koanf:"cache_dir" yaml:"cache_dir"`

	// AllowOnionAddrs enables connections to onion addresses. Always
	// enabled at the boundary.
	AllowOnionAddrs bool `koanf:"allow_onion_addrs" yaml:"allow_onion_addrs"`
}

// New builds a validated configuration with onion-address reachability
// enabled.
func New(stateDir, cacheDir string) (Config, error) {
	cfg := Config{
		StateDir:        stateDir,
		CacheDir:        cacheDir,
		AllowOnionAddrs: true,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that both storage paths decode cleanly and are usable.
func (c Config) Validate() error {
	for _, p := range []struct{ name, path string }{
		{"state dir", c.StateDir},
		{"cache dir", c.CacheDir},
	} {
		if !utf8.ValidString(p.path) {
			return fmt.Errorf("decoding %s: %w", p.name, ErrBadEncoding)
		}
		if strings.TrimSpace(p.path) == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidPath, p.name)
		}
		if strings.ContainsRune(p.path, 0) {
			return fmt.Errorf("%w: %s contains a NUL byte", ErrInvalidPath, p.name)
		}
	}
	return nil
}

// EnsureDirs creates the state and cache directories if they do not exist.
func (c Config) EnsureDirs(fs afero.Fs) error {
	for _, dir := range []string{c.StateDir, c.CacheDir} {
		if err := fs.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("%w: create %s: %v", ErrInvalidPath, dir, err)
		}
	}
	return nil
}
