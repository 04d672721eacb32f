// Copyright Cloak Contributors (https://github.com/cloaknet)
// SPDX-License-Identifier: Apache-2.0

// cloak-proxy runs the anonymizing SOCKS5 proxy natively, without the C
// boundary: same lifecycle, progress events printed to stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cloaknet/cloak/internal/lifecycle"
	"github.com/cloaknet/cloak/internal/logging"
	"github.com/cloaknet/cloak/internal/rt"
)

var k = koanf.New(".")

type options struct {
	Port     uint16
	StateDir string
	CacheDir string
	LogLevel string
}

func defaultDataDir(kind string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "cloak", kind)
	}
	return filepath.Join(home, ".local", "share", "cloak", kind)
}

func initConfig(fs afero.Fs, flagSet *pflag.FlagSet) (*options, error) {
	// defaults
	defaults := map[string]interface{}{
		"proxy.port":        9050,
		"storage.state_dir": defaultDataDir("state"),
		"storage.cache_dir": defaultDataDir("cache"),
		"log.level":         logging.LevelInfo,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	home, _ := os.UserHomeDir()
	paths := []string{
		filepath.Join(home, ".config", "cloak", "config.yaml"),
		"config.yaml",
	}
	for _, p := range paths {
		if exists, _ := afero.Exists(fs, p); exists {
			if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("error reading config %s: %w", p, err)
			}
			break
		}
	}

	if flagSet != nil {
		if err := k.Load(posflag.Provider(flagSet, ".", k), nil); err != nil {
			return nil, fmt.Errorf("error loading flags: %w", err)
		}
	}

	envOpts := env.Provider("CLOAK_", ".", func(s string) string {
		return envKeyToConfigKey(s)
	})
	if err := k.Load(envOpts, nil); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	port := k.Int("proxy.port")
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid proxy port %d", port)
	}

	return &options{
		Port:     uint16(port),
		StateDir: k.String("storage.state_dir"),
		CacheDir: k.String("storage.cache_dir"),
		LogLevel: k.String("log.level"),
	}, nil
}

// envKeyToConfigKey maps CLOAK_PROXY_PORT to proxy.port, CLOAK_STORAGE_STATE_DIR
// to storage.state_dir, and so on: the first underscore separates the
// section, the rest stay as-is.
func envKeyToConfigKey(s string) string {
	trimmed := make([]byte, 0, len(s))
	sawSection := false
	for i := len("CLOAK_"); i < len(s); i++ {
		c := s[i]
		if c == '_' && !sawSection {
			sawSection = true
			trimmed = append(trimmed, '.')
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		trimmed = append(trimmed, c)
	}
	return string(trimmed)
}

func run(opts *options, logger *zap.Logger) error {
	runtime := rt.New(logger)
	mgr := lifecycle.NewManager(runtime, logger, afero.NewOsFs(), nil)

	res, err := mgr.Start(context.Background(), lifecycle.StartOptions{
		Port:     opts.Port,
		StateDir: opts.StateDir,
		CacheDir: opts.CacheDir,
	})
	if err != nil {
		res.Send.Close()
		return fmt.Errorf("startup failed: %w", err)
	}

	go func() {
		for {
			msg, ok := res.Recv.Next()
			if !ok {
				return
			}
			fmt.Println(msg)
		}
	}()

	fmt.Printf("SOCKS5 proxy running on 127.0.0.1:%d\n", opts.Port)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	fmt.Printf("\nReceived signal: %v\n", sig)
	fmt.Println("Shutting down...")

	mgr.StopProxy(res.ProxyTask)
	res.Send.Close()
	if err := res.Client.Close(); err != nil {
		logger.Warn("failed to close client", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return runtime.Shutdown(shutdownCtx)
}

func main() {
	cmdFs := afero.NewOsFs()

	var opts *options
	var logger *zap.Logger

	rootCmd := &cobra.Command{
		Use:   "cloak-proxy",
		Short: "Local SOCKS5 proxy backed by an embedded anonymity-network client",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			opts, err = initConfig(cmdFs, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			logger, err = logging.New(opts.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(opts, logger)
		},
	}

	rootCmd.PersistentFlags().Uint16P(
		"proxy.port",
		"p",
		9050,
		"local SOCKS5 port",
	)

	rootCmd.PersistentFlags().String(
		"storage.state_dir",
		defaultDataDir("state"),
		"client state directory",
	)

	rootCmd.PersistentFlags().String(
		"storage.cache_dir",
		defaultDataDir("cache"),
		"client cache directory",
	)

	rootCmd.PersistentFlags().String(
		"log.level",
		logging.LevelInfo,
		"log level (debug|info|warning|error)",
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "CLI error: %v\n", err)
		os.Exit(1)
	}
}
