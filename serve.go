// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ffutop/cnet-link/internal/config"
	"github.com/ffutop/cnet-link/internal/simulator"
	"github.com/ffutop/cnet-link/internal/simulator/persistence"
	"github.com/ffutop/cnet-link/transport"
	"github.com/ffutop/cnet-link/transport/serial"
	"github.com/ffutop/cnet-link/transport/tcp"
)

// server is the listener side of a link.
type server interface {
	Start(ctx context.Context, responder transport.Responder) error
}

func newServer(cfg config.LinkConfig) (server, error) {
	switch cfg.Type {
	case "tcp":
		return tcp.NewServer(cfg.Tcp.Address), nil
	case "serial":
		return serial.NewServer(cfg.Serial), nil
	default:
		return nil, fmt.Errorf("unknown listen type %q", cfg.Type)
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a controller simulator",
		Long: `Run a local controller that answers RSS, WSS, RSB and WSB requests
against its own device memory (areas P M K L F T C D, 8192 words each).

The listener and the persistence backend come from the simulator section of
the configuration. Press Ctrl+C to stop.`,
		Example: `  cnetlink serve
  cnetlink serve --config ./simulator.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulator(cmd.Context(), opts.cfg.Simulator)
		},
	}
}

func runSimulator(ctx context.Context, cfg config.SimulatorConfig) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim, storage, err := newSimulator(cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	srv, err := newServer(cfg.Listen)
	if err != nil {
		return err
	}

	slog.Info("Starting controller simulator...", "station", cfg.Station, "listen", cfg.Listen.Type, "persistence", cfg.Persistence.Type)
	if err := srv.Start(ctx, sim); err != nil {
		return err
	}
	if err := storage.Save(sim.Memory()); err != nil {
		slog.Error("Failed to save simulator memory", "err", err)
	}
	slog.Info("Goodbye.")
	return nil
}

// newSimulator loads the simulator memory from the configured storage.
func newSimulator(cfg config.SimulatorConfig) (*simulator.Simulator, persistence.Storage, error) {
	storage, err := persistence.New(cfg.Persistence)
	if err != nil {
		return nil, nil, err
	}
	mem, err := storage.Load()
	if err != nil {
		storage.Close()
		return nil, nil, fmt.Errorf("failed to load simulator memory: %w", err)
	}
	var opts []simulator.Option
	if !cfg.HexValues {
		opts = append(opts, simulator.WithDecimalValues())
	}
	sim, err := simulator.New(cfg.Station, mem, storage, opts...)
	if err != nil {
		storage.Close()
		return nil, nil, err
	}
	return sim, storage, nil
}

func newPrintDefaultConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-default-config",
		Short: "Print the default configuration as YAML",
		// Defaults only; no configuration file is read.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(config.Default())
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
