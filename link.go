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

	"github.com/ffutop/cnet-link/client"
	"github.com/ffutop/cnet-link/internal/config"
	"github.com/ffutop/cnet-link/transport"
	"github.com/ffutop/cnet-link/transport/local"
	"github.com/ffutop/cnet-link/transport/serial"
	"github.com/ffutop/cnet-link/transport/tcp"
)

// newLink creates the link selected by cfg.Link. A local link answers from an
// in-process simulator configured by cfg.Simulator; release closes its storage.
func newLink(cfg *config.Config) (link transport.Link, release func(), err error) {
	release = func() {}
	switch cfg.Link.Type {
	case "serial":
		return serial.NewPort(cfg.Link.Serial), release, nil
	case "tcp":
		c := tcp.NewClient(cfg.Link.Tcp.Address)
		if cfg.Link.Tcp.Timeout > 0 {
			c.Timeout = cfg.Link.Tcp.Timeout
		}
		return c, release, nil
	case "local":
		// Client and simulator share the process, so they share the radix.
		simCfg := cfg.Simulator
		simCfg.HexValues = cfg.Client.HexValues
		sim, storage, err := newSimulator(simCfg)
		if err != nil {
			return nil, nil, err
		}
		release = func() {
			if err := storage.Close(); err != nil {
				slog.Error("Failed to close simulator storage", "err", err)
			}
		}
		return local.NewClient(sim), release, nil
	default:
		return nil, nil, fmt.Errorf("unknown link type %q", cfg.Link.Type)
	}
}

// clientOptions maps the client section of the configuration to options.
func clientOptions(cfg config.ClientConfig) []client.Option {
	opts := []client.Option{
		client.WithStation(cfg.Station),
		client.WithTimeout(cfg.Timeout),
		client.WithMaxBufferSize(cfg.MaxBufferSize),
		client.WithLogger(slog.Default()),
	}
	if !cfg.HexValues {
		opts = append(opts, client.WithDecimalValues())
	}
	return opts
}

// withClient opens the configured link, runs a client on it and calls fn.
// The link is closed when fn returns or on SIGINT/SIGTERM.
func withClient(cmd *cobra.Command, cfg *config.Config, observer client.Observer, fn func(ctx context.Context, c *client.Client) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	link, release, err := newLink(cfg)
	if err != nil {
		return err
	}
	defer release()
	if err := link.Open(ctx); err != nil {
		return err
	}
	defer link.Close()

	opts := clientOptions(cfg.Client)
	if observer != nil {
		opts = append(opts, client.WithObserver(observer))
	}
	c := client.New(link, opts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.Run(ctx)
	go func() {
		if err := link.Start(ctx, c.Feed); err != nil {
			slog.Error("Link stopped with error", "err", err)
		}
	}()

	return fn(ctx, c)
}
