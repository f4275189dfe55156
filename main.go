// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ffutop/cnet-link/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootOptions holds the persistent flags and the configuration they resolve to.
type rootOptions struct {
	configFile string
	output     string

	cfg *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cnetlink",
		Short: "Cnet serial protocol client",
		Long: `cnetlink reads and writes controller memory over the Cnet protocol.

Requests travel as ENQ-delimited frames with an XOR block check over a serial
line, or over TCP through a serial device server. The serve command runs a
local controller simulator that answers the same requests.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "text", "yaml":
			default:
				return fmt.Errorf("unknown output format %q (want text or yaml)", opts.output)
			}
			cfg, err := config.LoadConfig(opts.configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			opts.cfg = cfg
			setupLogger(cfg.Log)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to config file")
	pf.StringVarP(&opts.output, "output", "o", "text", "Result format: text|yaml")
	pf.String("link", "", "Link type: serial|tcp|local")
	pf.String("device", "", "Serial device, e.g. /dev/ttyUSB0")
	pf.Int("baud-rate", 0, "Serial baud rate")
	pf.String("parity", "", "Serial parity: N|E|O")
	pf.String("address", "", "Device server address for the tcp link, e.g. 192.168.1.100:4001")
	pf.String("station", "", "Controller station number")
	pf.Duration("timeout", 0, "Response timeout")
	pf.String("log-level", "", "Log level: debug|info|warn|error")
	pf.String("log-file", "", "Log file path (default stderr)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newReadCmd(opts))
	rootCmd.AddCommand(newWriteCmd(opts))
	rootCmd.AddCommand(newReadBlockCmd(opts))
	rootCmd.AddCommand(newWriteBlockCmd(opts))
	rootCmd.AddCommand(newMonitorCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newPrintDefaultConfigCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// No configuration is needed to print the version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cnetlink version %s\n", version)
			fmt.Fprintf(out, "commit: %s\n", commit)
			fmt.Fprintf(out, "date: %s\n", date)
		},
	}
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	// Results go to stdout, so logs default to stderr.
	var w io.Writer = os.Stderr
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file, falling back to stderr: %v\n", err)
		} else {
			w = f
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, opts)))
}
