// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ffutop/cnet-link/client"
	"github.com/ffutop/cnet-link/cnet"
)

// result is the printed outcome of one exchange.
type result struct {
	Command  string   `yaml:"command"`
	Response string   `yaml:"response"`
	Nak      *nakInfo `yaml:"nak,omitempty"`
}

type nakInfo struct {
	Station string `yaml:"station"`
	Code    string `yaml:"code"`
}

func printResult(cmd *cobra.Command, format, command, response string) error {
	out := cmd.OutOrStdout()
	r := result{Command: command, Response: response}
	if nak := cnet.ParseNak(response); nak != nil {
		r.Nak = &nakInfo{Station: nak.Station, Code: fmt.Sprintf("%04X", nak.Code)}
	}

	if format == "yaml" {
		data, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	fmt.Fprintln(out, response)
	if r.Nak != nil {
		fmt.Fprintf(out, "controller rejected %s: error code %s\n", command, r.Nak.Code)
	}
	return nil
}

func newReadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read ADDRESS...",
		Short: "Read named addresses (RSS)",
		Example: `  cnetlink read %MW100 %DW20
  cnetlink --link tcp --address 192.168.1.100:4001 read %MW100`,
		Args: cobra.RangeArgs(1, 99),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts.cfg, nil, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ReadNamed(ctx, args...)
				if err != nil {
					return err
				}
				return printResult(cmd, opts.output, cnet.TagReadNamed, resp)
			})
		},
	}
}

func newWriteCmd(opts *rootOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "write ADDRESS=VALUE...",
		Short: "Write named addresses (WSS)",
		Long: `Write values to named addresses.

Values are integers (0x prefix for hex) and are sent as 4-digit hex unless
client.hex_values is false. With --raw the value text is sent as given.`,
		Example: `  cnetlink write %MW100=42 %MW101=0x1F
  cnetlink write --raw %MW100=002A`,
		Args: cobra.RangeArgs(1, 99),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parsePairs(args)
			if err != nil {
				return err
			}
			return withClient(cmd, opts.cfg, nil, func(ctx context.Context, c *client.Client) error {
				var resp string
				if raw {
					resp, err = c.WriteNamed(ctx, pairs...)
				} else {
					var addrs []string
					var values []int
					addrs, values, err = numericPairs(pairs)
					if err != nil {
						return err
					}
					resp, err = c.WriteNamedValues(ctx, addrs, values)
				}
				if err != nil {
					return err
				}
				return printResult(cmd, opts.output, cnet.TagWriteNamed, resp)
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Send value text verbatim")
	return cmd
}

func newReadBlockCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "read-block START COUNT",
		Short:   "Read a contiguous block of words (RSB)",
		Example: `  cnetlink read-block %MW100 10`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("bad count %q: %w", args[1], err)
			}
			return withClient(cmd, opts.cfg, nil, func(ctx context.Context, c *client.Client) error {
				resp, err := c.ReadBlock(ctx, args[0], count)
				if err != nil {
					return err
				}
				return printResult(cmd, opts.output, cnet.TagReadBlock, resp)
			})
		},
	}
}

func newWriteBlockCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "write-block START VALUE...",
		Short:   "Write a contiguous block of words (WSB)",
		Example: `  cnetlink write-block %MW100 1 2 0xFFFF`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseInts(args[1:])
			if err != nil {
				return err
			}
			return withClient(cmd, opts.cfg, nil, func(ctx context.Context, c *client.Client) error {
				resp, err := c.WriteBlock(ctx, args[0], values)
				if err != nil {
					return err
				}
				return printResult(cmd, opts.output, cnet.TagWriteBlock, resp)
			})
		},
	}
}

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Print frames the controller sends on its own",
		Long: `Open the link and print every valid frame that arrives, as hex and as
text, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			observer := client.ObserverFunc(func(frame []byte, payload string) {
				fmt.Fprintf(out, "%s  %q\n", hex.EncodeToString(frame), payload)
			})
			return withClient(cmd, opts.cfg, observer, func(ctx context.Context, c *client.Client) error {
				<-ctx.Done()
				return nil
			})
		},
	}
}

// parsePairs splits ADDRESS=VALUE arguments.
func parsePairs(args []string) ([]cnet.NamedValue, error) {
	pairs := make([]cnet.NamedValue, 0, len(args))
	for _, arg := range args {
		addr, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("bad argument %q: want ADDRESS=VALUE", arg)
		}
		pairs = append(pairs, cnet.NamedValue{Address: addr, Value: value})
	}
	return pairs, nil
}

func numericPairs(pairs []cnet.NamedValue) ([]string, []int, error) {
	addrs := make([]string, len(pairs))
	texts := make([]string, len(pairs))
	for i, p := range pairs {
		addrs[i], texts[i] = p.Address, p.Value
	}
	values, err := parseInts(texts)
	if err != nil {
		return nil, nil, err
	}
	return addrs, values, nil
}

func parseInts(texts []string) ([]int, error) {
	values := make([]int, len(texts))
	for i, text := range texts {
		v, err := strconv.ParseInt(strings.TrimSpace(text), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", text, err)
		}
		values[i] = int(v)
	}
	return values, nil
}
