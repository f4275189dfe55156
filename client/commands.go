// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package client

import (
	"context"

	"github.com/ffutop/cnet-link/cnet"
)

// ReadNamed reads one or more named addresses.
func (c *Client) ReadNamed(ctx context.Context, addresses ...string) (string, error) {
	payload, err := cnet.ReadNamed(c.config.Station, addresses)
	if err != nil {
		return "", err
	}
	return c.Request(ctx, payload)
}

// WriteNamed writes text values to named addresses.
func (c *Client) WriteNamed(ctx context.Context, pairs ...cnet.NamedValue) (string, error) {
	payload, err := cnet.WriteNamed(c.config.Station, pairs)
	if err != nil {
		return "", err
	}
	return c.Request(ctx, payload)
}

// WriteNamedValues writes numeric values to named addresses, rendered as hex
// unless the client was created WithDecimalValues.
func (c *Client) WriteNamedValues(ctx context.Context, addresses []string, values []int) (string, error) {
	payload, err := cnet.WriteNamedValues(c.config.Station, addresses, values, c.config.HexValues)
	if err != nil {
		return "", err
	}
	return c.Request(ctx, payload)
}

// ReadBlock reads count contiguous words starting at start.
func (c *Client) ReadBlock(ctx context.Context, start string, count int) (string, error) {
	payload, err := cnet.ReadBlock(c.config.Station, start, count)
	if err != nil {
		return "", err
	}
	return c.Request(ctx, payload)
}

// WriteBlock writes contiguous words starting at start.
func (c *Client) WriteBlock(ctx context.Context, start string, values []int) (string, error) {
	payload, err := cnet.WriteBlock(c.config.Station, start, values)
	if err != nil {
		return "", err
	}
	return c.Request(ctx, payload)
}
