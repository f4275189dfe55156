// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/ffutop/cnet-link/transport"
)

// Client is a link to an in-process responder. Frames still travel as bytes
// through an in-memory pipe, so the client sees the same stream it would
// see on a serial line.
type Client struct {
	responder transport.Responder

	mu     sync.Mutex
	conn   net.Conn
	cancel context.CancelFunc
}

// NewClient creates a new Local Client answered by responder.
func NewClient(responder transport.Responder) *Client {
	return &Client{responder: responder}
}

// Open starts the responder on the far end of a fresh pipe. The responder
// runs until Close.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	near, far := net.Pipe()
	serveCtx, cancel := context.WithCancel(context.Background())
	go func() {
		defer far.Close()
		if err := transport.ServeStream(serveCtx, far, c.responder); err != nil {
			slog.Debug("local responder stopped", "err", err)
		}
	}()
	c.conn = near
	c.cancel = cancel
	return nil
}

// Close stops the responder.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.cancel()
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) Write(p []byte) (int, error) {
	conn := c.current()
	if conn == nil {
		return 0, fmt.Errorf("local link is not open")
	}
	return conn.Write(p)
}

func (c *Client) current() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Start delivers the responder's output until ctx is done or the link is closed.
func (c *Client) Start(ctx context.Context, onData func([]byte)) error {
	conn := c.current()
	if conn == nil {
		return fmt.Errorf("local link is not open")
	}
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			onData(buf[:n])
		}
		if err != nil {
			return nil
		}
	}
}
