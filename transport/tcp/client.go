// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	tcpTimeout     = 10 * time.Second
	reconnectDelay = time.Second
	readBufferSize = 512
)

// Client is a link to a controller behind a serial device server: the
// frames travel unchanged over a TCP stream. It implements transport.Link.
type Client struct {
	Address        string
	Timeout        time.Duration
	ReconnectDelay time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewClient allocates and initializes a TCP Client.
func NewClient(address string) *Client {
	return &Client{
		Address:        address,
		Timeout:        tcpTimeout,
		ReconnectDelay: reconnectDelay,
	}
}

// Open dials the device server if there is no active connection.
func (mb *Client) Open(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.connect(ctx)
}

// Close closes the connection.
func (mb *Client) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.close()
	return nil
}

func (mb *Client) IsOpen() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.conn != nil
}

func (mb *Client) Write(p []byte) (int, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.conn == nil {
		return 0, fmt.Errorf("connection to %s is not open", mb.Address)
	}
	if err := mb.conn.SetWriteDeadline(time.Now().Add(mb.Timeout)); err != nil {
		mb.close()
		return 0, err
	}
	slog.Debug("tcp write", "addr", mb.Address, "data", hex.EncodeToString(p))
	n, err := mb.conn.Write(p)
	if err != nil {
		mb.close() // Close connection on write failure to force reconnect next time
		return n, fmt.Errorf("failed to write to connection: %w", err)
	}
	return n, nil
}

func (mb *Client) current() net.Conn {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.conn
}

// Start reads until ctx is done, reconnecting after ReconnectDelay whenever
// the connection drops.
func (mb *Client) Start(ctx context.Context, onData func([]byte)) error {
	defer mb.Close()
	go func() {
		<-ctx.Done()
		mb.Close()
	}()

	buf := make([]byte, readBufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn := mb.current()
		if conn == nil {
			if err := mb.Open(ctx); err != nil {
				slog.Warn("device server unavailable", "addr", mb.Address, "err", err)
				if !sleep(ctx, mb.ReconnectDelay) {
					return nil
				}
			}
			continue
		}

		n, err := conn.Read(buf)
		if n > 0 {
			onData(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if !errors.Is(err, net.ErrClosed) {
				slog.Warn("connection lost", "addr", mb.Address, "err", err)
			}
			mb.dropIf(conn)
		}
	}
}

// dropIf closes conn if it is still the active connection.
func (mb *Client) dropIf(conn net.Conn) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.conn == conn {
		mb.close()
	}
}

// connect ensures there is an active connection. Caller must hold the mutex.
func (mb *Client) connect(ctx context.Context) error {
	if mb.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: mb.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", mb.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", mb.Address, err)
	}
	slog.Info("connected to device server", "addr", mb.Address)
	mb.conn = conn
	return nil
}

// close closes the connection and resets the state. Caller must hold the mutex.
func (mb *Client) close() {
	if mb.conn != nil {
		mb.conn.Close()
		mb.conn = nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
