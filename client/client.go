// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package client

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/cnet-link/cnet"
)

var (
	ErrTransportNotReady = errors.New("cnet: transport is not open")
	ErrAlreadyPending    = errors.New("cnet: an exchange is already pending")
	ErrTimedOut          = errors.New("cnet: exchange timed out")
)

// Port is the outbound half of the transport. Inbound bytes are pushed to
// the client with Feed.
type Port interface {
	IsOpen() bool
	Write(p []byte) (int, error)
}

// Observer receives valid frames that no exchange was waiting for.
// OnUnsolicited runs on the goroutine that runs Client.Run; it must not block
// or start an exchange, since no frame is processed until it returns.
type Observer interface {
	OnUnsolicited(frame []byte, payload string)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(frame []byte, payload string)

func (f ObserverFunc) OnUnsolicited(frame []byte, payload string) {
	f(frame, payload)
}

// Client correlates request frames with response frames, one exchange at a
// time.
//
// Arriving bytes are handed to Feed and processed by the goroutine running
// Run, which is the only owner of the reassembly buffer. Run must be started
// before any exchange can complete.
type Client struct {
	port   Port
	config Config
	logger *slog.Logger

	chunks chan []byte
	done   chan struct{}
	once   sync.Once

	// guards pending only; never held while the buffer is processed
	mu      sync.Mutex
	pending chan []byte
}

// New creates a Client writing requests to port.
func New(port Port, opts ...Option) *Client {
	if port == nil {
		panic("port cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		port:   port,
		config: cfg,
		logger: logger,
		chunks: make(chan []byte, defaultChunkSize),
		done:   make(chan struct{}),
	}
}

// Run processes arriving bytes until ctx is done.
func (c *Client) Run(ctx context.Context) {
	defer c.once.Do(func() { close(c.done) })

	buf := cnet.NewBuffer(c.config.MaxBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		case chunk := <-c.chunks:
			frames, err := buf.Write(chunk)
			if err != nil {
				c.logger.Warn("discarding receive buffer", "err", err)
			}
			for _, frame := range frames {
				c.deliver(frame)
			}
		}
	}
}

// Feed queues bytes read from the transport. It is safe to call from any
// goroutine; p is copied.
func (c *Client) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)

	select {
	case c.chunks <- chunk:
	case <-c.done:
	}
}

// deliver hands frame to the pending exchange, or to the observer if there
// is none.
func (c *Client) deliver(frame []byte) {
	c.mu.Lock()
	waiter := c.pending
	c.pending = nil
	c.mu.Unlock()

	if waiter != nil {
		waiter <- frame
		return
	}

	payload, err := cnet.Decode(frame)
	if err != nil {
		c.logger.Debug("dropping undecodable frame", "frame", hex.EncodeToString(frame), "err", err)
		return
	}
	c.logger.Debug("unsolicited frame", "frame", hex.EncodeToString(frame))
	if c.config.Observer != nil {
		c.config.Observer.OnUnsolicited(frame, payload)
	}
}

// release clears the pending marker if it is still waiter. It reports
// whether the marker was cleared here, rather than consumed by a delivery.
func (c *Client) release(waiter chan []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != waiter {
		return false
	}
	c.pending = nil
	return true
}

// Pending reports whether an exchange is waiting for its response.
func (c *Client) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Exchange writes request and waits for the next valid frame. A timeout of
// zero or less uses the configured default.
//
// A second Exchange while one is pending fails with ErrAlreadyPending; it is
// never queued. When the wait ends without a frame ErrTimedOut (or the
// context error) is returned, and a frame arriving later is treated as
// unsolicited.
func (c *Client) Exchange(ctx context.Context, request []byte, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = c.config.Timeout
	}

	waiter := make(chan []byte, 1)

	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return nil, ErrAlreadyPending
	}
	if !c.port.IsOpen() {
		c.mu.Unlock()
		return nil, ErrTransportNotReady
	}
	// the response may arrive before Write returns
	c.pending = waiter
	c.mu.Unlock()

	c.logger.Debug("send to controller", "request", hex.EncodeToString(request))
	if _, err := c.port.Write(request); err != nil {
		c.release(waiter)
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-waiter:
		c.logger.Debug("recv from controller", "response", hex.EncodeToString(frame))
		return frame, nil
	case <-timer.C:
		c.abandon(waiter)
		return nil, ErrTimedOut
	case <-ctx.Done():
		c.abandon(waiter)
		return nil, ctx.Err()
	}
}

func (c *Client) abandon(waiter chan []byte) {
	if c.release(waiter) {
		return
	}
	// Delivered while the wait was ending; the caller has given up already.
	frame := <-waiter
	c.logger.Debug("ignoring response after timeout", "response", hex.EncodeToString(frame))
}

// Request encodes payload, exchanges it and returns the response payload.
func (c *Client) Request(ctx context.Context, payload string) (string, error) {
	frame, err := c.Exchange(ctx, cnet.EncodeString(payload), 0)
	if err != nil {
		return "", err
	}
	return cnet.ParseResponse(frame)
}
