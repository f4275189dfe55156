// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package serial

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/cnet-link/internal/config"
	"github.com/grid-x/serial"
)

const (
	readBufferSize = 256
	reopenDelay    = time.Second
	idleBackoff    = 10 * time.Millisecond

	// maxReadFailures is the number of consecutive read errors, other than
	// timeouts, after which the port is closed and reopened.
	maxReadFailures = 3
)

// Port is a serial line to the controller. It implements transport.Link.
type Port struct {
	// Serial port configuration.
	serial.Config

	ReopenDelay time.Duration

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port io.ReadWriteCloser
}

// NewPort allocates a serial Port from the line settings.
func NewPort(cfg config.SerialConfig) *Port {
	return &Port{
		Config:      lineConfig(cfg),
		ReopenDelay: reopenDelay,
	}
}

// lineConfig maps the line settings to the serial library's configuration.
func lineConfig(cfg config.SerialConfig) serial.Config {
	c := serial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.Timeout,
	}
	if cfg.RS485 {
		c.RS485.Enabled = true
		c.RS485.DelayRtsBeforeSend = cfg.DelayRtsBeforeSend
		c.RS485.DelayRtsAfterSend = cfg.DelayRtsAfterSend
		c.RS485.RtsHighDuringSend = cfg.RtsHighDuringSend
		c.RS485.RtsHighAfterSend = cfg.RtsHighAfterSend
		c.RS485.RxDuringTx = cfg.RxDuringTx
	}
	return c
}

func (p *Port) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.open(ctx)
}

// open opens the serial port if it is not open. Caller must hold the mutex.
func (p *Port) open(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.port == nil {
		port, err := serial.Open(&p.Config)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", p.Config.Address, err)
		}
		slog.Info("serial port opened", "device", p.Config.Address, "baudRate", p.Config.BaudRate, "parity", p.Config.Parity)
		p.port = port
	}
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.close()
}

// close closes the serial port if it is open. Caller must hold the mutex.
func (p *Port) close() (err error) {
	if p.port != nil {
		err = p.port.Close()
		p.port = nil
	}
	return
}

func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port != nil
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return 0, fmt.Errorf("serial port %s is not open", p.Config.Address)
	}
	slog.Debug("serial write", "device", p.Config.Address, "data", hex.EncodeToString(b))
	return p.port.Write(b)
}

func (p *Port) current() io.ReadWriteCloser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port
}

// Start reads from the port until ctx is done. The port is closed when ctx
// ends, or when it reports EOF or keeps failing with errors other than
// timeouts; a port that fails to open is retried after ReopenDelay.
func (p *Port) Start(ctx context.Context, onData func([]byte)) error {
	defer p.Close()
	go func() {
		<-ctx.Done()
		p.Close()
	}()

	buf := make([]byte, readBufferSize)
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		port := p.current()
		if port == nil {
			if err := p.Open(ctx); err != nil {
				slog.Warn("serial port unavailable", "device", p.Config.Address, "err", err)
				if !sleep(ctx, p.ReopenDelay) {
					return nil
				}
			}
			continue
		}

		// The read happens outside the mutex so writes are never blocked by
		// a waiting read.
		n, err := port.Read(buf)
		if n > 0 {
			onData(buf[:n])
		}
		if err == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			continue
		}
		switch {
		case errors.Is(err, serial.ErrTimeout):
			// Read timeouts are routine on an idle line.
			failures = 0
		case errors.Is(err, io.EOF):
			slog.Warn("serial port closed by device", "device", p.Config.Address)
			p.Close()
			failures = 0
			continue
		default:
			failures++
			slog.Debug("serial read", "device", p.Config.Address, "err", err, "failures", failures)
			if failures >= maxReadFailures {
				slog.Warn("serial port failing, reopening", "device", p.Config.Address, "err", err)
				p.Close()
				failures = 0
				continue
			}
		}
		if n == 0 && !sleep(ctx, idleBackoff) {
			return nil
		}
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
