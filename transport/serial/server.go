// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package serial

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ffutop/cnet-link/internal/config"
	"github.com/ffutop/cnet-link/transport"
	"github.com/grid-x/serial"
)

// Server answers requests arriving on a serial line, acting as the
// controller end of the link.
type Server struct {
	Config config.SerialConfig
}

// NewServer creates a new serial Server.
func NewServer(cfg config.SerialConfig) *Server {
	return &Server{
		Config: cfg,
	}
}

// Start opens the line and serves until ctx is done.
func (s *Server) Start(ctx context.Context, responder transport.Responder) error {
	spConfig := lineConfig(s.Config)
	port, err := serial.Open(&spConfig)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.Config.Device, err)
	}
	defer port.Close()
	slog.Info("serial server listening", "device", s.Config.Device)

	// handle close
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	return transport.ServeStream(ctx, &idleReader{ctx: ctx, rw: port}, responder)
}

// idleReader turns read errors into empty reads while ctx is alive, since a
// serial read timeout only means the line was quiet.
type idleReader struct {
	ctx context.Context
	rw  io.ReadWriter
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.rw.Read(p)
	if err != nil {
		if r.ctx.Err() != nil {
			return n, err
		}
		slog.Debug("serial read", "err", err)
		if n == 0 {
			sleep(r.ctx, idleBackoff)
		}
		return n, nil
	}
	return n, nil
}

func (r *idleReader) Write(p []byte) (int, error) {
	return r.rw.Write(p)
}
