// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package client

import (
	"log/slog"
	"time"

	"github.com/ffutop/cnet-link/cnet"
)

const (
	defaultTimeout   = time.Second
	defaultChunkSize = 64
)

// Config holds the client configuration.
type Config struct {
	// Station is the controller station number used by the typed operations.
	Station string

	// Timeout bounds every exchange that does not pass its own.
	Timeout time.Duration

	// MaxBufferSize caps the bytes held while waiting for a frame to complete.
	MaxBufferSize int

	// HexValues renders WriteNamedValues values as 4-digit hex instead of decimal.
	HexValues bool

	// Observer receives frames that arrive with no exchange waiting (optional).
	Observer Observer

	Logger *slog.Logger
}

func defaultConfig() Config {
	return Config{
		Station:       cnet.DefaultStation,
		Timeout:       defaultTimeout,
		MaxBufferSize: cnet.DefaultMaxBufferSize,
		HexValues:     true,
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithStation sets the station number addressed by the typed operations.
func WithStation(station string) Option {
	return func(c *Config) {
		c.Station = station
	}
}

// WithTimeout sets the default exchange timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxBufferSize caps the reassembly buffer.
func WithMaxBufferSize(size int) Option {
	return func(c *Config) {
		c.MaxBufferSize = size
	}
}

// WithDecimalValues makes WriteNamedValues send plain decimal text.
func WithDecimalValues() Option {
	return func(c *Config) {
		c.HexValues = false
	}
}

// WithObserver registers the receiver of unsolicited frames.
func WithObserver(o Observer) Option {
	return func(c *Config) {
		c.Observer = o
	}
}

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
