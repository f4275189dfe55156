// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/ffutop/cnet-link/cnet"
	"github.com/ffutop/cnet-link/internal/simulator/model"
	"github.com/ffutop/cnet-link/internal/simulator/persistence"
	"github.com/ffutop/cnet-link/transport"
)

// Error codes carried by NAK responses.
const (
	NakTooManyBlocks uint16 = 0x0003
	NakBadVariable   uint16 = 0x0004
	NakBadValue      uint16 = 0x0011
	NakBadDevice     uint16 = 0x1132
	NakBadFormat     uint16 = 0x1234
)

// MaxBlocks is the number of named addresses one RSS or WSS may carry.
const MaxBlocks = 16

// Simulator answers read and write requests against a device memory, the way
// a controller on the far end of the line would.
type Simulator struct {
	station string
	memory  *model.Memory
	storage persistence.Storage

	// WSS values are 4-digit hex unless decimal is set.
	decimal bool

	// Serializes writes and their persistence hook.
	mu sync.Mutex
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithDecimalValues makes the simulator read WSS values as plain decimal
// text, matching a client created with client.WithDecimalValues.
func WithDecimalValues() Option {
	return func(s *Simulator) {
		s.decimal = true
	}
}

// New creates a simulator for station. storage may be nil.
func New(station string, memory *model.Memory, storage persistence.Storage, opts ...Option) (*Simulator, error) {
	st, err := cnet.Station(station)
	if err != nil {
		return nil, err
	}
	if memory == nil {
		memory = model.NewMemory()
	}
	if storage == nil {
		storage = persistence.NewMemoryStorage()
	}
	s := &Simulator{station: st, memory: memory, storage: storage}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Memory returns the device memory the simulator answers from.
func (s *Simulator) Memory() *model.Memory {
	return s.memory
}

// Serve answers requests read from rw until ctx is done or rw ends.
func (s *Simulator) Serve(ctx context.Context, rw io.ReadWriter) error {
	return transport.ServeStream(ctx, rw, s)
}

// Respond returns the response payload for a request payload. It reports
// false when the request is addressed to another station or cannot be
// attributed to any station.
func (s *Simulator) Respond(payload string) (string, bool) {
	cmd, err := cnet.ParseCommand(payload)
	if err != nil {
		tag, ok := s.header(payload)
		if !ok {
			return "", false
		}
		slog.Debug("rejecting malformed request", "request", payload, "err", err)
		return s.nak(tag, NakBadFormat), true
	}
	if cmd.Station != s.station {
		return "", false
	}

	var resp string
	switch cmd.Tag {
	case cnet.TagReadNamed:
		resp, err = s.readNamed(cmd)
	case cnet.TagWriteNamed:
		resp, err = s.writeNamed(cmd)
	case cnet.TagReadBlock:
		resp, err = s.readBlock(cmd)
	case cnet.TagWriteBlock:
		resp, err = s.writeBlock(cmd)
	default:
		err = nakCode(NakBadFormat)
	}
	if err != nil {
		var code nakCode
		if !errors.As(err, &code) {
			code = nakCode(NakBadFormat)
		}
		slog.Debug("rejecting request", "request", payload, "code", fmt.Sprintf("%04X", uint16(code)))
		return s.nak(cmd.Tag, uint16(code)), true
	}
	return resp, true
}

// header recovers the command tag of a request addressed to this station.
func (s *Simulator) header(payload string) (string, bool) {
	rest, ok := strings.CutPrefix(payload, s.station)
	if !ok || len(rest) < 3 {
		return "", false
	}
	switch tag := rest[:3]; tag {
	case cnet.TagReadNamed, cnet.TagWriteNamed, cnet.TagReadBlock, cnet.TagWriteBlock:
		return tag, true
	}
	return "", false
}

func (s *Simulator) readNamed(cmd *cnet.Command) (string, error) {
	if len(cmd.Addresses) > MaxBlocks {
		return "", nakCode(NakTooManyBlocks)
	}

	var sb strings.Builder
	sb.WriteString(s.station)
	sb.WriteString(cnet.TagReadNamed)
	fmt.Fprintf(&sb, "%02d", len(cmd.Addresses))
	for _, text := range cmd.Addresses {
		addr, err := parseAddress(text)
		if err != nil {
			return "", err
		}
		words, err := s.memory.ReadWords(addr, 1)
		if err != nil {
			return "", nakCode(NakBadDevice)
		}
		fmt.Fprintf(&sb, "%02d%04X", 4, words[0])
	}
	return sb.String(), nil
}

func (s *Simulator) writeNamed(cmd *cnet.Command) (string, error) {
	if len(cmd.Addresses) > MaxBlocks {
		return "", nakCode(NakTooManyBlocks)
	}

	// Validate everything before touching memory so a rejected request
	// leaves no partial writes behind.
	addrs := make([]model.Address, len(cmd.Addresses))
	values := make([]uint16, len(cmd.Values))
	for i, text := range cmd.Addresses {
		addr, err := parseAddress(text)
		if err != nil {
			return "", err
		}
		v, err := s.parseValue(cmd.Values[i])
		if err != nil {
			return "", err
		}
		addrs[i], values[i] = addr, v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, addr := range addrs {
		if err := s.memory.WriteWords(addr, values[i:i+1]); err != nil {
			return "", nakCode(NakBadDevice)
		}
		s.storage.OnWrite(addr, 1)
	}
	return s.station + cnet.TagWriteNamed, nil
}

// parseValue reads a WSS value. Hex values must be exactly four digits.
func (s *Simulator) parseValue(text string) (uint16, error) {
	if s.decimal {
		v, err := strconv.ParseUint(text, 10, 16)
		if err != nil {
			return 0, nakCode(NakBadValue)
		}
		return uint16(v), nil
	}
	if len(text) != 4 {
		return 0, nakCode(NakBadValue)
	}
	v, err := strconv.ParseUint(text, 16, 16)
	if err != nil {
		return 0, nakCode(NakBadValue)
	}
	return uint16(v), nil
}

func (s *Simulator) readBlock(cmd *cnet.Command) (string, error) {
	addr, err := parseAddress(cmd.Start)
	if err != nil {
		return "", err
	}
	words, err := s.memory.ReadWords(addr, cmd.Count)
	if err != nil {
		return "", nakCode(NakBadDevice)
	}

	var sb strings.Builder
	sb.WriteString(s.station)
	sb.WriteString(cnet.TagReadBlock)
	fmt.Fprintf(&sb, "%02d", len(words))
	for _, w := range words {
		fmt.Fprintf(&sb, "%04X", w)
	}
	return sb.String(), nil
}

func (s *Simulator) writeBlock(cmd *cnet.Command) (string, error) {
	addr, err := parseAddress(cmd.Start)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.memory.WriteWords(addr, cmd.Words); err != nil {
		return "", nakCode(NakBadDevice)
	}
	s.storage.OnWrite(addr, len(cmd.Words))
	return s.station + cnet.TagWriteBlock, nil
}

func (s *Simulator) nak(tag string, code uint16) string {
	return fmt.Sprintf("%s%s%s%04X", s.station, tag, cnet.NakMarker, code)
}

func parseAddress(text string) (model.Address, error) {
	addr, err := model.ParseAddress(text)
	switch {
	case errors.Is(err, model.ErrOutOfRange):
		return addr, nakCode(NakBadDevice)
	case err != nil:
		return addr, nakCode(NakBadVariable)
	}
	return addr, nil
}

// nakCode is an internal error that selects the NAK code of a response.
type nakCode uint16

func (c nakCode) Error() string {
	return fmt.Sprintf("nak %04X", uint16(c))
}
