// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Areas lists the device letters of the simulated controller, in storage order.
const Areas = "PMKLFTCD"

const (
	// AreaWords is the number of words in each device area.
	AreaWords = 8192
	areaSize  = AreaWords * 2

	// Size is the number of bytes backing a Memory.
	Size = len(Areas) * areaSize
)

var (
	ErrBadAddress  = errors.New("bad device address")
	ErrOutOfRange  = errors.New("device address out of range")
	ErrBackingSize = errors.New("backing store has the wrong size")
)

// Address names one word of a device area, e.g. %MW100.
type Address struct {
	Area  byte
	Index int
}

func (a Address) String() string {
	return fmt.Sprintf("%%%cW%d", a.Area, a.Index)
}

// ParseAddress parses a named word address of the form %<area>W<index>.
func ParseAddress(s string) (Address, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 4 || s[0] != '%' || s[2] != 'W' {
		return Address{}, fmt.Errorf("%w: %q", ErrBadAddress, s)
	}
	if strings.IndexByte(Areas, s[1]) < 0 {
		return Address{}, fmt.Errorf("%w: unknown area %q", ErrBadAddress, s[1])
	}
	index, err := strconv.Atoi(s[3:])
	if err != nil || index < 0 {
		return Address{}, fmt.Errorf("%w: %q", ErrBadAddress, s)
	}
	if index >= AreaWords {
		return Address{}, fmt.Errorf("%w: %s", ErrOutOfRange, s)
	}
	return Address{Area: s[1], Index: index}, nil
}

// Memory holds the device areas of the simulated controller. Words are kept
// big-endian in a flat byte slice so that the slice can be backed by a file.
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemory creates a new memory initialized to zero.
func NewMemory() *Memory {
	return &Memory{data: make([]byte, Size)}
}

// NewMemoryFromBytes creates a memory that reads and writes data in place.
func NewMemoryFromBytes(data []byte) (*Memory, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrBackingSize, len(data), Size)
	}
	return &Memory{data: data}, nil
}

// ReadWords reads count consecutive words starting at addr.
func (m *Memory) ReadWords(addr Address, count int) ([]uint16, error) {
	off, err := offset(addr, count)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	words := make([]uint16, count)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(m.data[off+i*2:])
	}
	return words, nil
}

// WriteWords writes values to consecutive words starting at addr.
func (m *Memory) WriteWords(addr Address, values []uint16) error {
	off, err := offset(addr, len(values))
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, v := range values {
		binary.BigEndian.PutUint16(m.data[off+i*2:], v)
	}
	return nil
}

// offset returns the byte offset of addr after checking that count words fit
// inside its area.
func offset(addr Address, count int) (int, error) {
	area := strings.IndexByte(Areas, addr.Area)
	if area < 0 {
		return 0, fmt.Errorf("%w: unknown area %q", ErrBadAddress, addr.Area)
	}
	if count < 1 {
		return 0, fmt.Errorf("%w: count must be greater than 0", ErrOutOfRange)
	}
	if addr.Index < 0 || addr.Index+count > AreaWords {
		return 0, fmt.Errorf("%w: %s + %d words", ErrOutOfRange, addr, count)
	}
	return area*areaSize + addr.Index*2, nil
}
