// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package cnet

import (
	"bytes"
	"fmt"

	"github.com/ffutop/cnet-link/cnet/bcc"
)

// Buffer reassembles frames from an arbitrarily chunked byte stream.
//
// Noise before a frame start is dropped. A candidate whose block check
// character does not match costs exactly one leading byte, after which the
// scan resumes at the next ENQ.
//
// A Buffer is not safe for concurrent use; it is meant to be owned by a
// single goroutine.
type Buffer struct {
	data    []byte
	maxSize int

	discarded uint64
}

// NewBuffer allocates a Buffer holding at most maxSize pending bytes.
func NewBuffer(maxSize int) *Buffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxBufferSize
	}
	return &Buffer{
		data:    make([]byte, 0, 256),
		maxSize: maxSize,
	}
}

// Write appends p and returns every complete, valid frame now available, in
// arrival order. If the pending bytes still exceed the size limit afterwards
// the buffer is cleared and ErrBufferOverflow is returned with the frames
// extracted so far.
func (b *Buffer) Write(p []byte) ([][]byte, error) {
	b.data = append(b.data, p...)

	var frames [][]byte
	for {
		frame, ok := b.next()
		if !ok {
			break
		}
		frames = append(frames, frame)
	}

	if len(b.data) > b.maxSize {
		dropped := len(b.data)
		b.discard(dropped)
		return frames, fmt.Errorf("%w: %d bytes pending, limit %d", ErrBufferOverflow, dropped, b.maxSize)
	}
	return frames, nil
}

// next extracts one frame. It returns false when more data is needed.
func (b *Buffer) next() ([]byte, bool) {
	for {
		start := bytes.IndexByte(b.data, ENQ)
		if start < 0 {
			b.discard(len(b.data))
			return nil, false
		}
		b.discard(start)

		if len(b.data) < MinFrameSize {
			return nil, false
		}

		end := bytes.IndexByte(b.data[1:], EOT)
		if end < 0 {
			return nil, false
		}
		end++ // index in b.data

		if end+1 >= len(b.data) {
			// checksum byte not here yet
			return nil, false
		}

		span := end + 2
		var sum bcc.BCC
		sum.Reset().PushBytes(b.data[:end+1])
		if sum.Value() != b.data[end+1] {
			b.discard(1)
			continue
		}

		frame := make([]byte, span)
		copy(frame, b.data[:span])
		b.consume(span)
		return frame, true
	}
}

func (b *Buffer) consume(n int) {
	if n <= 0 {
		return
	}
	remaining := copy(b.data, b.data[n:])
	b.data = b.data[:remaining]
}

func (b *Buffer) discard(n int) {
	if n <= 0 {
		return
	}
	b.discarded += uint64(n)
	b.consume(n)
}

// Len returns the number of pending bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns a copy of the pending bytes.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Discarded returns how many bytes have been dropped as noise or during
// resynchronization.
func (b *Buffer) Discarded() uint64 {
	return b.discarded
}

// Reset drops all pending bytes.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
