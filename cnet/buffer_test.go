// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package cnet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ffutop/cnet-link/cnet/bcc"
)

func feed(t *testing.T, b *Buffer, stream []byte, chunk int) [][]byte {
	t.Helper()
	var frames [][]byte
	for len(stream) > 0 {
		n := chunk
		if n > len(stream) {
			n = len(stream)
		}
		got, err := b.Write(stream[:n])
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		frames = append(frames, got...)
		stream = stream[n:]
	}
	return frames
}

func TestBuffer_ChunkSizeIndependence(t *testing.T) {
	frame := EncodeString("00RSB06%MW10010")
	for _, chunk := range []int{1, 2, 3, 7, len(frame)} {
		b := NewBuffer(0)
		frames := feed(t, b, frame, chunk)
		if len(frames) != 1 {
			t.Fatalf("chunk %d: got %d frames, want 1", chunk, len(frames))
		}
		if !bytes.Equal(frames[0], frame) {
			t.Errorf("chunk %d: frame mismatch.\nWant: %X\nGot:  %X", chunk, frame, frames[0])
		}
		if b.Len() != 0 {
			t.Errorf("chunk %d: %d bytes left in buffer", chunk, b.Len())
		}
	}
}

func TestBuffer_BackToBackFrames(t *testing.T) {
	first := EncodeString("00RSS0106%MW100")
	second := EncodeString("00WSS")
	stream := append(append([]byte(nil), first...), second...)

	b := NewBuffer(0)
	frames, err := b.Write(stream)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], first) || !bytes.Equal(frames[1], second) {
		t.Errorf("frames out of order: %X, %X", frames[0], frames[1])
	}
}

func TestBuffer_LeadingNoise(t *testing.T) {
	frame := EncodeString("00WSB")
	stream := append([]byte{0x00, 0xFF, 'x', EOT, 0x13}, frame...)

	b := NewBuffer(0)
	frames, err := b.Write(stream)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], frame) {
		t.Fatalf("got %X, want single frame %X", frames, frame)
	}
	if b.Discarded() != 5 {
		t.Errorf("Discarded() = %d, want 5", b.Discarded())
	}
}

func TestBuffer_NoStartDiscardsEverything(t *testing.T) {
	b := NewBuffer(0)
	frames, err := b.Write([]byte("no frame here"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("got %d frames, want 0", len(frames))
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestBuffer_WaitsForMoreData(t *testing.T) {
	tests := []struct {
		name    string
		partial []byte
	}{
		{"StartOnly", []byte{ENQ}},
		{"TwoBytes", []byte{ENQ, 'A'}},
		{"NoTerminator", []byte{ENQ, 'A', 'B', 'C'}},
		{"NoChecksum", []byte{ENQ, 'A', EOT}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer(0)
			frames, err := b.Write(tt.partial)
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if len(frames) != 0 {
				t.Fatalf("got %d frames from partial input", len(frames))
			}
			if !bytes.Equal(b.Bytes(), tt.partial) {
				t.Errorf("pending = %X, want %X", b.Bytes(), tt.partial)
			}
		})
	}
}

func TestBuffer_CorruptFrameResync(t *testing.T) {
	good := EncodeString("00RSB06%MW10010")
	for i := 1; i < len(good); i++ {
		corrupt := append([]byte(nil), good...)
		corrupt[i] ^= 0x20
		if corrupt[i] == ENQ || corrupt[i] == EOT {
			continue
		}

		b := NewBuffer(0)
		stream := append(corrupt, good...)
		frames, err := b.Write(stream)
		if err != nil {
			t.Fatalf("byte %d: Write failed: %v", i, err)
		}
		if len(frames) != 1 {
			t.Fatalf("byte %d: got %d frames, want 1", i, len(frames))
		}
		if !bytes.Equal(frames[0], good) {
			t.Errorf("byte %d: emitted corrupted span %X", i, frames[0])
		}
	}
}

func TestBuffer_ResyncDropsOneByte(t *testing.T) {
	// A stray ENQ right before a valid frame forms a candidate that fails
	// the check; only the stray byte may be lost.
	inner := []byte{ENQ, 'A', EOT}
	stream := append([]byte{ENQ}, inner...)
	stream = append(stream, bcc.Checksum(inner))

	b := NewBuffer(0)
	frames, err := b.Write(stream)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], stream[1:]) {
		t.Errorf("frame = %X, want %X", frames[0], stream[1:])
	}
	if b.Discarded() != 1 {
		t.Errorf("Discarded() = %d, want 1", b.Discarded())
	}
}

func TestBuffer_Overflow(t *testing.T) {
	b := NewBuffer(8)
	stream := []byte{ENQ, '0', '1', '2', '3', '4', '5', '6', '7', '8'}
	_, err := b.Write(stream)
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("Write() error = %v, want %v", err, ErrBufferOverflow)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d after overflow, want 0", b.Len())
	}

	// The buffer keeps working afterwards.
	frame := EncodeString("ok")
	frames, err := b.Write(frame)
	if err != nil {
		t.Fatalf("Write after overflow failed: %v", err)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], frame) {
		t.Errorf("got %X, want %X", frames, frame)
	}
}

func TestBuffer_FramesBeforeOverflowAreKept(t *testing.T) {
	frame := EncodeString("00WSS")
	stream := append(append([]byte(nil), frame...), ENQ, 'x', 'x', 'x', 'x', 'x', 'x', 'x', 'x', 'x')

	b := NewBuffer(8)
	frames, err := b.Write(stream)
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("Write() error = %v, want %v", err, ErrBufferOverflow)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], frame) {
		t.Errorf("got %X, want %X", frames, frame)
	}
}
