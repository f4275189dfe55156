// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ffutop/cnet-link/cnet"
)

type tagResponder struct {
	seen []string
}

func (r *tagResponder) Respond(payload string) (string, bool) {
	r.seen = append(r.seen, payload)
	if payload == "skip" {
		return "", false
	}
	return payload + "-ack", true
}

// scripted replays chunks as reads and records every write.
type scripted struct {
	chunks [][]byte
	out    bytes.Buffer
	err    error
}

func (s *scripted) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n := copy(p, s.chunks[0])
	s.chunks = s.chunks[1:]
	return n, nil
}

func (s *scripted) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func TestServeStream_AnswersInOrder(t *testing.T) {
	a := cnet.EncodeString("a")
	b := cnet.EncodeString("b")
	corrupt := cnet.EncodeString("bad")
	corrupt[len(corrupt)-1] ^= 0xFF

	rw := &scripted{chunks: [][]byte{
		{0x00, 0x13},
		append(append([]byte{}, a...), b[:2]...),
		b[2:],
		corrupt,
		cnet.EncodeString("skip"),
	}}
	r := &tagResponder{}

	if err := ServeStream(context.Background(), rw, r); err != nil {
		t.Fatalf("ServeStream returned %v, want nil at EOF", err)
	}

	want := append(cnet.EncodeString("a-ack"), cnet.EncodeString("b-ack")...)
	if !bytes.Equal(rw.out.Bytes(), want) {
		t.Errorf("written = % X, want % X", rw.out.Bytes(), want)
	}
	if len(r.seen) != 3 || r.seen[0] != "a" || r.seen[1] != "b" || r.seen[2] != "skip" {
		t.Errorf("responder saw %q", r.seen)
	}
}

func TestServeStream_ReadError(t *testing.T) {
	boom := errors.New("boom")
	rw := &scripted{err: boom}
	if err := ServeStream(context.Background(), rw, &tagResponder{}); !errors.Is(err, boom) {
		t.Errorf("ServeStream error = %v, want %v", err, boom)
	}
}

func TestServeStream_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rw := &scripted{chunks: [][]byte{cnet.EncodeString("a")}}
	if err := ServeStream(ctx, rw, &tagResponder{}); err != nil {
		t.Errorf("ServeStream error = %v, want nil", err)
	}
	if rw.out.Len() != 0 {
		t.Errorf("answered after cancel: % X", rw.out.Bytes())
	}
}
