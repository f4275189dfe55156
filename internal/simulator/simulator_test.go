// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ffutop/cnet-link/client"
	"github.com/ffutop/cnet-link/cnet"
	"github.com/ffutop/cnet-link/internal/simulator/model"
	"github.com/ffutop/cnet-link/internal/simulator/persistence"
)

func newSimulator(t *testing.T) (*Simulator, *model.Memory) {
	t.Helper()
	mem := model.NewMemory()
	s, err := New("0", mem, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, mem
}

func TestNew_RejectsEmptyStation(t *testing.T) {
	if _, err := New(" ", nil, nil); err == nil {
		t.Error("expected error for empty station")
	}
}

func TestSimulator_Respond(t *testing.T) {
	s, mem := newSimulator(t)
	mem.WriteWords(model.Address{Area: 'M', Index: 100}, []uint16{0x002A, 0x1234})
	mem.WriteWords(model.Address{Area: 'D', Index: 5}, []uint16{0xBEEF})

	tests := []struct {
		name    string
		request func() (string, error)
		want    string
	}{
		{
			name:    "read named",
			request: func() (string, error) { return cnet.ReadNamed("00", []string{"%MW100", "%DW5"}) },
			want:    "00RSS020400" + "2A" + "04BEEF",
		},
		{
			name:    "read block",
			request: func() (string, error) { return cnet.ReadBlock("00", "%MW100", 3) },
			want:    "00RSB03002A12340000",
		},
		{
			name:    "write named",
			request: func() (string, error) { return cnet.WriteNamedValues("00", []string{"%MW1"}, []int{7}, true) },
			want:    "00WSS",
		},
		{
			name:    "write block",
			request: func() (string, error) { return cnet.WriteBlock("00", "%DW10", []int{1, 2}) },
			want:    "00WSB",
		},
		{
			name:    "unknown variable",
			request: func() (string, error) { return cnet.ReadNamed("00", []string{"%ZW1"}) },
			want:    "00RSSNAK0004",
		},
		{
			name:    "out of range",
			request: func() (string, error) { return cnet.ReadBlock("00", "%MW8190", 5) },
			want:    "00RSBNAK1132",
		},
		{
			name:    "read after write",
			request: func() (string, error) { return cnet.ReadNamed("00", []string{"%MW1"}) },
			want:    "00RSS01040007",
		},
		{
			name: "too many blocks",
			request: func() (string, error) {
				addrs := make([]string, MaxBlocks+1)
				for i := range addrs {
					addrs[i] = "%MW0"
				}
				return cnet.ReadNamed("00", addrs)
			},
			want: "00RSSNAK0003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.request()
			if err != nil {
				t.Fatalf("building request: %v", err)
			}
			got, ok := s.Respond(req)
			if !ok {
				t.Fatalf("Respond(%q) gave no response", req)
			}
			if got != tt.want {
				t.Errorf("Respond(%q) = %q, want %q", req, got, tt.want)
			}
		})
	}

	words, _ := mem.ReadWords(model.Address{Area: 'D', Index: 10}, 2)
	if words[0] != 1 || words[1] != 2 {
		t.Errorf("%%DW10.. = %v after write block, want [1 2]", words)
	}
}

func TestSimulator_WriteNamedIsAllOrNothing(t *testing.T) {
	s, mem := newSimulator(t)
	req, err := cnet.WriteNamed("00", []cnet.NamedValue{
		{Address: "%MW1", Value: "0001"},
		{Address: "%MW2", Value: "XYZ"},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := s.Respond(req)
	if got != "00WSSNAK0011" {
		t.Errorf("Respond = %q, want 00WSSNAK0011", got)
	}
	words, _ := mem.ReadWords(model.Address{Area: 'M', Index: 1}, 1)
	if words[0] != 0 {
		t.Errorf("%%MW1 = %d after rejected write, want 0", words[0])
	}
}

func TestSimulator_Ignores(t *testing.T) {
	s, _ := newSimulator(t)
	other, _ := cnet.ReadBlock("01", "%MW0", 1)

	for _, payload := range []string{other, "", "garbage", "01RSS"} {
		if got, ok := s.Respond(payload); ok {
			t.Errorf("Respond(%q) = %q, want no response", payload, got)
		}
	}
}

func TestSimulator_MalformedRequestIsRejected(t *testing.T) {
	s, _ := newSimulator(t)
	got, ok := s.Respond("00RSS9")
	if !ok {
		t.Fatal("expected a NAK response")
	}
	if got != "00RSSNAK1234" {
		t.Errorf("Respond = %q, want 00RSSNAK1234", got)
	}
	nak := cnet.ParseNak(got)
	if nak == nil || nak.Code != NakBadFormat || nak.Command != cnet.TagReadNamed {
		t.Errorf("ParseNak(%q) = %+v", got, nak)
	}
}

func TestSimulator_PersistsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.bin")
	storage := persistence.NewFileStorage(path)
	mem, err := storage.Load()
	if err != nil {
		t.Fatal(err)
	}
	s, err := New("00", mem, storage)
	if err != nil {
		t.Fatal(err)
	}
	req, _ := cnet.WriteBlock("00", "%DW0", []int{0xCAFE})
	if got, _ := s.Respond(req); got != "00WSB" {
		t.Fatalf("Respond = %q, want 00WSB", got)
	}
	storage.Close()

	reloaded := persistence.NewFileStorage(path)
	mem, err = reloaded.Load()
	if err != nil {
		t.Fatal(err)
	}
	defer reloaded.Close()
	words, _ := mem.ReadWords(model.Address{Area: 'D', Index: 0}, 1)
	if words[0] != 0xCAFE {
		t.Errorf("%%DW0 after reload = %04X, want CAFE", words[0])
	}
}

// pipePort adapts one end of a net.Pipe to client.Port.
type pipePort struct {
	net.Conn
}

func (pipePort) IsOpen() bool { return true }

// startPipe serves s on one end of a pipe and returns a running client on
// the other.
func startPipe(t *testing.T, s *Simulator, opts ...client.Option) *client.Client {
	t.Helper()
	near, far := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		near.Close()
		far.Close()
	})
	go s.Serve(ctx, far)

	c := client.New(pipePort{near}, append([]client.Option{client.WithTimeout(2 * time.Second)}, opts...)...)
	go c.Run(ctx)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := near.Read(buf)
			if n > 0 {
				c.Feed(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()
	return c
}

func TestSimulator_DecimalValues(t *testing.T) {
	mem := model.NewMemory()
	s, err := New("00", mem, nil, WithDecimalValues())
	if err != nil {
		t.Fatal(err)
	}
	c := startPipe(t, s, client.WithDecimalValues())
	ctx := context.Background()

	got, err := c.WriteNamedValues(ctx, []string{"%MW100", "%MW101"}, []int{100, 65535})
	if err != nil {
		t.Fatalf("WriteNamedValues failed: %v", err)
	}
	if got != "00WSS" {
		t.Errorf("WriteNamedValues = %q, want 00WSS", got)
	}
	words, _ := mem.ReadWords(model.Address{Area: 'M', Index: 100}, 2)
	if words[0] != 100 || words[1] != 65535 {
		t.Errorf("%%MW100.. = %v, want [100 65535]", words)
	}

	got, err = c.WriteNamedValues(ctx, []string{"%MW100"}, []int{70000})
	if err != nil {
		t.Fatalf("WriteNamedValues failed: %v", err)
	}
	if got != "00WSSNAK0011" {
		t.Errorf("out-of-range decimal value: response = %q, want 00WSSNAK0011", got)
	}
}

func TestSimulator_HexRejectsDecimalValues(t *testing.T) {
	s, mem := newSimulator(t)
	c := startPipe(t, s, client.WithDecimalValues())

	got, err := c.WriteNamedValues(context.Background(), []string{"%MW100"}, []int{100})
	if err != nil {
		t.Fatalf("WriteNamedValues failed: %v", err)
	}
	if got != "00WSSNAK0011" {
		t.Errorf("response = %q, want 00WSSNAK0011", got)
	}
	words, _ := mem.ReadWords(model.Address{Area: 'M', Index: 100}, 1)
	if words[0] != 0 {
		t.Errorf("%%MW100 = %d after rejected write, want 0", words[0])
	}
}

func TestSimulator_ClientRoundTrip(t *testing.T) {
	s, _ := newSimulator(t)
	near, far := net.Pipe()
	defer near.Close()
	defer far.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx, far)

	c := client.New(pipePort{near}, client.WithTimeout(2*time.Second))
	go c.Run(ctx)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := near.Read(buf)
			if n > 0 {
				c.Feed(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	got, err := c.WriteNamedValues(ctx, []string{"%MW100", "%MW101"}, []int{0x2A, 0xFFFF})
	if err != nil {
		t.Fatalf("WriteNamedValues failed: %v", err)
	}
	if got != "00WSS" {
		t.Errorf("WriteNamedValues = %q, want 00WSS", got)
	}

	got, err = c.ReadNamed(ctx, "%MW100", "%MW101")
	if err != nil {
		t.Fatalf("ReadNamed failed: %v", err)
	}
	if got != "00RSS0204002A04FFFF" {
		t.Errorf("ReadNamed = %q", got)
	}

	if _, err := c.WriteBlock(ctx, "%DW0", []int{1, 2, 3}); err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}
	got, err = c.ReadBlock(ctx, "%DW0", 3)
	if err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	if got != "00RSB03000100020003" {
		t.Errorf("ReadBlock = %q", got)
	}

	got, err = c.ReadBlock(ctx, "%QW0", 1)
	if err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	if nak := cnet.ParseNak(got); nak == nil || nak.Code != NakBadVariable {
		t.Errorf("ReadBlock(%%QW0) = %q, want a NAK with code %04X", got, NakBadVariable)
	}
}
