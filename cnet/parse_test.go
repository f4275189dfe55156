// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package cnet

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *Command
	}{
		{
			"ReadNamed",
			"00RSS0206%MW10005%DW20",
			&Command{Station: "00", Tag: TagReadNamed, Addresses: []string{"%MW100", "%DW20"}},
		},
		{
			"WriteNamed",
			"01WSS0106%MW1000400FF",
			&Command{Station: "01", Tag: TagWriteNamed, Addresses: []string{"%MW100"}, Values: []string{"00FF"}},
		},
		{
			"ReadBlock",
			"00RSB06%MW10010",
			&Command{Station: "00", Tag: TagReadBlock, Start: "%MW100", Count: 10},
		},
		{
			"WriteBlock",
			"00WSB06%MW10002000800010002",
			&Command{Station: "00", Tag: TagWriteBlock, Start: "%MW100", Count: 2, Words: []uint16{1, 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.payload)
			if err != nil {
				t.Fatalf("ParseCommand failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCommand() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseCommand_Invalid(t *testing.T) {
	payloads := []string{
		"",
		"00XYZ",
		"00RSS00",
		"00RSS0106%MW1",
		"00RSB06%MW100",
		"00WSB06%MW10002000400010002",
		"00WSB06%MW1000200080001ZZZZ",
		"00RSB06%MW10010extra",
	}
	for _, p := range payloads {
		if _, err := ParseCommand(p); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ParseCommand(%q) error = %v, want %v", p, err, ErrInvalidArgument)
		}
	}
}

func TestParseNak(t *testing.T) {
	nak := ParseNak("00RSSNAK1132")
	if nak == nil {
		t.Fatal("ParseNak returned nil for an error response")
	}
	if nak.Station != "00" || nak.Command != TagReadNamed || nak.Code != 0x1132 {
		t.Errorf("ParseNak() = %+v", nak)
	}

	for _, p := range []string{"00RSS01040001", "00WSS", "00RSSNAK12", "garbage"} {
		if ParseNak(p) != nil {
			t.Errorf("ParseNak(%q) reported an error response", p)
		}
	}
}

func TestParseWords(t *testing.T) {
	got, err := ParseWords("000100FFABCD")
	if err != nil {
		t.Fatalf("ParseWords failed: %v", err)
	}
	want := []uint16{0x0001, 0x00FF, 0xABCD}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseWords() = %v, want %v", got, want)
	}
	if _, err := ParseWords("123"); err == nil {
		t.Error("expected error for odd-length data")
	}
}
