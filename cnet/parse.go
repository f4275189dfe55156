// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package cnet

import (
	"strconv"
	"strings"
)

// Command is a request payload split into its fields.
type Command struct {
	Station string
	Tag     string

	// RSS / WSS
	Addresses []string
	Values    []string

	// RSB / WSB
	Start string
	Count int
	Words []uint16
}

var tags = []string{TagReadNamed, TagWriteNamed, TagReadBlock, TagWriteBlock}

// ParseCommand splits a request payload built by ReadNamed, WriteNamed,
// ReadBlock or WriteBlock back into its fields.
func ParseCommand(payload string) (*Command, error) {
	station, tag, rest, err := splitHeader(payload)
	if err != nil {
		return nil, err
	}

	cmd := &Command{Station: station, Tag: tag}
	s := &scanner{text: rest}

	switch tag {
	case TagReadNamed, TagWriteNamed:
		count, err := s.decimal(countWidth)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, invalidArgument("%s with zero addresses", tag)
		}
		for i := 0; i < count; i++ {
			addr, err := s.field()
			if err != nil {
				return nil, err
			}
			cmd.Addresses = append(cmd.Addresses, addr)
			if tag == TagWriteNamed {
				value, err := s.field()
				if err != nil {
					return nil, err
				}
				cmd.Values = append(cmd.Values, value)
			}
		}
	case TagReadBlock, TagWriteBlock:
		if cmd.Start, err = s.field(); err != nil {
			return nil, err
		}
		if cmd.Count, err = s.decimal(countWidth); err != nil {
			return nil, err
		}
		if tag == TagWriteBlock {
			dataLen, err := s.decimal(dataLenWidth)
			if err != nil {
				return nil, err
			}
			if dataLen != cmd.Count*wordWidth {
				return nil, invalidArgument("data length %d does not match %d words", dataLen, cmd.Count)
			}
			data, err := s.take(dataLen)
			if err != nil {
				return nil, err
			}
			if cmd.Words, err = ParseWords(data); err != nil {
				return nil, err
			}
		}
	}

	if !s.done() {
		return nil, invalidArgument("%d trailing characters in %s payload", len(s.text)-s.pos, tag)
	}
	return cmd, nil
}

// ParseNak reports the controller error carried by an error response payload,
// or nil if payload is not an error response.
func ParseNak(payload string) *NakError {
	station, tag, rest, err := splitHeader(payload)
	if err != nil || !strings.HasPrefix(rest, NakMarker) {
		return nil
	}
	code := rest[len(NakMarker):]
	if len(code) != nakWidth {
		return nil
	}
	v, err := strconv.ParseUint(code, 16, 16)
	if err != nil {
		return nil
	}
	return &NakError{Station: station, Command: tag, Code: uint16(v)}
}

// ParseWords decodes concatenated 4-digit hex words.
func ParseWords(data string) ([]uint16, error) {
	if len(data)%wordWidth != 0 {
		return nil, invalidArgument("hex data length %d is not a multiple of %d", len(data), wordWidth)
	}
	words := make([]uint16, 0, len(data)/wordWidth)
	for i := 0; i < len(data); i += wordWidth {
		v, err := strconv.ParseUint(data[i:i+wordWidth], 16, 16)
		if err != nil {
			return nil, invalidArgument("bad hex word %q", data[i:i+wordWidth])
		}
		words = append(words, uint16(v))
	}
	return words, nil
}

// splitHeader separates the station and the command tag from the rest.
func splitHeader(payload string) (station, tag, rest string, err error) {
	for i := 2; i+3 <= len(payload); i++ {
		for _, t := range tags {
			if payload[i:i+3] == t {
				return payload[:i], t, payload[i+3:], nil
			}
		}
	}
	return "", "", "", invalidArgument("no command tag in %q", payload)
}

type scanner struct {
	text string
	pos  int
}

func (s *scanner) take(n int) (string, error) {
	if s.pos+n > len(s.text) {
		return "", invalidArgument("payload truncated at offset %d", s.pos)
	}
	out := s.text[s.pos : s.pos+n]
	s.pos += n
	return out, nil
}

func (s *scanner) decimal(width int) (int, error) {
	text, err := s.take(width)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, invalidArgument("bad decimal field %q", text)
	}
	return n, nil
}

// field reads a length-prefixed field.
func (s *scanner) field() (string, error) {
	n, err := s.decimal(lengthWidth)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", invalidArgument("empty field at offset %d", s.pos)
	}
	return s.take(n)
}

func (s *scanner) done() bool {
	return s.pos == len(s.text)
}
