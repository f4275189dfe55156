// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package cnet

import (
	"bytes"
	"fmt"

	"github.com/ffutop/cnet-link/cnet/bcc"
)

// Encode wraps payload in a frame:
//
//	ENQ      : 1 byte
//	Payload  : 0 up to N ASCII bytes
//	EOT      : 1 byte
//	BCC      : 1 byte, XOR of ENQ through EOT
func Encode(payload []byte) []byte {
	length := len(payload) + MinFrameSize
	raw := make([]byte, length)

	raw[0] = ENQ
	copy(raw[1:], payload)
	raw[length-2] = EOT

	var sum bcc.BCC
	sum.Reset().PushBytes(raw[:length-1])
	raw[length-1] = sum.Value()
	return raw
}

// EncodeString is Encode for a text payload.
func EncodeString(payload string) []byte {
	return Encode([]byte(payload))
}

// Decode returns the payload between ENQ and the first EOT. The block check
// character is not verified here; see Validate.
func Decode(raw []byte) (string, error) {
	if len(raw) < MinFrameSize {
		return "", fmt.Errorf("%w: length '%v' does not meet minimum '%v'", ErrMalformedFrame, len(raw), MinFrameSize)
	}
	if raw[0] != ENQ {
		return "", fmt.Errorf("%w: first byte 0x%02X is not ENQ", ErrMalformedFrame, raw[0])
	}
	end := bytes.IndexByte(raw[1:], EOT)
	if end < 0 {
		return "", ErrMissingTerminator
	}
	return string(raw[1 : 1+end]), nil
}

// Validate reports whether raw is a complete frame whose trailing byte is the
// block check character of everything before it.
func Validate(raw []byte) bool {
	length := len(raw)
	if length < MinFrameSize || raw[0] != ENQ || raw[length-2] != EOT {
		return false
	}
	return bcc.Checksum(raw[:length-1]) == raw[length-1]
}

// ParseResponse extracts the response text of a frame. The text is returned
// verbatim; controller status codes are left to the caller.
func ParseResponse(raw []byte) (string, error) {
	return Decode(raw)
}
