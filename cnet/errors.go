// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package cnet

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument   = errors.New("cnet: invalid argument")
	ErrMalformedFrame    = errors.New("cnet: malformed frame")
	ErrMissingTerminator = errors.New("cnet: missing frame terminator")
	ErrBufferOverflow    = errors.New("cnet: reassembly buffer overflow")
)

// NakError is an error response reported by the controller.
type NakError struct {
	Station string
	Command string
	Code    uint16
}

func (e *NakError) Error() string {
	return fmt.Sprintf("cnet: station %s rejected %s: error code 0x%04X", e.Station, e.Command, e.Code)
}

func invalidArgument(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, v...))
}
