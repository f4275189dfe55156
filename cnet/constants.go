// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package cnet

const (
	ENQ = 0x05 // frame start
	EOT = 0x04 // frame end

	MinFrameSize = 3

	DefaultMaxBufferSize = 4096
)

// Command tags
const (
	TagReadNamed  = "RSS"
	TagWriteNamed = "WSS"
	TagReadBlock  = "RSB"
	TagWriteBlock = "WSB"
)

const (
	DefaultStation = "00"

	// NakMarker follows the command tag in an error response.
	NakMarker = "NAK"
)

// Field widths of the fixed-width decimal and hex fields in a payload.
const (
	countWidth   = 2
	lengthWidth  = 2
	dataLenWidth = 4
	wordWidth    = 4
	nakWidth     = 4

	maxCount  = 99
	maxLength = 99
	maxWord   = 0xFFFF
)
