// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
)

// Link is a duplex byte stream to a controller.
//
// The link never assumes message boundaries: Start pushes raw chunks as they
// arrive and reassembly is left to the caller.
type Link interface {
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool
	Write(p []byte) (int, error)

	// Start reads until ctx is done, calling onData for every chunk. Read
	// errors are logged and the link is reopened; they never end the loop.
	Start(ctx context.Context, onData func([]byte)) error
}

// Responder answers request payloads on the device side of a link. ok is
// false when the request must go unanswered.
type Responder interface {
	Respond(payload string) (response string, ok bool)
}
