// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"

	"github.com/ffutop/cnet-link/cnet"
)

// ServeStream answers every valid request frame read from rw until ctx is
// done or the stream ends. Frames are answered in arrival order.
func ServeStream(ctx context.Context, rw io.ReadWriter, responder Responder) error {
	buf := cnet.NewBuffer(0)
	chunk := make([]byte, 512)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := rw.Read(chunk)
		if n > 0 {
			frames, ferr := buf.Write(chunk[:n])
			if ferr != nil {
				slog.Warn("discarding request buffer", "err", ferr)
			}
			for _, frame := range frames {
				if werr := answer(rw, frame, responder); werr != nil {
					return werr
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func answer(w io.Writer, frame []byte, responder Responder) error {
	payload, err := cnet.Decode(frame)
	if err != nil {
		slog.Debug("dropping undecodable request", "frame", hex.EncodeToString(frame), "err", err)
		return nil
	}
	response, ok := responder.Respond(payload)
	if !ok {
		slog.Debug("request left unanswered", "request", payload)
		return nil
	}
	raw := cnet.EncodeString(response)
	slog.Debug("send to client", "response", hex.EncodeToString(raw))
	_, err = w.Write(raw)
	return err
}
