// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package bcc

// BCC is a running block check character: the XOR of every byte pushed.
type BCC struct {
	sum byte
}

func (b *BCC) Reset() *BCC {
	b.sum = 0
	return b
}

func (b *BCC) PushByte(v byte) *BCC {
	b.sum ^= v
	return b
}

func (b *BCC) PushBytes(p []byte) *BCC {
	for _, v := range p {
		b.sum ^= v
	}
	return b
}

func (b *BCC) Value() byte {
	return b.sum
}

// Checksum returns the block check character of p.
func Checksum(p []byte) byte {
	var b BCC
	return b.PushBytes(p).Value()
}
