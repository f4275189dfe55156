// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package cnet

import (
	"fmt"
	"strconv"
	"strings"
)

// NamedValue pairs a device address with the text to write to it.
type NamedValue struct {
	Address string
	Value   string
}

// Station normalizes a station number: trimmed, and left-padded with '0' to
// at least two characters.
func Station(station string) (string, error) {
	station = strings.TrimSpace(station)
	if station == "" {
		return "", invalidArgument("station is empty")
	}
	if len(station) < 2 {
		station = strings.Repeat("0", 2-len(station)) + station
	}
	return station, nil
}

// ReadNamed builds an RSS payload:
//
//	<station> RSS <count:2> { <len:2> <address> }
func ReadNamed(station string, addresses []string) (string, error) {
	st, err := Station(station)
	if err != nil {
		return "", err
	}
	if len(addresses) == 0 {
		return "", invalidArgument("no addresses given")
	}
	if len(addresses) > maxCount {
		return "", invalidArgument("%d addresses exceed the limit of %d", len(addresses), maxCount)
	}

	var sb strings.Builder
	sb.WriteString(st)
	sb.WriteString(TagReadNamed)
	sb.WriteString(decimal(len(addresses), countWidth))
	for _, addr := range addresses {
		if err := writeField(&sb, "address", addr); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// WriteNamed builds a WSS payload:
//
//	<station> WSS <count:2> { <len:2> <address> <len:2> <value> }
func WriteNamed(station string, pairs []NamedValue) (string, error) {
	st, err := Station(station)
	if err != nil {
		return "", err
	}
	if len(pairs) == 0 {
		return "", invalidArgument("no values given")
	}
	if len(pairs) > maxCount {
		return "", invalidArgument("%d values exceed the limit of %d", len(pairs), maxCount)
	}

	var sb strings.Builder
	sb.WriteString(st)
	sb.WriteString(TagWriteNamed)
	sb.WriteString(decimal(len(pairs), countWidth))
	for _, p := range pairs {
		if err := writeField(&sb, "address", p.Address); err != nil {
			return "", err
		}
		if err := writeField(&sb, "value", p.Value); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// WriteNamedValues renders numeric values as 4-digit uppercase hex (or plain
// decimal when hex is false) and builds a WSS payload from them.
func WriteNamedValues(station string, addresses []string, values []int, hex bool) (string, error) {
	if len(addresses) != len(values) {
		return "", invalidArgument("%d addresses but %d values", len(addresses), len(values))
	}
	pairs := make([]NamedValue, len(addresses))
	for i, addr := range addresses {
		if values[i] < 0 {
			return "", invalidArgument("value %d for %s is negative", values[i], addr)
		}
		text := strconv.Itoa(values[i])
		if hex {
			w, err := hexWord(values[i])
			if err != nil {
				return "", err
			}
			text = w
		}
		pairs[i] = NamedValue{Address: addr, Value: text}
	}
	return WriteNamed(station, pairs)
}

// ReadBlock builds an RSB payload:
//
//	<station> RSB <len:2> <start> <count:2>
func ReadBlock(station, start string, count int) (string, error) {
	st, err := Station(station)
	if err != nil {
		return "", err
	}
	if count < 0 || count > maxCount {
		return "", invalidArgument("word count %d out of range 0-%d", count, maxCount)
	}

	var sb strings.Builder
	sb.WriteString(st)
	sb.WriteString(TagReadBlock)
	if err := writeField(&sb, "start address", start); err != nil {
		return "", err
	}
	sb.WriteString(decimal(count, countWidth))
	return sb.String(), nil
}

// WriteBlock builds a WSB payload:
//
//	<station> WSB <len:2> <start> <count:2> <datalen:4> { <word:4 hex> }
func WriteBlock(station, start string, values []int) (string, error) {
	st, err := Station(station)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", invalidArgument("no values given")
	}
	if len(values) > maxCount {
		return "", invalidArgument("%d words exceed the limit of %d", len(values), maxCount)
	}

	var data strings.Builder
	for _, v := range values {
		w, err := hexWord(v)
		if err != nil {
			return "", err
		}
		data.WriteString(w)
	}

	var sb strings.Builder
	sb.WriteString(st)
	sb.WriteString(TagWriteBlock)
	if err := writeField(&sb, "start address", start); err != nil {
		return "", err
	}
	sb.WriteString(decimal(len(values), countWidth))
	sb.WriteString(decimal(data.Len(), dataLenWidth))
	sb.WriteString(data.String())
	return sb.String(), nil
}

// writeField writes a trimmed, non-empty field preceded by its 2-digit length.
func writeField(sb *strings.Builder, name, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return invalidArgument("%s is empty", name)
	}
	if len(text) > maxLength {
		return invalidArgument("%s %q is longer than %d characters", name, text, maxLength)
	}
	sb.WriteString(decimal(len(text), lengthWidth))
	sb.WriteString(text)
	return nil
}

func decimal(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

func hexWord(v int) (string, error) {
	if v < 0 || v > maxWord {
		return "", invalidArgument("word value %d out of range 0-%d", v, maxWord)
	}
	return fmt.Sprintf("%0*X", wordWidth, v), nil
}
