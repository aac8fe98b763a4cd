// Package frame implements the Cloud Chaser link-layer framing: a COBS
// envelope delimited by 0x00, carrying a 1-byte tag (a 3-bit protocol marker
// plus a 5-bit command code) and a little-endian packed body.
package frame

import (
	"errors"
	"fmt"

	"github.com/ccio/ccrf/internal/cobs"
)

const (
	protoMarkerMask = 0b111_00000
	protoMarkerVal  = 0b101_00000
	codeMask        = 0b000_11111

	// MaxCode is the largest valid command code (5 bits).
	MaxCode = 31

	delimiter = 0x00
)

var (
	// ErrCodeRange is returned by Encode when code is outside 0..31.
	ErrCodeRange = errors.New("frame: code out of range")
	// ErrTooShort is returned by Decode when the delimited payload is empty
	// or is not a complete COBS block.
	ErrTooShort = errors.New("frame: payload too short")
	// ErrEmpty is returned by Decode when COBS-decoding yields no bytes.
	ErrEmpty = errors.New("frame: empty after decode")
	// ErrBadMarker is returned by Decode when the tag byte's upper 3 bits
	// do not match the protocol marker 0b101.
	ErrBadMarker = errors.New("frame: bad protocol marker")
)

// Frame is a decoded link-layer frame: a command code and its body.
type Frame struct {
	Code uint8
	Body []byte
}

// Encode builds the wire representation of (code, body): COBS-encoded
// tag+body followed by the 0x00 delimiter.
func Encode(code uint8, body []byte) ([]byte, error) {
	if code > MaxCode {
		return nil, fmt.Errorf("%w: %d", ErrCodeRange, code)
	}
	payload := make([]byte, 1+len(body))
	payload[0] = protoMarkerVal | (code & codeMask)
	copy(payload[1:], body)

	enc := cobs.Encode(payload)
	out := make([]byte, len(enc)+1)
	copy(out, enc)
	out[len(enc)] = delimiter
	return out, nil
}

// Decode takes one delimited payload (COBS-encoded bytes with the
// terminating 0x00 already stripped) and returns the command code and body.
func Decode(delimited []byte) (Frame, error) {
	if len(delimited) == 0 {
		return Frame{}, ErrTooShort
	}
	data, err := cobs.Decode(delimited)
	if err != nil {
		// A lone 0x01 is the COBS encoding of an empty block, which
		// cobs.Decode reports as malformed.
		if len(delimited) == 1 && delimited[0] == 0x01 {
			return Frame{}, ErrEmpty
		}
		return Frame{}, fmt.Errorf("%w: %v", ErrTooShort, err)
	}
	if len(data) == 0 {
		return Frame{}, ErrEmpty
	}
	tag := data[0]
	if tag&protoMarkerMask != protoMarkerVal {
		return Frame{}, fmt.Errorf("%w: 0x%02X", ErrBadMarker, tag)
	}
	return Frame{Code: tag & codeMask, Body: data[1:]}, nil
}
