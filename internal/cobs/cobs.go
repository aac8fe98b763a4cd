// Package cobs implements Consistent Overhead Byte Stuffing: a framing
// transform that produces a byte stream free of a single delimiter value
// (0x00 here) with at most one byte of overhead per 254 input bytes.
package cobs

import "errors"

// ErrMalformed is returned by Decode when the input cannot represent a
// valid COBS-encoded block (a code byte reaches past the end of input, or
// the decoded result is empty).
var ErrMalformed = errors.New("cobs: malformed input")

// Encode returns the COBS encoding of data. The result never contains a
// zero byte; the caller is responsible for appending the frame delimiter.
func Encode(data []byte) []byte {
	out := make([]byte, len(data)+1+len(data)/254)
	codeIdx, readIdx := 0, 0
	code, writeIdx := byte(1), 1

	for readIdx < len(data) {
		if data[readIdx] == 0 {
			out[codeIdx] = code
			code = 1
			codeIdx = writeIdx
			writeIdx++
			readIdx++
			continue
		}
		out[writeIdx] = data[readIdx]
		readIdx++
		writeIdx++
		code++
		if code == 0xFF {
			out[codeIdx] = code
			code = 1
			codeIdx = writeIdx
			writeIdx++
		}
	}
	out[codeIdx] = code

	return out[:writeIdx]
}

// Decode reverses Encode. It returns ErrMalformed if a code byte would read
// past the end of input (and is not the special one-byte-run code 1), or if
// the decoded result would be empty.
func Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	readIdx, writeIdx := 0, 0

	for readIdx < len(data) {
		code := data[readIdx]
		if readIdx+int(code) > len(data) && code != 1 {
			return nil, ErrMalformed
		}
		readIdx++
		for i := 0; i < int(code)-1; i++ {
			out[writeIdx] = data[readIdx]
			writeIdx++
			readIdx++
		}
		if code != 0xFF && readIdx != len(data) {
			out[writeIdx] = 0
			writeIdx++
		}
	}

	if writeIdx == 0 {
		return nil, ErrMalformed
	}

	return out[:writeIdx], nil
}
