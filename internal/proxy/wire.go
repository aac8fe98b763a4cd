// Package proxy implements the local-socket daemon that multiplexes several
// client processes onto one physical Cloud Chaser link: a unix-domain
// server owning the tty exclusively, and a client that speaks the same
// proto.Invoker interface as a direct link.
package proxy

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Envelope tags, framed with a 4-byte big-endian length prefix ahead of a
// 1-byte tag and the tag-specific payload below. readEnvelope does not check
// the tag; the client and server read loops log an envelope whose tag they
// do not expect and skip it without decoding its payload.
const (
	tagRequest   = 0x01
	tagReply     = 0x02
	tagBroadcast = 0x03
)

// maxEnvelope bounds a single frame's length prefix against a malicious or
// corrupt peer claiming an unreasonable size.
const maxEnvelope = 1 << 20

var (
	// ErrUnknownTag is returned by readEnvelope when the length prefix is
	// zero, so the envelope carries no tag byte at all.
	ErrUnknownTag = errors.New("proxy: unknown envelope tag")
	// ErrTooLarge is returned by readEnvelope when the peer's declared
	// length exceeds maxEnvelope.
	ErrTooLarge = errors.New("proxy: envelope too large")
)

// WireError carries a remote command failure across the socket without
// attempting to reconstruct a language-specific traceback.
type WireError struct {
	Kind    string
	Message string
}

// request is a client->server call: Name identifies the registered command,
// Body is the already wire-encoded request body (the same bytes cmd.Encode
// would hand the serial writer).
type request struct {
	Name string
	Body []byte
}

// reply is a server->client response: Results holds one already wire-encoded
// item per delivered value (more than one only for multi-reply commands,
// fully drained server-side before the reply is sent). Err is set instead
// of Results on failure.
type reply struct {
	Name    string
	Results [][]byte
	Err     *WireError
}

// broadcast is a server->client unsolicited frame: the raw (code, body) the
// server's own link reader decoded off the serial wire.
type broadcast struct {
	Code uint8
	Body []byte
}

func writeEnvelope(w io.Writer, tag byte, payload []byte) error {
	buf := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = tag
	copy(buf[5:], payload)
	_, err := w.Write(buf)
	return err
}

// readEnvelope reads one length-prefixed frame and returns its tag and
// payload (the length prefix and tag byte already stripped).
func readEnvelope(r *bufio.Reader) (byte, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return 0, nil, fmt.Errorf("%w: empty envelope", ErrUnknownTag)
	}
	if n > maxEnvelope {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return body[0], body[1:], nil
}

func putString(buf []byte, s string) []byte {
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	buf = append(buf, n[:]...)
	return append(buf, s...)
}

func getString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, io.ErrUnexpectedEOF
	}
	n := binary.BigEndian.Uint16(b[0:2])
	b = b[2:]
	if len(b) < int(n) {
		return "", nil, io.ErrUnexpectedEOF
	}
	return string(b[:n]), b[n:], nil
}

func putBytes(buf []byte, p []byte) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(p)))
	buf = append(buf, n[:]...)
	return append(buf, p...)
}

func getBytes(b []byte) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, io.ErrUnexpectedEOF
	}
	n := binary.BigEndian.Uint32(b[0:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, io.ErrUnexpectedEOF
	}
	return b[:n], b[n:], nil
}

func encodeRequest(r request) []byte {
	var buf []byte
	buf = putString(buf, r.Name)
	buf = putBytes(buf, r.Body)
	return buf
}

func decodeRequest(b []byte) (request, error) {
	name, b, err := getString(b)
	if err != nil {
		return request{}, err
	}
	body, _, err := getBytes(b)
	if err != nil {
		return request{}, err
	}
	return request{Name: name, Body: body}, nil
}

func encodeReply(rep reply) []byte {
	var buf []byte
	buf = putString(buf, rep.Name)
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(rep.Results)))
	buf = append(buf, n[:]...)
	for _, res := range rep.Results {
		buf = putBytes(buf, res)
	}
	if rep.Err != nil {
		buf = append(buf, 1)
		buf = putString(buf, rep.Err.Kind)
		buf = putString(buf, rep.Err.Message)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeReply(b []byte) (reply, error) {
	name, b, err := getString(b)
	if err != nil {
		return reply{}, err
	}
	if len(b) < 2 {
		return reply{}, io.ErrUnexpectedEOF
	}
	count := binary.BigEndian.Uint16(b[0:2])
	b = b[2:]
	results := make([][]byte, 0, count)
	for i := 0; i < int(count); i++ {
		var res []byte
		res, b, err = getBytes(b)
		if err != nil {
			return reply{}, err
		}
		results = append(results, res)
	}
	if len(b) < 1 {
		return reply{}, io.ErrUnexpectedEOF
	}
	hasErr := b[0]
	b = b[1:]
	rep := reply{Name: name, Results: results}
	if hasErr == 1 {
		kind, rest, err := getString(b)
		if err != nil {
			return reply{}, err
		}
		msg, _, err := getString(rest)
		if err != nil {
			return reply{}, err
		}
		rep.Err = &WireError{Kind: kind, Message: msg}
	}
	return rep, nil
}

func encodeBroadcast(bc broadcast) []byte {
	buf := []byte{bc.Code}
	return putBytes(buf, bc.Body)
}

func decodeBroadcast(b []byte) (broadcast, error) {
	if len(b) < 1 {
		return broadcast{}, io.ErrUnexpectedEOF
	}
	code := b[0]
	body, _, err := getBytes(b[1:])
	if err != nil {
		return broadcast{}, err
	}
	return broadcast{Code: code, Body: body}, nil
}
