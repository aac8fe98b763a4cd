package link

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ccio/ccrf/internal/frame"
	"github.com/ccio/ccrf/internal/proto"
)

// pipePort wraps one end of a net.Pipe as a Port.
type pipePort struct{ net.Conn }

func newLinkPair(t *testing.T, registry *proto.Registry) (*Link, net.Conn) {
	t.Helper()
	client, firmware := net.Pipe()
	l, err := Open("fake", registry, WithPort(pipePort{client}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, firmware
}

// firmwareReadFrame reads one delimited COBS frame off conn (blocking). It
// is safe to call from a spawned goroutine: failures are reported via
// t.Error, not t.Fatal.
func firmwareReadFrame(t *testing.T, conn net.Conn) frame.Frame {
	t.Helper()
	buf := make([]byte, 256)
	var acc []byte
	for {
		n, err := conn.Read(buf)
		if err != nil {
			t.Errorf("firmware read: %v", err)
			return frame.Frame{}
		}
		for _, b := range buf[:n] {
			if b == 0x00 {
				fr, err := frame.Decode(acc)
				if err != nil {
					t.Errorf("firmware decode: %v", err)
					return frame.Frame{}
				}
				return fr
			}
			acc = append(acc, b)
		}
	}
}

func firmwareSendFrame(t *testing.T, conn net.Conn, code uint8, body []byte) {
	t.Helper()
	wire, err := frame.Encode(code, body)
	if err != nil {
		t.Errorf("encode: %v", err)
		return
	}
	if _, err := conn.Write(wire); err != nil {
		t.Errorf("firmware write: %v", err)
	}
}

func TestSendAndReceivePing(t *testing.T) {
	reg := proto.Catalogue()
	l, firmware := newLinkPair(t, reg)
	defer firmware.Close()

	go func() {
		fr := firmwareReadFrame(t, firmware)
		if fr.Code != proto.CodePing {
			t.Errorf("expected ping request code, got %d", fr.Code)
			return
		}
		replyBody := make([]byte, 12)
		replyBody[0], replyBody[1] = 0x34, 0x12
		firmwareSendFrame(t, firmware, proto.CodePing, replyBody)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	val, err := l.Call(ctx, "ping", time.Second, proto.PingParams{Addr: 0x1234, TimeoutMS: 1000})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	reply, ok := val.(proto.PingReply)
	if !ok {
		t.Fatalf("expected proto.PingReply, got %T", val)
	}
	if reply.Addr != 0x1234 {
		t.Fatalf("addr mismatch: got %#x", reply.Addr)
	}
}

func TestTrxnMultiReplyEndMarker(t *testing.T) {
	reg := proto.Catalogue()
	l, firmware := newLinkPair(t, reg)
	defer firmware.Close()

	go func() {
		firmwareReadFrame(t, firmware) // the trxn request

		mk := func(addr uint16, data byte) []byte {
			b := make([]byte, 6)
			b[0] = byte(addr)
			b[1] = byte(addr >> 8)
			b[5] = data
			return b
		}
		firmwareSendFrame(t, firmware, proto.CodeTrxn, mk(7, 1))
		firmwareSendFrame(t, firmware, proto.CodeTrxn, mk(7, 2))
		firmwareSendFrame(t, firmware, proto.CodeTrxn, mk(0, 0)) // terminator: addr==0
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	seq, err := l.CallMulti(ctx, "trxn", time.Second, proto.TrxnParams{
		Addr: 7, Port: 1, Type: 0, WaitMS: 500,
	})
	if err != nil {
		t.Fatalf("CallMulti: %v", err)
	}

	var got []proto.TrxnReply
	seq(func(v any, err error) bool {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, v.(proto.TrxnReply))
		return true
	})

	if len(got) != 2 || got[0].Data[0] != 1 || got[1].Data[0] != 2 {
		t.Fatalf("expected two replies with data 1,2, got %+v", got)
	}
}

func TestReaderHandlesCOBSBoundaryByteAtATime(t *testing.T) {
	reg := proto.NewRegistry()
	received := make(chan any, 1)
	respCode := uint8(9)
	if err := reg.Add(proto.Command{
		Name:     "evt",
		RespCode: &respCode,
		Decode:   func(body []byte) (any, bool, error) { return append([]byte(nil), body...), false, nil },
		Handle:   func(v any) { received <- v },
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	slow, fast := net.Pipe()
	l, err := Open("fake", reg, WithPort(pipePort{slow}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	body := bytes.Repeat([]byte{0x00, 0x00, 0x01}, 400)
	wire, err := frame.Encode(respCode, body)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	go func() {
		for _, b := range wire {
			if _, err := fast.Write([]byte{b}); err != nil {
				return
			}
		}
	}()

	select {
	case v := <-received:
		got := v.([]byte)
		if !bytes.Equal(got, body) {
			t.Fatalf("body mismatch: got %d bytes want %d bytes", len(got), len(body))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler never invoked")
	}
	_ = fast.Close()
}

func TestInvalidArgumentRejectedWithoutWriting(t *testing.T) {
	reg := proto.Catalogue()
	l, firmware := newLinkPair(t, reg)
	defer firmware.Close()

	wroteCh := make(chan struct{}, 1)
	go func() {
		buf := make([]byte, 1)
		if n, _ := firmware.Read(buf); n > 0 {
			wroteCh <- struct{}{}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// trxn requires WaitMS != 0; this must fail encoding before any write.
	_, err := l.CallMulti(ctx, "trxn", time.Second, proto.TrxnParams{Addr: 1, Port: 1, WaitMS: 0})
	if !errors.Is(err, proto.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	select {
	case <-wroteCh:
		t.Fatal("firmware received a frame despite invalid arguments")
	case <-ctx.Done():
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	reg := proto.Catalogue()
	l, firmware := newLinkPair(t, reg)
	defer firmware.Close()

	if err := l.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
