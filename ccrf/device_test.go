package ccrf

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/ccio/ccrf/internal/asyncq"
	"github.com/ccio/ccrf/internal/frame"
	"github.com/ccio/ccrf/internal/link"
	"github.com/ccio/ccrf/internal/proto"
)

type pipePort struct{ net.Conn }

func newTestDevice(t *testing.T) (*Device, net.Conn) {
	t.Helper()
	cfg := defaultConfig()
	registry := proto.Catalogue()
	d := &Device{
		cfg:      cfg,
		registry: registry,
		recvQ:    asyncq.NewBounded[RecvRecord](cfg.subscriptionN, asyncq.Overwrite),
		macQ:     asyncq.NewBounded[MACRecvRecord](cfg.subscriptionN, asyncq.Overwrite),
		evntQ:    asyncq.NewBounded[Event](cfg.subscriptionN, asyncq.Overwrite),
	}
	d.wireHandlers()

	client, firmware := net.Pipe()
	lk, err := link.Open("fake", registry, link.WithPort(pipePort{client}))
	if err != nil {
		t.Fatalf("link.Open: %v", err)
	}
	d.invoker = lk
	d.closer = lk.Close
	t.Cleanup(func() { _ = d.Close() })
	return d, firmware
}

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

func TestDeviceSendDoesNotWaitForReply(t *testing.T) {
	d, firmware := newTestDevice(t)
	defer firmware.Close()

	done := make(chan struct{})
	go func() {
		firmwareReadFrame(t, firmware)
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := d.Send(ctx, proto.SendParams{Addr: 1, Port: 2, Type: 0, Data: []byte("hi")}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("firmware never saw the send frame")
	}
}

func TestDeviceSendWaitReturnsAckCount(t *testing.T) {
	d, firmware := newTestDevice(t)
	defer firmware.Close()

	go func() {
		firmwareReadFrame(t, firmware)
		body := make([]byte, 2)
		binary.LittleEndian.PutUint16(body, 3)
		firmwareSendFrame(t, firmware, proto.CodeSendDone, body)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := d.Send(ctx, proto.SendParams{Addr: 1, Port: 2, Type: 0, Data: []byte("hi"), Wait: true})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n != 3 {
		t.Fatalf("got ack count %d, want 3", n)
	}
}

func TestDeviceStatusCachesAddrAndCell(t *testing.T) {
	d, firmware := newTestDevice(t)
	defer firmware.Close()

	go func() {
		firmwareReadFrame(t, firmware)
		body := make([]byte, 40+72+proto.PhyChanCount*8)
		body[20], body[21] = 0x99, 0x11 // addr
		body[22] = 0x07                 // cell
		firmwareSendFrame(t, firmware, proto.CodeStatus, body)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	addr, err := d.Addr(ctx)
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}
	if addr != 0x1199 {
		t.Fatalf("addr mismatch: got %#x", addr)
	}

	cell, err := d.Cell(context.Background())
	if err != nil {
		t.Fatalf("Cell (should be cached, no I/O): %v", err)
	}
	if cell != 0x07 {
		t.Fatalf("cell mismatch: got %#x", cell)
	}
}

func TestDeviceRecvFiltersByPort(t *testing.T) {
	d, firmware := newTestDevice(t)
	defer firmware.Close()

	mk := func(port uint16, b byte) []byte {
		body := make([]byte, 11)
		body[4], body[5] = byte(port), byte(port>>8)
		body[10] = b
		return body
	}

	go func() {
		firmwareSendFrame(t, firmware, proto.CodeRecv, mk(5, 0xAA))
		firmwareSendFrame(t, firmware, proto.CodeRecv, mk(9, 0xBB))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	port := uint16(9)
	var got RecvRecord
	for rec := range d.Recv(ctx, &port, nil, true, time.Second) {
		got = rec
	}
	if got.Port != 9 || len(got.Data) == 0 || got.Data[0] != 0xBB {
		t.Fatalf("unexpected recv record: %+v", got)
	}
}

func TestDeviceClose(t *testing.T) {
	d, firmware := newTestDevice(t)
	defer firmware.Close()

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
