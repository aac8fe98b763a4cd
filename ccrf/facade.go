package ccrf

import (
	"context"
	"iter"
	"time"

	"github.com/ccio/ccrf/internal/proto"
)

// Status retrieves the device's current status and caches addr/cell from it.
func (d *Device) Status(ctx context.Context) (proto.StatusReply, error) {
	val, err := d.call(ctx, "status", 0)
	if err != nil {
		return proto.StatusReply{}, err
	}
	st := val.(proto.StatusReply)
	d.mu.Lock()
	d.status = &st
	d.mu.Unlock()
	return st, nil
}

// FormatStatus renders a status reply the way the CLI's status command
// does; the layout lives in this package's formatStatus, keeping proto free
// of presentation concerns.
func FormatStatus(st proto.StatusReply) string {
	return formatStatus(st)
}

// Addr returns the device's network address, loading status first if it
// hasn't been cached yet.
func (d *Device) Addr(ctx context.Context) (uint16, error) {
	d.mu.Lock()
	cached := d.status
	d.mu.Unlock()
	if cached != nil {
		return cached.Addr, nil
	}
	st, err := d.Status(ctx)
	if err != nil {
		return 0, err
	}
	return st.Addr, nil
}

// Cell returns the device's cell id, loading status first if needed.
func (d *Device) Cell(ctx context.Context) (uint8, error) {
	d.mu.Lock()
	cached := d.status
	d.mu.Unlock()
	if cached != nil {
		return cached.Cell, nil
	}
	st, err := d.Status(ctx)
	if err != nil {
		return 0, err
	}
	return st.Cell, nil
}

// AddrSet requests an address change from orig to addr. The cached status is
// invalidated so the next Addr/Cell call re-reads the device.
func (d *Device) AddrSet(ctx context.Context, orig, addr uint16) (uint32, error) {
	val, err := d.call(ctx, "config", 0, proto.EncodeConfigAddr(orig, addr))
	d.clearStatus()
	if err != nil {
		return 0, err
	}
	return val.(uint32), nil
}

// CellSet requests a cell change for addr from orig to newCell.
func (d *Device) CellSet(ctx context.Context, addr uint16, orig, newCell uint8) (uint32, error) {
	val, err := d.call(ctx, "config", 0, proto.EncodeConfigCell(addr, orig, newCell))
	d.clearStatus()
	if err != nil {
		return 0, err
	}
	return val.(uint32), nil
}

// Echo asks the device to echo data back; the reply is logged, not
// returned, matching the firmware's fire-and-forget echo request paired
// with an independently-arriving printed reply.
func (d *Device) Echo(ctx context.Context, data []byte) error {
	_, err := d.call(ctx, "echo", 0, data)
	return err
}

// Rainbow triggers the onboard RGB rainbow animation.
func (d *Device) Rainbow(ctx context.Context) error {
	_, err := d.call(ctx, "rainbow", 0)
	return err
}

// Reboot sends the reboot command for addr, passed through as given (the
// encoder's NetAddrInvl default applies only when no address is supplied,
// which this method never does).
func (d *Device) Reboot(ctx context.Context, addr uint16) error {
	_, err := d.call(ctx, "reboot", 0, addr)
	return err
}

// LED sets the onboard RGB LED pattern.
func (d *Device) LED(ctx context.Context, p proto.LEDParams) error {
	_, err := d.call(ctx, "led", 0, p)
	return err
}

// Ping issues a link-quality ping and returns the round-trip reply.
func (d *Device) Ping(ctx context.Context, p proto.PingParams) (proto.PingReply, error) {
	val, err := d.call(ctx, "ping", 0, p)
	if err != nil {
		return proto.PingReply{}, err
	}
	return val.(proto.PingReply), nil
}

// Fota requests a firmware-update announcement be sent to addr.
func (d *Device) Fota(ctx context.Context, addr uint16) (byte, error) {
	val, err := d.call(ctx, "fota", 0, addr)
	if err != nil {
		return 0, err
	}
	return val.(byte), nil
}

// Update sends a flash image (p.Bin) with its section sizes and returns the
// firmware's signed status reply.
func (d *Device) Update(ctx context.Context, p proto.UpdateParams) (int32, error) {
	val, err := d.call(ctx, "update", 0, p)
	if err != nil {
		return 0, err
	}
	return val.(int32), nil
}

// Send transmits a datagram, mapping to send_nowait or send_wait per
// p.Wait. With p.Wait false (the default), it returns as soon as the frame
// is written and the returned count is always 0. With p.Wait true, it
// blocks for the send_done reply and returns its acked-count.
func (d *Device) Send(ctx context.Context, p proto.SendParams) (uint16, error) {
	if p.Wait {
		val, err := d.call(ctx, "send_wait", 0, p)
		if err != nil {
			return 0, err
		}
		return val.(uint16), nil
	}
	_, err := d.call(ctx, "send_nowait", 0, p)
	return 0, err
}

// Mesg transmits a datagram as a message and waits for the ACK count: a
// thin convenience wrapper over Send with Mesg and Wait both forced true.
func (d *Device) Mesg(ctx context.Context, p proto.SendParams) (uint16, error) {
	p.Mesg = true
	p.Wait = true
	return d.Send(ctx, p)
}

// Resp responds to a transaction without waiting for an ACK.
func (d *Device) Resp(ctx context.Context, p proto.SendParams) error {
	_, err := d.call(ctx, "resp", 0, p)
	return err
}

// Trxn runs a transaction with a peer, returning a lazy sequence of replies
// terminated by the firmware's end-of-batch marker, a timeout, or ctx
// cancellation.
func (d *Device) Trxn(ctx context.Context, p proto.TrxnParams, timeout time.Duration) (iter.Seq2[proto.TrxnReply, error], error) {
	seq, err := d.callMulti(ctx, "trxn", timeout, p)
	if err != nil {
		return nil, err
	}
	return func(yield func(proto.TrxnReply, error) bool) {
		seq(func(v any, err error) bool {
			if err != nil {
				return yield(proto.TrxnReply{}, err)
			}
			return yield(v.(proto.TrxnReply), nil)
		})
	}, nil
}

// Peers retrieves the device's peer table.
func (d *Device) Peers(ctx context.Context) (proto.PeerReply, error) {
	val, err := d.call(ctx, "peer", 0)
	if err != nil {
		return proto.PeerReply{}, err
	}
	return val.(proto.PeerReply), nil
}

// MACSend transmits a MAC-layer datagram, optionally awaiting completion.
func (d *Device) MACSend(ctx context.Context, p proto.MACSendParams) error {
	name := "mac_send"
	if p.Wait {
		name = "mac_send_wait"
	}
	_, err := d.call(ctx, name, 0, p)
	return err
}

// Recv returns an iterator over received datagrams matching the optional
// port/type filters. once stops after the first match; timeout (0 = none)
// bounds how long the iterator waits for the next item.
func (d *Device) Recv(ctx context.Context, port, typ *uint16, once bool, timeout time.Duration) iter.Seq[RecvRecord] {
	return func(yield func(RecvRecord) bool) {
		for rec := range d.recvQ.Recv(ctx, false, timeout) {
			if port != nil && rec.Port != *port {
				continue
			}
			if typ != nil && uint16(rec.Type) != *typ {
				continue
			}
			if !yield(rec) {
				return
			}
			if once {
				return
			}
		}
	}
}

// RecvMAC returns an iterator over received MAC-layer datagrams.
func (d *Device) RecvMAC(ctx context.Context, once bool, timeout time.Duration) iter.Seq[MACRecvRecord] {
	return d.macQ.Recv(ctx, once, timeout)
}

// Evnt returns an iterator over link/peer events.
func (d *Device) Evnt(ctx context.Context, once bool, timeout time.Duration) iter.Seq[Event] {
	return d.evntQ.Recv(ctx, once, timeout)
}

// Reset reboots the device and, unless reopen is false, leaves the
// connection open so subsequent calls simply ride out the reboot. A Go
// tty handle survives a peer-side reboot (unlike the original's
// re-open-by-path dance), so reopen=false's only remaining job is to
// close the connection, matching CloudChaser.reset's close-vs-reopen
// choice.
func (d *Device) Reset(ctx context.Context, reopen bool) error {
	if err := d.Reboot(ctx, 0); err != nil {
		return err
	}
	if !reopen {
		return d.Close()
	}
	return nil
}

// Flush injects a bare resync write, used when a wedged link needs a nudge
// back into frame alignment.
func (d *Device) Flush(ctx context.Context) error {
	if lk, ok := d.invoker.(flusher); ok {
		return lk.Flush(ctx)
	}
	return nil
}

// flusher is the subset of *link.Link Flush needs; kept as an unexported
// interface so Device.Flush degrades to a no-op over a proxy client, which
// has no local serial port to resync.
type flusher interface {
	Flush(ctx context.Context) error
}
