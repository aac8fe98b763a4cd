package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ccio/ccrf/ccrf"
	"github.com/ccio/ccrf/internal/proto"
)

// runCommand dispatches to one ccrf.Device-backed subcommand, grounded on
// original_source/ccio/ccrf.py's _command_* methods and the facade they
// drove; rxtx and the original's full file/subprocess piping options are
// left out (out of core scope), these wire just far enough to exercise
// every façade operation from a command line.
func runCommand(ctx context.Context, dev *ccrf.Device, name string, args []string) error {
	switch name {
	case "status", "stat":
		return cmdStatus(ctx, dev, args)
	case "echo":
		return cmdEcho(ctx, dev, args)
	case "rainbow", "rbow":
		return cmdRainbow(ctx, dev)
	case "peer":
		return cmdPeer(ctx, dev)
	case "send":
		return cmdSend(ctx, dev, args)
	case "recv":
		return cmdRecv(ctx, dev, args)
	case "addr":
		return cmdAddr(ctx, dev, args)
	case "reboot":
		return cmdReboot(ctx, dev, args)
	case "fota":
		return cmdFota(ctx, dev, args)
	case "ping":
		return cmdPing(ctx, dev, args)
	case "monitor":
		return cmdMonitor(ctx, dev)
	case "flush":
		return dev.Flush(ctx)
	case "reset":
		return cmdReset(ctx, dev, args)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

func cmdStatus(ctx context.Context, dev *ccrf.Device, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	verbose := fs.Bool("v", false, "verbose output")
	_ = fs.Parse(args)

	st, err := dev.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, ccrf.FormatStatus(st))

	if *verbose {
		fmt.Fprintf(os.Stderr, "mac: rx=%d/%d/%d tx=%d/%d/%d stack=%d\n",
			st.MacStat.Recv.Count, st.MacStat.Recv.Size, st.MacStat.Recv.Error,
			st.MacStat.Send.Count, st.MacStat.Send.Size, st.MacStat.Send.Error,
			st.MacSURx)
		fmt.Fprintf(os.Stderr, "phy: rx=%d/%d/%d tx=%d/%d/%d stack=%d\n",
			st.PhyStat.Recv.Count, st.PhyStat.Recv.Size, st.PhyStat.Recv.Error,
			st.PhyStat.Send.Count, st.PhyStat.Send.Size, st.PhyStat.Send.Error,
			st.PhySU)
		fmt.Fprintf(os.Stderr, "heap: free=%d usage=%d\n", st.HeapFree, st.HeapUsage)
	}
	return nil
}

func cmdEcho(ctx context.Context, dev *ccrf.Device, args []string) error {
	fs := flag.NewFlagSet("echo", flag.ExitOnError)
	_ = fs.Parse(args)

	data := "-"
	if fs.NArg() > 0 {
		data = fs.Arg(0)
	}
	if data == "-" {
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		return dev.Echo(ctx, buf)
	}
	return dev.Echo(ctx, []byte(data))
}

func cmdRainbow(ctx context.Context, dev *ccrf.Device) error {
	return dev.Rainbow(ctx)
}

func cmdPeer(ctx context.Context, dev *ccrf.Device) error {
	pr, err := dev.Peers(ctx)
	if err != nil {
		return err
	}
	printPeerTable(pr)
	return nil
}

func printPeerTable(pr proto.PeerReply) {
	fmt.Fprintf(os.Stderr, "%04X: t=%d\n", pr.Node, pr.Time)
	for _, p := range pr.Peers {
		fmt.Fprintf(os.Stderr, "  %04X: t=%d q=%d r=%d\n", p.Addr, p.Last, p.LQI, p.RSSI)
	}
}

func parsePath(s string) (port uint16, typ uint8, err error) {
	parts := strings.SplitN(s, ",", 2)
	p, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("bad path %q: %w", s, err)
	}
	if len(parts) < 2 {
		return uint16(p), 0, nil
	}
	t, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("bad path %q: %w", s, err)
	}
	return uint16(p), uint8(t), nil
}

func cmdSend(ctx context.Context, dev *ccrf.Device, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	dest := fs.String("dest", "0", "destination address (hex, default: broadcast)")
	path := fs.String("path", "0,0", "source route port,type")
	mesg := fs.Bool("m", false, "send as a message and await receipt")
	wait := fs.Bool("w", false, "wait for the send_done reply and print its ack count")
	_ = fs.Parse(args)

	destAddr, err := strconv.ParseUint(*dest, 16, 16)
	if err != nil {
		return fmt.Errorf("bad -dest %q: %w", *dest, err)
	}
	port, typ, err := parsePath(*path)
	if err != nil {
		return err
	}

	var data []byte
	if fs.NArg() > 0 {
		data = []byte(strings.Join(fs.Args(), " "))
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
	}

	p := proto.SendParams{Addr: uint16(destAddr), Port: port, Type: typ, Data: data, Wait: *wait}
	if *mesg {
		n, err := dev.Mesg(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "acked: %d\n", n)
		return nil
	}
	n, err := dev.Send(ctx, p)
	if err != nil {
		return err
	}
	if *wait {
		fmt.Fprintf(os.Stderr, "acked: %d\n", n)
	}
	return nil
}

func cmdRecv(ctx context.Context, dev *ccrf.Device, args []string) error {
	fs := flag.NewFlagSet("recv", flag.ExitOnError)
	port := fs.Int("port", -1, "source port to receive from (default: any)")
	typ := fs.Int("type", -1, "source type to receive from (default: any)")
	once := fs.Bool("1", false, "exit after receiving one message")
	timeout := fs.Duration("timeout", 0, "how long to receive for (0 = forever)")
	verbose := fs.Bool("v", false, "verbose output")
	_ = fs.Parse(args)

	var portPtr, typPtr *uint16
	if *port >= 0 {
		v := uint16(*port)
		portPtr = &v
	}
	if *typ >= 0 {
		v := uint16(*typ)
		typPtr = &v
	}

	for rec := range dev.Recv(ctx, portPtr, typPtr, *once, *timeout) {
		if *verbose {
			fmt.Fprintf(os.Stderr, "%04X->%04X %03X:%01X #%d\n", rec.Addr, rec.Dest, rec.Port, rec.Type, len(rec.Data))
		}
		if _, err := os.Stdout.Write(rec.Data); err != nil {
			return err
		}
	}
	return nil
}

func cmdAddr(ctx context.Context, dev *ccrf.Device, args []string) error {
	fs := flag.NewFlagSet("addr", flag.ExitOnError)
	quiet := fs.Bool("q", false, "do not print anything")
	_ = fs.Parse(args)

	rest := fs.Args()
	switch len(rest) {
	case 0:
	case 1:
		return fmt.Errorf("addr: new address required when current address is given")
	default:
		orig, err := strconv.ParseUint(rest[0], 16, 16)
		if err != nil {
			return fmt.Errorf("bad orig address %q: %w", rest[0], err)
		}
		newAddr, err := strconv.ParseUint(rest[1], 16, 16)
		if err != nil {
			return fmt.Errorf("bad new address %q: %w", rest[1], err)
		}
		if _, err := dev.AddrSet(ctx, uint16(orig), uint16(newAddr)); err != nil {
			return err
		}
	}

	addr, err := dev.Addr(ctx)
	if err != nil {
		return err
	}
	if !*quiet {
		fmt.Printf("0x%04X\n", addr)
	}
	return nil
}

func cmdReboot(ctx context.Context, dev *ccrf.Device, args []string) error {
	fs := flag.NewFlagSet("reboot", flag.ExitOnError)
	_ = fs.Parse(args)
	addr := uint64(0)
	if fs.NArg() > 0 {
		var err error
		addr, err = strconv.ParseUint(fs.Arg(0), 16, 16)
		if err != nil {
			return fmt.Errorf("bad address %q: %w", fs.Arg(0), err)
		}
	}
	return dev.Reboot(ctx, uint16(addr))
}

func cmdFota(ctx context.Context, dev *ccrf.Device, args []string) error {
	fs := flag.NewFlagSet("fota", flag.ExitOnError)
	_ = fs.Parse(args)
	addr := uint64(0)
	if fs.NArg() > 0 {
		var err error
		addr, err = strconv.ParseUint(fs.Arg(0), 16, 16)
		if err != nil {
			return fmt.Errorf("bad address %q: %w", fs.Arg(0), err)
		}
	}
	result, err := dev.Fota(ctx, uint16(addr))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "fota: %d\n", result)
	return nil
}

func cmdPing(ctx context.Context, dev *ccrf.Device, args []string) error {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	dest := fs.String("dest", "0", "peer address (hex)")
	timeoutMS := fs.Uint("timeout-ms", 1000, "ping timeout in milliseconds")
	size := fs.Uint("size", 0, "request payload size")
	sizeResp := fs.Uint("size-resp", 0, "requested response payload size")
	_ = fs.Parse(args)

	addr, err := strconv.ParseUint(*dest, 16, 16)
	if err != nil {
		return fmt.Errorf("bad -dest %q: %w", *dest, err)
	}
	reply, err := dev.Ping(ctx, proto.PingParams{
		Addr:      uint16(addr),
		TimeoutMS: uint32(*timeoutMS),
		Size:      uint16(*size),
		SizeResp:  uint16(*sizeResp),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%04X: tx=%d rtt=%dus local=q%d/r%d peer=q%d/r%d\n",
		reply.Addr, reply.TxCount, reply.RTTUsec,
		reply.LQILocl, reply.RSSILocl, reply.LQIPeer, reply.RSSIPeer)
	return nil
}

func cmdMonitor(ctx context.Context, dev *ccrf.Device) error {
	for ev := range dev.Evnt(ctx, false, 0) {
		if ev.ID == proto.PeerEventNone {
			fmt.Fprintf(os.Stderr, "%04X: %s\n", ev.Addr, peerActionName(ev.Action))
		} else {
			fmt.Fprintf(os.Stderr, "event: %d data=%v\n", ev.ID, ev.Data)
		}
		if pr, err := dev.Peers(ctx); err == nil {
			printPeerTable(pr)
		}
	}
	return nil
}

func peerActionName(action uint8) string {
	switch action {
	case proto.PeerEventSet:
		return "SET"
	case proto.PeerEventExp:
		return "EXP"
	case proto.PeerEventOut:
		return "OUT"
	case proto.PeerEventUpd:
		return "UPD"
	default:
		return fmt.Sprintf("%d", action)
	}
}

func cmdReset(ctx context.Context, dev *ccrf.Device, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	reopen := fs.Bool("reopen", true, "keep the connection open after reboot")
	_ = fs.Parse(args)
	return dev.Reset(ctx, *reopen)
}
