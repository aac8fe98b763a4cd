package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned by catalogue encoders when an argument
// violates a command-level wire invariant (port/type bit width, missing
// struct, size mismatch). No bytes are written to the link when this is
// returned.
var ErrInvalidArgument = errors.New("proto: invalid argument")

// Wire codes, per the firmware protocol (spec §4.7).
const (
	CodeEcho      = 0
	CodeStatus    = 1
	CodeMACSend   = 2
	CodeMACRecv   = 3
	CodeSend      = 4
	CodeSendDone  = 5
	CodeRecv      = 6
	CodeTrxn      = 7
	CodeResp      = 8
	CodeEvnt      = 9
	CodePeer      = 10
	CodeReboot    = 17
	CodeFlash     = 21
	CodePing      = 22
	CodeFota      = 23
	CodeUart      = 26
	CodeLED       = 27
	CodeRainbow   = 29
	CodeConfig    = 30
	CodeConfigRsp = 31
)

func arg0[T any](args []any) (T, bool) {
	var zero T
	if len(args) == 0 {
		return zero, false
	}
	v, ok := args[0].(T)
	return v, ok
}

// SendParams is the argument to the send/send_wait/mesg/resp encoders.
type SendParams struct {
	Addr uint16
	Port uint16
	Type uint8
	Data []byte
	Mesg bool

	// Wait selects which registered command Device.Send issues: send_wait
	// (block for the send_done reply, returning its ack count) when true,
	// send_nowait (fire and forget) when false. It is consulted by the
	// façade only; it is not itself encoded onto the wire.
	Wait bool
}

func encodeSend(p SendParams, flags byte) ([]byte, error) {
	if p.Port&NetPortMask != p.Port {
		return nil, fmt.Errorf("%w: port uses restricted bits", ErrInvalidArgument)
	}
	if p.Type&NetTypeMask != p.Type {
		return nil, fmt.Errorf("%w: type uses restricted bits", ErrInvalidArgument)
	}
	body := make([]byte, 6+len(p.Data))
	binary.LittleEndian.PutUint16(body[0:2], p.Addr&NetAddrMask)
	binary.LittleEndian.PutUint16(body[2:4], p.Port&NetPortMask)
	body[4] = p.Type & NetTypeMask
	body[5] = flags
	copy(body[6:], p.Data)
	return body, nil
}

func sendFlags(p SendParams, rslt bool) byte {
	var f byte
	if rslt {
		f |= sendFlagRslt
	}
	if p.Mesg {
		f |= sendFlagMesg
	}
	return f
}

func decodeSendDone(body []byte) (any, bool, error) {
	if len(body) != 2 {
		return nil, false, fmt.Errorf("%w: send_done body length %d", ErrInvalidArgument, len(body))
	}
	return binary.LittleEndian.Uint16(body), false, nil
}

// TrxnParams is the argument to the trxn encoder.
type TrxnParams struct {
	Addr   uint16
	Port   uint16
	Type   uint8
	WaitMS uint32
	Data   []byte
}

func encodeTrxn(p TrxnParams) ([]byte, error) {
	if p.Port&NetPortMask != p.Port {
		return nil, fmt.Errorf("%w: port uses restricted bits", ErrInvalidArgument)
	}
	if p.Type&NetTypeMask != p.Type {
		return nil, fmt.Errorf("%w: type uses restricted bits", ErrInvalidArgument)
	}
	if p.WaitMS == 0 {
		return nil, fmt.Errorf("%w: trxn wait must be nonzero", ErrInvalidArgument)
	}
	body := make([]byte, 9+len(p.Data))
	binary.LittleEndian.PutUint16(body[0:2], p.Addr&NetAddrMask)
	binary.LittleEndian.PutUint16(body[2:4], p.Port&NetPortMask)
	body[4] = p.Type & NetTypeMask
	binary.LittleEndian.PutUint32(body[5:9], p.WaitMS)
	copy(body[9:], p.Data)
	return body, nil
}

func decodeTrxnReply(body []byte) (any, bool, error) {
	if len(body) < 5 {
		return nil, false, fmt.Errorf("%w: trxn reply too short", ErrInvalidArgument)
	}
	addr := binary.LittleEndian.Uint16(body[0:2])
	port := binary.LittleEndian.Uint16(body[2:4])
	typ := body[4]
	data := body[5:]
	if addr == NetAddrBcst {
		return nil, true, nil // end-of-batch terminator, not delivered
	}
	return TrxnReply{Addr: addr, Port: port, Type: typ, Data: data}, false, nil
}

func decodeRecv(body []byte) (any, bool, error) {
	if len(body) < 10 {
		return nil, false, fmt.Errorf("%w: recv body too short", ErrInvalidArgument)
	}
	return RecvRecord{
		Addr: binary.LittleEndian.Uint16(body[0:2]),
		Dest: binary.LittleEndian.Uint16(body[2:4]),
		Port: binary.LittleEndian.Uint16(body[4:6]),
		Type: body[6],
		Seqn: body[7],
		RSSI: int8(body[8]),
		LQI:  body[9],
		Data: body[10:],
	}, false, nil
}

func decodeMACRecv(body []byte) (any, bool, error) {
	if len(body) < 11 {
		return nil, false, fmt.Errorf("%w: mac_recv body too short", ErrInvalidArgument)
	}
	return MACRecvRecord{
		Addr: binary.LittleEndian.Uint16(body[0:2]),
		Peer: binary.LittleEndian.Uint16(body[2:4]),
		Dest: binary.LittleEndian.Uint16(body[4:6]),
		Size: binary.LittleEndian.Uint16(body[6:8]),
		Seqn: body[8],
		RSSI: int8(body[9]),
		LQI:  body[10],
		Data: body[11:],
	}, false, nil
}

// MACSendParams is the argument to the mac_send/mac_send_wait encoders.
type MACSendParams struct {
	Type uint8
	Dest uint16
	Data []byte
	Addr uint16
	Wait bool
}

func encodeMACSend(p MACSendParams) ([]byte, error) {
	flag := byte(0)
	if p.Wait {
		flag = 1
	}
	body := make([]byte, 8+len(p.Data))
	body[0] = p.Type
	body[1] = flag
	binary.LittleEndian.PutUint16(body[2:4], p.Addr)
	binary.LittleEndian.PutUint16(body[4:6], p.Dest)
	binary.LittleEndian.PutUint16(body[6:8], uint16(len(p.Data)))
	copy(body[8:], p.Data)
	return body, nil
}

func decodeMACSendWait(body []byte) (any, bool, error) {
	if len(body) != 6 {
		return nil, false, fmt.Errorf("%w: mac_send reply length %d", ErrInvalidArgument, len(body))
	}
	return binary.LittleEndian.Uint32(body[2:6]), false, nil
}

func decodeStatSet(body []byte) (StatSet, []byte, error) {
	if len(body) < 12 {
		return StatSet{}, nil, fmt.Errorf("%w: stat set too short", ErrInvalidArgument)
	}
	return StatSet{
		Count: binary.LittleEndian.Uint32(body[0:4]),
		Size:  binary.LittleEndian.Uint32(body[4:8]),
		Error: binary.LittleEndian.Uint32(body[8:12]),
	}, body[12:], nil
}

// decodeDirStat decodes one {recv StatSet, send StatSet} pair, matching the
// firmware's per-layer (phy/mac/net) statistics block.
func decodeDirStat(body []byte) (DirStat, []byte, error) {
	recv, rest, err := decodeStatSet(body)
	if err != nil {
		return DirStat{}, nil, err
	}
	send, rest, err := decodeStatSet(rest)
	if err != nil {
		return DirStat{}, nil, err
	}
	return DirStat{Recv: recv, Send: send}, rest, nil
}

func decodeStatus(body []byte) (any, bool, error) {
	const fixedLen = 4 + 4 + 8 + 4 + 2 + 1 + 1 + 4 + 4 + 4 + 4
	if len(body) < fixedLen {
		return nil, false, fmt.Errorf("%w: status body too short", ErrInvalidArgument)
	}
	st := StatusReply{
		Version:   binary.LittleEndian.Uint32(body[0:4]),
		BuildDate: binary.LittleEndian.Uint32(body[4:8]),
		Serial:    binary.LittleEndian.Uint64(body[8:16]),
		UptimeMS:  binary.LittleEndian.Uint32(body[16:20]),
		Addr:      binary.LittleEndian.Uint16(body[20:22]),
		Cell:      body[22],
		RDID:      body[23],
		PhySU:     binary.LittleEndian.Uint32(body[24:28]),
		MacSURx:   binary.LittleEndian.Uint32(body[28:32]),
		HeapFree:  binary.LittleEndian.Uint32(body[32:36]),
		HeapUsage: binary.LittleEndian.Uint32(body[36:40]),
	}
	rest := body[fixedLen:]

	var err error
	st.PhyStat, rest, err = decodeDirStat(rest)
	if err != nil {
		return nil, false, err
	}
	st.MacStat, rest, err = decodeDirStat(rest)
	if err != nil {
		return nil, false, err
	}
	st.NetStat, rest, err = decodeDirStat(rest)
	if err != nil {
		return nil, false, err
	}

	st.Chan = make([]ChanRecord, 0, PhyChanCount)
	for i := 0; i < PhyChanCount; i++ {
		if len(rest) < 8 {
			return nil, false, fmt.Errorf("%w: status channel record %d too short", ErrInvalidArgument, i)
		}
		st.Chan = append(st.Chan, ChanRecord{
			ID:       i,
			Freq:     binary.LittleEndian.Uint32(rest[0:4]),
			HopID:    binary.LittleEndian.Uint16(rest[4:6]),
			RSSI:     int8(rest[6]),
			RSSIPrev: int8(rest[7]),
		})
		rest = rest[8:]
	}
	return st, false, nil
}

// ConfigParams is the argument to the config encoder. Exactly one of
// ParamInt/ParamRaw is used (UseRaw selects ParamRaw), matching the firmware's two call shapes
// (orig/new address pair vs orig/new cell pair share the same envelope).
type ConfigParams struct {
	ID        uint32
	ParamInt  uint32
	ParamRaw  [4]byte
	UseRaw    bool
	ExtraData []byte
}

func encodeConfig(p ConfigParams) ([]byte, error) {
	body := make([]byte, 8+len(p.ExtraData))
	binary.LittleEndian.PutUint32(body[0:4], p.ID)
	if p.UseRaw {
		copy(body[4:8], p.ParamRaw[:])
	} else {
		binary.LittleEndian.PutUint32(body[4:8], p.ParamInt)
	}
	copy(body[8:], p.ExtraData)
	return body, nil
}

func decodeConfigRsp(body []byte) (any, bool, error) {
	if len(body) != 4 {
		return nil, false, fmt.Errorf("%w: config_rsp length %d", ErrInvalidArgument, len(body))
	}
	return binary.LittleEndian.Uint32(body), false, nil
}

func encodeConfigAddr(orig, newAddr uint16) ConfigParams {
	var raw [4]byte
	binary.LittleEndian.PutUint16(raw[0:2], orig&NetAddrMask)
	binary.LittleEndian.PutUint16(raw[2:4], newAddr&NetAddrMask)
	return ConfigParams{ID: configIDAddr, ParamRaw: raw, UseRaw: true}
}

func encodeConfigCell(addr uint16, orig, newCell uint8) ConfigParams {
	var raw [4]byte
	binary.LittleEndian.PutUint16(raw[0:2], addr&NetAddrMask)
	raw[2] = orig & NetCellMask
	raw[3] = newCell & NetCellMask
	return ConfigParams{ID: configIDCell, ParamRaw: raw, UseRaw: true}
}

func decodePeer(body []byte) (any, bool, error) {
	if len(body) < 6 {
		return nil, false, fmt.Errorf("%w: peer body too short", ErrInvalidArgument)
	}
	node := binary.LittleEndian.Uint16(body[0:2])
	now := binary.LittleEndian.Uint32(body[2:6])
	rest := body[6:]

	var peers []PeerRecord
	for len(rest) >= 20 {
		peers = append(peers, PeerRecord{
			Addr:    binary.LittleEndian.Uint16(rest[0:2]),
			RSSI:    int8(rest[2]),
			LQI:     rest[3],
			Last:    binary.LittleEndian.Uint32(rest[4:8]),
			Version: binary.LittleEndian.Uint32(rest[8:12]),
			Date:    binary.LittleEndian.Uint32(rest[12:16]),
			Time:    binary.LittleEndian.Uint32(rest[16:20]),
		})
		rest = rest[20:]
	}
	return PeerReply{Node: node, Time: now, Peers: peers}, false, nil
}

// PingParams is the argument to the ping encoder.
type PingParams struct {
	Addr      uint16
	TimeoutMS uint32
	Size      uint16
	SizeResp  uint16
	Stream    bool
}

func encodePing(p PingParams) ([]byte, error) {
	body := make([]byte, 11)
	binary.LittleEndian.PutUint16(body[0:2], p.Addr&NetAddrMask)
	binary.LittleEndian.PutUint32(body[2:6], p.TimeoutMS)
	binary.LittleEndian.PutUint16(body[6:8], p.Size)
	binary.LittleEndian.PutUint16(body[8:10], p.SizeResp)
	if p.Stream {
		body[10] = 1
	}
	return body, nil
}

func decodePing(body []byte) (any, bool, error) {
	if len(body) != 12 {
		return nil, false, fmt.Errorf("%w: ping reply length %d", ErrInvalidArgument, len(body))
	}
	return PingReply{
		Addr:     binary.LittleEndian.Uint16(body[0:2]),
		TxCount:  binary.LittleEndian.Uint16(body[2:4]),
		RTTUsec:  binary.LittleEndian.Uint32(body[4:8]),
		RSSILocl: int8(body[8]),
		LQILocl:  body[9],
		RSSIPeer: int8(body[10]),
		LQIPeer:  body[11],
	}, false, nil
}

func decodeEvnt(body []byte) (any, bool, error) {
	if len(body) < 1 {
		return nil, false, fmt.Errorf("%w: evnt body empty", ErrInvalidArgument)
	}
	ev := Event{ID: body[0], Data: body[1:]}
	if ev.ID == PeerEventNone && len(ev.Data) >= 3 {
		ev.Addr = binary.LittleEndian.Uint16(ev.Data[0:2])
		ev.Action = ev.Data[2]
	}
	return ev, false, nil
}

func encodeReboot(args ...any) ([]byte, error) {
	addr := uint16(NetAddrInvl)
	if v, ok := arg0[uint16](args); ok {
		addr = v
	}
	body := make([]byte, 6)
	binary.LittleEndian.PutUint16(body[0:2], addr&NetAddrMask)
	binary.LittleEndian.PutUint32(body[2:6], resetMagic)
	return body, nil
}

func encodeRainbow(args ...any) ([]byte, error) {
	addr := uint16(NetAddrInvl)
	if v, ok := arg0[uint16](args); ok {
		addr = v
	}
	body := make([]byte, 2)
	binary.LittleEndian.PutUint16(body, addr&NetAddrMask)
	return body, nil
}

func encodeEcho(args ...any) ([]byte, error) {
	mesg, ok := arg0[[]byte](args)
	if !ok {
		return nil, fmt.Errorf("%w: echo requires a []byte argument", ErrInvalidArgument)
	}
	body := make([]byte, len(mesg)+1)
	copy(body, mesg)
	return body, nil
}

func decodeEchoReply(body []byte) (any, bool, error) {
	return string(body), false, nil
}

// encodeFota takes a single uint16 target address as its argument.
func encodeFota(args ...any) ([]byte, error) {
	addr, ok := arg0[uint16](args)
	if !ok {
		return nil, fmt.Errorf("%w: fota requires a uint16 addr", ErrInvalidArgument)
	}
	body := make([]byte, 2)
	binary.LittleEndian.PutUint16(body, addr&NetAddrMask)
	return body, nil
}

func decodeFota(body []byte) (any, bool, error) {
	if len(body) != 1 {
		return nil, false, fmt.Errorf("%w: fota reply length %d", ErrInvalidArgument, len(body))
	}
	return body[0], false, nil
}

// UpdateParams is the argument to the flash/update encoder.
type UpdateParams struct {
	SizeHeader uint32
	SizeUser   uint32
	SizeCode   uint32
	SizeText   uint32
	SizeData   uint32
	SizeTotal  uint32
	Bin        []byte
}

func encodeUpdate(p UpdateParams) ([]byte, error) {
	sum := p.SizeHeader + p.SizeUser + p.SizeCode + p.SizeText + p.SizeData
	if sum != p.SizeTotal {
		return nil, fmt.Errorf("%w: update section sizes sum to %d, want total %d", ErrInvalidArgument, sum, p.SizeTotal)
	}
	body := make([]byte, 24+len(p.Bin))
	binary.LittleEndian.PutUint32(body[0:4], p.SizeHeader)
	binary.LittleEndian.PutUint32(body[4:8], p.SizeUser)
	binary.LittleEndian.PutUint32(body[8:12], p.SizeCode)
	binary.LittleEndian.PutUint32(body[12:16], p.SizeText)
	binary.LittleEndian.PutUint32(body[16:20], p.SizeData)
	binary.LittleEndian.PutUint32(body[20:24], p.SizeTotal)
	copy(body[24:], p.Bin)
	return body, nil
}

func decodeUpdate(body []byte) (any, bool, error) {
	if len(body) != 4 {
		return nil, false, fmt.Errorf("%w: update reply length %d", ErrInvalidArgument, len(body))
	}
	return int32(binary.LittleEndian.Uint32(body)), false, nil
}

func encodeUart(args ...any) ([]byte, error) {
	data, ok := arg0[[]byte](args)
	if !ok {
		return nil, fmt.Errorf("%w: uart requires a []byte argument", ErrInvalidArgument)
	}
	return data, nil
}

func decodeUart(body []byte) (any, bool, error) {
	return body, false, nil
}

// LEDParams is the argument to the led encoder. RGB holds one {R,G,B}
// triple per addressed LED; the firmware wants them reordered to G,R,B.
type LEDParams struct {
	Addr uint16
	Mask uint8
	RGB  [][3]byte
}

func encodeLED(p LEDParams) ([]byte, error) {
	body := make([]byte, 3+3*len(p.RGB))
	binary.LittleEndian.PutUint16(body[0:2], p.Addr)
	body[2] = p.Mask
	for i, rgb := range p.RGB {
		r, g, b := rgb[0], rgb[1], rgb[2]
		off := 3 + 3*i
		body[off] = g
		body[off+1] = r
		body[off+2] = b
	}
	return body, nil
}

// Catalogue constructs and registers every command in the spec.md §4.7
// catalogue. The reboot/rainbow/fota/uart/echo encoders accept
// loosely-typed variadic args (mirroring the firmware's own simple scalar
// calling convention); the richer commands (send, trxn, config, mac_send,
// ping, update, led) take a single typed Params struct as args[0] since Go
// has no keyword arguments.
func Catalogue() *Registry {
	r := NewRegistry()
	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("proto: catalogue registration: %v", err))
		}
	}

	must(r.Add(Command{Name: "echo", ReqCode: u8(CodeEcho), Encode: encodeEcho}))
	must(r.Add(Command{
		Name: "_echo_reply", RespCode: u8(CodeEcho), Decode: decodeEchoReply,
		Handle: func(any) {}, // façade overrides Handle after construction
	}))

	must(r.Add(Command{
		Name: "status", ReqCode: u8(CodeStatus), RespCode: u8(CodeStatus),
		Decode: decodeStatus,
	}))

	must(r.Add(Command{
		Name: "config", ReqCode: u8(CodeConfig), RespCode: u8(CodeConfigRsp),
		Encode: func(args ...any) ([]byte, error) {
			p, ok := arg0[ConfigParams](args)
			if !ok {
				return nil, fmt.Errorf("%w: config requires a ConfigParams argument", ErrInvalidArgument)
			}
			return encodeConfig(p)
		},
		Decode: decodeConfigRsp,
	}))

	must(r.Add(Command{
		Name: "send_nowait", ReqCode: u8(CodeSend),
		Encode: func(args ...any) ([]byte, error) {
			p, ok := arg0[SendParams](args)
			if !ok {
				return nil, fmt.Errorf("%w: send requires a SendParams argument", ErrInvalidArgument)
			}
			return encodeSend(p, sendFlags(p, false))
		},
	}))
	must(r.Add(Command{
		Name: "send_wait", ReqCode: u8(CodeSend), RespCode: u8(CodeSendDone),
		Encode: func(args ...any) ([]byte, error) {
			p, ok := arg0[SendParams](args)
			if !ok {
				return nil, fmt.Errorf("%w: send requires a SendParams argument", ErrInvalidArgument)
			}
			return encodeSend(p, sendFlags(p, true))
		},
		Decode: decodeSendDone,
	}))

	must(r.Add(Command{
		Name: "resp", ReqCode: u8(CodeResp),
		Encode: func(args ...any) ([]byte, error) {
			p, ok := arg0[SendParams](args)
			if !ok {
				return nil, fmt.Errorf("%w: resp requires a SendParams argument", ErrInvalidArgument)
			}
			p.Mesg = true
			return encodeSend(p, sendFlags(p, false))
		},
	}))

	must(r.Add(Command{Name: "recv", RespCode: u8(CodeRecv), Decode: decodeRecv, Handle: func(any) {}}))
	must(r.Add(Command{Name: "mac_recv", RespCode: u8(CodeMACRecv), Decode: decodeMACRecv, Handle: func(any) {}}))
	must(r.Add(Command{Name: "evnt", RespCode: u8(CodeEvnt), Decode: decodeEvnt, Handle: func(any) {}}))

	must(r.Add(Command{
		Name: "trxn", ReqCode: u8(CodeTrxn), RespCode: u8(CodeTrxn), Multi: true,
		Encode: func(args ...any) ([]byte, error) {
			p, ok := arg0[TrxnParams](args)
			if !ok {
				return nil, fmt.Errorf("%w: trxn requires a TrxnParams argument", ErrInvalidArgument)
			}
			return encodeTrxn(p)
		},
		Decode: decodeTrxnReply,
	}))

	must(r.Add(Command{
		Name: "mac_send", ReqCode: u8(CodeMACSend),
		Encode: func(args ...any) ([]byte, error) {
			p, ok := arg0[MACSendParams](args)
			if !ok {
				return nil, fmt.Errorf("%w: mac_send requires a MACSendParams argument", ErrInvalidArgument)
			}
			p.Wait = false
			return encodeMACSend(p)
		},
	}))
	must(r.Add(Command{
		Name: "mac_send_wait", ReqCode: u8(CodeMACSend), RespCode: u8(CodeMACSend),
		Encode: func(args ...any) ([]byte, error) {
			p, ok := arg0[MACSendParams](args)
			if !ok {
				return nil, fmt.Errorf("%w: mac_send requires a MACSendParams argument", ErrInvalidArgument)
			}
			p.Wait = true
			return encodeMACSend(p)
		},
		Decode: decodeMACSendWait,
	}))

	must(r.Add(Command{Name: "peer", ReqCode: u8(CodePeer), RespCode: u8(CodePeer), Decode: decodePeer}))

	must(r.Add(Command{
		Name: "ping", ReqCode: u8(CodePing), RespCode: u8(CodePing),
		Encode: func(args ...any) ([]byte, error) {
			p, ok := arg0[PingParams](args)
			if !ok {
				return nil, fmt.Errorf("%w: ping requires a PingParams argument", ErrInvalidArgument)
			}
			return encodePing(p)
		},
		Decode: decodePing,
	}))

	must(r.Add(Command{Name: "reboot", ReqCode: u8(CodeReboot), Encode: encodeReboot}))
	must(r.Add(Command{Name: "fota", ReqCode: u8(CodeFota), RespCode: u8(CodeFota), Encode: encodeFota, Decode: decodeFota}))

	must(r.Add(Command{
		Name: "update", ReqCode: u8(CodeFlash), RespCode: u8(CodeFlash),
		Encode: func(args ...any) ([]byte, error) {
			p, ok := arg0[UpdateParams](args)
			if !ok {
				return nil, fmt.Errorf("%w: update requires an UpdateParams argument", ErrInvalidArgument)
			}
			return encodeUpdate(p)
		},
		Decode: decodeUpdate,
	}))

	must(r.Add(Command{Name: "uart", ReqCode: u8(CodeUart), RespCode: u8(CodeUart), Encode: encodeUart, Decode: decodeUart}))

	must(r.Add(Command{
		Name: "led", ReqCode: u8(CodeLED),
		Encode: func(args ...any) ([]byte, error) {
			p, ok := arg0[LEDParams](args)
			if !ok {
				return nil, fmt.Errorf("%w: led requires an LEDParams argument", ErrInvalidArgument)
			}
			return encodeLED(p)
		},
	}))

	must(r.Add(Command{Name: "rainbow", ReqCode: u8(CodeRainbow), Encode: encodeRainbow}))

	return r
}

// EncodeConfigAddr builds the ConfigParams for an address-change request.
func EncodeConfigAddr(orig, newAddr uint16) ConfigParams { return encodeConfigAddr(orig, newAddr) }

// EncodeConfigCell builds the ConfigParams for a cell-change request.
func EncodeConfigCell(addr uint16, orig, newCell uint8) ConfigParams {
	return encodeConfigCell(addr, orig, newCell)
}
