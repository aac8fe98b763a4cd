package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func buildStatusBody() []byte {
	var buf bytes.Buffer
	put32 := func(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); buf.Write(b[:]) }
	put16 := func(v uint16) { var b [2]byte; binary.LittleEndian.PutUint16(b[:], v); buf.Write(b[:]) }
	put64 := func(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); buf.Write(b[:]) }

	put32(0x01020304)             // version
	put32(0x65000000)             // build date
	put64(0xDEADBEEFCAFE0001)     // serial
	put32(123456)                 // uptime
	put16(0x4BC9)                 // addr
	buf.WriteByte(0x01)           // cell
	buf.WriteByte(0x02)           // rdid
	put32(1)                      // phy_su
	put32(2)                      // mac_su_rx
	put32(4096)                   // heap free
	put32(1024)                   // heap usage

	putStat := func(count, size, errs uint32) { put32(count); put32(size); put32(errs) }
	putStat(1, 2, 3)   // phy recv
	putStat(10, 20, 30) // phy send
	putStat(4, 5, 6)   // mac recv
	putStat(40, 50, 60) // mac send
	putStat(7, 8, 9)   // net recv
	putStat(70, 80, 90) // net send

	for i := 0; i < PhyChanCount; i++ {
		put32(uint32(900000000 + i))
		put16(uint16(i))
		buf.WriteByte(byte(int8(-40 - i)))
		buf.WriteByte(byte(int8(-42 - i)))
	}
	return buf.Bytes()
}

func TestStatusRoundTrip(t *testing.T) {
	r := Catalogue()
	resolved, ok := r.Resolve(CodeStatus)
	if !ok {
		t.Fatal("status not registered")
	}
	val, terminal, err := resolved.Cmd.Decode(buildStatusBody())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if terminal {
		t.Fatal("status decode must not be terminal")
	}
	st := val.(StatusReply)
	if st.Version != 0x01020304 {
		t.Fatalf("version mismatch: %x", st.Version)
	}
	if st.Serial != 0xDEADBEEFCAFE0001 {
		t.Fatalf("serial mismatch: %x", st.Serial)
	}
	if st.Addr != 0x4BC9 || st.Cell != 0x01 {
		t.Fatalf("addr/cell mismatch: %x/%x", st.Addr, st.Cell)
	}
	if len(st.Chan) != PhyChanCount {
		t.Fatalf("expected %d channel records, got %d", PhyChanCount, len(st.Chan))
	}
	if st.NetStat.Recv.Count != 7 || st.NetStat.Recv.Size != 8 || st.NetStat.Recv.Error != 9 {
		t.Fatalf("net recv stat mismatch: %+v", st.NetStat.Recv)
	}
	if st.NetStat.Send.Count != 70 || st.NetStat.Send.Size != 80 || st.NetStat.Send.Error != 90 {
		t.Fatalf("net send stat mismatch: %+v", st.NetStat.Send)
	}
}

func TestSendEncodeDecodeRoundTrip(t *testing.T) {
	r := Catalogue()
	cmd, ok := r.ByName("send_wait")
	if !ok {
		t.Fatal("send_wait not registered")
	}
	body, err := cmd.Encode(SendParams{Addr: 0x10, Port: 101, Type: 1, Data: []byte("hi"), Mesg: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if binary.LittleEndian.Uint16(body[0:2]) != 0x10 {
		t.Fatalf("addr mismatch")
	}
	if binary.LittleEndian.Uint16(body[2:4]) != 101 {
		t.Fatalf("port mismatch")
	}
	if body[4] != 1 {
		t.Fatalf("type mismatch")
	}
	if body[5]&sendFlagRslt == 0 || body[5]&sendFlagMesg == 0 {
		t.Fatalf("expected both rslt and mesg flags set, got 0x%02x", body[5])
	}
	if !bytes.Equal(body[6:], []byte("hi")) {
		t.Fatalf("payload mismatch: %q", body[6:])
	}

	var doneBody [2]byte
	binary.LittleEndian.PutUint16(doneBody[:], 3)
	val, _, err := cmd.Decode(doneBody[:])
	if err != nil {
		t.Fatalf("decode send_done: %v", err)
	}
	if val.(uint16) != 3 {
		t.Fatalf("acked count mismatch: %v", val)
	}
}

func TestSendRejectsOutOfRangePort(t *testing.T) {
	r := Catalogue()
	cmd, _ := r.ByName("send_nowait")
	_, err := cmd.Encode(SendParams{Addr: 1, Port: 2048, Type: 0, Data: nil})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSendRejectsOutOfRangeType(t *testing.T) {
	r := Catalogue()
	cmd, _ := r.ByName("send_nowait")
	_, err := cmd.Encode(SendParams{Addr: 1, Port: 1, Type: 0x10, Data: nil})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestTrxnEncodeAndTerminator(t *testing.T) {
	r := Catalogue()
	cmd, ok := r.ByName("trxn")
	if !ok {
		t.Fatal("trxn not registered")
	}
	body, err := cmd.Encode(TrxnParams{Addr: 0, Port: 1, Type: 0, WaitMS: 100, Data: nil})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if binary.LittleEndian.Uint32(body[5:9]) != 100 {
		t.Fatalf("wait-ms mismatch")
	}

	reply1 := make([]byte, 5)
	binary.LittleEndian.PutUint16(reply1[0:2], 1)
	binary.LittleEndian.PutUint16(reply1[2:4], 1)
	reply1 = append(reply1[:5], 'a')
	val, terminal, err := cmd.Decode(reply1)
	if err != nil || terminal {
		t.Fatalf("reply1: val=%v terminal=%v err=%v", val, terminal, err)
	}
	tr := val.(TrxnReply)
	if tr.Addr != 1 || string(tr.Data) != "a" {
		t.Fatalf("reply1 mismatch: %+v", tr)
	}

	term := make([]byte, 5)
	_, terminal, err = cmd.Decode(term)
	if err != nil {
		t.Fatalf("terminator decode: %v", err)
	}
	if !terminal {
		t.Fatal("expected addr==0 reply to be the terminator")
	}
}

func TestTrxnRejectsZeroWait(t *testing.T) {
	r := Catalogue()
	cmd, _ := r.ByName("trxn")
	_, err := cmd.Encode(TrxnParams{Addr: 1, Port: 1, Type: 0, WaitMS: 0})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRecvDecode(t *testing.T) {
	r := Catalogue()
	cmd, _ := r.ByName("recv")
	body := make([]byte, 10)
	binary.LittleEndian.PutUint16(body[0:2], 5)  // addr
	binary.LittleEndian.PutUint16(body[2:4], 9)  // dest
	binary.LittleEndian.PutUint16(body[4:6], 101) // port
	body[6] = 1                                   // type
	body[7] = 7                                   // seqn
	body[8] = byte(int8(-30))                     // rssi
	body[9] = 200                                 // lqi
	body = append(body, []byte("hi")...)

	val, _, err := cmd.Decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rec := val.(RecvRecord)
	if rec.Addr != 5 || rec.Dest != 9 || rec.Port != 101 || string(rec.Data) != "hi" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestPeerDecode(t *testing.T) {
	r := Catalogue()
	cmd, _ := r.ByName("peer")
	var buf bytes.Buffer
	var b2 [2]byte
	var b4 [4]byte
	binary.LittleEndian.PutUint16(b2[:], 0x10)
	buf.Write(b2[:])
	binary.LittleEndian.PutUint32(b4[:], 1000)
	buf.Write(b4[:])

	binary.LittleEndian.PutUint16(b2[:], 0x20)
	buf.Write(b2[:])
	buf.WriteByte(byte(int8(-50)))
	buf.WriteByte(128)
	binary.LittleEndian.PutUint32(b4[:], 111)
	buf.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], 1)
	buf.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], 20240101)
	buf.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], 120000)
	buf.Write(b4[:])

	val, _, err := cmd.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pr := val.(PeerReply)
	if pr.Node != 0x10 || pr.Time != 1000 {
		t.Fatalf("header mismatch: %+v", pr)
	}
	if len(pr.Peers) != 1 || pr.Peers[0].Addr != 0x20 {
		t.Fatalf("peers mismatch: %+v", pr.Peers)
	}
}

func TestEvntPeerDecode(t *testing.T) {
	r := Catalogue()
	cmd, _ := r.ByName("evnt")
	body := []byte{0, 0x34, 0x12, PeerEventSet}
	val, _, err := cmd.Decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ev := val.(Event)
	if ev.ID != 0 || ev.Addr != 0x1234 || ev.Action != PeerEventSet {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestConfigAddrRoundTrip(t *testing.T) {
	r := Catalogue()
	cmd, _ := r.ByName("config")
	body, err := cmd.Encode(EncodeConfigAddr(0x10, 0x20))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if binary.LittleEndian.Uint32(body[0:4]) != configIDAddr {
		t.Fatalf("config id mismatch")
	}
	if binary.LittleEndian.Uint16(body[4:6]) != 0x10 || binary.LittleEndian.Uint16(body[6:8]) != 0x20 {
		t.Fatalf("addr pair mismatch")
	}
}

func TestEchoFireAndForgetPlusReply(t *testing.T) {
	r := Catalogue()
	echoCmd, _ := r.ByName("echo")
	body, err := echoCmd.Encode([]byte("ping"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(body[:len(body)-1]) != "ping" || body[len(body)-1] != 0 {
		t.Fatalf("echo body mismatch: %q", body)
	}

	replyCmd, ok := r.Resolve(CodeEcho)
	if ok && replyCmd.Point != nil {
		t.Fatal("echo reply must be a pure receiver, not a rendezvous")
	}
	val, _, err := replyCmd.Cmd.Decode([]byte("ping"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if val.(string) != "ping" {
		t.Fatalf("echo reply mismatch: %v", val)
	}
}

func TestRebootEncodesMagic(t *testing.T) {
	r := Catalogue()
	cmd, _ := r.ByName("reboot")
	body, err := cmd.Encode(uint16(0x55))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if binary.LittleEndian.Uint16(body[0:2]) != 0x55 {
		t.Fatalf("addr mismatch")
	}
	if binary.LittleEndian.Uint32(body[2:6]) != resetMagic {
		t.Fatalf("magic mismatch: %x", binary.LittleEndian.Uint32(body[2:6]))
	}
}

func TestUpdateRejectsSizeMismatch(t *testing.T) {
	r := Catalogue()
	cmd, _ := r.ByName("update")
	_, err := cmd.Encode(UpdateParams{SizeHeader: 1, SizeUser: 1, SizeCode: 1, SizeText: 1, SizeData: 1, SizeTotal: 10})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLEDReordersRGBToGRB(t *testing.T) {
	r := Catalogue()
	cmd, _ := r.ByName("led")
	body, err := cmd.Encode(LEDParams{Addr: 1, Mask: 0xFF, RGB: [][3]byte{{10, 20, 30}}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if body[3] != 20 || body[4] != 10 || body[5] != 30 {
		t.Fatalf("expected GRB order [20 10 30], got %v", body[3:6])
	}
}

func TestCatalogueHasNoDuplicateCommands(t *testing.T) {
	// Catalogue() panics on any registration conflict; constructing it twice
	// exercises Add's uniqueness checks across the full ~20-command set.
	_ = Catalogue()
	_ = Catalogue()
}
