package proto

// Network-layer constants shared by the catalogue's encoders/decoders.
const (
	NetAddrBcst = 0
	NetAddrMask = 0xFFFF
	NetAddrInvl = NetAddrMask
	NetCellMask = 0xFF

	NetPortMask = 0b11_1111_1111 // 10 bits
	NetTypeMask = 0b1111         // 4 bits, per the stricter fix noted in DESIGN.md

	PhyChanCount = 25

	sendFlagMesg = 0b01
	sendFlagRslt = 0b10

	resetMagic = 0xD1E00D1E

	configIDAddr = 0xADD1
	configIDCell = 0xCE11
)

// Peer event actions carried in an evnt(code 9) body when EventID == 0.
const (
	PeerEventNone = 0
	PeerEventSet  = 1
	PeerEventExp  = 2
	PeerEventOut  = 3
	PeerEventUpd  = 4
)

// StatSet mirrors one of the firmware's {count,size,error} counters.
type StatSet struct {
	Count uint32
	Size  uint32
	Error uint32
}

// DirStat pairs the receive and transmit counters the firmware reports for
// each of the phy/mac/net layers.
type DirStat struct {
	Recv StatSet
	Send StatSet
}

// ChanRecord is one PHY channel status entry.
type ChanRecord struct {
	ID       int
	Freq     uint32
	HopID    uint16
	RSSI     int8
	RSSIPrev int8
}

// StatusReply is the decoded reply to the status command.
type StatusReply struct {
	Version   uint32
	BuildDate uint32
	Serial    uint64
	UptimeMS  uint32
	Addr      uint16
	Cell      uint8
	RDID      uint8
	PhySU     uint32
	MacSURx   uint32
	HeapFree  uint32
	HeapUsage uint32
	PhyStat   DirStat
	MacStat   DirStat
	NetStat   DirStat
	Chan      []ChanRecord
}

// RecvRecord is one decoded datagram reception (code 6, unsolicited).
type RecvRecord struct {
	Addr uint16
	Dest uint16
	Port uint16
	Type uint8
	Seqn uint8
	RSSI int8
	LQI  uint8
	Data []byte
}

// MACRecvRecord is one decoded MAC-layer reception (code 3, unsolicited).
type MACRecvRecord struct {
	Addr uint16
	Peer uint16
	Dest uint16
	Size uint16
	Seqn uint8
	RSSI int8
	LQI  uint8
	Data []byte
}

// TrxnReply is one non-terminator reply in a trxn multi-reply sequence.
type TrxnReply struct {
	Addr uint16
	Port uint16
	Type uint8
	Data []byte
}

// PeerRecord is one entry in a peer-table reply.
type PeerRecord struct {
	Addr    uint16
	RSSI    int8
	LQI     uint8
	Last    uint32
	Version uint32
	Date    uint32
	Time    uint32
}

// PeerReply is the decoded reply to the peer command.
type PeerReply struct {
	Node  uint16
	Time  uint32
	Peers []PeerRecord
}

// PingReply is the decoded reply to the ping command.
type PingReply struct {
	Addr     uint16
	TxCount  uint16
	RTTUsec  uint32
	RSSILocl int8
	LQILocl  uint8
	RSSIPeer int8
	LQIPeer  uint8
}

// Event is a decoded unsolicited evnt(code 9) frame.
type Event struct {
	ID     uint8
	Data   []byte
	Addr   uint16 // valid only when ID == PeerEventNone's event kind (0)
	Action uint8
}
