package proto

import (
	"errors"
	"fmt"
)

// AMASP (Another Master-Slave Protocol) packets over a byte oriented serial link.
// Every packet starts with '!', followed by the packet type, the error check
// algorithm digit and a 3 digit hex device ID. Request and response packets
// carry a 3 digit hex length and a payload, interrupt and error packets a
// 2 digit hex code. A 4 digit hex check value and CRLF close the packet.
// All numbers are uppercase ASCII hex, zero padded.

var (
	// ErrTimeout is returned by ReadPacket whenever no valid packet could be
	// decoded, no matter whether no data arrived or garbage did.
	ErrTimeout = errors.New("timeout")

	ErrDeviceIDRange = errors.New("device id out of range")
	ErrChecksumKind  = errors.New("invalid checksum kind")
	ErrPacketKind    = errors.New("invalid packet kind")
)

// Discard reasons. They never leave ReadPacket as an error, see ReaderOpts.OnDiscard.
var (
	ErrNoData               = errors.New("no data")
	ErrShortRead            = errors.New("short read")
	ErrBadSelector          = errors.New("invalid error check selector")
	ErrBadHex               = errors.New("invalid hex field")
	ErrChecksumMismatch     = errors.New("checksum mismatch")
	ErrBadTerminator        = errors.New("invalid packet terminator")
	ErrUnknownDiscriminator = errors.New("unknown packet type")
)

const (
	SOP = '!' // Start of packet

	TypeMRP = '?'
	TypeSRP = '#'
	TypeSIP = '!'
	TypeCEP = '~'

	CR = '\r'
	LF = '\n'
)

const (
	MaxDeviceID    = 0xFFF
	MaxPayloadSize = 0xFFF
	// MaxPacketSize is the size of a request or response carrying MaxPayloadSize bytes.
	MaxPacketSize = MaxPayloadSize + dataOverhead

	headerSize   = 9  // SOP, type, ECA, 3 digit device ID, 3 digit length
	codeSize     = 14 // SIP/CEP packets have a fixed size
	dataOverhead = headerSize + 4 + 2
)

// PacketKind is the type of a packet. KindTimeout marks the absence of a packet
// and is never transmitted.
type PacketKind uint8

const (
	KindMRP PacketKind = iota
	KindSRP
	KindSIP
	KindCEP
	KindTimeout
)

func (k PacketKind) String() string {
	switch k {
	case KindMRP:
		return "MRP"
	case KindSRP:
		return "SRP"
	case KindSIP:
		return "SIP"
	case KindCEP:
		return "CEP"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// discriminator returns the wire type byte of k.
func (k PacketKind) discriminator() (byte, bool) {
	switch k {
	case KindMRP:
		return TypeMRP, true
	case KindSRP:
		return TypeSRP, true
	case KindSIP:
		return TypeSIP, true
	case KindCEP:
		return TypeCEP, true
	default:
		return 0, false
	}
}

// HasPayload reports whether packets of kind k carry a payload rather than a code.
func (k PacketKind) HasPayload() bool {
	return k == KindMRP || k == KindSRP
}

// Packet is a decoded or to be encoded AMASP packet.
type Packet struct {
	Kind         PacketKind
	DeviceID     uint16
	ChecksumKind ChecksumKind
	// Checksum is the check value found on (or written to) the wire.
	Checksum uint16
	// Payload is only used by MRP and SRP packets.
	Payload []byte
	// Code is the interrupt (SIP) or error (CEP) code.
	Code uint8
}

func (p Packet) String() string {
	if p.Kind.HasPayload() {
		return fmt.Sprintf("%s{device=%03X eca=%s len=%d check=%04X}",
			p.Kind, p.DeviceID, p.ChecksumKind, len(p.Payload), p.Checksum)
	}
	return fmt.Sprintf("%s{device=%03X eca=%s code=%02X check=%04X}",
		p.Kind, p.DeviceID, p.ChecksumKind, p.Code, p.Checksum)
}
