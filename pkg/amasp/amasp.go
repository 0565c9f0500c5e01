package amasp

import (
	"context"
	"io"
	"sync"

	"github.com/xvzf/amasp/pkg/amasp/proto"
)

const (
	Baudrate = 115200
)

// Error codes used by this implementation in CEP packets. The protocol leaves
// the meaning of codes to the application.
const (
	ErrCodeUnknownDevice uint8 = 0x01
	ErrCodeHandler       uint8 = 0x02
)

// endpoint is shared by both roles: it owns the writing side of the link and
// the error check algorithm used for outgoing packets.
type endpoint struct {
	w    io.Writer
	mu   sync.Mutex // write mutex
	kind proto.ChecksumKind
}

// ChecksumKind returns the error check algorithm used for outgoing packets.
func (e *endpoint) ChecksumKind() proto.ChecksumKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kind
}

// SetChecksumKind changes the error check algorithm used for outgoing packets.
func (e *endpoint) SetChecksumKind(kind proto.ChecksumKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kind = kind
}

// SendError sends a CEP (communication error packet) and returns the
// transmitted check value.
func (e *endpoint) SendError(ctx context.Context, deviceID uint16, code uint8) (uint16, error) {
	return e.send(ctx, proto.Packet{Kind: proto.KindCEP, DeviceID: deviceID, Code: code})
}

func (e *endpoint) send(ctx context.Context, pkt proto.Packet) (uint16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pkt.ChecksumKind = e.kind
	return proto.WritePacket(ctx, e.w, pkt)
}

// MatchKind returns an event bus filter accepting packets of the given kinds.
func MatchKind(kinds ...proto.PacketKind) func(proto.Packet) bool {
	return func(pkt proto.Packet) bool {
		for _, kind := range kinds {
			if pkt.Kind == kind {
				return true
			}
		}
		return false
	}
}

// MatchDevice returns an event bus filter accepting packets of one device.
func MatchDevice(deviceID uint16) func(proto.Packet) bool {
	return func(pkt proto.Packet) bool {
		return pkt.DeviceID == deviceID
	}
}
