package amasp

import (
	"context"
	"io"

	"github.com/xvzf/amasp/pkg/amasp/proto"
)

// Slave answers requests (SRP), raises interrupts (SIP) and may report
// communication errors (CEP).
type Slave struct {
	endpoint
}

func NewSlave(w io.Writer, kind proto.ChecksumKind) *Slave {
	return &Slave{endpoint{w: w, kind: kind}}
}

// SendResponse sends the first length bytes of payload as SRP on behalf of a device.
func (s *Slave) SendResponse(ctx context.Context, deviceID uint16, payload []byte, length int) (uint16, error) {
	return s.send(ctx, proto.Packet{
		Kind:     proto.KindSRP,
		DeviceID: deviceID,
		Payload:  proto.Clamp(payload, length),
	})
}

func (s *Slave) SendResponseString(ctx context.Context, deviceID uint16, msg string, length int) (uint16, error) {
	return s.SendResponse(ctx, deviceID, []byte(msg), length)
}

// SendInterruption sends a SIP with the given interrupt code.
func (s *Slave) SendInterruption(ctx context.Context, deviceID uint16, code uint8) (uint16, error) {
	return s.send(ctx, proto.Packet{Kind: proto.KindSIP, DeviceID: deviceID, Code: code})
}
