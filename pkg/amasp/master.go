package amasp

import (
	"context"
	"io"

	"github.com/xvzf/amasp/pkg/amasp/proto"
)

// Master sends requests (MRP) to slaves and may report communication errors (CEP).
type Master struct {
	endpoint
}

func NewMaster(w io.Writer, kind proto.ChecksumKind) *Master {
	return &Master{endpoint{w: w, kind: kind}}
}

// SendRequest sends the first length bytes of payload as MRP to a slave device.
// length saturates at len(payload). The transmitted check value is returned.
func (m *Master) SendRequest(ctx context.Context, deviceID uint16, payload []byte, length int) (uint16, error) {
	return m.send(ctx, proto.Packet{
		Kind:     proto.KindMRP,
		DeviceID: deviceID,
		Payload:  proto.Clamp(payload, length),
	})
}

// SendRequestString is SendRequest for text payloads.
func (m *Master) SendRequestString(ctx context.Context, deviceID uint16, msg string, length int) (uint16, error) {
	return m.SendRequest(ctx, deviceID, []byte(msg), length)
}
