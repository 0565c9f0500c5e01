package proto

import (
	"context"
	"fmt"
	"io"
)

const hexDigits = "0123456789ABCDEF"

// appendHex appends v as width uppercase hex digits, zero padded.
func appendHex(dst []byte, v uint16, width int) []byte {
	for shift := (width - 1) * 4; shift >= 0; shift -= 4 {
		dst = append(dst, hexDigits[(v>>uint(shift))&0xF])
	}
	return dst
}

// Clamp returns the first length bytes of payload, saturating at the
// payload's own size and at MaxPayloadSize. A negative length yields an empty payload.
func Clamp(payload []byte, length int) []byte {
	if length < 0 {
		length = 0
	}
	if length > len(payload) {
		length = len(payload)
	}
	if length > MaxPayloadSize {
		length = MaxPayloadSize
	}
	return payload[:length]
}

// Encode returns the wire representation of the packet.
// Payloads longer than MaxPayloadSize are truncated.
func Encode(p Packet) ([]byte, error) {
	buf, _, err := encode(p)
	return buf, err
}

func encode(p Packet) ([]byte, uint16, error) {
	typ, ok := p.Kind.discriminator()
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrPacketKind, p.Kind)
	}
	if p.DeviceID > MaxDeviceID {
		return nil, 0, fmt.Errorf("%w: %#x", ErrDeviceIDRange, p.DeviceID)
	}
	if !p.ChecksumKind.Valid() {
		return nil, 0, fmt.Errorf("%w: %d", ErrChecksumKind, p.ChecksumKind)
	}

	var buf []byte
	if p.Kind.HasPayload() {
		payload := Clamp(p.Payload, len(p.Payload))
		buf = make([]byte, 0, len(payload)+dataOverhead)
		buf = append(buf, SOP, typ, '0'+byte(p.ChecksumKind))
		buf = appendHex(buf, p.DeviceID, 3)
		buf = appendHex(buf, uint16(len(payload)), 3)
		buf = append(buf, payload...)
	} else {
		buf = make([]byte, 0, codeSize)
		buf = append(buf, SOP, typ, '0'+byte(p.ChecksumKind))
		buf = appendHex(buf, p.DeviceID, 3)
		buf = appendHex(buf, uint16(p.Code), 2)
	}

	// The check value covers everything written so far.
	check := Compute(p.ChecksumKind, buf)
	buf = appendHex(buf, check, 4)
	buf = append(buf, CR, LF)
	return buf, check, nil
}

// WritePacket encodes the packet and writes it to w in a single Write call.
// It returns the check value that was transmitted.
func WritePacket(_ context.Context, w io.Writer, p Packet) (uint16, error) {
	buf, check, err := encode(p)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(buf); err != nil {
		return 0, err
	}
	return check, nil
}
