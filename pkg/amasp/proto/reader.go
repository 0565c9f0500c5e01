package proto

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/xvzf/amasp/pkg/util"
)

const (
	DefaultReadTimeout  = 100 * time.Millisecond
	DefaultPollInterval = time.Millisecond
)

// ByteSource is the receiving side of a serial link.
// Read must not block: it returns whatever is buffered, possibly nothing.
// tinygo.org/x/drivers.UART and transport.Port satisfy it.
type ByteSource interface {
	io.Reader
	// Buffered returns the number of bytes that can be read without waiting.
	Buffered() int
}

// ReaderOpts configures a Reader.
type ReaderOpts struct {
	// Timeout bounds every single wait for bytes to arrive.
	Timeout time.Duration
	// PollInterval is the pause between two checks of the buffered byte count.
	PollInterval time.Duration
	// Clock is used for all waiting, defaults to the real clock.
	Clock util.Clock
	// OnDiscard, when set, is called with the reason of every abandoned
	// decode attempt. It does not change the result of ReadPacket.
	OnDiscard func(reason error)
}

// Reader decodes packets from a ByteSource.
// A Reader holds no state between calls, but a ByteSource must only be read
// by one goroutine at a time.
type Reader struct {
	opts ReaderOpts
}

func NewReader(opts ReaderOpts) *Reader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultReadTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	return &Reader{opts: opts}
}

// ReadPacket reads bytes until a valid packet was decoded.
//
// Bytes in front of a start of packet are dropped. Any failure to decode a
// packet, including no data arriving at all, returns a KindTimeout packet
// and ErrTimeout. A packet with an unknown type is skipped and the search for
// the next start of packet continues. The only other error is the one of a
// done context.
func (r *Reader) ReadPacket(ctx context.Context, src ByteSource) (Packet, error) {
	var b [1]byte
	for {
		if err := r.waitFor(ctx, src, 1); err != nil {
			return Packet{Kind: KindTimeout}, err
		}
		if n, err := src.Read(b[:]); err != nil || n != 1 {
			return r.discard(ErrNoData)
		}
		if b[0] != SOP {
			continue
		}

		pkt, err := r.readFrame(ctx, src)
		switch {
		case err == nil:
			return pkt, nil
		case ctx.Err() != nil:
			return Packet{Kind: KindTimeout}, ctx.Err()
		case errors.Is(err, ErrUnknownDiscriminator):
			r.report(err)
			continue
		default:
			return r.discard(err)
		}
	}
}

// readFrame decodes the remainder of a packet after its start byte.
func (r *Reader) readFrame(ctx context.Context, src ByteSource) (Packet, error) {
	frame := make([]byte, 6, headerSize)
	frame[0] = SOP
	if err := r.readFull(ctx, src, frame[1:]); err != nil {
		return Packet{}, err
	}

	eca := frame[2]
	if eca < '0' || eca > '5' {
		return Packet{}, ErrBadSelector
	}
	kind := ChecksumKind(eca - '0')

	deviceID, ok := parseHex(frame[3:6])
	if !ok {
		return Packet{}, ErrBadHex
	}

	switch frame[1] {
	case TypeMRP:
		return r.readData(ctx, src, frame, KindMRP, kind, deviceID)
	case TypeSRP:
		return r.readData(ctx, src, frame, KindSRP, kind, deviceID)
	case TypeSIP:
		return r.readCode(ctx, src, frame, KindSIP, kind, deviceID)
	case TypeCEP:
		return r.readCode(ctx, src, frame, KindCEP, kind, deviceID)
	default:
		return Packet{}, ErrUnknownDiscriminator
	}
}

// readData reads length, payload, check value and terminator of an MRP or SRP.
func (r *Reader) readData(ctx context.Context, src ByteSource, frame []byte, pk PacketKind, kind ChecksumKind, deviceID uint16) (Packet, error) {
	frame = frame[:headerSize]
	if err := r.readFull(ctx, src, frame[6:]); err != nil {
		return Packet{}, err
	}
	length, ok := parseHex(frame[6:9])
	if !ok {
		return Packet{}, ErrBadHex
	}
	n := int(length)

	rest := make([]byte, n+6)
	if err := r.readFull(ctx, src, rest); err != nil {
		return Packet{}, err
	}
	frame = append(frame, rest...)

	check, ok := parseHex(frame[headerSize+n : headerSize+n+4])
	if !ok {
		return Packet{}, ErrBadHex
	}
	if check != Compute(kind, frame[:headerSize+n]) {
		return Packet{}, ErrChecksumMismatch
	}
	// One intact terminator byte is enough.
	if frame[headerSize+n+4] != CR && frame[headerSize+n+5] != LF {
		return Packet{}, ErrBadTerminator
	}

	payload := make([]byte, n)
	copy(payload, frame[headerSize:headerSize+n])
	return Packet{
		Kind:         pk,
		DeviceID:     deviceID,
		ChecksumKind: kind,
		Checksum:     check,
		Payload:      payload,
	}, nil
}

// readCode reads code, check value and terminator of a SIP or CEP.
// The terminator is consumed but not verified.
func (r *Reader) readCode(ctx context.Context, src ByteSource, frame []byte, pk PacketKind, kind ChecksumKind, deviceID uint16) (Packet, error) {
	rest := make([]byte, codeSize-len(frame))
	if err := r.readFull(ctx, src, rest); err != nil {
		return Packet{}, err
	}
	frame = append(frame, rest...)

	check, ok := parseHex(frame[8:12])
	if !ok {
		return Packet{}, ErrBadHex
	}
	if check != Compute(kind, frame[:8]) {
		return Packet{}, ErrChecksumMismatch
	}
	code, ok := parseHex(frame[6:8])
	if !ok {
		return Packet{}, ErrBadHex
	}

	return Packet{
		Kind:         pk,
		DeviceID:     deviceID,
		ChecksumKind: kind,
		Checksum:     check,
		Code:         uint8(code),
	}, nil
}

// waitFor blocks until n bytes are buffered or the read timeout elapsed.
func (r *Reader) waitFor(ctx context.Context, src ByteSource, n int) error {
	return util.PollUntil(ctx, r.opts.Clock, r.opts.Timeout, r.opts.PollInterval, func() bool {
		return src.Buffered() >= n
	})
}

// readFull waits for len(p) bytes and reads them. Running out of time shows
// up as ErrShortRead.
func (r *Reader) readFull(ctx context.Context, src ByteSource, p []byte) error {
	if err := r.waitFor(ctx, src, len(p)); err != nil {
		return err
	}
	for read := 0; read < len(p); {
		n, err := src.Read(p[read:])
		if n <= 0 || n > len(p)-read {
			return ErrShortRead
		}
		read += n
		if err != nil && read < len(p) {
			return ErrShortRead
		}
	}
	return nil
}

func (r *Reader) report(reason error) {
	if r.opts.OnDiscard != nil {
		r.opts.OnDiscard(reason)
	}
}

func (r *Reader) discard(reason error) (Packet, error) {
	r.report(reason)
	return Packet{Kind: KindTimeout}, ErrTimeout
}

// parseHex parses up to four hex digits of either case.
func parseHex(b []byte) (uint16, bool) {
	if len(b) == 0 || len(b) > 4 {
		return 0, false
	}
	var v uint16
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9':
			c -= '0'
		case c >= 'A' && c <= 'F':
			c -= 'A' - 10
		case c >= 'a' && c <= 'f':
			c -= 'a' - 10
		default:
			return 0, false
		}
		v = v<<4 | uint16(c)
	}
	return v, true
}

// ReadPacket decodes a single packet from src using a Reader with default options.
func ReadPacket(ctx context.Context, src ByteSource) (Packet, error) {
	return NewReader(ReaderOpts{}).ReadPacket(ctx, src)
}
