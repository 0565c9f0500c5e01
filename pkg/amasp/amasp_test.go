package amasp_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xvzf/amasp/pkg/amasp"
	"github.com/xvzf/amasp/pkg/amasp/proto"
)

type bufferSource struct {
	*bytes.Buffer
}

func (s bufferSource) Buffered() int {
	return s.Len()
}

func readBack(t *testing.T, buffer *bytes.Buffer) proto.Packet {
	t.Helper()
	reader := proto.NewReader(proto.ReaderOpts{Timeout: 5 * time.Millisecond})
	pkt, err := reader.ReadPacket(context.TODO(), bufferSource{buffer})
	require.NoError(t, err)
	return pkt
}

func TestMasterSendRequest(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	master := amasp.NewMaster(&buffer, proto.ChecksumXOR8)

	check, err := master.SendRequest(context.TODO(), 0x001, []uint8("AB"), 2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x002F), check)
	assert.Equal(t, "!?1001002AB002F\r\n", buffer.String())
}

func TestMasterSendRequestSaturates(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	master := amasp.NewMaster(&buffer, proto.ChecksumCRC16Modbus)

	check, err := master.SendRequestString(context.TODO(), 0x0AB, "hello", 64)
	require.NoError(t, err)

	pkt := readBack(t, &buffer)
	assert.Equal(t, proto.KindMRP, pkt.Kind)
	assert.Equal(t, []uint8("hello"), pkt.Payload)
	assert.Equal(t, check, pkt.Checksum)

	_, err = master.SendRequestString(context.TODO(), 0x0AB, "hello", 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8("he"), readBack(t, &buffer).Payload)
}

func TestSlaveSendResponse(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	slave := amasp.NewSlave(&buffer, proto.ChecksumFletcher16)

	check, err := slave.SendResponse(context.TODO(), 0xFFF, []uint8("xyz"), 3)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x664B), check)
	assert.Equal(t, "!#4FFF003xyz664B\r\n", buffer.String())
}

func TestSlaveSendInterruption(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	slave := amasp.NewSlave(&buffer, proto.ChecksumCRC16Modbus)

	check, err := slave.SendInterruption(context.TODO(), 0x001, 0xFF)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x211A), check)
	assert.Equal(t, "!!5001FF211A\r\n", buffer.String())
}

func TestSendErrorBothRoles(t *testing.T) {
	t.Parallel()

	var masterBuf, slaveBuf bytes.Buffer
	master := amasp.NewMaster(&masterBuf, proto.ChecksumLRC16)
	slave := amasp.NewSlave(&slaveBuf, proto.ChecksumLRC16)

	_, err := master.SendError(context.TODO(), 0xABC, 0x7F)
	require.NoError(t, err)
	_, err = slave.SendError(context.TODO(), 0xABC, 0x7F)
	require.NoError(t, err)

	assert.Equal(t, "!~3ABC7FFDEB\r\n", masterBuf.String())
	assert.Equal(t, masterBuf.String(), slaveBuf.String())
}

func TestSetChecksumKind(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	slave := amasp.NewSlave(&buffer, proto.ChecksumNone)
	assert.Equal(t, proto.ChecksumNone, slave.ChecksumKind())

	slave.SetChecksumKind(proto.ChecksumSum16)
	assert.Equal(t, proto.ChecksumSum16, slave.ChecksumKind())

	_, err := slave.SendInterruption(context.TODO(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, proto.ChecksumSum16, readBack(t, &buffer).ChecksumKind)
}

func TestSendInvalidDeviceID(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	master := amasp.NewMaster(&buffer, proto.ChecksumXOR8)
	_, err := master.SendRequest(context.TODO(), 0x1000, []uint8("x"), 1)
	assert.ErrorIs(t, err, proto.ErrDeviceIDRange)
	assert.Zero(t, buffer.Len())
}

type failingWriter struct{}

var errWriteFailed = errors.New("write failed")

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

func TestSendTransportFailure(t *testing.T) {
	t.Parallel()

	slave := amasp.NewSlave(failingWriter{}, proto.ChecksumXOR8)
	_, err := slave.SendResponse(context.TODO(), 1, []uint8("x"), 1)
	assert.ErrorIs(t, err, errWriteFailed)
}

// lockedBuffer fails the test if two writes overlap.
type lockedBuffer struct {
	t      *testing.T
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	if !b.mu.TryLock() {
		b.t.Error("concurrent write")
		return 0, errors.New("concurrent write")
	}
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func TestConcurrentSendsAreSerialized(t *testing.T) {
	t.Parallel()

	out := &lockedBuffer{t: t}
	slave := amasp.NewSlave(out, proto.ChecksumCRC16Modbus)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := slave.SendInterruption(context.TODO(), uint16(i), uint8(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		pkt := readBack(t, &out.buffer)
		assert.Equal(t, proto.KindSIP, pkt.Kind)
		assert.Equal(t, uint8(pkt.DeviceID), pkt.Code)
	}
}

func TestMatchers(t *testing.T) {
	t.Parallel()

	sip := proto.Packet{Kind: proto.KindSIP, DeviceID: 3}
	srp := proto.Packet{Kind: proto.KindSRP, DeviceID: 4}

	assert.True(t, amasp.MatchKind(proto.KindSIP, proto.KindCEP)(sip))
	assert.False(t, amasp.MatchKind(proto.KindSIP, proto.KindCEP)(srp))
	assert.False(t, amasp.MatchKind()(sip))
	assert.True(t, amasp.MatchDevice(4)(srp))
	assert.False(t, amasp.MatchDevice(4)(sip))
}
