package proto

import (
	"fmt"
	"strings"

	"github.com/sigurn/crc16"
)

// ChecksumKind selects the error check algorithm (ECA) of a packet.
// It is transmitted as a single ASCII digit right after the packet type.
type ChecksumKind uint8

const (
	ChecksumNone ChecksumKind = iota
	ChecksumXOR8
	ChecksumSum16
	ChecksumLRC16
	ChecksumFletcher16
	ChecksumCRC16Modbus
)

var crcModbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

func (k ChecksumKind) String() string {
	switch k {
	case ChecksumNone:
		return "none"
	case ChecksumXOR8:
		return "xor8"
	case ChecksumSum16:
		return "checksum16"
	case ChecksumLRC16:
		return "lrc16"
	case ChecksumFletcher16:
		return "fletcher16"
	case ChecksumCRC16Modbus:
		return "crc16"
	default:
		return "unknown"
	}
}

// Valid reports whether k can be put on the wire.
func (k ChecksumKind) Valid() bool {
	return k <= ChecksumCRC16Modbus
}

// ParseChecksumKind accepts the names returned by String (case-insensitive)
// as well as the wire digits "0" to "5".
func ParseChecksumKind(s string) (ChecksumKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 1 && s[0] >= '0' && s[0] <= '5' {
		return ChecksumKind(s[0] - '0'), nil
	}
	switch s {
	case "none", "":
		return ChecksumNone, nil
	case "xor8", "xor":
		return ChecksumXOR8, nil
	case "checksum16", "sum16":
		return ChecksumSum16, nil
	case "lrc16", "lrc":
		return ChecksumLRC16, nil
	case "fletcher16", "fletcher":
		return ChecksumFletcher16, nil
	case "crc16", "crc16modbus", "modbus":
		return ChecksumCRC16Modbus, nil
	}
	return ChecksumNone, fmt.Errorf("%w: %q", ErrChecksumKind, s)
}

// Compute calculates the check value of data with the given algorithm.
// ChecksumNone (and any unknown kind) yields 0.
//
// For ChecksumCRC16Modbus the CRC register is returned as is. Modbus RTU puts
// the low byte on the wire first, so the value reads byte-swapped compared to
// a big-endian CRC.
func Compute(kind ChecksumKind, data []byte) uint16 {
	switch kind {
	case ChecksumXOR8:
		return xor8(data)
	case ChecksumSum16:
		return sum16(data)
	case ChecksumLRC16:
		return lrc16(data)
	case ChecksumFletcher16:
		return fletcher16(data)
	case ChecksumCRC16Modbus:
		return crc16.Checksum(data, crcModbusTable)
	default:
		return 0
	}
}

func xor8(data []byte) uint16 {
	var x uint8
	for _, b := range data {
		x ^= b
	}
	return uint16(x)
}

func sum16(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// lrc16 is the two's complement of the 16 bit byte sum.
func lrc16(data []byte) uint16 {
	return ^sum16(data) + 1
}

func fletcher16(data []byte) uint16 {
	var c0, c1 uint32
	// 5802 bytes is the largest block that cannot overflow c1 before reducing.
	for len(data) > 0 {
		block := data
		if len(block) > 5802 {
			block = block[:5802]
		}
		data = data[len(block):]
		for _, b := range block {
			c0 += uint32(b)
			c1 += c0
		}
		c0 %= 255
		c1 %= 255
	}
	return uint16(c1<<8 | c0)
}
