package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceID(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		in       string
		expected uint16
		wantErr  bool
	}{
		{"0", 0, false},
		{"42", 42, false},
		{"0x1F", 0x1F, false},
		{"0X1f", 0x1F, false},
		{"010", 10, false},
		{"09", 9, false},
		{"0xfff", 0xFFF, false},
		{"4095", 0xFFF, false},
		{"0x1000", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"0x", 0, true},
		{"0x-1", 0, true},
	}
	for _, tc := range testcases {
		id, err := parseDeviceID(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.expected, id, tc.in)
	}
}

func TestParseCode(t *testing.T) {
	t.Parallel()

	code, err := parseCode("0x7F")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x7F), code)

	code, err = parseCode("255")
	require.NoError(t, err)
	assert.Equal(t, uint8(0xFF), code)

	code, err = parseCode("010")
	require.NoError(t, err)
	assert.Equal(t, uint8(10), code)

	_, err = parseCode("256")
	assert.Error(t, err)
}

// execute runs the root command against the simulated port.
func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--port", "sim", "--timeout", "2s"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRequestCommand(t *testing.T) {
	out, err := execute(t, "request", "0x01A", "read temp")
	require.NoError(t, err)
	assert.Equal(t, "read temp\n", out)
}

func TestRequestCommandHex(t *testing.T) {
	out, err := execute(t, "request", "--hex", "7", "00ff10")
	require.NoError(t, err)
	assert.Equal(t, "00ff10\n", out)

	_, err = execute(t, "request", "--hex", "7", "zz")
	assert.Error(t, err)
	require.NoError(t, cmdRequest.Flags().Set("hex", "false"))
}

func TestErrorCommand(t *testing.T) {
	_, err := execute(t, "error", "0xABC", "0x7F")
	assert.NoError(t, err)
}

func TestInterruptCommandNeedsSerialPort(t *testing.T) {
	_, err := execute(t, "interrupt", "0x01A", "5")
	assert.ErrorContains(t, err, "simulated port")
}

func TestInvalidArguments(t *testing.T) {
	_, err := execute(t, "request", "0x1000", "payload")
	assert.ErrorContains(t, err, "device id")

	_, err = execute(t, "error", "1")
	assert.Error(t, err)
}
