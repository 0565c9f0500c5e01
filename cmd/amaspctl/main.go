package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvzf/amasp/internal/link"
	"github.com/xvzf/amasp/pkg/amasp"
	"github.com/xvzf/amasp/pkg/amasp/proto"
	"github.com/xvzf/amasp/pkg/log"
	"github.com/xvzf/amasp/pkg/transport"
	"go.uber.org/zap"
)

var (
	portName string
	baudRate int
	timeout  time.Duration
	checksum string
	verbose  bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "/dev/ttyUSB0", `serial port, "sim" talks to an in-process echo slave`)
	rootCmd.PersistentFlags().IntVar(&baudRate, "baud", amasp.Baudrate, "baud rate of the serial port")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Second, "time to wait for a response")
	rootCmd.PersistentFlags().StringVar(&checksum, "checksum", proto.ChecksumCRC16Modbus.String(), "error check algorithm of sent packets (none, xor8, checksum16, lrc16, fletcher16, crc16)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log link activity")
}

var rootCmd = &cobra.Command{
	Use:          "amaspctl",
	Short:        "amaspctl talks AMASP to the devices on a serial line",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		origCtx := cmd.Context()
		if origCtx == nil {
			origCtx = context.Background()
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}

		// setup signal handlers for SIGINT and SIGTERM
		ctx, cancelCtx := context.WithCancel(log.IntoContext(origCtx, logger))

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			// Wait for context cancel or signal
			select {
			case <-ctx.Done():
			case <-sigs:
				// On signal, cancel context
				cancelCtx()
			}
			signal.Stop(sigs)
		}()

		cmd.SetContext(ctx)
		return nil
	},
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// startLink opens the port and runs a link in the given role until stop is called.
func startLink(ctx context.Context, role link.Role) (l *link.Link, stop func() error, err error) {
	l, err = link.New(ctx, link.Config{
		Port:           portName,
		Serial:         transport.SerialOpts{BaudRate: baudRate},
		Checksum:       checksum,
		Role:           role,
		RequestTimeout: timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- l.Run(runCtx)
	}()

	stop = func() error {
		cancel()
		runErr := <-done
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
		return errors.Join(runErr, l.Close())
	}
	return l, stop, nil
}

// parseUint accepts decimal as well as 0x prefixed hex numbers up to limit.
// Leading zeros are decimal, never octal.
func parseUint(s string, limit uint64) (uint64, error) {
	base := 10
	digits := s
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		digits = s[2:]
	}
	v, err := strconv.ParseUint(digits, base, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	if v > limit {
		return 0, fmt.Errorf("%s exceeds %#x", s, limit)
	}
	return v, nil
}

func parseDeviceID(s string) (uint16, error) {
	v, err := parseUint(s, proto.MaxDeviceID)
	if err != nil {
		return 0, fmt.Errorf("device id: %w", err)
	}
	return uint16(v), nil
}

func parseCode(s string) (uint8, error) {
	v, err := parseUint(s, 0xFF)
	if err != nil {
		return 0, fmt.Errorf("code: %w", err)
	}
	return uint8(v), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
