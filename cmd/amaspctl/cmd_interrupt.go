package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvzf/amasp/internal/link"
)

func init() {
	rootCmd.AddCommand(cmdInterrupt)
	rootCmd.AddCommand(cmdWaitInterrupt)
}

var (
	cmdInterrupt = &cobra.Command{
		Use:     "interrupt <device-id> <code>",
		Example: "amaspctl interrupt 0x01A 0x05",
		Short:   "Raise an interrupt on behalf of a device (slave role)",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			deviceID, err := parseDeviceID(args[0])
			if err != nil {
				return err
			}
			code, err := parseCode(args[1])
			if err != nil {
				return err
			}

			l, stop, err := startLink(ctx, link.RoleSlave)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, stop())
			}()
			return l.Interrupt(ctx, deviceID, code)
		},
	}

	cmdWaitInterrupt = &cobra.Command{
		Use:     "wait-interrupt <device-id>",
		Example: "amaspctl wait-interrupt 0x01A",
		Short:   "Block until a device raises an interrupt and print its code",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			deviceID, err := parseDeviceID(args[0])
			if err != nil {
				return err
			}

			l, stop, err := startLink(ctx, link.RoleMaster)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, stop())
			}()

			code, err := l.WaitForInterrupt(ctx, deviceID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "0x%02X\n", code)
			return nil
		},
	}
)
