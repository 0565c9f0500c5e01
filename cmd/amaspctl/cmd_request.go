package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvzf/amasp/internal/link"
)

func init() {
	cmdRequest.Flags().Bool("hex", false, "payload and response are hex encoded")
	rootCmd.AddCommand(cmdRequest)
}

var cmdRequest = &cobra.Command{
	Use:     "request <device-id> <payload>",
	Example: "amaspctl request 0x01A 'read temp'",
	Short:   "Send a request to a device and print its response",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		deviceID, err := parseDeviceID(args[0])
		if err != nil {
			return err
		}
		asHex, err := cmd.Flags().GetBool("hex")
		if err != nil {
			return err
		}
		payload := []byte(args[1])
		if asHex {
			if payload, err = hex.DecodeString(args[1]); err != nil {
				return fmt.Errorf("payload: %w", err)
			}
		}

		l, stop, err := startLink(ctx, link.RoleMaster)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, stop())
		}()

		resp, err := l.Request(ctx, deviceID, payload)
		if err != nil {
			return err
		}
		if asHex {
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(resp.Payload))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), string(resp.Payload))
		}
		return nil
	},
}
