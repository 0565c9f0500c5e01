package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/xvzf/amasp/internal/link"
)

func init() {
	cmdError.Flags().Bool("slave", false, "send as slave instead of master")
	rootCmd.AddCommand(cmdError)
}

var cmdError = &cobra.Command{
	Use:     "error <device-id> <code>",
	Example: "amaspctl error 0xABC 0x7F",
	Short:   "Report a communication error for a device",
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
		asSlave, err := cmd.Flags().GetBool("slave")
		if err != nil {
			return err
		}

		role := link.RoleMaster
		if asSlave {
			role = link.RoleSlave
		}
		l, stop, err := startLink(ctx, role)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, stop())
		}()
		return l.SendError(ctx, deviceID, code)
	},
}
