package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvzf/amasp/pkg/transport"
)

func init() {
	rootCmd.AddCommand(cmdPorts)
}

var cmdPorts = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports of this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ports, err := transport.ListSerialPorts()
		if err != nil {
			return err
		}
		for _, port := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), port)
		}
		return nil
	},
}
