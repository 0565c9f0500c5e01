package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xvzf/amasp/internal/link"
	"github.com/xvzf/amasp/pkg/amasp"
	"github.com/xvzf/amasp/pkg/amasp/proto"
)

func init() {
	cmdListen.Flags().String("device", "", "only print packets of this device id")
	rootCmd.AddCommand(cmdListen)
}

var cmdListen = &cobra.Command{
	Use:   "listen",
	Short: "Print every packet received until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		ctx := cmd.Context()

		filter := func(proto.Packet) bool { return true }
		device, err := cmd.Flags().GetString("device")
		if err != nil {
			return err
		}
		if device != "" {
			deviceID, err := parseDeviceID(device)
			if err != nil {
				return err
			}
			filter = amasp.MatchDevice(deviceID)
		}

		l, stop, err := startLink(ctx, link.RoleMaster)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, stop())
		}()

		sub := l.Subscribe(64, filter)
		defer sub.Unsubscribe()

		out := cmd.OutOrStdout()
		for {
			select {
			case <-ctx.Done():
				return nil
			case pkt := <-sub.C():
				if pkt.Kind.HasPayload() {
					fmt.Fprintf(out, "%s %q\n", pkt, pkt.Payload)
				} else {
					fmt.Fprintln(out, pkt)
				}
			}
		}
	},
}
