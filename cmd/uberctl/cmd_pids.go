package main

import (
	"github.com/spf13/cobra"

	"github.com/kforslund/ubervisor/internal/server"
	"github.com/kforslund/ubervisor/internal/wire"
)

func newPIDsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pids <name>",
		Short: "list a group's currently live pids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := server.PIDsRequest{Name: args[0]}
			var reply server.PIDsReply
			if err := roundTrip(wire.TagPids, req, &reply); err != nil {
				return err
			}
			if !reply.OK {
				printReply(reply.Reply)
				return nil
			}
			printJSON(reply.PIDs)
			return nil
		},
	}
}
