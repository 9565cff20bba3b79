package main

import (
	"github.com/spf13/cobra"

	"github.com/kforslund/ubervisor/internal/server"
	"github.com/kforslund/ubervisor/internal/wire"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "remove a group, killing any live instances first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reply server.KillReply
			req := server.DeleteRequest{Name: args[0]}
			if err := roundTrip(wire.TagDelete, req, &reply); err != nil {
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
