package main

import (
	"github.com/spf13/cobra"

	"github.com/kforslund/ubervisor/internal/server"
	"github.com/kforslund/ubervisor/internal/wire"
)

func newGetConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "getconfig <name>",
		Short: "print a group's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := server.GetConfigRequest{Name: args[0]}
			var reply server.GetConfigReply
			if err := roundTrip(wire.TagGetC, req, &reply); err != nil {
				return err
			}
			if !reply.OK {
				printReply(reply.Reply)
				return nil
			}
			printJSON(reply.Group)
			return nil
		},
	}
}
