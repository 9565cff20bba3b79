package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kforslund/ubervisor/internal/server"
	"github.com/kforslund/ubervisor/internal/wire"
)

func newKillCmd() *cobra.Command {
	var (
		index   int
		killsig int
	)

	cmd := &cobra.Command{
		Use:   "kill <name>",
		Short: "signal a group's live instances (all by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := server.KillRequest{Name: args[0], KillSig: killsig}
			if cmd.Flags().Changed("index") {
				req.Index = &index
			}

			var reply server.KillReply
			if err := roundTrip(wire.TagKill, req, &reply); err != nil {
				return err
			}
			if !reply.OK {
				printReply(reply.Reply)
				return nil
			}
			fmt.Println("signaled pids:", reply.PIDs)
			return nil
		},
	}

	cmd.Flags().IntVar(&index, "index", -1, "instance index to signal (omit to signal every live instance)")
	cmd.Flags().IntVar(&killsig, "killsig", 0, "signal number to send (default: the group's configured kill signal)")
	return cmd
}
