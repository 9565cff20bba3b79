package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kforslund/ubervisor/internal/server"
	"github.com/kforslund/ubervisor/internal/wire"
)

var statusNames = map[string]int{
	"running": 1,
	"stopped": 2,
	"broken":  3,
}

func newUpdateCmd() *cobra.Command {
	var (
		args       []string
		dir        string
		stdout     string
		stderr     string
		instances  int
		status     string
		killsig    int
		heartbeat  string
		fatalCB    string
		age        int
		stdoutPipe string
	)

	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "patch a group's configuration; unset flags leave the current value unchanged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			req := server.UpdateRequest{Name: posArgs[0]}
			if cmd.Flags().Changed("args") {
				req.Args = args
			}
			if cmd.Flags().Changed("dir") {
				req.Dir = &dir
			}
			if cmd.Flags().Changed("stdout") {
				req.Stdout = &stdout
			}
			if cmd.Flags().Changed("stderr") {
				req.Stderr = &stderr
			}
			if cmd.Flags().Changed("instances") {
				req.Instances = &instances
			}
			if cmd.Flags().Changed("status") {
				code, ok := statusNames[status]
				if !ok {
					return fmt.Errorf("unknown status %q (want running, stopped, or broken)", status)
				}
				req.Status = &code
			}
			if cmd.Flags().Changed("killsig") {
				req.KillSig = &killsig
			}
			if cmd.Flags().Changed("heartbeat") {
				req.Heartbeat = &heartbeat
			}
			if cmd.Flags().Changed("fatal-cb") {
				req.FatalCB = &fatalCB
			}
			if cmd.Flags().Changed("age") {
				req.Age = &age
			}
			if cmd.Flags().Changed("stdout-pipe") {
				req.StdoutPipe = &stdoutPipe
			}

			var reply server.Reply
			if err := roundTrip(wire.TagUpdate, req, &reply); err != nil {
				return err
			}
			printReply(reply)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&args, "args", nil, "replace the command and arguments")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory")
	cmd.Flags().StringVar(&stdout, "stdout", "", "stdout path template")
	cmd.Flags().StringVar(&stderr, "stderr", "", "stderr path template")
	cmd.Flags().IntVar(&instances, "instances", 0, "number of instance slots to keep filled")
	cmd.Flags().StringVar(&status, "status", "", "running, stopped, or broken")
	cmd.Flags().IntVar(&killsig, "killsig", 0, "signal number sent to stop an instance")
	cmd.Flags().StringVar(&heartbeat, "heartbeat", "", "command run periodically to check liveness")
	cmd.Flags().StringVar(&fatalCB, "fatal-cb", "", "command run once when the group trips BROKEN")
	cmd.Flags().IntVar(&age, "age", 0, "seconds after which a live instance is killed and restarted")
	cmd.Flags().StringVar(&stdoutPipe, "stdout-pipe", "", "command whose stdin is fed this group's stdout file")

	return cmd
}
