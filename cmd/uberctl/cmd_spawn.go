package main

import (
	"github.com/spf13/cobra"

	"github.com/kforslund/ubervisor/internal/server"
	"github.com/kforslund/ubervisor/internal/wire"
)

func newSpawnCmd() *cobra.Command {
	var (
		args       []string
		dir        string
		stdout     string
		stderr     string
		instances  int
		killsig    int
		uid        int
		gid        int
		heartbeat  string
		fatalCB    string
		age        int
		stdoutPipe string
	)

	cmd := &cobra.Command{
		Use:   "spawn <name>",
		Short: "register a new group and fill its instance slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			req := server.SpawnRequest{
				Name:      posArgs[0],
				Args:      args,
				Dir:       dir,
				Instances: instances,
				KillSig:   killsig,
				UID:       uid,
				GID:       gid,
				Age:       age,
			}
			if cmd.Flags().Changed("stdout") {
				req.Stdout = &stdout
			}
			if cmd.Flags().Changed("stderr") {
				req.Stderr = &stderr
			}
			if cmd.Flags().Changed("heartbeat") {
				req.Heartbeat = &heartbeat
			}
			if cmd.Flags().Changed("fatal-cb") {
				req.FatalCB = &fatalCB
			}
			if cmd.Flags().Changed("stdout-pipe") {
				req.StdoutPipe = &stdoutPipe
			}

			var reply server.Reply
			if err := roundTrip(wire.TagSpawn, req, &reply); err != nil {
				return err
			}
			printReply(reply)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&args, "args", nil, "command and arguments to run (repeatable, comma-separated)")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory")
	cmd.Flags().StringVar(&stdout, "stdout", "", "stdout path template (%(NUM) substitutes the instance index)")
	cmd.Flags().StringVar(&stderr, "stderr", "", "stderr path template")
	cmd.Flags().IntVar(&instances, "instances", 1, "number of instance slots to keep filled")
	cmd.Flags().IntVar(&killsig, "killsig", 0, "signal number sent to stop an instance (default SIGTERM)")
	cmd.Flags().IntVar(&uid, "uid", 0, "uid to run the child as (0 means unset)")
	cmd.Flags().IntVar(&gid, "gid", 0, "gid to run the child as (0 means unset)")
	cmd.Flags().StringVar(&heartbeat, "heartbeat", "", "command run periodically to check liveness (observational only)")
	cmd.Flags().StringVar(&fatalCB, "fatal-cb", "", "command run once when the group trips BROKEN")
	cmd.Flags().IntVar(&age, "age", 0, "seconds after which a live instance is killed and restarted (0 disables)")
	cmd.Flags().StringVar(&stdoutPipe, "stdout-pipe", "", "command whose stdin is fed this group's stdout file")

	return cmd
}
