package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kforslund/ubervisor/internal/server"
	"github.com/kforslund/ubervisor/internal/wire"
)

func newReadCmd() *cobra.Command {
	var (
		index  int
		stream string
		offset int64
		length int
	)

	cmd := &cobra.Command{
		Use:   "read <name>",
		Short: "print a bounded tail of an instance's stdout/stderr file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := server.ReadRequest{
				Name:   args[0],
				Index:  index,
				Stream: stream,
				Offset: offset,
				Length: length,
			}
			var reply server.ReadReply
			if err := roundTrip(wire.TagRead, req, &reply); err != nil {
				return err
			}
			if !reply.OK {
				printReply(reply.Reply)
				return nil
			}
			os.Stdout.Write(reply.Log)
			fmt.Fprintf(os.Stderr, "\n(%d bytes, file size %d)\n", len(reply.Log), reply.FSize)
			return nil
		},
	}

	cmd.Flags().IntVar(&index, "index", 0, "instance index")
	cmd.Flags().StringVar(&stream, "stream", "stdout", "stdout or stderr")
	cmd.Flags().Int64Var(&offset, "offset", 0, "byte offset to start reading from")
	cmd.Flags().IntVar(&length, "length", 4096, "maximum bytes to read")
	return cmd
}
