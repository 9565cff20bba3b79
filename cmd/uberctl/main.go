// uberctl is a reference client for ubervisord: one cobra subcommand per
// RPC tag (spec §4), encoding/decoding frames through the same
// internal/wire package the daemon uses. It carries no supervision
// policy of its own — every command is a single request/reply (or, for
// "subscribe", a stream of events) and nothing more.
//
// It does not implement the SSH stdio tunnel transport; uberctl always
// dials the Unix domain socket directly.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kforslund/ubervisor/internal/server"
	"github.com/kforslund/ubervisor/internal/wire"
)

var (
	socketPath string
	maxMessage int
)

func main() {
	root := &cobra.Command{
		Use:   "uberctl",
		Short: "reference client for ubervisord",
	}

	home, _ := os.UserHomeDir()
	defaultSocket := filepath.Join(home, ".uber", "socket")
	if env := os.Getenv("UBERVISOR_SOCKET"); env != "" {
		defaultSocket = env
	}

	root.PersistentFlags().StringVar(&socketPath, "socket", defaultSocket, "ubervisord Unix domain socket (env: UBERVISOR_SOCKET)")
	root.PersistentFlags().IntVar(&maxMessage, "max-message-bytes", 16<<20, "largest reassembled frame this client will accept")

	root.AddCommand(
		newSpawnCmd(),
		newDeleteCmd(),
		newKillCmd(),
		newGetConfigCmd(),
		newListCmd(),
		newUpdateCmd(),
		newPIDsCmd(),
		newReadCmd(),
		newSubscribeCmd(),
		newDumpCmd(),
		newExitCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// roundTrip dials, performs one request/reply, and decodes the reply into
// out before closing the connection.
func roundTrip(tag string, body, out interface{}) error {
	c, err := dial(socketPath, maxMessage)
	if err != nil {
		return err
	}
	defer c.close()

	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", tag, err)
	}
	replyBody, err := c.call(tag, reqBody)
	if err != nil {
		return err
	}
	return json.Unmarshal(replyBody, out)
}

func printReply(r server.Reply) {
	if r.OK {
		fmt.Println("ok")
		return
	}
	fmt.Fprintf(os.Stderr, "uberctl: %s\n", r.Msg)
	os.Exit(1)
}

func printJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "uberctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}

func newExitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exit",
		Short: "ask ubervisord to shut down gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			var reply server.Reply
			if err := roundTrip(wire.TagExit, struct{}{}, &reply); err != nil {
				return err
			}
			printReply(reply)
			return nil
		},
	}
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "write every group's configuration to the server's dump path",
		RunE: func(cmd *cobra.Command, args []string) error {
			var reply server.Reply
			if err := roundTrip(wire.TagDump, struct{}{}, &reply); err != nil {
				return err
			}
			printReply(reply)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list every registered group name",
		RunE: func(cmd *cobra.Command, args []string) error {
			var reply server.ListReply
			if err := roundTrip(wire.TagList, struct{}{}, &reply); err != nil {
				return err
			}
			if !reply.OK {
				printReply(reply.Reply)
				return nil
			}
			for _, name := range reply.Names {
				fmt.Println(name)
			}
			return nil
		},
	}
}
