package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kforslund/ubervisor/internal/server"
)

func newSubscribeCmd() *cobra.Command {
	var ident int

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "stream delta/status/config-diff events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(socketPath, maxMessage)
			if err != nil {
				return err
			}
			defer c.close()

			req := server.SubscribeRequest{Ident: ident}
			body, err := json.Marshal(req)
			if err != nil {
				return err
			}

			first := true
			return c.subscribe(body, func(payload []byte) error {
				if first {
					first = false
					var reply server.Reply
					if err := json.Unmarshal(payload, &reply); err == nil && !reply.OK {
						fmt.Fprintf(os.Stderr, "uberctl: %s\n", reply.Msg)
						os.Exit(1)
					}
					return nil
				}
				fmt.Println(string(payload))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&ident, "ident", 7, "bitmask: 1=delta 2=status 4=config-diff (0 unsubscribes)")
	return cmd
}
