package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/simlab/simnet/internal/notify"
)

// newWatchCmd streams lifecycle events from the notification socket and
// prints one JSON line per event. It runs until interrupted or the server
// closes the connection.
func newWatchCmd() *cobra.Command {
	var notifyAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream wrapper lifecycle events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := net.Dial("tcp", notifyAddr)
			if err != nil {
				return fmt.Errorf("connect to notification socket: %w", err)
			}
			defer conn.Close()

			go func() {
				<-cmd.Context().Done()
				conn.Close()
			}()

			for {
				topic, payload, err := notify.ReadFrame(conn)
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return fmt.Errorf("notification stream: %w", err)
				}
				if err := printJSON(map[string]any{"topic": topic, "payload": payload}); err != nil {
					return err
				}
			}
		},
	}

	cmd.Flags().StringVar(&notifyAddr, "notify-addr", "127.0.0.1:8021", "address of the notification socket")
	return cmd
}
