package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/simlab/simnet/internal/proxy"
)

const defaultServer = "http://127.0.0.1:8020"

var (
	serverURL      string
	requestTimeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "simnetctl",
		Short:         "Command-line client for a simnet wrapper server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "base URL of the wrapper server")
	root.PersistentFlags().DurationVar(&requestTimeout, "timeout", 30*time.Second, "per-request timeout")

	root.AddCommand(
		newEchoCmd(),
		newEnginesCmd(),
		newSubmitCmd(),
		newStateCmd(),
		newFailureCmd(),
		newFetchCmd(),
		newCancelCmd(),
		newWatchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCtlClient() *proxy.Client {
	return proxy.NewClient(serverURL)
}

func ctlContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newEchoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "echo <message>",
		Short: "Round-trip a message through the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := ctlContext()
			defer cancel()

			reply, err := newCtlClient().Echo(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}
}

func newEnginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the engine types registered on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := ctlContext()
			defer cancel()

			engines, err := newCtlClient().Engines(ctx)
			if err != nil {
				return err
			}
			for _, name := range engines {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <wrapper-id>",
		Short: "Show the lifecycle state of a wrapper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := ctlContext()
			defer cancel()

			state, err := newCtlClient().State(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(state)
			return nil
		},
	}
}

func newFailureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "failure <wrapper-id>",
		Short: "Show the fault message of a failed wrapper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := ctlContext()
			defer cancel()

			reason, err := newCtlClient().FailureReason(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(reason)
			return nil
		},
	}
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <wrapper-id>",
		Short: "Cancel a running wrapper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := ctlContext()
			defer cancel()

			state, err := newCtlClient().Cancel(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(state)
			return nil
		},
	}
}
