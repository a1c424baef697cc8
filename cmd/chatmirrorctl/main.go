package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/chatmirror/internal/client"
	"github.com/matheus3301/chatmirror/internal/session"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var (
	sessionFlag string
	timeoutFlag time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "chatmirrorctl",
	Short:         "Inspect and drive a running chatmirrord",
	Long:          "Command-line client for the chatmirror daemon.\nTalks to the daemon of the selected session over its unix socket.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 10*time.Second, "timeout for unary calls")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// connect dials the daemon for the selected session.
func connect() (*client.Client, error) {
	name := session.Resolve(sessionFlag)
	if err := session.ValidateName(name); err != nil {
		return nil, err
	}
	c, err := client.New(session.SocketPath(name))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	return c, nil
}

// withClient runs fn with a connected client and a call timeout.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()
	return fn(ctx, c)
}

func printMessage(cmd *cobra.Command, m proto.Message) error {
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
