package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matheus3301/chatmirror/internal/api"
	"github.com/matheus3301/chatmirror/internal/client"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func init() {
	rootCmd.AddCommand(stateCmd, statusCmd, watchCmd, healthCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current chat state as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			s, err := c.State.GetState(ctx)
			if err != nil {
				return err
			}
			return printMessage(cmd, s)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon and push connection status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			s, err := c.State.GetStatus(ctx)
			if err != nil {
				return err
			}
			f := s.GetFields()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session: %s\n", f["session"].GetStringValue())
			fmt.Fprintf(out, "Push:    %s (since %s)\n", f["push"].GetStringValue(), f["pushSince"].GetStringValue())
			fmt.Fprintf(out, "Uptime:  %.0fms\n", f["uptimeMs"].GetNumberValue())
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream state changes until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		stream, err := c.State.WatchState(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for {
			m, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			f := m.GetFields()
			fmt.Fprintf(out, "%s %s %s\n", f["at"].GetStringValue(), f["kind"].GetStringValue(), f["conversationId"].GetStringValue())
		}
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the daemon is serving",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: api.ServiceName})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.GetStatus().String())
			if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("daemon not serving")
			}
			return nil
		})
	},
}
