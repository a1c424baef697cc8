// Package client dials a running daemon.
package client

import (
	"fmt"

	"github.com/matheus3301/chatmirror/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn   *grpc.ClientConn
	State  *api.StateClient
	Health healthpb.HealthClient
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:   conn,
		State:  api.NewStateClient(conn),
		Health: healthpb.NewHealthClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
