package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matheus3301/chatmirror/internal/chat"
	"github.com/matheus3301/chatmirror/internal/client"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	fetchSkip  int
	fetchLimit int

	sendTo    string
	sendGroup string
	sendConv  string
)

func init() {
	fetchCmd.Flags().IntVar(&fetchSkip, "skip", 0, "messages to skip")
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0, "maximum messages to fetch (0 = server default)")

	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient user id for a private message")
	sendCmd.Flags().StringVar(&sendGroup, "group", "", "group id for a group message")
	sendCmd.Flags().StringVar(&sendConv, "conversation", "", "explicit conversation id")

	rootCmd.AddCommand(pushCmd, fetchCmd, sendCmd, opCmd)
}

var pushCmd = &cobra.Command{
	Use:   "push <file.json|->",
	Short: "Inject push events from a JSON file",
	Long:  "Reads one envelope {\"type\": ..., \"payload\": ...} or an array of envelopes and delivers them in order.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		envelopes, err := splitEnvelopes(data)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			for i, raw := range envelopes {
				env := &structpb.Struct{}
				if err := protojson.Unmarshal(raw, env); err != nil {
					return fmt.Errorf("envelope %d: %w", i, err)
				}
				if err := c.State.PushEvent(ctx, env); err != nil {
					return fmt.Errorf("envelope %d: %w", i, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %d event(s)\n", len(envelopes))
			return nil
		})
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <conversationId>",
	Short: "Fetch a conversation from the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, map[string]any{
			"kind":           string(chat.OpFetchConversation),
			"conversationId": args[0],
			"skip":           fetchSkip,
			"limit":          fetchLimit,
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <content>",
	Short: "Send a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendTo == "" && sendGroup == "" && sendConv == "" {
			return fmt.Errorf("one of --to, --group or --conversation is required")
		}
		return runOperation(cmd, map[string]any{
			"kind":           string(chat.OpSendMessage),
			"recipientId":    sendTo,
			"groupId":        sendGroup,
			"conversationId": sendConv,
			"content":        args[0],
		})
	},
}

var opCmd = &cobra.Command{
	Use:   "op <file.json|->",
	Short: "Run an arbitrary operation described in JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		var op map[string]any
		if err := json.Unmarshal(data, &op); err != nil {
			return fmt.Errorf("decode operation: %w", err)
		}
		return runOperation(cmd, op)
	},
}

func runOperation(cmd *cobra.Command, fields map[string]any) error {
	for k, v := range fields {
		switch v := v.(type) {
		case string:
			if v == "" {
				delete(fields, k)
			}
		case int:
			if v == 0 {
				delete(fields, k)
			} else {
				fields[k] = float64(v)
			}
		}
	}
	op, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("encode operation: %w", err)
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		resp, err := c.State.RunOperation(ctx, op)
		if err != nil {
			return err
		}
		return printMessage(cmd, resp)
	})
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

// splitEnvelopes accepts a single JSON object or an array of them.
func splitEnvelopes(data []byte) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var one json.RawMessage
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return []json.RawMessage{one}, nil
}
