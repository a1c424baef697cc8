package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/chatmirror/internal/chat"
)

// ErrInvalidOperation is wrapped by every operation validation error.
var ErrInvalidOperation = errors.New("invalid operation")

// Operation describes one remote call. Which fields matter depends on Kind.
type Operation struct {
	ID             string      `json:"id,omitempty"`
	Kind           chat.OpKind `json:"kind"`
	ConversationID string      `json:"conversationId,omitempty"`
	MessageID      string      `json:"messageId,omitempty"`
	UserID         string      `json:"userId,omitempty"`
	RecipientID    string      `json:"recipientId,omitempty"`
	GroupID        string      `json:"groupId,omitempty"`
	Content        string      `json:"content,omitempty"`
	Emoji          string      `json:"emoji,omitempty"`
	UserIDs        []string    `json:"userIds,omitempty"`
	Skip           int         `json:"skip,omitempty"`
	Limit          int         `json:"limit,omitempty"`
}

// Validate checks that the fields Kind needs are present.
func (op Operation) Validate() error {
	if !op.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, op.Kind)
	}
	need := func(name, v string) error {
		if v == "" {
			return fmt.Errorf("%w: %s requires %s", ErrInvalidOperation, op.Kind, name)
		}
		return nil
	}

	switch op.Kind {
	case chat.OpFetchUserConversations:
		return need("userId", op.UserID)
	case chat.OpSendMessage:
		return errors.Join(need("conversationId", op.ConversationID), need("userId", op.UserID), need("content", op.Content))
	case chat.OpUpdateMessage:
		return errors.Join(need("conversationId", op.ConversationID), need("messageId", op.MessageID), need("content", op.Content))
	case chat.OpDeleteMessage:
		return errors.Join(need("conversationId", op.ConversationID), need("messageId", op.MessageID))
	case chat.OpInviteToGroup:
		if len(op.UserIDs) == 0 {
			return fmt.Errorf("%w: %s requires userIds", ErrInvalidOperation, op.Kind)
		}
		return need("conversationId", op.ConversationID)
	case chat.OpAddReaction:
		return errors.Join(need("conversationId", op.ConversationID), need("messageId", op.MessageID),
			need("userId", op.UserID), need("emoji", op.Emoji))
	case chat.OpRemoveReaction, chat.OpMarkUnread:
		return errors.Join(need("conversationId", op.ConversationID), need("messageId", op.MessageID), need("userId", op.UserID))
	default:
		if op.Skip < 0 || op.Limit < 0 {
			return fmt.Errorf("%w: negative pagination", ErrInvalidOperation)
		}
		return need("conversationId", op.ConversationID)
	}
}

// OptimisticMessage is the local placeholder shown while a send is in flight.
// It is only meaningful for send_message with MessageID set to a client id.
func (op Operation) OptimisticMessage() chat.Message {
	return chat.Message{
		ID:             op.MessageID,
		ConversationID: op.ConversationID,
		SenderID:       op.UserID,
		RecipientID:    op.RecipientID,
		GroupID:        op.GroupID,
		Content:        op.Content,
		ReadBy:         []string{},
		Likes:          []string{},
		Dislikes:       []string{},
		Reactions:      map[string]string{},
		Status:         chat.StatusSending,
	}
}

// DecodeOperation parses and validates a JSON operation.
func DecodeOperation(data []byte) (Operation, error) {
	var op Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return Operation{}, fmt.Errorf("decode operation: %w", err)
	}
	if err := op.Validate(); err != nil {
		return Operation{}, err
	}
	return op, nil
}
