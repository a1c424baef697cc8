package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/chatmirror/internal/chat"
)

var (
	// ErrUnknownType is returned for an envelope type outside the closed set.
	ErrUnknownType = errors.New("unknown event type")
	// ErrInvalidPayload is wrapped by every payload validation error.
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Envelope is the wire form of a push event.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type messageRef struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
	Emoji          string `json:"emoji"`
}

type readPayload struct {
	ReadReceipt
	Receipts []ReadReceipt `json:"receipts"`
}

// Decode parses a JSON envelope into a validated push event.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env.Event()
}

// Event converts the envelope into a validated push event.
func (env Envelope) Event() (Event, error) {
	payload := env.Payload
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}

	switch env.Type {
	case TypeMessageNew:
		var m chat.Message
		if err := unmarshal(env.Type, payload, &m); err != nil {
			return nil, err
		}
		if _, err := chat.ResolveConversationID(m); err != nil {
			return nil, invalid(env.Type, err.Error())
		}
		return MessageReceived{Message: m}, nil

	case TypeMessageUpdated:
		var m chat.Message
		if err := unmarshal(env.Type, payload, &m); err != nil {
			return nil, err
		}
		if m.ID == "" {
			return nil, invalid(env.Type, "missing id")
		}
		return MessageUpdated{ConversationID: m.ConversationID, MessageID: m.ID, Content: m.Content}, nil

	case TypeMessageDeleted:
		var ref messageRef
		if err := unmarshal(env.Type, payload, &ref); err != nil {
			return nil, err
		}
		if ref.MessageID == "" {
			return nil, invalid(env.Type, "missing messageId")
		}
		return MessageDeleted{ConversationID: ref.ConversationID, MessageID: ref.MessageID}, nil

	case TypeMessageRead:
		var p readPayload
		if err := unmarshal(env.Type, payload, &p); err != nil {
			return nil, err
		}
		receipts := p.Receipts
		if receipts == nil {
			receipts = []ReadReceipt{p.ReadReceipt}
		}
		if len(receipts) == 0 {
			return nil, invalid(env.Type, "no receipts")
		}
		for _, r := range receipts {
			if r.MessageID == "" || r.UserID == "" {
				return nil, invalid(env.Type, "receipt requires messageId and userId")
			}
		}
		return MessagesRead{Receipts: receipts}, nil

	case TypeTyping:
		var e chat.TypingEvent
		if err := unmarshal(env.Type, payload, &e); err != nil {
			return nil, err
		}
		if err := e.Validate(); err != nil {
			return nil, invalid(env.Type, err.Error())
		}
		return TypingChanged{Typing: e}, nil

	case TypeMessageLike, TypeMessageDislike:
		ref, err := engagementRef(env.Type, payload)
		if err != nil {
			return nil, err
		}
		return LikeToggled{
			ConversationID: ref.ConversationID,
			MessageID:      ref.MessageID,
			UserID:         ref.UserID,
			Dislike:        env.Type == TypeMessageDislike,
		}, nil

	case TypeReactionAdded, TypeReactionRemoved:
		ref, err := engagementRef(env.Type, payload)
		if err != nil {
			return nil, err
		}
		removed := env.Type == TypeReactionRemoved
		if !removed && ref.Emoji == "" {
			return nil, invalid(env.Type, "missing emoji")
		}
		return ReactionChanged{
			ConversationID: ref.ConversationID,
			MessageID:      ref.MessageID,
			UserID:         ref.UserID,
			Emoji:          ref.Emoji,
			Removed:        removed,
		}, nil

	case TypeUserCurrent, TypeSessionStarted:
		var p struct {
			UserID string `json:"userId"`
		}
		if err := unmarshal(env.Type, payload, &p); err != nil {
			return nil, err
		}
		if env.Type == TypeSessionStarted {
			if p.UserID == "" {
				return nil, invalid(env.Type, "missing userId")
			}
			return SessionStarted{UserID: p.UserID}, nil
		}
		return CurrentUserSet{UserID: p.UserID}, nil

	case TypeUnreadSnapshot:
		var p struct {
			ConversationIDs []string `json:"conversationIds"`
		}
		if err := unmarshal(env.Type, payload, &p); err != nil {
			return nil, err
		}
		if p.ConversationIDs == nil {
			p.ConversationIDs = []string{}
		}
		return UnreadSeeded{ConversationIDs: p.ConversationIDs}, nil

	case TypeSessionEnded:
		return SessionEnded{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func engagementRef(typ string, payload json.RawMessage) (messageRef, error) {
	var ref messageRef
	if err := unmarshal(typ, payload, &ref); err != nil {
		return ref, err
	}
	if ref.MessageID == "" || ref.UserID == "" {
		return ref, invalid(typ, "requires messageId and userId")
	}
	return ref, nil
}

func unmarshal(typ string, payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, typ, err)
	}
	return nil
}

func invalid(typ, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, typ, reason)
}
