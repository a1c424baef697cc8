package chat

import (
	"time"

	"github.com/google/uuid"
)

const (
	privatePrefix = "private:"
	groupPrefix   = "group:"
)

// PrivateConversationID returns the canonical id of the two-party
// conversation between a and b. The result does not depend on argument order.
func PrivateConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return privatePrefix + a + ":" + b
}

// GroupConversationID returns the canonical id of a group's conversation.
func GroupConversationID(groupID string) string {
	return groupPrefix + groupID
}

// NewMessageID returns a time-ordered id for a message that arrived without one.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ResolveConversationID returns the conversation a message belongs to: its
// explicit conversation id, else the canonical private id of its
// sender/recipient pair, else the canonical id of its group.
func ResolveConversationID(m Message) (string, error) {
	switch {
	case m.ConversationID != "":
		return m.ConversationID, nil
	case m.SenderID != "" && m.RecipientID != "":
		return PrivateConversationID(m.SenderID, m.RecipientID), nil
	case m.GroupID != "":
		return GroupConversationID(m.GroupID), nil
	}
	return "", ErrUnroutableMessage
}

// Normalize fills in the conversation id, id and timestamp of a pushed
// message. It returns ErrUnroutableMessage when no conversation can be derived.
func Normalize(m Message, now time.Time) (Message, error) {
	convID, err := ResolveConversationID(m)
	if err != nil {
		return Message{}, err
	}
	m = m.Clone()
	m.ConversationID = convID
	if m.ID == "" {
		m.ID = NewMessageID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	return m, nil
}
