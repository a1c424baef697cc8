// Package chat holds the conversation and message types mirrored by the
// client, plus the identity rules that let locally-originated and
// server-originated events agree on which conversation they belong to.
package chat

import (
	"encoding/json"
	"slices"
	"time"
)

// DeliveryStatus describes a locally-originated message that the server has
// not confirmed yet. Server-confirmed messages carry the zero value.
type DeliveryStatus string

const (
	StatusSending DeliveryStatus = "sending"
	StatusFailed  DeliveryStatus = "failed"
)

// Message is a single chat message.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversationId"`
	SenderID       string            `json:"senderId"`
	RecipientID    string            `json:"recipientId,omitempty"`
	GroupID        string            `json:"groupId,omitempty"`
	Content        string            `json:"content"`
	Timestamp      time.Time         `json:"timestamp"`
	ReadBy         []string          `json:"readBy"`
	Likes          []string          `json:"likes"`
	Dislikes       []string          `json:"dislikes"`
	Reactions      map[string]string `json:"reactions"`
	Edited         bool              `json:"edited,omitempty"`
	Status         DeliveryStatus    `json:"status,omitempty"`
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	m.ReadBy = slices.Clone(m.ReadBy)
	m.Likes = slices.Clone(m.Likes)
	m.Dislikes = slices.Clone(m.Dislikes)
	if m.Reactions != nil {
		r := make(map[string]string, len(m.Reactions))
		for u, e := range m.Reactions {
			r[u] = e
		}
		m.Reactions = r
	}
	return m
}

// Conversation is the directory entry for a thread: membership metadata and
// the message window last delivered alongside it.
type Conversation struct {
	ID           string    `json:"conversationId"`
	Participants []string  `json:"participants"`
	InvitedUsers []string  `json:"invitedUsers"`
	IsPrivate    bool      `json:"isPrivate"`
	GroupID      string    `json:"groupId,omitempty"`
	Messages     []Message `json:"messages"`

	// privacySet records that a decoded payload carried isPrivate.
	privacySet bool
}

// UnmarshalJSON decodes a conversation and remembers whether isPrivate was
// present, so a partial list entry does not clear a known flag on merge.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type plain Conversation
	var aux struct {
		plain
		IsPrivate *bool `json:"isPrivate"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Conversation(aux.plain)
	if aux.IsPrivate != nil {
		c.IsPrivate = *aux.IsPrivate
		c.privacySet = true
	}
	return nil
}

// HasPrivacy reports whether c states its privacy flag: either it is set, or
// a decoded payload carried it explicitly.
func (c Conversation) HasPrivacy() bool {
	return c.IsPrivate || c.privacySet
}

// Clone returns a deep copy of c.
func (c Conversation) Clone() Conversation {
	c.Participants = slices.Clone(c.Participants)
	c.InvitedUsers = slices.Clone(c.InvitedUsers)
	if c.Messages != nil {
		msgs := make([]Message, len(c.Messages))
		for i, m := range c.Messages {
			msgs[i] = m.Clone()
		}
		c.Messages = msgs
	}
	return c
}

// Shell returns an empty conversation carrying only its identity. Fetching a
// conversation the server does not know yet yields a shell instead of an error.
func Shell(id string) Conversation {
	return Conversation{ID: id, Participants: []string{}, InvitedUsers: []string{}, Messages: []Message{}}
}

// TypingEvent reports that a user started or stopped typing to either a
// single recipient or a group, never both.
type TypingEvent struct {
	UserID      string    `json:"userId"`
	IsTyping    bool      `json:"isTyping"`
	RecipientID string    `json:"recipientId,omitempty"`
	GroupID     string    `json:"groupId,omitempty"`
	Since       time.Time `json:"since,omitempty"`
}

// TypingKey identifies one typer towards one target.
type TypingKey struct {
	UserID      string
	RecipientID string
	GroupID     string
}

// Key returns the state-machine key of the event.
func (e TypingEvent) Key() TypingKey {
	return TypingKey{UserID: e.UserID, RecipientID: e.RecipientID, GroupID: e.GroupID}
}

// Validate rejects events without a user or without exactly one target.
func (e TypingEvent) Validate() error {
	if e.UserID == "" {
		return ErrMissingUser
	}
	if (e.RecipientID == "") == (e.GroupID == "") {
		return ErrInvalidTypingTarget
	}
	return nil
}
