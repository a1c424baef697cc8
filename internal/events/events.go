// Package events defines the closed set of inputs the sync engine accepts:
// push events delivered out of band, and the three phases of remote
// operations. Payloads are validated here so the state layer only ever sees
// well-formed values.
package events

import (
	"github.com/matheus3301/chatmirror/internal/chat"
)

// Namespace prefixes every bus kind the engine consumes.
const Namespace = "chat."

// Push event types as they appear in the envelope.
const (
	TypeMessageNew      = "message.new"
	TypeMessageUpdated  = "message.updated"
	TypeMessageDeleted  = "message.deleted"
	TypeMessageRead     = "message.read"
	TypeTyping          = "typing"
	TypeMessageLike     = "message.like"
	TypeMessageDislike  = "message.dislike"
	TypeReactionAdded   = "reaction.added"
	TypeReactionRemoved = "reaction.removed"
	TypeUserCurrent     = "user.current"
	TypeUnreadSnapshot  = "unread.snapshot"
	TypeSessionStarted  = "session.started"
	TypeSessionEnded    = "session.ended"
)

// Event is implemented only by the types in this package.
type Event interface {
	// Kind is the event's bus kind without the namespace prefix.
	Kind() string
	isEvent()
}

// BusKind is the kind under which e is published on the bus.
func BusKind(e Event) string {
	return Namespace + e.Kind()
}

// MessageReceived carries a new message. The message may still lack an id or
// conversation id; the engine normalizes it.
type MessageReceived struct {
	Message chat.Message
}

// MessageUpdated replaces the content of a stored message.
type MessageUpdated struct {
	ConversationID string
	MessageID      string
	Content        string
}

// MessageDeleted removes a stored message.
type MessageDeleted struct {
	ConversationID string
	MessageID      string
}

// ReadReceipt acknowledges that UserID read MessageID.
type ReadReceipt struct {
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
}

// MessagesRead carries one or more receipts, applied in order.
type MessagesRead struct {
	Receipts []ReadReceipt
}

// TypingChanged moves a typer in or out of the typing set.
type TypingChanged struct {
	Typing chat.TypingEvent
}

// LikeToggled toggles a like, or a dislike when Dislike is set.
type LikeToggled struct {
	ConversationID string
	MessageID      string
	UserID         string
	Dislike        bool
}

// ReactionChanged sets or, when Removed is set, clears a user's reaction.
type ReactionChanged struct {
	ConversationID string
	MessageID      string
	UserID         string
	Emoji          string
	Removed        bool
}

// CurrentUserSet changes the active user.
type CurrentUserSet struct {
	UserID string
}

// UnreadSeeded replaces the unread set with a server-computed snapshot.
type UnreadSeeded struct {
	ConversationIDs []string
}

// SessionStarted begins a session for UserID on a clean state.
type SessionStarted struct {
	UserID string
}

// SessionEnded tears the session down.
type SessionEnded struct{}

func (MessageReceived) Kind() string { return "push." + TypeMessageNew }
func (MessageUpdated) Kind() string  { return "push." + TypeMessageUpdated }
func (MessageDeleted) Kind() string  { return "push." + TypeMessageDeleted }
func (MessagesRead) Kind() string    { return "push." + TypeMessageRead }
func (TypingChanged) Kind() string   { return "push." + TypeTyping }
func (e LikeToggled) Kind() string {
	if e.Dislike {
		return "push." + TypeMessageDislike
	}
	return "push." + TypeMessageLike
}
func (e ReactionChanged) Kind() string {
	if e.Removed {
		return "push." + TypeReactionRemoved
	}
	return "push." + TypeReactionAdded
}
func (CurrentUserSet) Kind() string { return "push." + TypeUserCurrent }
func (UnreadSeeded) Kind() string   { return "push." + TypeUnreadSnapshot }
func (SessionStarted) Kind() string { return "push." + TypeSessionStarted }
func (SessionEnded) Kind() string   { return "push." + TypeSessionEnded }

func (MessageReceived) isEvent() {}
func (MessageUpdated) isEvent()  {}
func (MessageDeleted) isEvent()  {}
func (MessagesRead) isEvent()    {}
func (TypingChanged) isEvent()   {}
func (LikeToggled) isEvent()     {}
func (ReactionChanged) isEvent() {}
func (CurrentUserSet) isEvent()  {}
func (UnreadSeeded) isEvent()    {}
func (SessionStarted) isEvent()  {}
func (SessionEnded) isEvent()    {}

// Phase is a step of the remote operation protocol.
type Phase string

const (
	PhaseRequested Phase = "requested"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// OpRequested marks an operation as in flight.
type OpRequested struct {
	Op Operation
}

// OpSucceeded carries an operation's result. Conversation is set for
// operations returning a single conversation, Conversations for the user
// listing; delete operations may carry neither.
type OpSucceeded struct {
	Op            Operation
	Conversation  *chat.Conversation
	Conversations []chat.Conversation
}

// OpFailed carries an operation's failure payload.
type OpFailed struct {
	Op      Operation
	Failure chat.Failure
}

func (e OpRequested) Kind() string { return opKind(e.Op.Kind, PhaseRequested) }
func (e OpSucceeded) Kind() string { return opKind(e.Op.Kind, PhaseSucceeded) }
func (e OpFailed) Kind() string    { return opKind(e.Op.Kind, PhaseFailed) }

func (OpRequested) isEvent() {}
func (OpSucceeded) isEvent() {}
func (OpFailed) isEvent()    {}

func opKind(k chat.OpKind, p Phase) string {
	return "op." + string(k) + "." + string(p)
}
