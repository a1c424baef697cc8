package sync

import (
	"fmt"
	"time"

	"github.com/matheus3301/chatmirror/internal/chat"
	"github.com/matheus3301/chatmirror/internal/events"
	"github.com/matheus3301/chatmirror/internal/state"
)

// apply maps one event onto the state contracts. It returns the conversation
// the event touched, if known.
func apply(tx *state.Tx, ev events.Event, now time.Time) (string, error) {
	switch ev := ev.(type) {
	case events.MessageReceived:
		m, err := chat.Normalize(ev.Message, now)
		if err != nil {
			return "", err
		}
		tx.ReceiveMessage(m)
		return m.ConversationID, nil

	case events.MessageUpdated:
		convID := resolve(tx, ev.ConversationID, ev.MessageID)
		tx.MutateMessage(convID, ev.MessageID, func(m *chat.Message) {
			m.Content = ev.Content
			m.Edited = true
		})
		return convID, nil

	case events.MessageDeleted:
		convID := resolve(tx, ev.ConversationID, ev.MessageID)
		tx.RemoveMessage(convID, ev.MessageID)
		return convID, nil

	case events.MessagesRead:
		var first string
		for i, r := range ev.Receipts {
			convID := resolve(tx, r.ConversationID, r.MessageID)
			tx.MarkRead(convID, r.MessageID, r.UserID)
			if i == 0 {
				first = convID
			}
		}
		return first, nil

	case events.TypingChanged:
		if err := tx.SetTyping(ev.Typing); err != nil {
			return "", err
		}
		if ev.Typing.GroupID != "" {
			return chat.GroupConversationID(ev.Typing.GroupID), nil
		}
		return chat.PrivateConversationID(ev.Typing.UserID, ev.Typing.RecipientID), nil

	case events.LikeToggled:
		convID := resolve(tx, ev.ConversationID, ev.MessageID)
		if ev.Dislike {
			tx.ToggleDislike(ev.ConversationID, ev.MessageID, ev.UserID)
		} else {
			tx.ToggleLike(ev.ConversationID, ev.MessageID, ev.UserID)
		}
		return convID, nil

	case events.ReactionChanged:
		convID := resolve(tx, ev.ConversationID, ev.MessageID)
		if ev.Removed {
			tx.RemoveReaction(ev.ConversationID, ev.MessageID, ev.UserID)
		} else {
			tx.AddReaction(ev.ConversationID, ev.MessageID, ev.UserID, ev.Emoji)
		}
		return convID, nil

	case events.CurrentUserSet:
		tx.SetCurrentUser(ev.UserID)
		return "", nil

	case events.UnreadSeeded:
		tx.SetUnreadConversations(ev.ConversationIDs)
		return "", nil

	case events.OpRequested:
		tx.BeginOperation(ev.Op.Kind)
		if ev.Op.Kind == chat.OpSendMessage && ev.Op.MessageID != "" {
			m := ev.Op.OptimisticMessage()
			m.Timestamp = now
			tx.InsertOptimistic(m)
		}
		return ev.Op.ConversationID, nil

	case events.OpSucceeded:
		tx.CompleteOperation(ev.Op.Kind)
		return applySuccess(tx, ev), nil

	case events.OpFailed:
		tx.FailOperation(ev.Op.Kind, ev.Failure)
		if ev.Op.Kind == chat.OpSendMessage && ev.Op.MessageID != "" {
			tx.MutateMessage(ev.Op.ConversationID, ev.Op.MessageID, func(m *chat.Message) {
				m.Status = chat.StatusFailed
			})
		}
		return ev.Op.ConversationID, nil

	default:
		return "", fmt.Errorf("unhandled event type %T", ev)
	}
}

func applySuccess(tx *state.Tx, ev events.OpSucceeded) string {
	op := ev.Op
	if ev.Conversation != nil && ev.Conversation.ID == "" {
		c := *ev.Conversation
		c.ID = op.ConversationID
		ev.Conversation = &c
	}
	switch op.Kind {
	case chat.OpFetchConversation:
		c := chat.Shell(op.ConversationID)
		if ev.Conversation != nil {
			c = *ev.Conversation
		}
		tx.ApplyConversation(c)
		return c.ID

	case chat.OpFetchUserConversations:
		tx.MergeConversations(ev.Conversations)
		return ""

	case chat.OpDeleteConversation:
		tx.RemoveConversation(op.ConversationID)
		return op.ConversationID

	case chat.OpDeleteMessage:
		if ev.Conversation != nil {
			tx.ApplyConversation(*ev.Conversation)
			return ev.Conversation.ID
		}
		tx.RemoveMessage(op.ConversationID, op.MessageID)
		return op.ConversationID

	case chat.OpMarkUnread:
		if ev.Conversation != nil {
			tx.ApplyConversation(*ev.Conversation)
		}
		tx.MarkUnread(op.ConversationID, op.MessageID, op.UserID)
		return op.ConversationID

	default:
		if ev.Conversation != nil {
			tx.ApplyConversation(*ev.Conversation)
			return ev.Conversation.ID
		}
		if op.Kind == chat.OpSendMessage && op.MessageID != "" {
			tx.MutateMessage(op.ConversationID, op.MessageID, func(m *chat.Message) { m.Status = "" })
		}
		return op.ConversationID
	}
}

// resolve returns the conversation holding messageID when the payload did
// not name one.
func resolve(tx *state.Tx, conversationID, messageID string) string {
	if conversationID != "" {
		return conversationID
	}
	convID, _ := tx.FindMessage(messageID)
	return convID
}
