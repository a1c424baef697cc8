package state

import (
	"github.com/matheus3301/chatmirror/internal/chat"
	"go.uber.org/zap"
)

// Engagement push events are not always conversation-scoped. Every method
// here takes an optional conversation id; when it is empty the message is
// located by id across all loaded conversations. A miss means the message is
// not loaded yet and is silently ignored.

// ToggleLike toggles userID's like on a message, clearing any dislike.
func (tx *Tx) ToggleLike(conversationID, messageID, userID string) bool {
	return tx.engage(conversationID, messageID, func(m *chat.Message) { m.ToggleLike(userID) })
}

// ToggleDislike toggles userID's dislike on a message, clearing any like.
func (tx *Tx) ToggleDislike(conversationID, messageID, userID string) bool {
	return tx.engage(conversationID, messageID, func(m *chat.Message) { m.ToggleDislike(userID) })
}

// AddReaction sets userID's single reaction on a message, replacing an older one.
func (tx *Tx) AddReaction(conversationID, messageID, userID, emoji string) bool {
	return tx.engage(conversationID, messageID, func(m *chat.Message) { m.SetReaction(userID, emoji) })
}

// RemoveReaction deletes userID's reaction on a message if present.
func (tx *Tx) RemoveReaction(conversationID, messageID, userID string) bool {
	return tx.engage(conversationID, messageID, func(m *chat.Message) { m.ClearReaction(userID) })
}

func (tx *Tx) engage(conversationID, messageID string, fn func(m *chat.Message)) bool {
	convID, ok := tx.s.locate(conversationID, messageID)
	if !ok {
		tx.s.logger.Debug("engagement ignored: message not loaded",
			zap.String("conversation_id", conversationID), zap.String("msg_id", messageID))
		return false
	}
	fn(tx.s.findMessage(convID, messageID))
	return true
}
