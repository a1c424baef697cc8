package state

import (
	"github.com/matheus3301/chatmirror/internal/chat"
	"go.uber.org/zap"
)

// MarkRead records that userID read a message. When userID is the active
// user and every message in the conversation is now read by them or was
// written by them, the conversation leaves the unread set.
func (tx *Tx) MarkRead(conversationID, messageID, userID string) bool {
	if !tx.MutateMessage(conversationID, messageID, func(m *chat.Message) { m.MarkReadBy(userID) }) {
		return false
	}
	if tx.s.actsForActiveUser(userID) && tx.s.fullyRead(conversationID, userID) {
		delete(tx.s.unread, conversationID)
	}
	return true
}

// MarkUnread removes userID from the message's read set and puts the
// conversation back into the unread set regardless of its other messages.
func (tx *Tx) MarkUnread(conversationID, messageID, userID string) bool {
	if !tx.MutateMessage(conversationID, messageID, func(m *chat.Message) { m.MarkUnreadBy(userID) }) {
		return false
	}
	if tx.s.actsForActiveUser(userID) {
		tx.s.unread[conversationID] = struct{}{}
	}
	return true
}

// SetUnreadConversations replaces the unread set with a server-computed snapshot.
func (tx *Tx) SetUnreadConversations(ids []string) {
	tx.s.unread = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		tx.s.unread[id] = struct{}{}
	}
	tx.s.logger.Debug("unread set replaced", zap.Int("count", len(ids)))
}

// IsUnread reports whether the conversation is unread for the active user.
func (tx *Tx) IsUnread(conversationID string) bool {
	_, ok := tx.s.unread[conversationID]
	return ok
}

// fullyRead scans the whole conversation.
func (s *Store) fullyRead(conversationID, userID string) bool {
	for _, m := range s.messages[conversationID] {
		if !m.SeenBy(userID) {
			return false
		}
	}
	return true
}

// actsForActiveUser reports whether a read-state change by userID concerns
// the unread set. Before a user is set the acting user is taken as active.
func (s *Store) actsForActiveUser(userID string) bool {
	return s.currentUserID == "" || s.currentUserID == userID
}
