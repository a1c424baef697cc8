package state

import (
	"slices"
	"sort"

	"github.com/matheus3301/chatmirror/internal/chat"
	"go.uber.org/zap"
)

// UpsertConversationMessages replaces the whole message collection of a
// conversation. A fetch result is authoritative for its window, so this is a
// last-writer-wins replace rather than a merge. Duplicate ids in msgs collapse
// to the last occurrence.
func (tx *Tx) UpsertConversationMessages(conversationID string, msgs []chat.Message) {
	out := make([]*chat.Message, 0, len(msgs))
	pos := make(map[string]int, len(msgs))
	for _, m := range msgs {
		cp := m.Clone()
		cp.ConversationID = conversationID
		if cp.ID == "" {
			cp.ID = chat.NewMessageID()
		}
		if i, ok := pos[cp.ID]; ok {
			out[i] = &cp
			continue
		}
		pos[cp.ID] = len(out)
		out = append(out, &cp)
	}
	tx.s.messages[conversationID] = out
}

// InsertIfAbsent appends m to its conversation unless a message with the same
// id is already stored there. It reports whether the message was inserted.
func (tx *Tx) InsertIfAbsent(m chat.Message) bool {
	if m.ConversationID == "" || m.ID == "" {
		tx.s.logger.Warn("refusing to store message without identity",
			zap.String("conversation_id", m.ConversationID), zap.String("msg_id", m.ID))
		return false
	}
	if tx.s.findMessage(m.ConversationID, m.ID) != nil {
		return false
	}
	cp := m.Clone()
	tx.s.messages[m.ConversationID] = append(tx.s.messages[m.ConversationID], &cp)
	return true
}

// MutateMessage applies fn to a stored message. A missing conversation or
// message is a logged no-op; the return value reports whether fn ran.
func (tx *Tx) MutateMessage(conversationID, messageID string, fn func(m *chat.Message)) bool {
	if _, ok := tx.s.messages[conversationID]; !ok {
		tx.s.logger.Debug("mutate skipped: conversation not loaded",
			zap.String("conversation_id", conversationID), zap.String("msg_id", messageID))
		return false
	}
	m := tx.s.findMessage(conversationID, messageID)
	if m == nil {
		tx.s.logger.Debug("mutate skipped: message not loaded",
			zap.String("conversation_id", conversationID), zap.String("msg_id", messageID))
		return false
	}
	fn(m)
	m.ConversationID = conversationID
	return true
}

// RemoveMessage deletes a message from its conversation. If the active user
// had the conversation unread and the removal leaves it fully read, the
// conversation leaves the unread set too.
func (tx *Tx) RemoveMessage(conversationID, messageID string) bool {
	msgs, ok := tx.s.messages[conversationID]
	if !ok {
		tx.s.logger.Debug("remove skipped: conversation not loaded",
			zap.String("conversation_id", conversationID), zap.String("msg_id", messageID))
		return false
	}
	for i, m := range msgs {
		if m.ID != messageID {
			continue
		}
		tx.s.messages[conversationID] = slices.Delete(msgs, i, i+1)
		if _, unread := tx.s.unread[conversationID]; unread && tx.s.currentUserID != "" &&
			tx.s.fullyRead(conversationID, tx.s.currentUserID) {
			delete(tx.s.unread, conversationID)
		}
		return true
	}
	tx.s.logger.Debug("remove skipped: message not loaded",
		zap.String("conversation_id", conversationID), zap.String("msg_id", messageID))
	return false
}

// FindMessage locates a message by id alone, scanning every loaded
// conversation. It is used when a payload does not say which conversation
// the message lives in.
func (tx *Tx) FindMessage(messageID string) (conversationID string, ok bool) {
	return tx.s.locate("", messageID)
}

// ReceiveMessage stores a normalized incoming message. The conversation is
// created on first sight, re-delivery of a known id is a no-op, and a new
// message from someone other than the active user marks the conversation
// unread. It reports whether the message was inserted.
func (tx *Tx) ReceiveMessage(m chat.Message) bool {
	if !tx.InsertIfAbsent(m) {
		return false
	}
	tx.ensureConversation(m)
	if m.SenderID != tx.s.currentUserID {
		tx.s.unread[m.ConversationID] = struct{}{}
	}
	return true
}

// InsertOptimistic stores the local placeholder of an outgoing message and
// creates its conversation on first sight. A placeholder already stored
// under the same client id, as on a retry, goes back to sending.
func (tx *Tx) InsertOptimistic(m chat.Message) bool {
	m.Status = chat.StatusSending
	if tx.InsertIfAbsent(m) {
		tx.ensureConversation(m)
		return true
	}
	if m.ConversationID == "" || m.ID == "" {
		return false
	}
	tx.ensureConversation(m)
	return tx.MutateMessage(m.ConversationID, m.ID, func(cur *chat.Message) {
		cur.Status = chat.StatusSending
	})
}

func (s *Store) findMessage(conversationID, messageID string) *chat.Message {
	for _, m := range s.messages[conversationID] {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

// locate finds the conversation holding messageID. With a conversation id
// the search is scoped to it; without one every conversation is scanned in
// id order so the result is deterministic.
func (s *Store) locate(conversationID, messageID string) (string, bool) {
	if conversationID != "" {
		return conversationID, s.findMessage(conversationID, messageID) != nil
	}
	ids := make([]string, 0, len(s.messages))
	for id := range s.messages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if s.findMessage(id, messageID) != nil {
			return id, true
		}
	}
	return "", false
}
