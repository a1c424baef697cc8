package state

import (
	"slices"

	"github.com/matheus3301/chatmirror/internal/chat"
	"go.uber.org/zap"
)

// UpsertConversation merges c into the directory entry with the same id, or
// appends a new entry. Metadata merges field by field: nil slices in c leave
// the stored value alone, as does an isPrivate the payload did not carry.
// Message bodies in messagesByConversation are not touched; callers that
// hold an authoritative window also call UpsertConversationMessages.
func (tx *Tx) UpsertConversation(c chat.Conversation) {
	if c.ID == "" {
		tx.s.logger.Warn("refusing to store conversation without id")
		return
	}
	i := tx.s.conversationIndex(c.ID)
	if i < 0 {
		cp := c.Clone()
		if cp.Participants == nil {
			cp.Participants = []string{}
		}
		if cp.InvitedUsers == nil {
			cp.InvitedUsers = []string{}
		}
		if cp.Messages == nil {
			cp.Messages = []chat.Message{}
		}
		tx.s.conversations = append(tx.s.conversations, &cp)
		return
	}

	cur := tx.s.conversations[i]
	if c.Participants != nil {
		cur.Participants = slices.Clone(c.Participants)
	}
	if c.InvitedUsers != nil {
		cur.InvitedUsers = slices.Clone(c.InvitedUsers)
	}
	if c.HasPrivacy() {
		cur.IsPrivate = c.IsPrivate
	}
	if c.GroupID != "" {
		cur.GroupID = c.GroupID
	}
	if c.Messages != nil {
		cur.Messages = c.Clone().Messages
	}
}

// RemoveConversation deletes the directory entry, its message bodies and its
// unread membership in one step. It reports whether anything was removed.
func (tx *Tx) RemoveConversation(conversationID string) bool {
	removed := false
	if i := tx.s.conversationIndex(conversationID); i >= 0 {
		tx.s.conversations = slices.Delete(tx.s.conversations, i, i+1)
		removed = true
	}
	if _, ok := tx.s.messages[conversationID]; ok {
		delete(tx.s.messages, conversationID)
		removed = true
	}
	if _, ok := tx.s.unread[conversationID]; ok {
		delete(tx.s.unread, conversationID)
		removed = true
	}
	if !removed {
		tx.s.logger.Debug("remove skipped: conversation not loaded", zap.String("conversation_id", conversationID))
	}
	return removed
}

// ensureConversation creates the directory entry for a message seen before
// its conversation was fetched.
func (tx *Tx) ensureConversation(m chat.Message) {
	if tx.s.conversationIndex(m.ConversationID) >= 0 {
		return
	}
	c := chat.Shell(m.ConversationID)
	switch {
	case m.GroupID != "":
		c.GroupID = m.GroupID
	case m.RecipientID != "":
		c.IsPrivate = true
		c.Participants = []string{m.SenderID, m.RecipientID}
	}
	tx.s.conversations = append(tx.s.conversations, &c)
}

func (s *Store) conversationIndex(id string) int {
	return slices.IndexFunc(s.conversations, func(c *chat.Conversation) bool { return c.ID == id })
}
