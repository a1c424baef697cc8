package chat

import "slices"

// IsReadBy reports whether u has acknowledged m.
func (m *Message) IsReadBy(u string) bool {
	return slices.Contains(m.ReadBy, u)
}

// SeenBy reports whether m counts as read for u. Self-authored messages are
// never unread for their author.
func (m *Message) SeenBy(u string) bool {
	return m.SenderID == u || m.IsReadBy(u)
}

// MarkReadBy adds u to the read set. It reports whether the set changed.
func (m *Message) MarkReadBy(u string) bool {
	if m.IsReadBy(u) {
		return false
	}
	m.ReadBy = append(m.ReadBy, u)
	return true
}

// MarkUnreadBy removes u from the read set. It reports whether the set changed.
func (m *Message) MarkUnreadBy(u string) bool {
	n := len(m.ReadBy)
	m.ReadBy = slices.DeleteFunc(m.ReadBy, func(id string) bool { return id == u })
	return len(m.ReadBy) != n
}

// ToggleLike likes m for u, or withdraws the like if u already liked it.
// Any dislike by u is cleared either way.
func (m *Message) ToggleLike(u string) {
	m.Dislikes = without(m.Dislikes, u)
	if slices.Contains(m.Likes, u) {
		m.Likes = without(m.Likes, u)
		return
	}
	m.Likes = append(m.Likes, u)
}

// ToggleDislike is the mirror image of ToggleLike.
func (m *Message) ToggleDislike(u string) {
	m.Likes = without(m.Likes, u)
	if slices.Contains(m.Dislikes, u) {
		m.Dislikes = without(m.Dislikes, u)
		return
	}
	m.Dislikes = append(m.Dislikes, u)
}

// SetReaction records emoji as u's reaction, replacing any previous one.
func (m *Message) SetReaction(u, emoji string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string]string)
	}
	m.Reactions[u] = emoji
}

// ClearReaction deletes u's reaction. It reports whether one existed.
func (m *Message) ClearReaction(u string) bool {
	if _, ok := m.Reactions[u]; !ok {
		return false
	}
	delete(m.Reactions, u)
	return true
}

func without(ids []string, u string) []string {
	return slices.DeleteFunc(ids, func(id string) bool { return id == u })
}
