package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/chatmirror/internal/state"
)

// SnapshotInfo describes a stored snapshot without its body.
type SnapshotInfo struct {
	Session       string
	UserID        string
	SavedAt       time.Time
	Conversations int
	Messages      int
}

// SaveSnapshot stores st as the latest snapshot of (session, st.CurrentUserID).
// Typing status and operation status are transient and are not stored.
func (db *DB) SaveSnapshot(session string, st state.ChatState) (SnapshotInfo, error) {
	st.TypingStatus = nil
	st.Loading = false
	st.Error = ""
	st.ErrorAction = ""
	st.Operations = nil

	data, err := json.Marshal(st)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("encode snapshot: %w", err)
	}

	info := SnapshotInfo{
		Session:       session,
		UserID:        st.CurrentUserID,
		SavedAt:       time.Now(),
		Conversations: len(st.Conversations),
	}
	for _, msgs := range st.MessagesByConversation {
		info.Messages += len(msgs)
	}

	_, err = db.Exec(`
		INSERT INTO snapshots (session, user_id, state, saved_at, conversations, messages)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session, user_id) DO UPDATE SET
			state = excluded.state,
			saved_at = excluded.saved_at,
			conversations = excluded.conversations,
			messages = excluded.messages`,
		session, info.UserID, string(data), info.SavedAt.UnixMilli(), info.Conversations, info.Messages)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("save snapshot: %w", err)
	}
	return info, nil
}

// LoadSnapshot returns the snapshot of (session, userID), or the most recent
// snapshot of the session when userID is empty. It returns nil when there is none.
func (db *DB) LoadSnapshot(session, userID string) (*state.ChatState, *SnapshotInfo, error) {
	var row *sql.Row
	if userID == "" {
		row = db.QueryRow(`
			SELECT user_id, state, saved_at, conversations, messages FROM snapshots
			WHERE session = ? ORDER BY saved_at DESC LIMIT 1`, session)
	} else {
		row = db.QueryRow(`
			SELECT user_id, state, saved_at, conversations, messages FROM snapshots
			WHERE session = ? AND user_id = ?`, session, userID)
	}

	var (
		data    string
		savedAt int64
		info    = SnapshotInfo{Session: session}
	)
	err := row.Scan(&info.UserID, &data, &savedAt, &info.Conversations, &info.Messages)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}
	info.SavedAt = time.UnixMilli(savedAt)

	var st state.ChatState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &st, &info, nil
}

// DeleteSnapshots removes every snapshot of a session.
func (db *DB) DeleteSnapshots(session string) error {
	_, err := db.Exec(`DELETE FROM snapshots WHERE session = ?`, session)
	return err
}

// Restore hydrates st from snap through the store's own contracts.
func Restore(st *state.Store, snap state.ChatState) {
	st.Init(snap.CurrentUserID)
	st.Update(func(tx *state.Tx) {
		for _, c := range snap.Conversations {
			tx.UpsertConversation(c)
		}
		for id, msgs := range snap.MessagesByConversation {
			tx.UpsertConversationMessages(id, msgs)
		}
		tx.SetUnreadConversations(snap.UnreadConversations)
	})
}
