package state

import (
	"github.com/matheus3301/chatmirror/internal/chat"
)

// Remote operations share one loading flag and one error slot, so two
// operations in flight at once overwrite each other's outcome there. The
// per-kind entries in ops keep each kind's own view.

// BeginOperation marks an operation of the given kind as requested.
func (tx *Tx) BeginOperation(kind chat.OpKind) {
	tx.s.loading = true
	tx.s.failure = nil
	st := tx.s.op(kind)
	st.InFlight++
	st.Error, st.Action, st.Status = "", "", 0
}

// CompleteOperation marks an operation of the given kind as succeeded.
// Applying its result is up to the caller, inside the same Update.
func (tx *Tx) CompleteOperation(kind chat.OpKind) {
	tx.s.loading = false
	tx.s.op(kind).done()
}

// FailOperation marks an operation of the given kind as failed and records
// the failure, substituting the kind's fallback message when f has none.
func (tx *Tx) FailOperation(kind chat.OpKind, f chat.Failure) {
	if f.Error == "" {
		f.Error = kind.FallbackMessage()
	}
	if f.Action == "" {
		f.Action = string(kind)
	}
	tx.s.loading = false
	tx.s.failure = &f
	st := tx.s.op(kind)
	st.done()
	st.Error, st.Action, st.Status = f.Error, f.Action, f.Status
}

// ApplyConversation merges a conversation returned by a remote operation and
// replaces its message window with the returned one.
func (tx *Tx) ApplyConversation(c chat.Conversation) {
	tx.UpsertConversation(c)
	if c.Messages != nil {
		tx.UpsertConversationMessages(c.ID, c.Messages)
	}
}

// MergeConversations merges a conversation list. Embedded messages are
// inserted when absent; a list endpoint never carries a full window, so
// existing bodies are kept.
func (tx *Tx) MergeConversations(convs []chat.Conversation) {
	for _, c := range convs {
		tx.UpsertConversation(c)
		for _, m := range c.Messages {
			m.ConversationID = c.ID
			tx.InsertIfAbsent(m)
		}
	}
}

func (s *Store) op(kind chat.OpKind) *OperationStatus {
	st, ok := s.ops[kind]
	if !ok {
		st = &OperationStatus{}
		s.ops[kind] = st
	}
	return st
}

func (st *OperationStatus) done() {
	if st.InFlight > 0 {
		st.InFlight--
	}
}
