// Package state owns the client-side ChatState aggregate. All reads go
// through Snapshot or View and all writes through Update, so every mutation
// contract runs under the same lock and a handler made of several contracts
// is observed as one transition.
package state

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/matheus3301/chatmirror/internal/chat"
	"go.uber.org/zap"
)

// OperationStatus is the per-kind view of in-flight remote operations.
type OperationStatus struct {
	InFlight int    `json:"inFlight"`
	Error    string `json:"error,omitempty"`
	Action   string `json:"action,omitempty"`
	Status   int    `json:"status,omitempty"`
}

// ChatState is the observable shape of the store handed to consumers.
type ChatState struct {
	Conversations          []chat.Conversation             `json:"conversations"`
	MessagesByConversation map[string][]chat.Message       `json:"messagesByConversation"`
	TypingStatus           []chat.TypingEvent              `json:"typingStatus"`
	UnreadConversations    []string                        `json:"unreadConversations"`
	CurrentUserID          string                          `json:"currentUserId"`
	Loading                bool                            `json:"loading"`
	Error                  string                          `json:"error,omitempty"`
	ErrorAction            string                          `json:"errorAction,omitempty"`
	Operations             map[chat.OpKind]OperationStatus `json:"operations,omitempty"`
}

// Store is the single mutable chat state of a session.
type Store struct {
	mu     sync.RWMutex
	logger *zap.Logger
	now    func() time.Time

	conversations []*chat.Conversation
	messages      map[string][]*chat.Message
	typing        map[chat.TypingKey]chat.TypingEvent
	unread        map[string]struct{}
	currentUserID string
	loading       bool
	failure       *chat.Failure
	ops           map[chat.OpKind]*OperationStatus
}

// New creates an empty store.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger, now: time.Now}
	s.clear()
	return s
}

func (s *Store) clear() {
	s.conversations = nil
	s.messages = make(map[string][]*chat.Message)
	s.typing = make(map[chat.TypingKey]chat.TypingEvent)
	s.unread = make(map[string]struct{})
	s.currentUserID = ""
	s.loading = false
	s.failure = nil
	s.ops = make(map[chat.OpKind]*OperationStatus)
}

// Init starts a session for userID, discarding anything left from a previous one.
func (s *Store) Init(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.currentUserID = userID
	s.logger.Info("chat state initialized", zap.String("user_id", userID))
}

// Reset tears the session down (logout or global purge).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.logger.Info("chat state reset")
}

// Update runs fn with exclusive access to the state. Everything fn does
// becomes visible to readers at once.
func (s *Store) Update(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Tx{s: s})
}

// View runs fn with shared access. fn must not retain anything it reads.
func (s *Store) View(fn func(r Reader)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(Reader{s: s})
}

// CurrentUserID returns the locally authenticated user.
func (s *Store) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUserID
}

// Snapshot returns a deep copy of the state.
func (s *Store) Snapshot() ChatState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := ChatState{
		Conversations:          make([]chat.Conversation, 0, len(s.conversations)),
		MessagesByConversation: make(map[string][]chat.Message, len(s.messages)),
		TypingStatus:           make([]chat.TypingEvent, 0, len(s.typing)),
		UnreadConversations:    make([]string, 0, len(s.unread)),
		CurrentUserID:          s.currentUserID,
		Loading:                s.loading,
	}
	for _, c := range s.conversations {
		out.Conversations = append(out.Conversations, c.Clone())
	}
	for id, msgs := range s.messages {
		cp := make([]chat.Message, len(msgs))
		for i, m := range msgs {
			cp[i] = m.Clone()
		}
		out.MessagesByConversation[id] = cp
	}
	for _, e := range s.typing {
		out.TypingStatus = append(out.TypingStatus, e)
	}
	sort.Slice(out.TypingStatus, func(i, j int) bool {
		a, b := out.TypingStatus[i], out.TypingStatus[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.RecipientID != b.RecipientID {
			return a.RecipientID < b.RecipientID
		}
		return a.GroupID < b.GroupID
	})
	for id := range s.unread {
		out.UnreadConversations = append(out.UnreadConversations, id)
	}
	slices.Sort(out.UnreadConversations)
	if s.failure != nil {
		out.Error = s.failure.Error
		out.ErrorAction = s.failure.Action
	}
	if len(s.ops) > 0 {
		out.Operations = make(map[chat.OpKind]OperationStatus, len(s.ops))
		for k, st := range s.ops {
			out.Operations[k] = *st
		}
	}
	return out
}

// Reader exposes read-only lookups inside View.
type Reader struct {
	s *Store
}

// IsUnread reports whether the conversation is in the active user's unread set.
func (r Reader) IsUnread(conversationID string) bool {
	_, ok := r.s.unread[conversationID]
	return ok
}

// Message returns a copy of a stored message.
func (r Reader) Message(conversationID, messageID string) (chat.Message, bool) {
	m := r.s.findMessage(conversationID, messageID)
	if m == nil {
		return chat.Message{}, false
	}
	return m.Clone(), true
}

// Messages returns a copy of a conversation's message collection.
func (r Reader) Messages(conversationID string) []chat.Message {
	msgs := r.s.messages[conversationID]
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// Conversation returns a copy of a directory entry.
func (r Reader) Conversation(conversationID string) (chat.Conversation, bool) {
	i := r.s.conversationIndex(conversationID)
	if i < 0 {
		return chat.Conversation{}, false
	}
	return r.s.conversations[i].Clone(), true
}

// Tx is the set of mutation contracts, valid only inside Update.
type Tx struct {
	s *Store
}

// SetCurrentUser changes the active user without touching other state.
func (tx *Tx) SetCurrentUser(userID string) {
	tx.s.currentUserID = userID
}

// CurrentUserID returns the active user.
func (tx *Tx) CurrentUserID() string {
	return tx.s.currentUserID
}
