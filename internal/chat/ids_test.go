package chat

import (
	"errors"
	"testing"
	"time"
)

func TestPrivateConversationIDIsOrderIndependent(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{"A", "B", "private:A:B"},
		{"B", "A", "private:A:B"},
		{"alice", "bob", "private:alice:bob"},
		{"u2", "u10", "private:u10:u2"},
	}
	for _, tt := range tests {
		if got := PrivateConversationID(tt.a, tt.b); got != tt.want {
			t.Errorf("PrivateConversationID(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestResolveConversationID(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		want    string
		wantErr error
	}{
		{"explicit wins", Message{ConversationID: "conv1", SenderID: "A", RecipientID: "B"}, "conv1", nil},
		{"private pair", Message{SenderID: "B", RecipientID: "A"}, "private:A:B", nil},
		{"group", Message{SenderID: "A", GroupID: "g1"}, "group:g1", nil},
		{"sender only", Message{SenderID: "A"}, "", ErrUnroutableMessage},
		{"empty", Message{}, "", ErrUnroutableMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveConversationID(tt.msg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeAssignsIDAndTimestamp(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m, err := Normalize(Message{SenderID: "A", RecipientID: "B", Content: "hi"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if m.ID == "" {
		t.Error("expected generated id")
	}
	if m.ConversationID != "private:A:B" {
		t.Errorf("conversation = %q, want private:A:B", m.ConversationID)
	}
	if !m.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", m.Timestamp, now)
	}

	kept, err := Normalize(Message{ID: "m1", ConversationID: "c", Timestamp: now.Add(-time.Hour)}, now)
	if err != nil {
		t.Fatal(err)
	}
	if kept.ID != "m1" || !kept.Timestamp.Equal(now.Add(-time.Hour)) {
		t.Errorf("existing id/timestamp overwritten: %+v", kept)
	}
}

func TestNewMessageIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewMessageID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
