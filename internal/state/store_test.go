package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/matheus3301/chatmirror/internal/chat"
	"go.uber.org/zap"
)

func testStore(t *testing.T, user string) *Store {
	t.Helper()
	s := New(zap.NewNop())
	s.Init(user)
	return s
}

func msg(conv, id, sender string) chat.Message {
	return chat.Message{ID: id, ConversationID: conv, SenderID: sender, Content: "body " + id}
}

func TestInsertIfAbsentIsIdempotent(t *testing.T) {
	s := testStore(t, "B")
	m := msg("conv1", "m1", "A")

	inserted := 0
	for range 5 {
		s.Update(func(tx *Tx) {
			if tx.InsertIfAbsent(m) {
				inserted++
			}
		})
	}
	if inserted != 1 {
		t.Errorf("inserted %d times, want 1", inserted)
	}
	if got := len(s.Snapshot().MessagesByConversation["conv1"]); got != 1 {
		t.Errorf("stored %d copies, want 1", got)
	}
}

func TestInsertIfAbsentRejectsMissingIdentity(t *testing.T) {
	s := testStore(t, "B")
	s.Update(func(tx *Tx) {
		if tx.InsertIfAbsent(chat.Message{ID: "m1"}) {
			t.Error("inserted message without conversation id")
		}
		if tx.InsertIfAbsent(chat.Message{ConversationID: "c"}) {
			t.Error("inserted message without id")
		}
	})
	if len(s.Snapshot().MessagesByConversation) != 0 {
		t.Error("store should be empty")
	}
}

func TestUpsertConversationMessagesReplaces(t *testing.T) {
	s := testStore(t, "B")
	s.Update(func(tx *Tx) {
		tx.InsertIfAbsent(msg("conv1", "old", "A"))
		tx.UpsertConversationMessages("conv1", []chat.Message{
			msg("", "m1", "A"),
			msg("", "m2", "B"),
			{ID: "m1", SenderID: "A", Content: "edited"},
		})
	})
	got := s.Snapshot().MessagesByConversation["conv1"]
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID != "m1" || got[0].Content != "edited" || got[1].ID != "m2" {
		t.Errorf("unexpected window: %+v", got)
	}
	for _, m := range got {
		if m.ConversationID != "conv1" {
			t.Errorf("message %s has conversation %q", m.ID, m.ConversationID)
		}
	}
}

func TestMutateMessageMissIsNoop(t *testing.T) {
	s := testStore(t, "B")
	s.Update(func(tx *Tx) {
		tx.InsertIfAbsent(msg("conv1", "m1", "A"))
		called := false
		if tx.MutateMessage("nope", "m1", func(*chat.Message) { called = true }) {
			t.Error("mutate on missing conversation reported success")
		}
		if tx.MutateMessage("conv1", "nope", func(*chat.Message) { called = true }) {
			t.Error("mutate on missing message reported success")
		}
		if called {
			t.Error("mutation function ran on a miss")
		}
	})
}

func TestReceiveMessageMarksUnreadAndCreatesConversation(t *testing.T) {
	s := testStore(t, "B")
	m, err := chat.Normalize(chat.Message{ID: "m1", SenderID: "A", RecipientID: "B"}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	s.Update(func(tx *Tx) {
		if !tx.ReceiveMessage(m) {
			t.Error("first delivery not inserted")
		}
		if tx.ReceiveMessage(m) {
			t.Error("re-delivery inserted")
		}
	})

	snap := s.Snapshot()
	if !slices.Equal(snap.UnreadConversations, []string{"private:A:B"}) {
		t.Errorf("unread = %v, want [private:A:B]", snap.UnreadConversations)
	}
	if len(snap.Conversations) != 1 {
		t.Fatalf("got %d conversations, want 1", len(snap.Conversations))
	}
	c := snap.Conversations[0]
	if !c.IsPrivate || !slices.Equal(c.Participants, []string{"A", "B"}) {
		t.Errorf("conversation = %+v", c)
	}
}

func TestReceiveOwnMessageDoesNotMarkUnread(t *testing.T) {
	s := testStore(t, "A")
	s.Update(func(tx *Tx) {
		tx.ReceiveMessage(msg("conv1", "m1", "A"))
	})
	if got := s.Snapshot().UnreadConversations; len(got) != 0 {
		t.Errorf("unread = %v, want none", got)
	}
}

func TestUnreadClearsExactlyOnLastRead(t *testing.T) {
	const k = 4
	s := testStore(t, "u")
	s.Update(func(tx *Tx) {
		for i := range k {
			tx.ReceiveMessage(msg("conv1", fmt.Sprintf("m%d", i), "other"))
		}
		// Self-authored messages never hold the conversation unread.
		tx.ReceiveMessage(msg("conv1", "mine", "u"))
	})

	for i := range k {
		s.Update(func(tx *Tx) {
			if !tx.MarkRead("conv1", fmt.Sprintf("m%d", i), "u") {
				t.Fatalf("MarkRead m%d reported a miss", i)
			}
		})
		var unread bool
		s.View(func(r Reader) { unread = r.IsUnread("conv1") })
		if last := i == k-1; unread == last {
			t.Fatalf("after reading m%d: unread = %v, want %v", i, unread, !last)
		}
	}
}

func TestReadReceiptScenario(t *testing.T) {
	s := testStore(t, "B")
	s.Update(func(tx *Tx) {
		tx.BeginOperation(chat.OpFetchConversation)
		tx.CompleteOperation(chat.OpFetchConversation)
		tx.ApplyConversation(chat.Conversation{
			ID:           "conv1",
			Participants: []string{"A", "B"},
			Messages:     []chat.Message{{ID: "m1", SenderID: "A", ReadBy: []string{}}},
		})
		// Seed the unread half so only the removal is under test.
		tx.SetUnreadConversations([]string{"conv1"})
	})

	s.Update(func(tx *Tx) { tx.MarkRead("conv1", "m1", "B") })
	if got := s.Snapshot().UnreadConversations; len(got) != 0 {
		t.Fatalf("unread after read = %v, want none", got)
	}

	s.Update(func(tx *Tx) { tx.MarkUnread("conv1", "m1", "B") })
	snap := s.Snapshot()
	if !slices.Equal(snap.UnreadConversations, []string{"conv1"}) {
		t.Errorf("unread after mark-unread = %v, want [conv1]", snap.UnreadConversations)
	}
	if readBy := snap.MessagesByConversation["conv1"][0].ReadBy; slices.Contains(readBy, "B") {
		t.Errorf("readBy still contains B: %v", readBy)
	}
}

func TestReadByOtherUserKeepsUnread(t *testing.T) {
	s := testStore(t, "B")
	s.Update(func(tx *Tx) {
		tx.ReceiveMessage(msg("conv1", "m1", "A"))
		tx.MarkRead("conv1", "m1", "C")
	})
	snap := s.Snapshot()
	if !slices.Equal(snap.UnreadConversations, []string{"conv1"}) {
		t.Errorf("unread = %v, want [conv1]", snap.UnreadConversations)
	}
	if !slices.Equal(snap.MessagesByConversation["conv1"][0].ReadBy, []string{"C"}) {
		t.Errorf("readBy = %v, want [C]", snap.MessagesByConversation["conv1"][0].ReadBy)
	}
}

func TestReadUnreadOnUnknownConversationIsNoop(t *testing.T) {
	s := testStore(t, "B")
	s.Update(func(tx *Tx) {
		if tx.MarkRead("ghost", "m1", "B") {
			t.Error("MarkRead on unknown conversation reported success")
		}
		if tx.MarkUnread("ghost", "m1", "B") {
			t.Error("MarkUnread on unknown conversation reported success")
		}
	})
	snap := s.Snapshot()
	if len(snap.MessagesByConversation) != 0 || len(snap.Conversations) != 0 || len(snap.UnreadConversations) != 0 {
		t.Errorf("state fabricated entries: %+v", snap)
	}
}

func TestRemoveMessageClearsUnreadWhenNothingLeft(t *testing.T) {
	s := testStore(t, "B")
	s.Update(func(tx *Tx) {
		tx.ReceiveMessage(msg("conv1", "m1", "A"))
		tx.ReceiveMessage(msg("conv1", "m2", "A"))
		tx.MarkRead("conv1", "m1", "B")
		tx.RemoveMessage("conv1", "m2")
	})
	snap := s.Snapshot()
	if len(snap.UnreadConversations) != 0 {
		t.Errorf("unread = %v, want none", snap.UnreadConversations)
	}
	if got := snap.MessagesByConversation["conv1"]; len(got) != 1 || got[0].ID != "m1" {
		t.Errorf("messages = %+v", got)
	}
}

func TestUpsertConversationMerges(t *testing.T) {
	s := testStore(t, "A")
	s.Update(func(tx *Tx) {
		tx.UpsertConversation(chat.Conversation{ID: "g", Participants: []string{"A"}, InvitedUsers: []string{"B"}, GroupID: "g1"})
		tx.UpsertConversation(chat.Conversation{ID: "g", Participants: []string{"A", "B"}})
		tx.UpsertConversation(chat.Conversation{ID: "h"})
	})
	snap := s.Snapshot()
	if len(snap.Conversations) != 2 {
		t.Fatalf("got %d conversations, want 2", len(snap.Conversations))
	}
	g := snap.Conversations[0]
	if !slices.Equal(g.Participants, []string{"A", "B"}) {
		t.Errorf("participants = %v", g.Participants)
	}
	if !slices.Equal(g.InvitedUsers, []string{"B"}) || g.GroupID != "g1" {
		t.Errorf("merge dropped fields: %+v", g)
	}
	if snap.Conversations[1].ID != "h" {
		t.Errorf("new conversation not appended: %+v", snap.Conversations[1])
	}
}

func TestRemoveConversationIsAtomic(t *testing.T) {
	s := testStore(t, "B")
	s.Update(func(tx *Tx) {
		tx.ReceiveMessage(msg("conv1", "m1", "A"))
		tx.ReceiveMessage(msg("conv2", "m2", "A"))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 200 {
			snap := s.Snapshot()
			_, hasMsgs := snap.MessagesByConversation["conv1"]
			hasUnread := slices.Contains(snap.UnreadConversations, "conv1")
			hasEntry := slices.ContainsFunc(snap.Conversations, func(c chat.Conversation) bool { return c.ID == "conv1" })
			if hasMsgs != hasUnread || hasMsgs != hasEntry {
				t.Errorf("partial deletion observed: msgs=%v unread=%v entry=%v", hasMsgs, hasUnread, hasEntry)
				return
			}
		}
	}()
	s.Update(func(tx *Tx) {
		if !tx.RemoveConversation("conv1") {
			t.Error("RemoveConversation reported nothing removed")
		}
	})
	<-done

	snap := s.Snapshot()
	if !slices.Equal(snap.UnreadConversations, []string{"conv2"}) {
		t.Errorf("unread = %v, want [conv2]", snap.UnreadConversations)
	}
	s.Update(func(tx *Tx) {
		if tx.RemoveConversation("conv1") {
			t.Error("second removal reported success")
		}
	})
}

func TestTypingStateMachine(t *testing.T) {
	s := testStore(t, "A")
	start := chat.TypingEvent{UserID: "B", IsTyping: true, RecipientID: "A"}
	stop := start
	stop.IsTyping = false

	s.Update(func(tx *Tx) {
		if err := tx.SetTyping(start); err != nil {
			t.Fatal(err)
		}
		if err := tx.SetTyping(start); err != nil {
			t.Fatal(err)
		}
		if err := tx.SetTyping(chat.TypingEvent{UserID: "C", IsTyping: true, GroupID: "g"}); err != nil {
			t.Fatal(err)
		}
	})
	if got := len(s.Snapshot().TypingStatus); got != 2 {
		t.Fatalf("typing entries = %d, want 2", got)
	}

	s.Update(func(tx *Tx) {
		if err := tx.SetTyping(stop); err != nil {
			t.Fatal(err)
		}
	})
	typing := s.Snapshot().TypingStatus
	if len(typing) != 1 || typing[0].UserID != "C" {
		t.Errorf("typing = %+v, want only C", typing)
	}
}

func TestTypingRejectsInvalidTarget(t *testing.T) {
	s := testStore(t, "A")
	s.Update(func(tx *Tx) {
		err := tx.SetTyping(chat.TypingEvent{UserID: "B", IsTyping: true, RecipientID: "A", GroupID: "g"})
		if !errors.Is(err, chat.ErrInvalidTypingTarget) {
			t.Errorf("error = %v, want ErrInvalidTypingTarget", err)
		}
	})
	if len(s.Snapshot().TypingStatus) != 0 {
		t.Error("invalid event stored")
	}
}

func TestExpireTyping(t *testing.T) {
	s := testStore(t, "A")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Update(func(tx *Tx) {
		_ = tx.SetTyping(chat.TypingEvent{UserID: "B", IsTyping: true, RecipientID: "A", Since: base})
		_ = tx.SetTyping(chat.TypingEvent{UserID: "C", IsTyping: true, RecipientID: "A", Since: base.Add(time.Minute)})
		if n := tx.ExpireTyping(base.Add(30 * time.Second)); n != 1 {
			t.Errorf("expired %d, want 1", n)
		}
	})
	typing := s.Snapshot().TypingStatus
	if len(typing) != 1 || typing[0].UserID != "C" {
		t.Errorf("typing = %+v", typing)
	}
}

func TestEngagementScansAllConversations(t *testing.T) {
	s := testStore(t, "A")
	s.Update(func(tx *Tx) {
		tx.InsertIfAbsent(msg("conv1", "m1", "A"))
		tx.InsertIfAbsent(msg("conv2", "m2", "B"))

		if !tx.ToggleLike("", "m2", "A") {
			t.Error("like without conversation id missed")
		}
		if !tx.AddReaction("", "m2", "A", "👍") || !tx.AddReaction("", "m2", "A", "👎") {
			t.Error("reaction without conversation id missed")
		}
		if tx.ToggleDislike("", "ghost", "A") {
			t.Error("engagement on unknown message reported success")
		}
		if tx.ToggleLike("conv1", "m2", "A") {
			t.Error("scoped engagement should not leave its conversation")
		}
	})

	m := s.Snapshot().MessagesByConversation["conv2"][0]
	if !slices.Equal(m.Likes, []string{"A"}) {
		t.Errorf("likes = %v", m.Likes)
	}
	if len(m.Reactions) != 1 || m.Reactions["A"] != "👎" {
		t.Errorf("reactions = %v, want map[A:👎]", m.Reactions)
	}

	s.Update(func(tx *Tx) {
		tx.ToggleDislike("conv2", "m2", "A")
		tx.RemoveReaction("", "m2", "A")
	})
	m = s.Snapshot().MessagesByConversation["conv2"][0]
	if len(m.Likes) != 0 || !slices.Equal(m.Dislikes, []string{"A"}) || len(m.Reactions) != 0 {
		t.Errorf("after dislike/remove: %+v", m)
	}
}

func TestOperationProtocol(t *testing.T) {
	s := testStore(t, "A")

	s.Update(func(tx *Tx) { tx.BeginOperation(chat.OpSendMessage) })
	snap := s.Snapshot()
	if !snap.Loading || snap.Error != "" || snap.Operations[chat.OpSendMessage].InFlight != 1 {
		t.Fatalf("after request: %+v", snap)
	}

	s.Update(func(tx *Tx) { tx.FailOperation(chat.OpSendMessage, chat.Failure{}) })
	snap = s.Snapshot()
	if snap.Loading {
		t.Error("loading still set after failure")
	}
	if snap.Error != "Failed to send message" || snap.ErrorAction != "send_message" {
		t.Errorf("error = %q action = %q", snap.Error, snap.ErrorAction)
	}
	if op := snap.Operations[chat.OpSendMessage]; op.InFlight != 0 || op.Error == "" {
		t.Errorf("operation status = %+v", op)
	}

	s.Update(func(tx *Tx) { tx.BeginOperation(chat.OpFetchConversation) })
	if snap = s.Snapshot(); snap.Error != "" {
		t.Errorf("request did not clear error: %q", snap.Error)
	}
	s.Update(func(tx *Tx) {
		tx.FailOperation(chat.OpFetchConversation, chat.Failure{Error: "not allowed", Action: "login", Status: 401})
	})
	snap = s.Snapshot()
	if snap.Error != "not allowed" || snap.ErrorAction != "login" {
		t.Errorf("payload message not used: %+v", snap)
	}
	if snap.Operations[chat.OpSendMessage].Error != "Failed to send message" {
		t.Error("per-kind status of another operation was clobbered")
	}
}

func TestMergeConversationsKeepsBodies(t *testing.T) {
	s := testStore(t, "A")
	s.Update(func(tx *Tx) {
		tx.InsertIfAbsent(chat.Message{ID: "m1", ConversationID: "c1", Content: "local"})
		tx.MergeConversations([]chat.Conversation{
			{ID: "c1", Messages: []chat.Message{{ID: "m1", Content: "list"}, {ID: "m2", Content: "new"}}},
			{ID: "c2", Participants: []string{"A", "B"}},
		})
	})
	snap := s.Snapshot()
	msgs := snap.MessagesByConversation["c1"]
	if len(msgs) != 2 || msgs[0].Content != "local" {
		t.Errorf("messages = %+v", msgs)
	}
	if len(snap.Conversations) != 2 {
		t.Errorf("conversations = %d, want 2", len(snap.Conversations))
	}
}

func TestMergeConversationsKeepsPrivacyWhenOmitted(t *testing.T) {
	s := testStore(t, "A")
	m := msg("private:A:B", "m1", "B")
	m.RecipientID = "A"
	s.Update(func(tx *Tx) { tx.ReceiveMessage(m) })

	var partial []chat.Conversation
	if err := json.Unmarshal([]byte(`[{"conversationId":"private:A:B"}]`), &partial); err != nil {
		t.Fatal(err)
	}
	s.Update(func(tx *Tx) { tx.MergeConversations(partial) })
	c := s.Snapshot().Conversations[0]
	if !c.IsPrivate || !slices.Equal(c.Participants, []string{"B", "A"}) {
		t.Errorf("after partial merge = %+v", c)
	}

	var explicit []chat.Conversation
	if err := json.Unmarshal([]byte(`[{"conversationId":"private:A:B","isPrivate":false}]`), &explicit); err != nil {
		t.Fatal(err)
	}
	s.Update(func(tx *Tx) { tx.MergeConversations(explicit) })
	if s.Snapshot().Conversations[0].IsPrivate {
		t.Error("explicit isPrivate=false was ignored")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := testStore(t, "B")
	s.Update(func(tx *Tx) { tx.ReceiveMessage(msg("conv1", "m1", "A")) })

	snap := s.Snapshot()
	snap.MessagesByConversation["conv1"][0].ReadBy = append(snap.MessagesByConversation["conv1"][0].ReadBy, "B")
	snap.UnreadConversations[0] = "other"

	again := s.Snapshot()
	if len(again.MessagesByConversation["conv1"][0].ReadBy) != 0 || again.UnreadConversations[0] != "conv1" {
		t.Error("snapshot mutation leaked into the store")
	}
}

func TestInitAndReset(t *testing.T) {
	s := testStore(t, "A")
	s.Update(func(tx *Tx) {
		tx.ReceiveMessage(msg("conv1", "m1", "B"))
		tx.BeginOperation(chat.OpFetchConversation)
	})

	s.Init("C")
	snap := s.Snapshot()
	if snap.CurrentUserID != "C" || len(snap.MessagesByConversation) != 0 || snap.Loading {
		t.Errorf("Init did not start a clean session: %+v", snap)
	}

	s.Reset()
	if s.CurrentUserID() != "" {
		t.Error("Reset kept the current user")
	}
}
