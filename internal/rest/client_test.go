package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matheus3301/chatmirror/internal/chat"
	"github.com/matheus3301/chatmirror/internal/events"
)

func TestFetchConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/conversations/conv1" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "20" || r.URL.Query().Get("skip") != "40" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(chat.Conversation{
			ID:           "conv1",
			Participants: []string{"A", "B"},
			Messages:     []chat.Message{{ID: "m1", SenderID: "A"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", srv.Client())
	res, err := c.Do(context.Background(), events.Operation{Kind: chat.OpFetchConversation, ConversationID: "conv1", Skip: 40, Limit: 20})
	if err != nil {
		t.Fatal(err)
	}
	if res.Conversation == nil || len(res.Conversation.Messages) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestFetchMissingConversationReturnsShell(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client())
	res, err := c.Do(context.Background(), events.Operation{Kind: chat.OpFetchConversation, ConversationID: "private:A:B"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Conversation == nil || res.Conversation.ID != "private:A:B" || res.Conversation.Messages == nil {
		t.Errorf("result = %+v, want shell", res.Conversation)
	}
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/conversations/c1/messages" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body sendBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		if body.ClientID != "tmp" || body.SenderID != "A" || body.Content != "hi" {
			t.Errorf("body = %+v", body)
		}
		_ = json.NewEncoder(w).Encode(chat.Conversation{ID: "c1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client())
	res, err := c.Do(context.Background(), events.Operation{
		Kind: chat.OpSendMessage, ConversationID: "c1", MessageID: "tmp", UserID: "A", Content: "hi",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Conversation == nil || res.Conversation.ID != "c1" {
		t.Errorf("result = %+v", res)
	}
}

func TestDeleteWithoutBody(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.EscapedPath())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client())
	for _, op := range []events.Operation{
		{Kind: chat.OpDeleteMessage, ConversationID: "c1", MessageID: "m1"},
		{Kind: chat.OpRemoveReaction, ConversationID: "c1", MessageID: "m1", UserID: "u"},
		{Kind: chat.OpDeleteConversation, ConversationID: "group:g 1"},
	} {
		res, err := c.Do(context.Background(), op)
		if err != nil {
			t.Fatalf("%s: %v", op.Kind, err)
		}
		if res.Conversation != nil {
			t.Errorf("%s: unexpected conversation", op.Kind)
		}
	}
	want := []string{
		"DELETE /conversations/c1/messages/m1",
		"DELETE /conversations/c1/messages/m1/reactions/u",
		"DELETE /conversations/group:g%201",
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestRemoteErrorCarriesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"You are not a member","action":"request_invite"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client())
	_, err := c.Do(context.Background(), events.Operation{Kind: chat.OpInviteToGroup, ConversationID: "g", UserIDs: []string{"x"}})

	var re *chat.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *chat.RemoteError", err)
	}
	if re.Status != 403 || re.Message != "You are not a member" || re.Action != "request_invite" {
		t.Errorf("remote error = %+v", re)
	}
	f := chat.FailureFrom(err, "invite_to_group", "fallback")
	if f.Error != "You are not a member" || f.Status != 403 {
		t.Errorf("failure = %+v", f)
	}
}

func TestServerErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client())
	_, err := c.Do(context.Background(), events.Operation{Kind: chat.OpFetchUserConversations, UserID: "u"})
	f := chat.FailureFrom(err, "fetch_user_conversations", "Failed to fetch conversations")
	if f.Error != "Failed to fetch conversations" || f.Status != 502 {
		t.Errorf("failure = %+v", f)
	}
}
