package events

import (
	"errors"
	"testing"

	"github.com/matheus3301/chatmirror/internal/chat"
)

func TestDecodePushEvents(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Event
	}{
		{
			name: "message deleted",
			data: `{"type":"message.deleted","payload":{"conversationId":"c","messageId":"m"}}`,
			want: MessageDeleted{ConversationID: "c", MessageID: "m"},
		},
		{
			name: "message updated",
			data: `{"type":"message.updated","payload":{"id":"m","content":"new"}}`,
			want: MessageUpdated{MessageID: "m", Content: "new"},
		},
		{
			name: "like",
			data: `{"type":"message.like","payload":{"messageId":"m","userId":"u"}}`,
			want: LikeToggled{MessageID: "m", UserID: "u"},
		},
		{
			name: "dislike",
			data: `{"type":"message.dislike","payload":{"conversationId":"c","messageId":"m","userId":"u"}}`,
			want: LikeToggled{ConversationID: "c", MessageID: "m", UserID: "u", Dislike: true},
		},
		{
			name: "reaction added",
			data: `{"type":"reaction.added","payload":{"messageId":"m","userId":"u","emoji":"👍"}}`,
			want: ReactionChanged{MessageID: "m", UserID: "u", Emoji: "👍"},
		},
		{
			name: "reaction removed",
			data: `{"type":"reaction.removed","payload":{"messageId":"m","userId":"u"}}`,
			want: ReactionChanged{MessageID: "m", UserID: "u", Removed: true},
		},
		{
			name: "current user",
			data: `{"type":"user.current","payload":{"userId":"u"}}`,
			want: CurrentUserSet{UserID: "u"},
		},
		{
			name: "session started",
			data: `{"type":"session.started","payload":{"userId":"u"}}`,
			want: SessionStarted{UserID: "u"},
		},
		{
			name: "session ended without payload",
			data: `{"type":"session.ended"}`,
			want: SessionEnded{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeMessageNew(t *testing.T) {
	evt, err := Decode([]byte(`{"type":"message.new","payload":{"senderId":"B","recipientId":"A","content":"hi"}}`))
	if err != nil {
		t.Fatal(err)
	}
	m, ok := evt.(MessageReceived)
	if !ok {
		t.Fatalf("got %T, want MessageReceived", evt)
	}
	if m.Message.SenderID != "B" || m.Message.Content != "hi" {
		t.Errorf("message = %+v", m.Message)
	}
	if BusKind(evt) != "chat.push.message.new" {
		t.Errorf("bus kind = %q", BusKind(evt))
	}
}

func TestDecodeReadReceipts(t *testing.T) {
	evt, err := Decode([]byte(`{"type":"message.read","payload":{"conversationId":"c","messageId":"m","userId":"u"}}`))
	if err != nil {
		t.Fatal(err)
	}
	read := evt.(MessagesRead)
	if len(read.Receipts) != 1 || read.Receipts[0] != (ReadReceipt{ConversationID: "c", MessageID: "m", UserID: "u"}) {
		t.Errorf("single receipt = %+v", read.Receipts)
	}

	evt, err = Decode([]byte(`{"type":"message.read","payload":{"receipts":[
		{"conversationId":"c","messageId":"m1","userId":"u"},
		{"conversationId":"c","messageId":"m2","userId":"u"}]}}`))
	if err != nil {
		t.Fatal(err)
	}
	read = evt.(MessagesRead)
	if len(read.Receipts) != 2 || read.Receipts[1].MessageID != "m2" {
		t.Errorf("batch receipts = %+v", read.Receipts)
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"unknown type", `{"type":"friend.request","payload":{}}`, ErrUnknownType},
		{"unroutable message", `{"type":"message.new","payload":{"senderId":"A","content":"x"}}`, ErrInvalidPayload},
		{"typing with both targets", `{"type":"typing","payload":{"userId":"A","isTyping":true,"recipientId":"B","groupId":"g"}}`, ErrInvalidPayload},
		{"typing with no target", `{"type":"typing","payload":{"userId":"A","isTyping":true}}`, ErrInvalidPayload},
		{"like without user", `{"type":"message.like","payload":{"messageId":"m"}}`, ErrInvalidPayload},
		{"reaction without emoji", `{"type":"reaction.added","payload":{"messageId":"m","userId":"u"}}`, ErrInvalidPayload},
		{"empty receipt batch", `{"type":"message.read","payload":{"receipts":[]}}`, ErrInvalidPayload},
		{"wrong payload shape", `{"type":"message.deleted","payload":[1,2]}`, ErrInvalidPayload},
		{"update without id", `{"type":"message.updated","payload":{"content":"x"}}`, ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := Decode([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if evt != nil {
				t.Errorf("event = %#v, want nil", evt)
			}
		})
	}
}

func TestDecodeTypingKeepsTarget(t *testing.T) {
	evt, err := Decode([]byte(`{"type":"typing","payload":{"userId":"A","isTyping":true,"groupId":"g"}}`))
	if err != nil {
		t.Fatal(err)
	}
	typing := evt.(TypingChanged).Typing
	if typing.Key() != (chat.TypingKey{UserID: "A", GroupID: "g"}) || !typing.IsTyping {
		t.Errorf("typing = %+v", typing)
	}
}
