package chat

// OpKind names a remote operation that follows the requested/succeeded/failed protocol.
type OpKind string

const (
	OpFetchConversation      OpKind = "fetch_conversation"
	OpFetchUserConversations OpKind = "fetch_user_conversations"
	OpSendMessage            OpKind = "send_message"
	OpUpdateMessage          OpKind = "update_message"
	OpDeleteMessage          OpKind = "delete_message"
	OpInviteToGroup          OpKind = "invite_to_group"
	OpAddReaction            OpKind = "add_reaction"
	OpRemoveReaction         OpKind = "remove_reaction"
	OpMarkUnread             OpKind = "mark_unread"
	OpDeleteConversation     OpKind = "delete_conversation"
)

var fallbackMessages = map[OpKind]string{
	OpFetchConversation:      "Failed to fetch conversation",
	OpFetchUserConversations: "Failed to fetch conversations",
	OpSendMessage:            "Failed to send message",
	OpUpdateMessage:          "Failed to update message",
	OpDeleteMessage:          "Failed to delete message",
	OpInviteToGroup:          "Failed to invite users to group",
	OpAddReaction:            "Failed to add reaction",
	OpRemoveReaction:         "Failed to remove reaction",
	OpMarkUnread:             "Failed to mark message as unread",
	OpDeleteConversation:     "Failed to delete conversation",
}

// Valid reports whether k is a known operation kind.
func (k OpKind) Valid() bool {
	_, ok := fallbackMessages[k]
	return ok
}

// FallbackMessage is the error recorded when a failure payload has no message.
func (k OpKind) FallbackMessage() string {
	if msg, ok := fallbackMessages[k]; ok {
		return msg
	}
	return "Operation failed"
}
