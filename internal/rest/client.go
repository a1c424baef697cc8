// Package rest is the HTTP transport for remote chat operations.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/matheus3301/chatmirror/internal/chat"
	"github.com/matheus3301/chatmirror/internal/events"
	"github.com/matheus3301/chatmirror/internal/outbox"
)

var _ outbox.Transport = (*Client)(nil)

// Client calls the chat REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client for the API rooted at baseURL. A nil client
// uses http.DefaultClient.
func NewClient(baseURL, token string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type sendBody struct {
	ClientID    string `json:"clientId,omitempty"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId,omitempty"`
	GroupID     string `json:"groupId,omitempty"`
	Content     string `json:"content"`
}

type contentBody struct {
	Content string `json:"content"`
}

type userBody struct {
	UserID string `json:"userId"`
}

type reactionBody struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

type inviteBody struct {
	UserIDs []string `json:"userIds"`
}

type errorBody struct {
	Error  string `json:"error"`
	Action string `json:"action"`
}

// Do performs op. It implements outbox.Transport.
func (c *Client) Do(ctx context.Context, op events.Operation) (outbox.Result, error) {
	conv := "/conversations/" + url.PathEscape(op.ConversationID)
	msg := conv + "/messages/" + url.PathEscape(op.MessageID)

	switch op.Kind {
	case chat.OpFetchConversation:
		q := url.Values{}
		if op.Skip > 0 {
			q.Set("skip", strconv.Itoa(op.Skip))
		}
		if op.Limit > 0 {
			q.Set("limit", strconv.Itoa(op.Limit))
		}
		path := conv
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		var out chat.Conversation
		found, err := c.call(ctx, http.MethodGet, path, nil, &out)
		if err != nil {
			return outbox.Result{}, err
		}
		if !found {
			shell := chat.Shell(op.ConversationID)
			return outbox.Result{Conversation: &shell}, nil
		}
		return outbox.Result{Conversation: &out}, nil

	case chat.OpFetchUserConversations:
		var out []chat.Conversation
		if _, err := c.call(ctx, http.MethodGet, "/users/"+url.PathEscape(op.UserID)+"/conversations", nil, &out); err != nil {
			return outbox.Result{}, err
		}
		return outbox.Result{Conversations: out}, nil

	case chat.OpSendMessage:
		return c.conversation(ctx, http.MethodPost, conv+"/messages", sendBody{
			ClientID:    op.MessageID,
			SenderID:    op.UserID,
			RecipientID: op.RecipientID,
			GroupID:     op.GroupID,
			Content:     op.Content,
		})
	case chat.OpUpdateMessage:
		return c.conversation(ctx, http.MethodPatch, msg, contentBody{Content: op.Content})
	case chat.OpDeleteMessage:
		return c.conversation(ctx, http.MethodDelete, msg, nil)
	case chat.OpMarkUnread:
		return c.conversation(ctx, http.MethodPost, msg+"/unread", userBody{UserID: op.UserID})
	case chat.OpAddReaction:
		return c.conversation(ctx, http.MethodPost, msg+"/reactions", reactionBody{UserID: op.UserID, Emoji: op.Emoji})
	case chat.OpRemoveReaction:
		return c.conversation(ctx, http.MethodDelete, msg+"/reactions/"+url.PathEscape(op.UserID), nil)
	case chat.OpInviteToGroup:
		return c.conversation(ctx, http.MethodPost, conv+"/invite", inviteBody{UserIDs: op.UserIDs})
	case chat.OpDeleteConversation:
		_, err := c.call(ctx, http.MethodDelete, conv, nil, nil)
		return outbox.Result{}, err
	}
	return outbox.Result{}, fmt.Errorf("unsupported operation %q", op.Kind)
}

// conversation performs a call whose response, if any, is the updated conversation.
func (c *Client) conversation(ctx context.Context, method, path string, body any) (outbox.Result, error) {
	var out chat.Conversation
	found, err := c.call(ctx, method, path, body, &out)
	if err != nil {
		return outbox.Result{}, err
	}
	if !found || out.ID == "" {
		return outbox.Result{}, nil
	}
	return outbox.Result{Conversation: &out}, nil
}

// call performs one request. It reports false without error for 404 on GET
// and for empty responses; any other non-2xx status is a *chat.RemoteError.
func (c *Client) call(ctx context.Context, method, path string, body, out any) (bool, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, remoteError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return false, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

func remoteError(resp *http.Response) error {
	re := &chat.RemoteError{Status: resp.StatusCode}
	var eb errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&eb); err == nil {
		re.Message = eb.Error
		re.Action = eb.Action
	}
	return re
}
