package sdk

import (
	"context"
	"strconv"
)

// SendMessage sends a message. The response carries the server-confirmed
// msg id for the provisional ClientMsgId.
func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	var result SendMessageResponse
	if err := c.post(ctx, "/msg/send", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendTextMessage is a convenience method to send a text message to a conversation
func (c *Client) SendTextMessage(ctx context.Context, clientMsgId, conversationId, text string) (*SendMessageResponse, error) {
	return c.SendMessage(ctx, &SendMessageRequest{
		ClientMsgId:    clientMsgId,
		ConversationId: conversationId,
		Text:           text,
	})
}

// PullMessages pulls message history for a conversation, newest last.
// before=0 means from the latest.
func (c *Client) PullMessages(ctx context.Context, conversationId string, before int64, limit int) (*PullMessagesResponse, error) {
	params := map[string]string{
		"conversation_id": conversationId,
	}
	if before > 0 {
		params["before"] = strconv.FormatInt(before, 10)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var result PullMessagesResponse
	if err := c.get(ctx, "/msg/pull", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
