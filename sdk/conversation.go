package sdk

import "context"

// GetConversationList gets all conversations for the current user. This is
// the bulk snapshot used for the initial load and for resync after a gap in
// gateway coverage.
func (c *Client) GetConversationList(ctx context.Context) ([]*ConversationInfo, error) {
	var result []*ConversationInfo
	if err := c.get(ctx, "/conversation/list", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetConversation gets a specific conversation
func (c *Client) GetConversation(ctx context.Context, conversationId string) (*ConversationInfo, error) {
	params := map[string]string{"conversation_id": conversationId}
	var result ConversationInfo
	if err := c.get(ctx, "/conversation/info", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateConversation updates conversation settings
func (c *Client) UpdateConversation(ctx context.Context, conversationId string, req *UpdateConversationRequest) error {
	path := "/conversation/update?conversation_id=" + conversationId
	return c.put(ctx, path, req, nil)
}

// SetConversationFavorite sets the favorite (pinned) status of a conversation
func (c *Client) SetConversationFavorite(ctx context.Context, conversationId string, isFavorite bool) error {
	return c.UpdateConversation(ctx, conversationId, &UpdateConversationRequest{
		IsFavorite: &isFavorite,
	})
}

// MarkRead tells the server the conversation has been viewed up to readAt,
// so other devices clear their unread badges too.
func (c *Client) MarkRead(ctx context.Context, conversationId string, readAt int64) error {
	req := &MarkReadRequest{
		ConversationId: conversationId,
		ReadAt:         readAt,
	}
	return c.post(ctx, "/conversation/mark_read", req, nil)
}
