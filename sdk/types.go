package sdk

import "encoding/json"

// Response represents the standard API response envelope
type Response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UserInfo represents public user info
type UserInfo struct {
	Id        string  `json:"id"`
	Nickname  string  `json:"nickname"`
	Avatar    string  `json:"avatar,omitempty"`
	Extra     *string `json:"extra,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// ConversationInfo is the server-side snapshot of one conversation, returned
// by the bulk list endpoint and used to seed or resync client state.
type ConversationInfo struct {
	ConversationId string      `json:"conversation_id"`
	PeerUserId     string      `json:"peer_user_id,omitempty"`
	IsFavorite     bool        `json:"is_favorite"`
	UnreadCount    int64       `json:"unread_count"`
	LastMsgText    string      `json:"last_msg_text,omitempty"`
	LastMsgSender  string      `json:"last_msg_sender,omitempty"`
	LastMsgKind    int32       `json:"last_msg_kind,omitempty"`
	LastMsgSentAt  int64       `json:"last_msg_sent_at,omitempty"`
	UpdatedAt      int64       `json:"updated_at"`
	Participants   []*UserInfo `json:"participants,omitempty"`
}

// MessageInfo represents one message in the server history
type MessageInfo struct {
	MsgId            string `json:"msg_id"`
	ClientMsgId      string `json:"client_msg_id,omitempty"`
	ConversationId   string `json:"conversation_id"`
	SenderId         string `json:"sender_id"`
	SenderName       string `json:"sender_name,omitempty"`
	Text             string `json:"text,omitempty"`
	MediaKind        int32  `json:"media_kind,omitempty"`
	SentAt           int64  `json:"sent_at"`
	ReadCount        int64  `json:"read_count,omitempty"`
	ThreadReplyCount int64  `json:"thread_reply_count,omitempty"`
}

// ===== Request/response types =====

// RegisterRequest represents user registration request
type RegisterRequest struct {
	UserId   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

// LoginRequest
type LoginRequest struct {
	UserId     string `json:"user_id"`
	Password   string `json:"password"`
	PlatformId int    `json:"platform_id"`
}

// LoginResponse represents user login response
type LoginResponse struct {
	Token    string    `json:"token"`
	UserInfo *UserInfo `json:"user_info"`
}

// SendMessageRequest represents send message request. ClientMsgId is the
// caller-generated provisional id echoed back in the response.
type SendMessageRequest struct {
	ClientMsgId    string `json:"client_msg_id"`
	ConversationId string `json:"conversation_id,omitempty"`
	RecvId         string `json:"recv_id,omitempty"` // For new direct conversations
	Text           string `json:"text,omitempty"`
	MediaKind      int32  `json:"media_kind,omitempty"`
}

// SendMessageResponse represents send message response
type SendMessageResponse struct {
	MsgId          string `json:"msg_id"`
	ClientMsgId    string `json:"client_msg_id"`
	ConversationId string `json:"conversation_id"`
	SentAt         int64  `json:"sent_at"`
}

// PullMessagesResponse represents pull messages response, newest last
type PullMessagesResponse struct {
	Messages []*MessageInfo `json:"messages"`
	HasMore  bool           `json:"has_more"`
}

// MarkReadRequest represents mark read request
type MarkReadRequest struct {
	ConversationId string `json:"conversation_id"`
	ReadAt         int64  `json:"read_at"`
}

// UpdateConversationRequest represents update conversation request
type UpdateConversationRequest struct {
	IsFavorite *bool `json:"is_favorite,omitempty"`
}

// GetUsersOnlineStatusRequest represents get users online status request
type GetUsersOnlineStatusRequest struct {
	UserIds []string `json:"user_ids"`
}

// OnlineStatus
type OnlineStatus struct {
	UserId   string `json:"user_id"`
	Online   bool   `json:"online"`
	Platform string `json:"platform,omitempty"`
}
