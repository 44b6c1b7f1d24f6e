package event

import (
	"encoding/json"

	"github.com/mbeoliero/chatsync/internal/entity"
	"github.com/mbeoliero/chatsync/pkg/errcode"
)

// Push identifiers (aligned with the gateway protocol)
const (
	PushMessage      = 2001 // Server push message
	PushKickOnline   = 2002 // Kick user offline
	PushConvSummary  = 2003 // Conversation summary update
	PushReadReceipt  = 2004 // Read receipt (single)
	PushReadBatch    = 2005 // Read receipt (batched)
	PushThreadUpdate = 2006 // Thread reply count change
	PushIdentity     = 2007 // Provisional id confirmation
	PushMembership   = 2008 // Membership change
	PushPresence     = 2009 // Presence change
)

// Frame is the wire envelope for server pushes
type Frame struct {
	ReqIdentifier int32           `json:"req_identifier"`
	OperationId   string          `json:"operation_id,omitempty"`
	ErrCode       int             `json:"err_code,omitempty"`
	ErrMsg        string          `json:"err_msg,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Codec decodes wire frames into typed events, normalizing user references
// and own-message detection at the boundary.
type Codec struct {
	// CurrentUserId marks decoded messages from this sender as own echoes
	CurrentUserId string
}

// wire payload shapes; snake_case per the gateway protocol

type messagePayload struct {
	MsgId          string         `json:"msg_id"`
	ConversationId string         `json:"conversation_id"`
	Sender         entity.UserRef `json:"sender"`
	Text           string         `json:"text"`
	MediaKind      int32          `json:"media_kind,omitempty"`
	SentAt         int64          `json:"sent_at"`
}

type summaryPayload struct {
	ConversationId string         `json:"conversation_id"`
	Sender         entity.UserRef `json:"sender"`
	Text           string         `json:"text"`
	MediaKind      int32          `json:"media_kind,omitempty"`
	SentAt         int64          `json:"sent_at"`
	UpdatedAt      int64          `json:"updated_at"`
}

type readReceiptPayload struct {
	MsgId  string         `json:"msg_id,omitempty"`
	MsgIds []string       `json:"msg_ids,omitempty"`
	Reader entity.UserRef `json:"reader"`
	ReadAt int64          `json:"read_at"`
}

type threadUpdatePayload struct {
	MsgId          string         `json:"msg_id"`
	ConversationId string         `json:"conversation_id"`
	NewCount       *int64         `json:"new_count,omitempty"`
	LastReplyFrom  entity.UserRef `json:"last_reply_from"`
	ReplyText      string         `json:"reply_text,omitempty"`
}

type identityPayload struct {
	ClientMsgId    string `json:"client_msg_id"`
	ServerMsgId    string `json:"server_msg_id"`
	ConversationId string `json:"conversation_id"`
}

type membershipPayload struct {
	ConversationId string         `json:"conversation_id"`
	User           entity.UserRef `json:"user"`
	Kind           int32          `json:"kind"`
}

type presencePayload struct {
	UserId   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
}

// DecodeFrame decodes a push frame into a typed event. A nil event with a
// nil error means the frame is a protocol-level push (e.g. kick) with no
// sync semantics. Malformed payloads yield ErrMalformedEvent; the caller
// drops and logs the frame, never more.
func (c *Codec) DecodeFrame(frame *Frame) (Event, error) {
	switch frame.ReqIdentifier {
	case PushMessage:
		var p messagePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, errcode.ErrMalformedEvent.Wrap(err)
		}
		if p.MsgId == "" || p.ConversationId == "" {
			return nil, errcode.ErrMalformedEvent
		}
		return MessageDelivered{
			Id:             p.MsgId,
			ConversationId: p.ConversationId,
			Sender:         p.Sender,
			Text:           p.Text,
			MediaKind:      p.MediaKind,
			SentAt:         p.SentAt,
			IsOwnEcho:      p.Sender.Id == c.CurrentUserId,
		}, nil

	case PushConvSummary:
		var p summaryPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, errcode.ErrMalformedEvent.Wrap(err)
		}
		if p.ConversationId == "" {
			return nil, errcode.ErrMalformedEvent
		}
		lastActivity := p.UpdatedAt
		if lastActivity == 0 {
			lastActivity = p.SentAt
		}
		return ConversationSummaryUpdated{
			ConversationId: p.ConversationId,
			LastMessage: entity.LastMessage{
				Text:      p.Text,
				SenderId:  p.Sender.Id,
				MediaKind: p.MediaKind,
				SentAt:    p.SentAt,
			},
			LastActivity: lastActivity,
			Sender:       p.Sender,
		}, nil

	case PushReadReceipt, PushReadBatch:
		var p readReceiptPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, errcode.ErrMalformedEvent.Wrap(err)
		}
		ids := p.MsgIds
		if p.MsgId != "" {
			ids = append(ids, p.MsgId)
		}
		if len(ids) == 0 || p.Reader.Id == "" {
			return nil, errcode.ErrMalformedEvent
		}
		return ReadReceipt{
			MessageIds: ids,
			Reader:     p.Reader,
			ReadAt:     p.ReadAt,
		}, nil

	case PushThreadUpdate:
		var p threadUpdatePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, errcode.ErrMalformedEvent.Wrap(err)
		}
		if p.MsgId == "" {
			return nil, errcode.ErrMalformedEvent
		}
		return ThreadReplyCountChanged{
			MessageId:      p.MsgId,
			ConversationId: p.ConversationId,
			NewCount:       p.NewCount,
			LastReplyFrom:  p.LastReplyFrom,
			ReplyText:      p.ReplyText,
		}, nil

	case PushIdentity:
		var p identityPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, errcode.ErrMalformedEvent.Wrap(err)
		}
		if p.ClientMsgId == "" || p.ServerMsgId == "" {
			return nil, errcode.ErrMalformedEvent
		}
		return IdentityConfirmed{
			ProvisionalId:  p.ClientMsgId,
			ConfirmedId:    p.ServerMsgId,
			ConversationId: p.ConversationId,
		}, nil

	case PushMembership:
		var p membershipPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, errcode.ErrMalformedEvent.Wrap(err)
		}
		if p.ConversationId == "" || p.User.Id == "" {
			return nil, errcode.ErrMalformedEvent
		}
		return MembershipChanged{
			ConversationId: p.ConversationId,
			User:           p.User,
			Kind:           p.Kind,
		}, nil

	case PushPresence:
		var p presencePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, errcode.ErrMalformedEvent.Wrap(err)
		}
		if p.UserId == "" {
			return nil, errcode.ErrMalformedEvent
		}
		return PresenceChanged{UserId: p.UserId, IsOnline: p.IsOnline}, nil

	case PushKickOnline:
		return nil, nil

	default:
		return nil, errcode.ErrInvalidProtocol
	}
}

// Decode decodes raw frame bytes into a typed event
func (c *Codec) Decode(data []byte) (Event, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, errcode.ErrInvalidProtocol.Wrap(err)
	}
	return c.DecodeFrame(&frame)
}
