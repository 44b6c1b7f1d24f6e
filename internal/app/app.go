// Package app wires the REST client, gateway connection, snapshot store and
// sync dispatcher into one client runtime.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/chatsync/internal/config"
	"github.com/mbeoliero/chatsync/internal/entity"
	"github.com/mbeoliero/chatsync/internal/event"
	"github.com/mbeoliero/chatsync/internal/gateway"
	"github.com/mbeoliero/chatsync/internal/store"
	"github.com/mbeoliero/chatsync/internal/syncer"
	"github.com/mbeoliero/chatsync/pkg/constant"
	"github.com/mbeoliero/chatsync/pkg/idgen"
	"github.com/mbeoliero/chatsync/pkg/jwt"
	"github.com/mbeoliero/chatsync/sdk"
)

// App is the client runtime. Build it with New, authenticate with Login,
// then Start to connect to the gateway. State flows out through the
// dispatcher subscription passed to Start.
type App struct {
	cfg   *config.Config
	api   *sdk.Client
	cache *store.Store

	dispatcher *syncer.Dispatcher
	gw         *gateway.Client

	userId   string
	nickname string

	mu      sync.Mutex
	relogin *time.Timer
	closed  bool
}

// New builds the runtime: snapshot store plus REST client
func New(cfg *config.Config) (*App, error) {
	api, err := sdk.NewClient(cfg.Server.RESTBaseURL)
	if err != nil {
		return nil, err
	}

	cache, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:   cfg,
		api:   api,
		cache: cache,
	}, nil
}

// Login authenticates and builds the dispatcher seeded from the local cache,
// so callers can render the last known state before Start brings the
// gateway up.
func (a *App) Login(ctx context.Context, userId, password string) error {
	resp, err := a.api.LoginWithUserId(ctx, userId, password, a.cfg.Server.PlatformId)
	if err != nil {
		return err
	}

	a.userId = userId
	a.nickname = userId
	if resp.UserInfo != nil && resp.UserInfo.Nickname != "" {
		a.nickname = resp.UserInfo.Nickname
	}

	a.dispatcher = syncer.NewDispatcher(syncer.Options{
		CurrentUser:          entity.UserRef{Id: a.userId, Nickname: a.nickname},
		DedupWindow:          a.cfg.Sync.DedupWindow,
		FallbackDelay:        a.cfg.Sync.FallbackDelay,
		ProvisionalRetention: a.cfg.Sync.ProvisionalRetention,
		SoundEnabled:         a.cfg.Notify.SoundEnabled,
	})

	// Render from cache while the first resync is in flight
	if cached, err := a.cache.LoadConversations(ctx); err != nil {
		log.CtxWarn(ctx, "load cached conversations failed: %v", err)
	} else if len(cached) > 0 {
		a.dispatcher.Resync(cached)
		log.CtxInfo(ctx, "restored %d conversations from cache", len(cached))
	}

	a.scheduleRelogin(ctx, resp.Token, password)
	return nil
}

// Start subscribes cb and brings the gateway connection up. Each successful
// (re)connect triggers a resync against the REST snapshot.
func (a *App) Start(cb syncer.Callbacks) *syncer.Subscription {
	sub := a.dispatcher.Subscribe(cb)

	a.gw = gateway.NewClient(gateway.Options{
		URL:          a.cfg.Server.GatewayURL,
		Token:        a.api.GetToken(),
		UserId:       a.userId,
		PlatformId:   a.cfg.Server.PlatformId,
		DialTimeout:  a.cfg.Server.DialTimeout,
		PongWait:     a.cfg.Server.PongWait,
		PingPeriod:   a.cfg.Server.PingPeriod,
		WriteWait:    a.cfg.Server.WriteWait,
		MaxMsgSize:   a.cfg.Server.MaxMsgSize,
		ReconnectMin: a.cfg.Server.ReconnectMin,
		ReconnectMax: a.cfg.Server.ReconnectMax,
	}, a.dispatcher, a.Resync)
	a.gw.Start()

	return sub
}

// Resync pulls the server conversation snapshot, feeds it to the dispatcher
// and refreshes the local cache.
func (a *App) Resync(ctx context.Context) error {
	infos, err := a.api.GetConversationList(ctx)
	if err != nil {
		return err
	}

	convs := make([]*entity.Conversation, 0, len(infos))
	for _, info := range infos {
		convs = append(convs, convFromInfo(info))
	}
	a.dispatcher.Resync(convs)

	if err := a.cache.SaveConversations(ctx, a.dispatcher.Conversations()); err != nil {
		log.CtxWarn(ctx, "save conversation snapshot failed: %v", err)
	}
	return nil
}

// LoadHistory pulls message history for a conversation into the dispatcher,
// cache first for instant rendering, then the server's version.
func (a *App) LoadHistory(ctx context.Context, conversationId string, limit int) error {
	if cached, err := a.cache.LoadMessages(ctx, conversationId, limit); err == nil && len(cached) > 0 {
		a.dispatcher.SeedMessages(conversationId, cached)
	}

	resp, err := a.api.PullMessages(ctx, conversationId, 0, limit)
	if err != nil {
		return err
	}

	msgs := make([]*entity.Message, 0, len(resp.Messages))
	for _, info := range resp.Messages {
		msgs = append(msgs, msgFromInfo(info))
	}
	a.dispatcher.SeedMessages(conversationId, msgs)

	if err := a.cache.SaveMessages(ctx, msgs); err != nil {
		log.CtxWarn(ctx, "save message history failed: %v", err)
	}
	return nil
}

// Send sends a text message. The provisional copy appears in local state
// immediately; the server response confirms its identity.
func (a *App) Send(ctx context.Context, conversationId, text string) error {
	provisionalId, err := idgen.NextProvisionalId()
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	a.dispatcher.Handle(event.MessageDelivered{
		Id:             provisionalId,
		ConversationId: conversationId,
		Sender:         entity.UserRef{Id: a.userId, Nickname: a.nickname},
		Text:           text,
		SentAt:         now,
		IsOwnEcho:      true,
	})

	resp, err := a.api.SendTextMessage(ctx, provisionalId, conversationId, text)
	if err != nil {
		return err
	}

	a.dispatcher.Handle(event.IdentityConfirmed{
		ProvisionalId:  resp.ClientMsgId,
		ConfirmedId:    resp.MsgId,
		ConversationId: resp.ConversationId,
	})
	return nil
}

// OpenConversation marks a conversation as viewed locally and tells the
// server so other devices drop their badges too.
func (a *App) OpenConversation(ctx context.Context, conversationId string) {
	a.dispatcher.OpenConversation(conversationId)

	if err := a.api.MarkRead(ctx, conversationId, time.Now().UnixMilli()); err != nil {
		log.CtxWarn(ctx, "mark read failed: conversation_id=%s, error=%v", conversationId, err)
	}
}

// CloseConversation marks the conversation as no longer viewed
func (a *App) CloseConversation(conversationId string) {
	a.dispatcher.CloseConversation(conversationId)
}

// SetFavorite pins or unpins a conversation locally and on the server
func (a *App) SetFavorite(ctx context.Context, conversationId string, favorite bool) error {
	if err := a.api.SetConversationFavorite(ctx, conversationId, favorite); err != nil {
		return err
	}
	return a.Resync(ctx)
}

// Dispatcher exposes the sync state for direct snapshot reads
func (a *App) Dispatcher() *syncer.Dispatcher {
	return a.dispatcher
}

// scheduleRelogin refreshes the token shortly before it expires
func (a *App) scheduleRelogin(ctx context.Context, token, password string) {
	ttl, err := jwt.ExpiresIn(token, time.Now())
	if err != nil || ttl <= 0 {
		log.CtxDebug(ctx, "token expiry unknown, skipping relogin schedule: %v", err)
		return
	}

	lead := ttl - time.Minute
	if lead <= 0 {
		lead = ttl / 2
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.relogin != nil {
		a.relogin.Stop()
	}
	a.relogin = time.AfterFunc(lead, func() {
		rctx := context.TODO()
		resp, err := a.api.LoginWithUserId(rctx, a.userId, password, a.cfg.Server.PlatformId)
		if err != nil {
			log.CtxError(rctx, "token refresh failed: user_id=%s, error=%v", a.userId, err)
			return
		}
		log.CtxInfo(rctx, "token refreshed: user_id=%s", a.userId)
		a.scheduleRelogin(rctx, resp.Token, password)
	})
}

// Close tears everything down: gateway first so no events arrive for a
// closed dispatcher, then the dispatcher, then the cache.
func (a *App) Close() error {
	a.mu.Lock()
	a.closed = true
	if a.relogin != nil {
		a.relogin.Stop()
		a.relogin = nil
	}
	a.mu.Unlock()
	if a.gw != nil {
		a.gw.Close()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	return a.cache.Close()
}

func convFromInfo(info *sdk.ConversationInfo) *entity.Conversation {
	conv := &entity.Conversation{
		ConversationId: info.ConversationId,
		Kind:           kindFromId(info.ConversationId),
		PeerUserId:     info.PeerUserId,
		IsFavorite:     info.IsFavorite,
		UnreadCount:    info.UnreadCount,
		LastActivity:   info.UpdatedAt,
		LastMessage: entity.LastMessage{
			Text:      info.LastMsgText,
			SenderId:  info.LastMsgSender,
			MediaKind: info.LastMsgKind,
			SentAt:    info.LastMsgSentAt,
		},
	}
	if len(info.Participants) > 0 {
		conv.Participants = make(map[string]entity.UserRef, len(info.Participants))
		for _, p := range info.Participants {
			conv.Participants[p.Id] = entity.UserRef{Id: p.Id, Nickname: p.Nickname}
		}
	}
	return conv
}

func msgFromInfo(info *sdk.MessageInfo) *entity.Message {
	return &entity.Message{
		Id:               info.MsgId,
		ConversationId:   info.ConversationId,
		SenderId:         info.SenderId,
		SenderName:       info.SenderName,
		Text:             info.Text,
		MediaKind:        info.MediaKind,
		SentAt:           info.SentAt,
		ThreadReplyCount: info.ThreadReplyCount,
	}
}

func kindFromId(conversationId string) int32 {
	switch {
	case strings.HasPrefix(conversationId, constant.RoomConversationPrefix):
		return constant.ConvKindRoom
	case strings.HasPrefix(conversationId, constant.AssignedConversationPrefix):
		return constant.ConvKindAssigned
	default:
		return constant.ConvKindDirect
	}
}
