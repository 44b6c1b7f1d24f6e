package syncer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/chatsync/internal/entity"
	"github.com/mbeoliero/chatsync/internal/event"
	"github.com/mbeoliero/chatsync/pkg/constant"
	"github.com/mbeoliero/chatsync/pkg/errcode"
)

// Options configures a Dispatcher
type Options struct {
	CurrentUser entity.UserRef

	// DedupWindow is how long a ledger entry suppresses the redundant
	// notification path. FallbackDelay is how long the direct path waits
	// for the summary path before applying its own mutation. Both cover
	// inter-path network jitter; the exact values are not load-bearing.
	DedupWindow          time.Duration
	FallbackDelay        time.Duration
	ProvisionalRetention time.Duration

	SoundEnabled bool

	Scheduler Scheduler
	Now       func() time.Time
}

func (o *Options) applyDefaults() {
	if o.DedupWindow == 0 {
		o.DedupWindow = time.Second
	}
	if o.FallbackDelay == 0 {
		o.FallbackDelay = 300 * time.Millisecond
	}
	if o.ProvisionalRetention == 0 {
		o.ProvisionalRetention = 5 * time.Minute
	}
	if o.Scheduler == nil {
		o.Scheduler = TimerScheduler{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// pendingRead is a read receipt deferred because its message id was a
// provisional id with no confirmation yet. Retried when the confirmation
// arrives, abandoned silently after the retention window.
type pendingRead struct {
	readerId   string
	deferredAt time.Time
}

// Dispatcher is the single subscription point for the event channel. It
// routes each event to the sync collaborators, owns the merged state
// (conversation list, message lists, counters, presence), and emits state
// deltas to subscribers. Handling is serialized: one event is fully applied
// before the next one or any timer callback touches the state.
type Dispatcher struct {
	mu   sync.Mutex
	opts Options

	identity *IdentityMap
	ledger   *Ledger
	counters *Counters

	convs      map[string]*entity.Conversation
	messages   map[string][]*entity.Message // visible lists per conversation
	msgIndex   map[string]*entity.Message   // by provisional and confirmed id
	presence   map[string]bool
	favorites  map[string]struct{}
	openConvId string

	pendingReads map[string][]pendingRead

	// epoch invalidates in-flight timers: a callback captured with an
	// older epoch is a guaranteed no-op.
	epoch     uint64
	timers    map[uint64]CancelFunc
	nextTimer uint64

	subs    map[int64]Callbacks
	nextSub int64
	closed  bool
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(opts Options) *Dispatcher {
	opts.applyDefaults()
	return &Dispatcher{
		opts:         opts,
		identity:     NewIdentityMap(opts.ProvisionalRetention, opts.Now),
		ledger:       NewLedger(opts.DedupWindow, opts.Now),
		counters:     NewCounters(),
		convs:        make(map[string]*entity.Conversation),
		messages:     make(map[string][]*entity.Message),
		msgIndex:     make(map[string]*entity.Message),
		presence:     make(map[string]bool),
		favorites:    make(map[string]struct{}),
		pendingReads: make(map[string][]pendingRead),
		timers:       make(map[uint64]CancelFunc),
		subs:         make(map[int64]Callbacks),
	}
}

// Subscribe attaches callbacks and returns the lifecycle object that
// detaches them.
func (d *Dispatcher) Subscribe(cb Callbacks) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextSub++
	id := d.nextSub
	d.subs[id] = cb
	return &Subscription{id: id, d: d}
}

func (d *Dispatcher) unsubscribe(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs, id)
}

// Handle routes one event. Idempotent with respect to fully-duplicated
// events and to logical duplicates delivered via the redundant path.
// Expected anomalies (stale counters, unresolved ids, malformed payloads)
// are consumed here; Handle never returns an error for them.
func (d *Dispatcher) Handle(ev event.Event) {
	if ev == nil {
		return
	}
	d.run(func(em *emission) {
		switch e := ev.(type) {
		case event.MessageDelivered:
			d.handleMessageDelivered(e, em)
		case event.ConversationSummaryUpdated:
			d.handleSummary(e, em)
		case event.ReadReceipt:
			d.handleReadReceipt(e, em)
		case event.ThreadReplyCountChanged:
			d.handleThreadReply(e, em)
		case event.IdentityConfirmed:
			d.handleIdentityConfirmed(e, em)
		case event.MembershipChanged:
			d.handleMembership(e, em)
		case event.PresenceChanged:
			d.handlePresence(e, em)
		default:
			log.Warn("unrouted event type: %s", ev.EventName())
		}
	})
}

// run executes fn under the lock, then delivers the accumulated emission
// outside it. All state mutation goes through here.
func (d *Dispatcher) run(fn func(em *emission)) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	em := newEmission()
	fn(em)
	subs, convs, msgs := d.collectLocked(em)
	d.mu.Unlock()

	if em.empty() {
		return
	}
	for _, cb := range subs {
		if cb.OnConversations != nil && convs != nil {
			cb.OnConversations(convs)
		}
		if cb.OnMessages != nil {
			for convId, list := range msgs {
				cb.OnMessages(convId, list)
			}
		}
		if cb.OnPresence != nil {
			for _, p := range em.presence {
				cb.OnPresence(p.userId, p.isOnline)
			}
		}
		if cb.OnNotification != nil {
			for _, intent := range em.notify {
				cb.OnNotification(intent)
			}
		}
	}
}

// collectLocked materializes snapshots for the emission while the lock is
// still held, so subscribers never observe live state.
func (d *Dispatcher) collectLocked(em *emission) ([]Callbacks, []*entity.Conversation, map[string][]*entity.Message) {
	if em.empty() {
		return nil, nil, nil
	}
	subs := make([]Callbacks, 0, len(d.subs))
	for _, cb := range d.subs {
		subs = append(subs, cb)
	}

	var convs []*entity.Conversation
	if em.convsChanged {
		convs = d.rankedLocked()
	}

	var msgs map[string][]*entity.Message
	if len(em.msgConvs) > 0 {
		msgs = make(map[string][]*entity.Message, len(em.msgConvs))
		for convId := range em.msgConvs {
			msgs[convId] = cloneMessages(d.messages[convId])
		}
	}
	return subs, convs, msgs
}

func (d *Dispatcher) rankedLocked() []*entity.Conversation {
	clones := make([]*entity.Conversation, 0, len(d.convs))
	for _, conv := range d.convs {
		clones = append(clones, conv.Clone())
	}
	return Rank(clones, d.favorites)
}

func cloneMessages(list []*entity.Message) []*entity.Message {
	out := make([]*entity.Message, len(list))
	for i, m := range list {
		out[i] = m.Clone()
	}
	return out
}

// ========== Timer scope ==========

// scheduleLocked schedules an epoch-guarded callback. If the dispatcher is
// closed or the epoch has moved on (teardown, resync) before the timer
// fires, the callback is a guaranteed no-op.
func (d *Dispatcher) scheduleLocked(delay time.Duration, fn func(em *emission)) {
	epoch := d.epoch
	d.nextTimer++
	id := d.nextTimer
	cancel := d.opts.Scheduler.Schedule(delay, func() {
		d.run(func(em *emission) {
			if d.epoch != epoch {
				return
			}
			delete(d.timers, id)
			fn(em)
		})
	})
	d.timers[id] = cancel
}

// invalidateTimersLocked cancels every pending timer and bumps the epoch so
// callbacks already in flight no-op.
func (d *Dispatcher) invalidateTimersLocked() {
	d.epoch++
	for id, cancel := range d.timers {
		cancel()
		delete(d.timers, id)
	}
}

// ========== Event handlers ==========

// dedupKey identifies a logical "new message" occurrence across both
// notification paths.
func dedupKey(conversationId, senderId string, sentAt int64, text string) string {
	return fmt.Sprintf("done:%s:%s:%d:%s", conversationId, senderId, sentAt, text)
}

func (d *Dispatcher) handleMessageDelivered(e event.MessageDelivered, em *emission) {
	conv := d.ensureConversationLocked(e.ConversationId)
	if e.Sender.Id != "" {
		conv.Participants[e.Sender.Id] = e.Sender
	}

	msg, created := d.upsertMessageLocked(e)

	// Appending to an open conversation's visible list is a materially
	// different responsibility from counting; it happens regardless of
	// which path wins the dedup race.
	if conv.IsOpen && created {
		d.messages[conv.ConversationId] = append(d.messages[conv.ConversationId], msg)
		em.markMessages(conv.ConversationId)
	}

	// A message id already in the index was counted (or had its counting
	// scheduled) when first observed. The index makes same-id redelivery
	// idempotent for good; the ledger below only arbitrates between the
	// two notification paths within their jitter window.
	if !created {
		return
	}

	key := dedupKey(e.ConversationId, e.Sender.Id, e.SentAt, e.Text)
	if d.ledger.Seen(key) {
		// Summary path already applied the counter mutation.
		return
	}

	lm := entity.LastMessage{
		Text:      e.Text,
		SenderId:  e.Sender.Id,
		MediaKind: e.MediaKind,
		SentAt:    e.SentAt,
	}

	// First-writer-wins with trailing fallback: give the summary path the
	// jitter window, then apply ourselves if it never showed up.
	sender := e.Sender
	own := e.IsOwnEcho
	convId := e.ConversationId
	d.scheduleLocked(d.opts.FallbackDelay, func(em *emission) {
		if d.ledger.Seen(key) {
			return
		}
		d.ledger.Mark(key)
		d.applyCountingLocked(convId, lm, e.SentAt, sender, own, em)
	})
}

func (d *Dispatcher) handleSummary(e event.ConversationSummaryUpdated, em *emission) {
	key := dedupKey(e.ConversationId, e.LastMessage.SenderId, e.LastMessage.SentAt, e.LastMessage.Text)
	if d.ledger.Seen(key) {
		// Direct path (or an earlier duplicate) already applied.
		return
	}
	d.ledger.Mark(key)

	own := e.LastMessage.SenderId == d.opts.CurrentUser.Id
	d.applyCountingLocked(e.ConversationId, e.LastMessage, e.LastActivity, e.Sender, own, em)
}

// applyCountingLocked is the single place where a logical new message
// mutates unread state, last-message snapshot and activity. Both
// notification paths funnel here, gated by the ledger, so it runs exactly
// once per qualifying message.
func (d *Dispatcher) applyCountingLocked(conversationId string, lm entity.LastMessage, activity int64, sender entity.UserRef, own bool, em *emission) {
	conv := d.ensureConversationLocked(conversationId)
	conv.LastMessage = lm
	if activity == 0 {
		activity = lm.SentAt
	}
	conv.Touch(activity)

	mention := !own && DetectMention(lm.Text, d.opts.CurrentUser.DisplayName())
	incremented := d.counters.ReceiveMessage(conv, own)
	if mention && !conv.IsOpen {
		conv.PendingMention = true
	}
	em.convsChanged = true

	if incremented || mention {
		em.notify = append(em.notify, d.notificationFor(conv, sender, lm, mention))
	}
}

func (d *Dispatcher) notificationFor(conv *entity.Conversation, sender entity.UserRef, lm entity.LastMessage, mention bool) NotificationIntent {
	body := lm.Text
	if body == "" {
		body = "[" + constant.MediaKindToName(lm.MediaKind) + "]"
	}
	return NotificationIntent{
		Title:                        sender.DisplayName(),
		Body:                         truncateBody(body, 100),
		ConversationId:               conv.ConversationId,
		IsMention:                    mention,
		ConversationOpen:             conv.IsOpen,
		ShouldPlaySound:              d.opts.SoundEnabled && (!conv.IsOpen || mention),
		ShouldShowSystemNotification: !conv.IsOpen,
	}
}

func (d *Dispatcher) handleReadReceipt(e event.ReadReceipt, em *emission) {
	for _, id := range e.MessageIds {
		target := d.identity.Resolve(id)
		if target == "" {
			// Provisional id with no confirmation yet. The local echo may
			// still live under the provisional id itself.
			if _, ok := d.msgIndex[id]; ok {
				target = id
			} else {
				log.Debug("read receipt deferred: msg_id=%s, reason=%v", id, errcode.ErrUnresolvedId)
				d.deferReadLocked(id, e.Reader.Id)
				continue
			}
		}
		msg, ok := d.msgIndex[target]
		if !ok {
			log.Debug("read receipt dropped: msg_id=%s, reason=%v", target, errcode.ErrMsgNotFound)
			continue
		}
		d.applyReadLocked(msg, e.Reader.Id, em)
	}
}

func (d *Dispatcher) applyReadLocked(msg *entity.Message, readerId string, em *emission) {
	if msg.ReadBy == nil {
		// Reader set not materialized; the count is authoritative and the
		// ledger suppresses the redundant single/batch path.
		key := "read:" + msg.Id + ":" + readerId
		if d.ledger.Seen(key) {
			return
		}
		d.ledger.Mark(key)
		msg.ReadCount++
	} else if !msg.MarkReadBy(readerId) {
		return
	}
	em.markMessages(msg.ConversationId)
}

func (d *Dispatcher) deferReadLocked(provisionalId, readerId string) {
	d.purgePendingReadsLocked()
	d.pendingReads[provisionalId] = append(d.pendingReads[provisionalId], pendingRead{
		readerId:   readerId,
		deferredAt: d.opts.Now(),
	})
}

func (d *Dispatcher) purgePendingReadsLocked() {
	cutoff := d.opts.Now().Add(-d.opts.ProvisionalRetention)
	for id, reads := range d.pendingReads {
		kept := reads[:0]
		for _, r := range reads {
			if !r.deferredAt.Before(cutoff) {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(d.pendingReads, id)
		} else {
			d.pendingReads[id] = kept
		}
	}
}

func (d *Dispatcher) handleThreadReply(e event.ThreadReplyCountChanged, em *emission) {
	if e.NewCount == nil {
		// Partial payload: only the instance carrying the full payload is
		// accepted.
		log.Debug("thread update without count ignored: msg_id=%s", e.MessageId)
		return
	}

	target := d.identity.Resolve(e.MessageId)
	if target == "" {
		target = e.MessageId
	}
	if !d.counters.AcceptThreadReply(target, *e.NewCount) {
		log.Debug("thread update dropped: msg_id=%s, reason=%v", target, errcode.ErrStaleEvent)
		return
	}

	conversationId := e.ConversationId
	if msg, ok := d.msgIndex[target]; ok {
		msg.ThreadReplyCount = d.counters.ThreadCount(target)
		msg.LastThreadReplyFrom = e.LastReplyFrom.Id
		if conversationId == "" {
			conversationId = msg.ConversationId
		}
		em.markMessages(msg.ConversationId)
	}

	conv, ok := d.convs[conversationId]
	if !ok {
		return
	}
	own := e.LastReplyFrom.Id == d.opts.CurrentUser.Id
	if !own && !conv.IsOpen {
		conv.PendingThreadActivity = true
		if DetectMention(e.ReplyText, d.opts.CurrentUser.DisplayName()) {
			conv.PendingMention = true
		}
		em.convsChanged = true
	}
}

func (d *Dispatcher) handleIdentityConfirmed(e event.IdentityConfirmed, em *emission) {
	d.identity.RecordConfirmation(e.ProvisionalId, e.ConfirmedId, e.ConversationId)
	d.counters.Rekey(e.ProvisionalId, e.ConfirmedId)

	pm, hasProvisional := d.msgIndex[e.ProvisionalId]
	if hasProvisional {
		if cm, exists := d.msgIndex[e.ConfirmedId]; exists && cm != pm {
			// The server echo already materialized under the confirmed id;
			// fold the provisional duplicate into it.
			if pm.ThreadReplyCount > cm.ThreadReplyCount {
				cm.ThreadReplyCount = pm.ThreadReplyCount
				cm.LastThreadReplyFrom = pm.LastThreadReplyFrom
			}
			d.removeVisibleLocked(pm.ConversationId, e.ProvisionalId)
			d.msgIndex[e.ProvisionalId] = cm
			pm = cm
		} else {
			pm.Id = e.ConfirmedId
			d.msgIndex[e.ConfirmedId] = pm
		}
		em.markMessages(pm.ConversationId)
	}

	// Retry operations that were waiting on this confirmation.
	if reads, ok := d.pendingReads[e.ProvisionalId]; ok {
		delete(d.pendingReads, e.ProvisionalId)
		if msg, ok := d.msgIndex[e.ConfirmedId]; ok {
			for _, r := range reads {
				d.applyReadLocked(msg, r.readerId, em)
			}
		}
	}
}

func (d *Dispatcher) handleMembership(e event.MembershipChanged, em *emission) {
	conv := d.ensureConversationLocked(e.ConversationId)
	switch e.Kind {
	case constant.MemberAdded:
		conv.Participants[e.User.Id] = e.User
	case constant.MemberRemoved:
		delete(conv.Participants, e.User.Id)
	default:
		log.Debug("unknown membership kind: %d", e.Kind)
		return
	}
	em.convsChanged = true
}

func (d *Dispatcher) handlePresence(e event.PresenceChanged, em *emission) {
	if d.presence[e.UserId] == e.IsOnline {
		return
	}
	d.presence[e.UserId] = e.IsOnline
	em.presence = append(em.presence, presenceDelta{userId: e.UserId, isOnline: e.IsOnline})
}

// ========== Message index ==========

func (d *Dispatcher) upsertMessageLocked(e event.MessageDelivered) (*entity.Message, bool) {
	if existing, ok := d.msgIndex[e.Id]; ok {
		return existing, false
	}
	msg := &entity.Message{
		Id:             e.Id,
		ConversationId: e.ConversationId,
		SenderId:       e.Sender.Id,
		SenderName:     e.Sender.Nickname,
		Text:           e.Text,
		MediaKind:      e.MediaKind,
		SentAt:         e.SentAt,
	}
	d.msgIndex[e.Id] = msg
	return msg, true
}

func (d *Dispatcher) removeVisibleLocked(conversationId, messageId string) {
	list := d.messages[conversationId]
	for i, m := range list {
		if m.Id == messageId {
			d.messages[conversationId] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (d *Dispatcher) ensureConversationLocked(conversationId string) *entity.Conversation {
	conv, ok := d.convs[conversationId]
	if !ok {
		conv = &entity.Conversation{
			ConversationId: conversationId,
			Kind:           kindFromConversationId(conversationId),
			Participants:   make(map[string]entity.UserRef),
		}
		d.convs[conversationId] = conv
	}
	if conv.Participants == nil {
		conv.Participants = make(map[string]entity.UserRef)
	}
	return conv
}

func kindFromConversationId(conversationId string) int32 {
	switch {
	case strings.HasPrefix(conversationId, constant.RoomConversationPrefix):
		return constant.ConvKindRoom
	case strings.HasPrefix(conversationId, constant.AssignedConversationPrefix):
		return constant.ConvKindAssigned
	default:
		return constant.ConvKindDirect
	}
}

// ========== Public state transitions ==========

// OpenConversation marks a conversation as the one displayed to the user.
// Its unread counter resets immediately and never increments while open.
func (d *Dispatcher) OpenConversation(conversationId string) {
	d.run(func(em *emission) {
		if d.openConvId != "" && d.openConvId != conversationId {
			if prev, ok := d.convs[d.openConvId]; ok {
				d.counters.Close(prev)
			}
		}
		conv := d.ensureConversationLocked(conversationId)
		d.counters.Open(conv)
		d.openConvId = conversationId
		em.convsChanged = true
		em.markMessages(conversationId)
	})
}

// CloseConversation marks the open conversation as closed. The unread
// counter is unaffected.
func (d *Dispatcher) CloseConversation(conversationId string) {
	d.run(func(em *emission) {
		conv, ok := d.convs[conversationId]
		if !ok {
			return
		}
		d.counters.Close(conv)
		if d.openConvId == conversationId {
			d.openConvId = ""
		}
		em.convsChanged = true
	})
}

// SetFavorites replaces the externally-supplied favorite id set
func (d *Dispatcher) SetFavorites(ids []string) {
	d.run(func(em *emission) {
		d.favorites = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			d.favorites[id] = struct{}{}
		}
		em.convsChanged = true
	})
}

// Resync replaces the conversation list from a reconciliation snapshot.
// Every pending fallback timer from before the resync is invalidated;
// continuity of in-flight dedup windows across the gap is not assumed.
func (d *Dispatcher) Resync(convs []*entity.Conversation) {
	d.run(func(em *emission) {
		d.invalidateTimersLocked()

		merged := make(map[string]*entity.Conversation, len(convs))
		for _, conv := range convs {
			cp := conv.Clone()
			if cp.Participants == nil {
				cp.Participants = make(map[string]entity.UserRef)
			}
			if cp.ConversationId == d.openConvId {
				cp.IsOpen = true
				cp.UnreadCount = 0
			}
			merged[cp.ConversationId] = cp
		}
		// Keep locally-known conversations the snapshot missed.
		for id, conv := range d.convs {
			if _, ok := merged[id]; !ok {
				merged[id] = conv
			}
		}
		d.convs = merged
		em.convsChanged = true
	})
}

// SeedMessages installs a bulk-loaded message history for a conversation,
// merging with anything already known by id.
func (d *Dispatcher) SeedMessages(conversationId string, msgs []*entity.Message) {
	d.run(func(em *emission) {
		d.ensureConversationLocked(conversationId)
		list := make([]*entity.Message, 0, len(msgs))
		for _, m := range msgs {
			existing, ok := d.msgIndex[m.Id]
			if !ok {
				// Cloned so caller-held maps never alias live state.
				existing = m.Clone()
				if len(existing.ReadBy) > existing.ReadCount {
					existing.ReadCount = len(existing.ReadBy)
				}
				d.msgIndex[existing.Id] = existing
			} else {
				existing.Text = m.Text
				existing.SentAt = m.SentAt
				if m.ReadBy != nil {
					readers := make([]string, 0, len(m.ReadBy))
					for r := range m.ReadBy {
						readers = append(readers, r)
					}
					existing.MaterializeReadBy(readers)
				}
				if m.ThreadReplyCount > existing.ThreadReplyCount {
					existing.ThreadReplyCount = m.ThreadReplyCount
					existing.LastThreadReplyFrom = m.LastThreadReplyFrom
				}
			}
			list = append(list, existing)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].SentAt < list[j].SentAt })
		d.messages[conversationId] = list
		em.markMessages(conversationId)
	})
}

// Close tears the dispatcher down. All pending timers are cancelled; a
// leaked timer that fires after Close is a guaranteed no-op.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.invalidateTimersLocked()
	d.subs = make(map[int64]Callbacks)
}

// ========== Read-only snapshots ==========

// Conversations returns the ranked conversation list
func (d *Dispatcher) Conversations() []*entity.Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rankedLocked()
}

// Conversation returns a snapshot of one conversation, or nil
func (d *Dispatcher) Conversation(conversationId string) *entity.Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()
	conv, ok := d.convs[conversationId]
	if !ok {
		return nil
	}
	return conv.Clone()
}

// Messages returns the visible message list for a conversation
func (d *Dispatcher) Messages(conversationId string) []*entity.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneMessages(d.messages[conversationId])
}

// Message returns a snapshot of one message by provisional or confirmed id
func (d *Dispatcher) Message(id string) *entity.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	target := d.identity.Resolve(id)
	if target == "" {
		target = id
	}
	msg, ok := d.msgIndex[target]
	if !ok {
		return nil
	}
	return msg.Clone()
}

// IsOnline returns the last known presence for a user
func (d *Dispatcher) IsOnline(userId string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presence[userId]
}

func truncateBody(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
