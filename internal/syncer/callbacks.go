package syncer

import "github.com/mbeoliero/chatsync/internal/entity"

// NotificationIntent tells the presentation layer that a notification is
// warranted and what it should say. The sync core never touches the OS
// notification API; the external layer makes the final display decision
// using the flags carried here.
type NotificationIntent struct {
	Title            string
	Body             string
	ConversationId   string
	IsMention        bool
	ConversationOpen bool

	ShouldPlaySound              bool
	ShouldShowSystemNotification bool
}

// Callbacks receives state deltas from the dispatcher. All fields are
// optional. Callbacks are invoked outside the dispatcher lock, after the
// triggering event has been fully applied; conversation deltas always carry
// the complete ranked list so re-rendering is idempotent.
type Callbacks struct {
	OnConversations func(convs []*entity.Conversation)
	OnMessages      func(conversationId string, msgs []*entity.Message)
	OnPresence      func(userId string, isOnline bool)
	OnNotification  func(intent NotificationIntent)
}

// Subscription is the lifecycle object returned by Subscribe. Cancel
// detaches the callbacks; a cancelled subscription never fires again.
type Subscription struct {
	id int64
	d  *Dispatcher
}

// Cancel detaches the subscription
func (s *Subscription) Cancel() {
	if s.d != nil {
		s.d.unsubscribe(s.id)
		s.d = nil
	}
}

// presenceDelta is one presence change queued for emission
type presenceDelta struct {
	userId   string
	isOnline bool
}

// emission accumulates the externally-visible effects of one handled event.
// Snapshots are materialized under the dispatcher lock and delivered after
// it is released.
type emission struct {
	convsChanged bool
	msgConvs     map[string]struct{}
	presence     []presenceDelta
	notify       []NotificationIntent
}

func newEmission() *emission {
	return &emission{msgConvs: make(map[string]struct{})}
}

func (em *emission) markMessages(conversationId string) {
	em.msgConvs[conversationId] = struct{}{}
}

func (em *emission) empty() bool {
	return !em.convsChanged && len(em.msgConvs) == 0 &&
		len(em.presence) == 0 && len(em.notify) == 0
}
