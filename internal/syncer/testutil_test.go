package syncer

import (
	"time"

	"github.com/mbeoliero/chatsync/internal/entity"
	"github.com/mbeoliero/chatsync/internal/event"
)

// fakeClock is a manually-advanced time source
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// manualScheduler records scheduled callbacks and fires them on demand, so
// tests control the interleaving of the two notification paths exactly.
type manualScheduler struct {
	tasks []*manualTask
}

type manualTask struct {
	delay     time.Duration
	fn        func()
	cancelled bool
	fired     bool
}

func (s *manualScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := &manualTask{delay: d, fn: fn}
	s.tasks = append(s.tasks, t)
	return func() { t.cancelled = true }
}

// Fire runs every pending callback that was not cancelled
func (s *manualScheduler) Fire() {
	for _, t := range s.tasks {
		if t.cancelled || t.fired {
			continue
		}
		t.fired = true
		t.fn()
	}
}

// Pending returns the number of callbacks not yet fired or cancelled
func (s *manualScheduler) Pending() int {
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled && !t.fired {
			n++
		}
	}
	return n
}

type testRig struct {
	d     *Dispatcher
	clock *fakeClock
	sched *manualScheduler
}

func newTestRig(user entity.UserRef) *testRig {
	clock := newFakeClock()
	sched := &manualScheduler{}
	d := NewDispatcher(Options{
		CurrentUser:  user,
		SoundEnabled: true,
		Scheduler:    sched,
		Now:          clock.Now,
	})
	return &testRig{d: d, clock: clock, sched: sched}
}

func directMessage(id, convId, senderId, text string, sentAt int64) event.MessageDelivered {
	return event.MessageDelivered{
		Id:             id,
		ConversationId: convId,
		Sender:         entity.UserRef{Id: senderId, Nickname: senderId},
		Text:           text,
		SentAt:         sentAt,
	}
}

func summaryFor(convId, senderId, text string, sentAt int64) event.ConversationSummaryUpdated {
	return event.ConversationSummaryUpdated{
		ConversationId: convId,
		LastMessage: entity.LastMessage{
			Text:     text,
			SenderId: senderId,
			SentAt:   sentAt,
		},
		LastActivity: sentAt,
		Sender:       entity.UserRef{Id: senderId, Nickname: senderId},
	}
}
