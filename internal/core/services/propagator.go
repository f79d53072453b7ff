package services

import (
	"sync"

	"github.com/campusrun/backend/internal/domain"
	"github.com/campusrun/backend/internal/infrastructure/logger"
)

const defaultSubscriberBuffer = 64

// Propagator fans committed change events out to active subscriptions keyed
// by task id and by participant id. It sits outside the write path: delivery
// is at-least-once and best-effort ordered, overflow drops the oldest
// buffered event, and nothing here can roll back a committed transition.
// Gap repair is the client reconciler's job.
type Propagator struct {
	mu       sync.RWMutex
	taskSubs map[string]map[*subscriber]struct{}
	userSubs map[string]map[*subscriber]struct{}
	buffer   int
	log      *logger.Logger
}

// Subscription is a live event feed. Close is idempotent.
type Subscription struct {
	Events <-chan domain.ChangeEvent
	cancel func()
}

func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func NewPropagator(buffer int, log *logger.Logger) *Propagator {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Propagator{
		taskSubs: map[string]map[*subscriber]struct{}{},
		userSubs: map[string]map[*subscriber]struct{}{},
		buffer:   buffer,
		log:      log,
	}
}

// SubscribeTask registers for every event of one task.
func (p *Propagator) SubscribeTask(taskID string) Subscription {
	return p.subscribe(p.taskSubs, taskID)
}

// SubscribeParticipant registers for events of every task the user is
// requester or helper on, for cross-surface consumers (chat header,
// notification badge).
func (p *Propagator) SubscribeParticipant(userID string) Subscription {
	return p.subscribe(p.userSubs, userID)
}

func (p *Propagator) subscribe(registry map[string]map[*subscriber]struct{}, key string) Subscription {
	sub := newSubscriber(p.buffer)
	p.mu.Lock()
	if registry[key] == nil {
		registry[key] = map[*subscriber]struct{}{}
	}
	registry[key][sub] = struct{}{}
	p.mu.Unlock()
	return Subscription{
		Events: sub.channel(),
		cancel: func() {
			p.mu.Lock()
			if subs := registry[key]; subs != nil {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(registry, key)
				}
			}
			p.mu.Unlock()
			sub.close()
		},
	}
}

// Publish delivers the event to all task and participant subscriptions.
// It never blocks and never returns an error; a full subscriber drops its
// oldest buffered event instead.
func (p *Propagator) Publish(event domain.ChangeEvent, participants ...string) {
	p.mu.RLock()
	targets := make([]*subscriber, 0, 4)
	for sub := range p.taskSubs[event.TaskID] {
		targets = append(targets, sub)
	}
	for _, id := range participants {
		for sub := range p.userSubs[id] {
			targets = append(targets, sub)
		}
	}
	p.mu.RUnlock()

	for _, sub := range targets {
		if sub.deliver(event) {
			continue
		}
		if p.log != nil {
			p.log.Warnw("propagator_dropped_event",
				"task_id", event.TaskID,
				"sequence", event.Sequence,
			)
		}
	}
}

type subscriber struct {
	ch      chan domain.ChangeEvent
	closeMu sync.Mutex
	closed  bool
}

func newSubscriber(capacity int) *subscriber {
	return &subscriber{ch: make(chan domain.ChangeEvent, capacity)}
}

func (s *subscriber) channel() <-chan domain.ChangeEvent {
	return s.ch
}

// deliver reports whether the event was enqueued without displacing another.
func (s *subscriber) deliver(event domain.ChangeEvent) bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- event:
		return true
	default:
	}
	// Queue overflow: shed the oldest buffered event to make room. The
	// reconciler detects the gap and replays from the timeline.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- event:
	default:
	}
	return false
}

func (s *subscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
