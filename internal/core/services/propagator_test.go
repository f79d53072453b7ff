package services

import (
	"testing"
	"time"

	"github.com/campusrun/backend/internal/domain"
)

func changeEvent(taskID string, seq uint64) domain.ChangeEvent {
	return domain.ChangeEvent{
		TaskID:     taskID,
		FromStatus: domain.TaskStatusOpen,
		ToStatus:   domain.TaskStatusAccepted,
		ActorID:    "helper",
		Sequence:   seq,
		CreatedAt:  time.Now(),
	}
}

func recv(t *testing.T, sub Subscription) domain.ChangeEvent {
	t.Helper()
	select {
	case event, ok := <-sub.Events:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.ChangeEvent{}
}

func TestPublishFansOutToTaskAndParticipants(t *testing.T) {
	p := NewPropagator(8, testLogger())
	taskSub := p.SubscribeTask("t1")
	defer taskSub.Close()
	reqSub := p.SubscribeParticipant("req")
	defer reqSub.Close()
	helperSub := p.SubscribeParticipant("helper")
	defer helperSub.Close()
	otherSub := p.SubscribeParticipant("bystander")
	defer otherSub.Close()

	p.Publish(changeEvent("t1", 1), "req", "helper")

	for _, sub := range []Subscription{taskSub, reqSub, helperSub} {
		if got := recv(t, sub); got.Sequence != 1 {
			t.Fatalf("expected sequence 1, got %d", got.Sequence)
		}
	}
	select {
	case event := <-otherSub.Events:
		t.Fatalf("bystander received %+v", event)
	default:
	}
}

func TestPublishToOtherTaskNotDelivered(t *testing.T) {
	p := NewPropagator(8, testLogger())
	sub := p.SubscribeTask("t1")
	defer sub.Close()

	p.Publish(changeEvent("t2", 1))

	select {
	case event := <-sub.Events:
		t.Fatalf("received event for wrong task: %+v", event)
	default:
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	p := NewPropagator(2, testLogger())
	sub := p.SubscribeTask("t1")
	defer sub.Close()

	for seq := uint64(1); seq <= 4; seq++ {
		p.Publish(changeEvent("t1", seq))
	}

	// buffer of 2: events 1 and 2 were shed, 3 and 4 remain. The
	// reconciler sees the gap and replays.
	if got := recv(t, sub); got.Sequence != 3 {
		t.Fatalf("expected sequence 3 after overflow, got %d", got.Sequence)
	}
	if got := recv(t, sub); got.Sequence != 4 {
		t.Fatalf("expected sequence 4, got %d", got.Sequence)
	}
}

func TestCloseStopsDeliveryAndIsIdempotent(t *testing.T) {
	p := NewPropagator(8, testLogger())
	sub := p.SubscribeTask("t1")

	sub.Close()
	sub.Close()

	// publish after close must not panic
	p.Publish(changeEvent("t1", 1))

	if _, ok := <-sub.Events; ok {
		t.Fatal("expected closed channel")
	}
}

func TestPublishWithNoSubscribersIsANoOp(t *testing.T) {
	p := NewPropagator(8, testLogger())
	p.Publish(changeEvent("t1", 1), "req")
}
