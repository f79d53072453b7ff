package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/campusrun/backend/internal/domain"
)

func newTransition(repo *fakeTaskRepo, pub *recordingPublisher, allowHelperCancel bool) *TransitionService {
	return NewTransitionService(TransitionServiceConfig{
		Repository: repo,
		Table:      domain.NewTransitionTable(allowHelperCancel),
		Publisher:  pub,
		Logger:     testLogger(),
		MaxRetries: 3,
	})
}

func seedAccepted(repo *fakeTaskRepo, taskID, requester, helper string) {
	repo.seedTask(taskID, requester)
	if _, _, err := repo.AcceptOpen(context.Background(), taskID, helper); err != nil {
		panic(err)
	}
}

func TestTransitionHappyPath(t *testing.T) {
	repo := newFakeTaskRepo()
	pub := &recordingPublisher{}
	svc := newTransition(repo, pub, true)
	seedAccepted(repo, "t1", "req", "helper")

	for _, to := range []domain.TaskStatus{
		domain.TaskStatusStarted, domain.TaskStatusOnTheWay, domain.TaskStatusDelivered,
	} {
		task, err := svc.Transition(context.Background(), "t1", "helper", to)
		if err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
		if task.Status != to {
			t.Fatalf("expected %s, got %s", to, task.Status)
		}
	}

	task, err := svc.Transition(context.Background(), "t1", "req", domain.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if task.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", task.Status)
	}

	// accept + 4 transitions
	if got := len(repo.events["t1"]); got != 5 {
		t.Fatalf("expected 5 timeline events, got %d", got)
	}
	if got := len(pub.published()); got != 4 {
		t.Fatalf("expected 4 published transitions, got %d", got)
	}
}

func TestTransitionWrongRole(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTransition(repo, &recordingPublisher{}, true)
	seedAccepted(repo, "t1", "req", "helper")

	// the requester cannot advance the helper's edges
	if _, err := svc.Transition(context.Background(), "t1", "req", domain.TaskStatusStarted); !errors.Is(err, ErrTaskNotAuthorized) {
		t.Fatalf("expected ErrTaskNotAuthorized, got %v", err)
	}
	// only the bound helper may advance, not an arbitrary user
	if _, err := svc.Transition(context.Background(), "t1", "stranger", domain.TaskStatusStarted); !errors.Is(err, ErrTaskNotAuthorized) {
		t.Fatalf("expected ErrTaskNotAuthorized for non-participant, got %v", err)
	}
}

func TestTransitionIllegalEdgeNamesStatuses(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTransition(repo, &recordingPublisher{}, true)
	seedAccepted(repo, "t1", "req", "helper")

	_, err := svc.Transition(context.Background(), "t1", "helper", domain.TaskStatusDelivered)
	if !errors.Is(err, ErrTaskIllegalTransition) {
		t.Fatalf("expected ErrTaskIllegalTransition, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, string(domain.TaskStatusAccepted)) || !strings.Contains(msg, string(domain.TaskStatusDelivered)) {
		t.Fatalf("error must name current and requested status, got %q", msg)
	}
}

func TestTransitionTerminalImmutability(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTransition(repo, &recordingPublisher{}, true)
	seedAccepted(repo, "t1", "req", "helper")
	for _, to := range []domain.TaskStatus{
		domain.TaskStatusStarted, domain.TaskStatusOnTheWay, domain.TaskStatusDelivered,
	} {
		if _, err := svc.Transition(context.Background(), "t1", "helper", to); err != nil {
			t.Fatalf("setup transition to %s: %v", to, err)
		}
	}
	if _, err := svc.Transition(context.Background(), "t1", "req", domain.TaskStatusCompleted); err != nil {
		t.Fatalf("setup complete: %v", err)
	}

	for _, actor := range []string{"req", "helper"} {
		for _, to := range []domain.TaskStatus{
			domain.TaskStatusStarted, domain.TaskStatusCancelled, domain.TaskStatusOpen, domain.TaskStatusDelivered,
		} {
			if _, err := svc.Transition(context.Background(), "t1", actor, to); err == nil {
				t.Fatalf("terminal task accepted %s -> %s by %s", domain.TaskStatusCompleted, to, actor)
			}
		}
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTransition(repo, &recordingPublisher{}, true)
	seedAccepted(repo, "t1", "req", "helper")

	if _, err := svc.Transition(context.Background(), "t1", "helper", domain.TaskStatus("teleported")); !errors.Is(err, ErrTaskInvalidInput) {
		t.Fatalf("expected ErrTaskInvalidInput, got %v", err)
	}
}

func TestTransitionRetriesThenConflict(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTransition(repo, &recordingPublisher{}, true)
	seedAccepted(repo, "t1", "req", "helper")

	// every attempt loses the version race
	repo.forceConflicts = 100
	if _, err := svc.Transition(context.Background(), "t1", "helper", domain.TaskStatusStarted); !errors.Is(err, ErrTaskConflict) {
		t.Fatalf("expected ErrTaskConflict, got %v", err)
	}
	if repo.forceConflicts != 97 {
		t.Fatalf("expected exactly 3 attempts, %d conflicts left", repo.forceConflicts)
	}
}

func TestTransitionRetryRecovers(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTransition(repo, &recordingPublisher{}, true)
	seedAccepted(repo, "t1", "req", "helper")

	// first attempt loses the race, the re-read succeeds
	repo.forceConflicts = 1
	task, err := svc.Transition(context.Background(), "t1", "helper", domain.TaskStatusStarted)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if task.Status != domain.TaskStatusStarted {
		t.Fatalf("expected started, got %s", task.Status)
	}
}

func TestHelperCancelReleasesTask(t *testing.T) {
	repo := newFakeTaskRepo()
	pub := &recordingPublisher{}
	svc := newTransition(repo, pub, true)
	seedAccepted(repo, "t1", "req", "helper")

	task, err := svc.Transition(context.Background(), "t1", "helper", domain.TaskStatusCancelled)
	if err != nil {
		t.Fatalf("helper cancel: %v", err)
	}
	if task.Status != domain.TaskStatusOpen {
		t.Fatalf("helper cancel must release the task to open, got %s", task.Status)
	}
	if task.AcceptedBy != nil {
		t.Fatal("release must clear accepted_by")
	}

	events := repo.events["t1"]
	last := events[len(events)-1]
	if last.ToStatus != domain.TaskStatusOpen {
		t.Fatalf("timeline must record the release edge, got -> %s", last.ToStatus)
	}

	// the released task is up for grabs again
	if _, _, err := repo.AcceptOpen(context.Background(), "t1", "helper-2"); err != nil {
		t.Fatalf("released task should be acceptable: %v", err)
	}
}

func TestHelperCancelDisabledByPolicy(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTransition(repo, &recordingPublisher{}, false)
	seedAccepted(repo, "t1", "req", "helper")

	if _, err := svc.Transition(context.Background(), "t1", "helper", domain.TaskStatusCancelled); !errors.Is(err, ErrTaskNotAuthorized) {
		t.Fatalf("expected ErrTaskNotAuthorized with policy off, got %v", err)
	}
}

func TestRequesterCancelIsTerminal(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTransition(repo, &recordingPublisher{}, true)
	seedAccepted(repo, "t1", "req", "helper")

	task, err := svc.Transition(context.Background(), "t1", "req", domain.TaskStatusCancelled)
	if err != nil {
		t.Fatalf("requester cancel: %v", err)
	}
	if task.Status != domain.TaskStatusCancelled {
		t.Fatalf("expected cancelled, got %s", task.Status)
	}
	if _, err := svc.Transition(context.Background(), "t1", "helper", domain.TaskStatusStarted); err == nil {
		t.Fatal("cancelled task must refuse further transitions")
	}
}

func TestCommittedHistoryIsALegalWalk(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTransition(repo, &recordingPublisher{}, true)
	seedAccepted(repo, "t1", "req", "helper")

	svc.Transition(context.Background(), "t1", "helper", domain.TaskStatusStarted)
	svc.Transition(context.Background(), "t1", "helper", domain.TaskStatusCancelled) // release
	repo.AcceptOpen(context.Background(), "t1", "helper-2")
	svc.Transition(context.Background(), "t1", "helper-2", domain.TaskStatusStarted)
	svc.Transition(context.Background(), "t1", "helper-2", domain.TaskStatusOnTheWay)
	svc.Transition(context.Background(), "t1", "helper-2", domain.TaskStatusDelivered)
	svc.Transition(context.Background(), "t1", "req", domain.TaskStatusCompleted)

	table := domain.NewTransitionTable(true)
	events, _ := repo.ReadFrom(context.Background(), "t1", 0)
	status := domain.TaskStatusOpen
	for i, e := range events {
		if e.Sequence != uint64(i)+1 {
			t.Fatalf("sequence gap at %d: got %d", i, e.Sequence)
		}
		if e.FromStatus != status {
			t.Fatalf("event %d: from %s but folded status is %s", i, e.FromStatus, status)
		}
		if !table.IsLegal(e.FromStatus, e.ToStatus, e.ActorRole) {
			t.Fatalf("event %d: illegal edge %s -> %s (%s)", i, e.FromStatus, e.ToStatus, e.ActorRole)
		}
		status = e.ToStatus
	}
	if status != domain.TaskStatusCompleted {
		t.Fatalf("expected folded status completed, got %s", status)
	}
}
