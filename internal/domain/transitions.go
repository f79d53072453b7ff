package domain

// TransitionTable decides whether a status edge is legal for a given role.
// It is pure and never consults storage; both the transition service and the
// timeline replay check use the same instance.
//
// Legal graph:
//
//	open -> accepted                      helper
//	accepted -> started                   helper
//	started -> on_the_way                 helper
//	on_the_way -> delivered               helper
//	delivered -> completed                requester
//	{open, accepted, started, on_the_way} -> cancelled   requester
//	{accepted, started} -> open           helper (release, policy-gated)
//
// completed and cancelled are terminal; every outgoing edge is illegal.
type TransitionTable struct {
	allowHelperCancel bool
}

func NewTransitionTable(allowHelperCancel bool) *TransitionTable {
	return &TransitionTable{allowHelperCancel: allowHelperCancel}
}

// AllowsHelperCancel reports whether the helper-release edges are enabled.
func (t *TransitionTable) AllowsHelperCancel() bool {
	return t.allowHelperCancel
}

func (t *TransitionTable) IsLegal(current, requested TaskStatus, role ActorRole) bool {
	if !current.Valid() || !requested.Valid() || current == requested {
		return false
	}
	if current.Terminal() {
		return false
	}

	switch role {
	case ActorRoleHelper:
		switch {
		case current == TaskStatusOpen && requested == TaskStatusAccepted:
			return true
		case current == TaskStatusAccepted && requested == TaskStatusStarted:
			return true
		case current == TaskStatusStarted && requested == TaskStatusOnTheWay:
			return true
		case current == TaskStatusOnTheWay && requested == TaskStatusDelivered:
			return true
		case requested == TaskStatusOpen &&
			(current == TaskStatusAccepted || current == TaskStatusStarted):
			// Helper abandons an in-progress task, releasing it back to the pool.
			return t.allowHelperCancel
		}
	case ActorRoleRequester:
		switch {
		case current == TaskStatusDelivered && requested == TaskStatusCompleted:
			return true
		case requested == TaskStatusCancelled &&
			(current == TaskStatusOpen || current == TaskStatusAccepted ||
				current == TaskStatusStarted || current == TaskStatusOnTheWay):
			return true
		}
	}
	return false
}
