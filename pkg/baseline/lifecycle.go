package baseline

// TransitionRule defines one allowed edge in the version status graph.
type TransitionRule struct {
	From   Status
	To     Status
	Action Action

	// SystemOnly transitions are performed by the workflow itself, never
	// requested directly by a user (PUBLISHED -> ARCHIVED on supersession).
	SystemOnly bool
}

// DefaultTransitions defines the allowed status transitions.
var DefaultTransitions = []TransitionRule{
	{From: StatusDraft, To: StatusPendingApproval, Action: ActionSubmit},
	{From: StatusRejected, To: StatusPendingApproval, Action: ActionSubmit},
	{From: StatusPendingApproval, To: StatusPublished, Action: ActionApprove},
	{From: StatusPendingApproval, To: StatusRejected, Action: ActionReject},
	{From: StatusPublished, To: StatusArchived, Action: ActionApprove, SystemOnly: true},
}

// editableStatuses are the statuses in which module payloads may be mutated.
var editableStatuses = map[Status]bool{
	StatusDraft:    true,
	StatusRejected: true,
}

// LifecycleMachine validates baseline version status transitions. Illegal
// transitions are rejected here, in one place, rather than guarded per caller.
type LifecycleMachine struct {
	transitions []TransitionRule
}

// NewLifecycleMachine creates a machine with the default transition table.
func NewLifecycleMachine() *LifecycleMachine {
	return &LifecycleMachine{transitions: DefaultTransitions}
}

// Transition returns the target status for applying action to a version in
// the current status, or an InvalidTransition error.
func (m *LifecycleMachine) Transition(current Status, action Action) (Status, error) {
	for _, t := range m.transitions {
		if t.SystemOnly {
			continue
		}
		if t.From == current && t.Action == action {
			return t.To, nil
		}
	}
	return "", errInvalidTransition(action, current)
}

// CanEdit reports whether module payloads may be edited in the given status.
// Published and archived versions are immutable; pending versions are frozen
// until a checker decides.
func (m *LifecycleMachine) CanEdit(current Status) bool {
	return editableStatuses[current]
}

// ValidateEdit returns an InvalidTransition error when module payloads may
// not be edited in the given status.
func (m *LifecycleMachine) ValidateEdit(current Status) error {
	if !m.CanEdit(current) {
		return errInvalidTransition(ActionEditModules, current)
	}
	return nil
}

// AllowedActions returns the user-requestable actions valid from the given status.
func (m *LifecycleMachine) AllowedActions(current Status) []Action {
	var actions []Action
	for _, t := range m.transitions {
		if t.SystemOnly {
			continue
		}
		if t.From == current {
			actions = append(actions, t.Action)
		}
	}
	return actions
}

// Terminal reports whether the status has no user-requestable outgoing
// transitions. PUBLISHED is terminal for users; the system alone may archive
// it on supersession. ARCHIVED has no outgoing transitions at all.
func (m *LifecycleMachine) Terminal(current Status) bool {
	return len(m.AllowedActions(current)) == 0
}
