package domain

// ActionItemStatus is the lifecycle state of an action item.
//
// Transitions:
//
//	pending ──approve──→ approved ──begin──→ creating ──complete──→ created
//	                        ↑                    │
//	                        └──approve── failed ←┘ fail
//
// created is terminal. A transition requested from any other source state is
// refused.
type ActionItemStatus string

const (
	ActionItemPending  ActionItemStatus = "pending"
	ActionItemApproved ActionItemStatus = "approved"
	ActionItemCreating ActionItemStatus = "creating"
	ActionItemCreated  ActionItemStatus = "created"
	ActionItemFailed   ActionItemStatus = "failed"
)

// ActionItemEvent names a state machine input.
type ActionItemEvent string

const (
	ActionItemEventApprove  ActionItemEvent = "approve"
	ActionItemEventBegin    ActionItemEvent = "begin_issue_creation"
	ActionItemEventComplete ActionItemEvent = "complete_issue_creation"
	ActionItemEventFail     ActionItemEvent = "fail_issue_creation"
)

var actionItemTransitions = map[ActionItemEvent]struct {
	from []ActionItemStatus
	to   ActionItemStatus
}{
	ActionItemEventApprove:  {from: []ActionItemStatus{ActionItemPending, ActionItemFailed}, to: ActionItemApproved},
	ActionItemEventBegin:    {from: []ActionItemStatus{ActionItemApproved}, to: ActionItemCreating},
	ActionItemEventComplete: {from: []ActionItemStatus{ActionItemCreating}, to: ActionItemCreated},
	ActionItemEventFail:     {from: []ActionItemStatus{ActionItemCreating}, to: ActionItemFailed},
}

// Next returns the status reached by applying event, and false when the
// event is not legal from s.
func (s ActionItemStatus) Next(event ActionItemEvent) (ActionItemStatus, bool) {
	transition, ok := actionItemTransitions[event]
	if !ok {
		return s, false
	}
	for _, from := range transition.from {
		if from == s {
			return transition.to, true
		}
	}
	return s, false
}

// CanReach reports whether a single legal transition leads from s to target.
func (s ActionItemStatus) CanReach(target ActionItemStatus) bool {
	for event := range actionItemTransitions {
		if next, ok := s.Next(event); ok && next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave s.
func (s ActionItemStatus) IsTerminal() bool {
	return s == ActionItemCreated
}

// Valid reports whether s is a known status.
func (s ActionItemStatus) Valid() bool {
	switch s {
	case ActionItemPending, ActionItemApproved, ActionItemCreating, ActionItemCreated, ActionItemFailed:
		return true
	default:
		return false
	}
}

// ActionItemPatch is a partial update. Nil fields are left untouched.
type ActionItemPatch struct {
	Text          *string           `json:"text,omitempty"`
	Assignee      *string           `json:"assignee,omitempty"`
	ClearAssignee bool              `json:"clearAssignee,omitempty"`
	Context       *string           `json:"context,omitempty"`
	Priority      *Priority         `json:"priority,omitempty"`
	Status        *ActionItemStatus `json:"status,omitempty"`
	// Force lets Status bypass the transition rules, e.g. to reset a created
	// item.
	Force bool `json:"force,omitempty"`
}

// Apply merges the patch into item. Status only moves along a legal
// transition unless Force is set, and a patch can never produce created
// because that status requires an issue reference.
func (p ActionItemPatch) Apply(item ActionItem) ActionItem {
	out := item.Clone()
	if p.Text != nil {
		out.Text = *p.Text
	}
	if p.ClearAssignee {
		out.Assignee = nil
	} else if p.Assignee != nil {
		assignee := *p.Assignee
		out.Assignee = &assignee
	}
	if p.Context != nil {
		out.Context = *p.Context
	}
	if p.Priority != nil && p.Priority.Valid() {
		out.Priority = *p.Priority
	}
	if p.Status != nil && p.Status.Valid() && *p.Status != ActionItemCreated {
		if p.Force || out.Status.CanReach(*p.Status) {
			out.Status = *p.Status
		}
	}
	if out.Status != ActionItemCreated {
		out.GitHubIssue = nil
	}
	return out
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}
