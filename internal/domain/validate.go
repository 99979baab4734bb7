package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeSegment trims the segment text and validates its shape.
func NormalizeSegment(seg TranscriptSegment) (TranscriptSegment, error) {
	seg.ID = strings.TrimSpace(seg.ID)
	seg.Speaker = strings.TrimSpace(seg.Speaker)
	seg.Text = strings.TrimSpace(seg.Text)
	if err := validate.Struct(seg); err != nil {
		return TranscriptSegment{}, fmt.Errorf("invalid transcript segment %q: %w", seg.ID, err)
	}
	return seg, nil
}

// NormalizeActionItem fills defaults, enforces the issue/status invariant and
// validates the item.
func NormalizeActionItem(item ActionItem) (ActionItem, error) {
	item = item.Clone()
	item.ID = strings.TrimSpace(item.ID)
	item.Text = strings.TrimSpace(item.Text)
	if item.Priority == "" {
		item.Priority = PriorityMedium
	}
	if !item.Status.Valid() {
		item.Status = ActionItemPending
	}
	if item.Status == ActionItemCreated && item.GitHubIssue == nil {
		item.Status = ActionItemPending
	}
	if item.Status != ActionItemCreated {
		item.GitHubIssue = nil
	}
	if item.Assignee != nil && strings.TrimSpace(*item.Assignee) == "" {
		item.Assignee = nil
	}
	if err := validate.Struct(item); err != nil {
		return ActionItem{}, fmt.Errorf("invalid action item %q: %w", item.ID, err)
	}
	return item, nil
}
