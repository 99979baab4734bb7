package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"fomo/internal/domain"
	"fomo/internal/logging"
	"fomo/internal/metrics"
	"fomo/internal/ports"
)

var (
	ErrIssueTrackerNotConfigured = errors.New("GitHub is not configured")
	ErrActionItemNotFound        = errors.New("action item not found in the current meeting")
	ErrActionItemNotApproved     = errors.New("action item must be approved before creating an issue")
)

// IssueConfig controls how action items become issues.
type IssueConfig struct {
	Repository string
	Labels     []string
	// Assignees maps spoken names to GitHub logins. Names without an entry
	// stay in the issue body and the issue is left unassigned.
	Assignees map[string]string
}

// login returns the GitHub login configured for a spoken assignee name.
func (c IssueConfig) login(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return ""
	}
	for spoken, login := range c.Assignees {
		if strings.ToLower(strings.TrimSpace(spoken)) == key {
			return strings.TrimSpace(login)
		}
	}
	return ""
}

// IssueCreationError reports a failed call to the issue tracker. The action
// item has been moved to failed and can be re-approved.
type IssueCreationError struct {
	ItemID string
	Err    error
}

func (e *IssueCreationError) Error() string {
	return fmt.Sprintf("failed to create issue for action item %q: %v", e.ItemID, e.Err)
}

func (e *IssueCreationError) Unwrap() error { return e.Err }

type issueCreator struct {
	manager *SessionManager
	tracker ports.IssueTracker
	events  ports.EventSink
	metrics *metrics.Metrics
	cfg     IssueConfig
	logger  zerolog.Logger
}

func newIssueCreator(manager *SessionManager, tracker ports.IssueTracker, events ports.EventSink, mt *metrics.Metrics, cfg IssueConfig) issueCreator {
	return issueCreator{
		manager: manager,
		tracker: tracker,
		events:  events,
		metrics: mt,
		cfg:     cfg,
		logger:  logging.WithComponent("issue_creator"),
	}
}

// Create runs approved → creating → created|failed for one action item.
func (f issueCreator) Create(ctx context.Context, itemID string) (domain.ActionItem, error) {
	if f.tracker == nil || strings.TrimSpace(f.cfg.Repository) == "" {
		return domain.ActionItem{}, ErrIssueTrackerNotConfigured
	}

	meeting, ok := f.manager.Current()
	if !ok {
		return domain.ActionItem{}, ErrNoActiveSession
	}

	item, ok := f.manager.BeginIssueCreation(itemID)
	if !ok {
		if item.ID == "" {
			return domain.ActionItem{}, fmt.Errorf("%w: %q", ErrActionItemNotFound, itemID)
		}
		return item, fmt.Errorf("%w (status %s)", ErrActionItemNotApproved, item.Status)
	}
	f.events.ActionItemChanged(meeting.ID, item)

	ref, err := f.tracker.CreateIssue(ctx, buildIssueRequest(meeting.Title, item, f.cfg))
	f.metrics.RecordIssueCreation(err)
	if err != nil {
		failed, _ := f.manager.FailIssueCreation(itemID)
		f.events.ActionItemChanged(meeting.ID, failed)
		f.events.SessionError(domain.ErrorCodeIssueCreation, err.Error())
		return failed, &IssueCreationError{ItemID: itemID, Err: err}
	}

	created, ok := f.manager.CompleteIssueCreation(itemID, ref)
	if !ok {
		f.logger.Warn().
			Str("itemId", itemID).
			Int("issue", ref.Number).
			Msg("issue created but the action item is no longer in the current meeting")
		return domain.ActionItem{}, fmt.Errorf("issue #%d created but the meeting is no longer current: %w", ref.Number, ErrNoActiveSession)
	}
	f.events.ActionItemChanged(meeting.ID, created)
	return created, nil
}

const maxIssueTitle = 120

func buildIssueRequest(meetingTitle string, item domain.ActionItem, cfg IssueConfig) ports.IssueRequest {
	title := item.Text
	if runes := []rune(title); len(runes) > maxIssueTitle {
		title = strings.TrimSpace(string(runes[:maxIssueTitle-3])) + "..."
	}

	var body strings.Builder
	fmt.Fprintf(&body, "**Meeting:** %s\n", meetingTitle)
	fmt.Fprintf(&body, "**Priority:** %s\n", item.Priority)
	assignee := ""
	if item.Assignee != nil {
		fmt.Fprintf(&body, "**Assignee:** %s\n", *item.Assignee)
		assignee = cfg.login(*item.Assignee)
	}
	if ctx := strings.TrimSpace(item.Context); ctx != "" {
		body.WriteString("\n### Context\n\n")
		for _, line := range strings.Split(ctx, "\n") {
			body.WriteString("> " + line + "\n")
		}
	}

	labels := append([]string(nil), cfg.Labels...)
	labels = append(labels, "priority:"+string(item.Priority))

	return ports.IssueRequest{
		Repository: cfg.Repository,
		Title:      title,
		Body:       body.String(),
		Labels:     labels,
		Assignee:   assignee,
	}
}
