package ports

import (
	"context"
	"time"

	"fomo/internal/domain"
)

// Clock supplies wall-clock time so session state can be driven in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Snapshot is the backend's full view of a meeting in progress.
type Snapshot struct {
	Transcript      []domain.TranscriptSegment `json:"transcript"`
	ActionItems     []domain.ActionItem        `json:"actionItems"`
	ChunksProcessed int                        `json:"chunksProcessed"`
}

// Analysis is the backend's summary and action item extraction.
type Analysis struct {
	ActionItems []domain.ActionItem    `json:"actionItems"`
	Summary     *domain.MeetingSummary `json:"summary"`
	NextSteps   []string               `json:"nextSteps"`
}

// CaptureBackend drives the external audio capture and transcription process.
type CaptureBackend interface {
	StartCapture(ctx context.Context, meetingID string, title string) error
	StopCapture(ctx context.Context, meetingID string) error
	PauseCapture(ctx context.Context, meetingID string) error
	ResumeCapture(ctx context.Context, meetingID string) error
	Analyze(ctx context.Context, meetingID string) (Analysis, error)
	Health(ctx context.Context) error
}

// SnapshotSource fetches the current snapshot of a meeting for polling.
type SnapshotSource interface {
	Snapshot(ctx context.Context, meetingID string) (Snapshot, error)
}

// UpdateSink receives normalized live updates for one meeting.
type UpdateSink interface {
	Transcript(meetingID string, segment domain.TranscriptSegment)
	ActionItem(meetingID string, item domain.ActionItem)
	ConnectionChanged(meetingID string, status domain.ConnectionStatus)
}

// Subscription is an active live update feed.
type Subscription interface {
	// Unsubscribe stops all timers and reconnect attempts. It is safe to call
	// more than once and returns after the last sink call has completed.
	Unsubscribe()
	Connected() bool
	Processed() int
}

// UpdateStrategy delivers live updates for a meeting by push or by polling.
type UpdateStrategy interface {
	Name() string
	Subscribe(meetingID string, sink UpdateSink) Subscription
}

// IssueRequest describes the issue created for an action item.
type IssueRequest struct {
	Repository string
	Title      string
	Body       string
	Labels     []string
	Assignee   string
}

// IssueTracker creates issues in an external tracker.
type IssueTracker interface {
	CreateIssue(ctx context.Context, req IssueRequest) (domain.IssueRef, error)
}

// ArchiveStore persists completed meetings.
type ArchiveStore interface {
	Save(ctx context.Context, meeting domain.Meeting) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Meeting, error)
	Get(ctx context.Context, id string) (domain.Meeting, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(meeting domain.Meeting, reason domain.SessionStateReason)
	TranscriptAppended(meetingID string, segment domain.TranscriptSegment)
	TranscriptSegmentEdited(meetingID string, segment domain.TranscriptSegment)
	ActionItemChanged(meetingID string, item domain.ActionItem)
	ConnectionChanged(meetingID string, status domain.ConnectionStatus)
	DurationChanged(meetingID string, seconds int)
	SessionError(code domain.ErrorCode, detail string)
}
