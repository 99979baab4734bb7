package domain

// MeetingStatus models the meeting lifecycle.
type MeetingStatus string

const (
	MeetingStatusRecording  MeetingStatus = "recording"
	MeetingStatusProcessing MeetingStatus = "processing"
	MeetingStatusCompleted  MeetingStatus = "completed"
	MeetingStatusFailed     MeetingStatus = "failed"
)

// Priority ranks an action item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// SessionStateReason provides a structured reason for session transitions.
type SessionStateReason string

const (
	SessionReasonIdle              SessionStateReason = "idle"
	SessionReasonRecordingStarted  SessionStateReason = "recording_started"
	SessionReasonRecordingPaused   SessionStateReason = "recording_paused"
	SessionReasonRecordingResumed  SessionStateReason = "recording_resumed"
	SessionReasonAnalyzing         SessionStateReason = "analyzing"
	SessionReasonMeetingCompleted  SessionStateReason = "meeting_completed"
	SessionReasonMeetingFailed     SessionStateReason = "meeting_failed"
	SessionReasonRecordingAborted  SessionStateReason = "recording_aborted"
	SessionReasonStartFailed       SessionStateReason = "start_failed"
	SessionReasonIngestionDegraded SessionStateReason = "ingestion_degraded"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeBackend       ErrorCode = "backend"
	ErrorCodeIngestion     ErrorCode = "ingestion"
	ErrorCodeAnalysis      ErrorCode = "analysis"
	ErrorCodeIssueCreation ErrorCode = "issue_creation"
	ErrorCodeStorage       ErrorCode = "storage"
)

// TranscriptSegment is one utterance delivered by the transcription backend.
// StartTime and EndTime are seconds from meeting start; Timestamp is the
// wall-clock arrival time in milliseconds.
type TranscriptSegment struct {
	ID         string  `json:"id" validate:"required"`
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Timestamp  int64   `json:"timestamp"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	StartTime  float64 `json:"startTime" validate:"gte=0"`
	EndTime    float64 `json:"endTime" validate:"gtefield=StartTime"`
}

// IssueRef points at the GitHub issue created for an action item.
type IssueRef struct {
	Number     int    `json:"number" validate:"gt=0"`
	URL        string `json:"url" validate:"required"`
	Repository string `json:"repository" validate:"required"`
}

// ActionItem is a task extracted from the conversation.
type ActionItem struct {
	ID          string           `json:"id" validate:"required"`
	Text        string           `json:"text" validate:"required"`
	Assignee    *string          `json:"assignee"`
	Context     string           `json:"context"`
	Priority    Priority         `json:"priority" validate:"oneof=high medium low"`
	Status      ActionItemStatus `json:"status"`
	MeetingID   string           `json:"meetingId"`
	Timestamp   int64            `json:"timestamp"`
	GitHubIssue *IssueRef        `json:"githubIssue,omitempty"`
}

// MeetingSummary is the backend's analysis of a finished meeting.
type MeetingSummary struct {
	Overview    string   `json:"overview"`
	KeyPoints   []string `json:"keyPoints"`
	Decisions   []string `json:"decisions"`
	Blockers    []string `json:"blockers"`
	GeneratedAt int64    `json:"generatedAt"`
}

// Meeting is either the meeting currently being recorded or an archived one.
// StartTime and EndTime are wall-clock milliseconds; Duration is seconds.
type Meeting struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	StartTime    int64               `json:"startTime"`
	EndTime      *int64              `json:"endTime,omitempty"`
	Duration     int                 `json:"duration"`
	Participants []string            `json:"participants"`
	Transcript   []TranscriptSegment `json:"transcript"`
	ActionItems  []ActionItem        `json:"actionItems"`
	Summary      *MeetingSummary     `json:"summary,omitempty"`
	NextSteps    []string            `json:"nextSteps,omitempty"`
	Status       MeetingStatus       `json:"status"`
}

// RecordingState is derived state that only exists while a meeting records.
// PausedAt and PausedTotal are milliseconds.
type RecordingState struct {
	IsRecording bool  `json:"isRecording"`
	IsPaused    bool  `json:"isPaused"`
	Duration    int   `json:"duration"`
	StartTime   int64 `json:"startTime,omitempty"`
	PausedAt    int64 `json:"pausedAt,omitempty"`
	PausedTotal int64 `json:"pausedTotal,omitempty"`
}

// ConnectionState is the connectivity signal of a live update subscription.
type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionFailed       ConnectionState = "failed"
	ConnectionClosed       ConnectionState = "closed"
)

// ConnectionStatus is reported by ingestion whenever connectivity changes or
// the backend reports progress.
type ConnectionStatus struct {
	State           ConnectionState `json:"state"`
	Transport       string          `json:"transport"`
	ChunksProcessed int             `json:"chunksProcessed"`
	Message         string          `json:"message,omitempty"`
}

// Status summarizes the current runtime status.
type Status struct {
	Recording  bool             `json:"recording"`
	Paused     bool             `json:"paused"`
	MeetingID  string           `json:"meetingId,omitempty"`
	Connection ConnectionStatus `json:"connection"`
	Message    string           `json:"message,omitempty"`
}

// Clone returns a deep copy so callers never share slices with the owner.
func (m Meeting) Clone() Meeting {
	out := m
	if m.EndTime != nil {
		end := *m.EndTime
		out.EndTime = &end
	}
	out.Participants = append([]string(nil), m.Participants...)
	out.Transcript = append([]TranscriptSegment(nil), m.Transcript...)
	out.ActionItems = make([]ActionItem, len(m.ActionItems))
	for i, item := range m.ActionItems {
		out.ActionItems[i] = item.Clone()
	}
	if m.Summary != nil {
		summary := *m.Summary
		summary.KeyPoints = append([]string(nil), m.Summary.KeyPoints...)
		summary.Decisions = append([]string(nil), m.Summary.Decisions...)
		summary.Blockers = append([]string(nil), m.Summary.Blockers...)
		out.Summary = &summary
	}
	out.NextSteps = append([]string(nil), m.NextSteps...)
	return out
}

// Clone returns a deep copy of the item.
func (a ActionItem) Clone() ActionItem {
	out := a
	if a.Assignee != nil {
		assignee := *a.Assignee
		out.Assignee = &assignee
	}
	if a.GitHubIssue != nil {
		issue := *a.GitHubIssue
		out.GitHubIssue = &issue
	}
	return out
}
