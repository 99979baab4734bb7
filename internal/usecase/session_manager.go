package usecase

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"fomo/internal/domain"
	"fomo/internal/logging"
	"fomo/internal/metrics"
	"fomo/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active recording session")
	ErrInvalidState    = errors.New("a recording session is already active")
)

// IngestResult tells the caller what happened to a live update.
type IngestResult string

const (
	IngestApplied   IngestResult = "applied"
	IngestDuplicate IngestResult = "duplicate"
	IngestDropped   IngestResult = "dropped"
)

// SessionManager owns the meeting being recorded and the archive of
// completed meetings. Every operation holds mu for its whole duration, so no
// caller ever observes a half-applied mutation.
type SessionManager struct {
	clock   ports.Clock
	newID   func() string
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu        sync.Mutex
	current   *domain.Meeting
	recording domain.RecordingState
	archive   []domain.Meeting
}

// ManagerOption customises a SessionManager.
type ManagerOption func(*SessionManager)

// WithIDGenerator replaces the uuid-based meeting id generator.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *SessionManager) { m.newID = fn }
}

// WithMetrics records manager activity on m.
func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *SessionManager) { m.metrics = mt }
}

func NewSessionManager(clock ports.Clock, opts ...ManagerOption) *SessionManager {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	m := &SessionManager{
		clock:  clock,
		newID:  func() string { return "meeting_" + uuid.NewString() },
		logger: logging.WithComponent("session_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.New(nil)
	}
	return m
}

// StartSession creates the current meeting and starts its recording clock.
func (m *SessionManager) StartSession(title string) (domain.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return domain.Meeting{}, ErrInvalidState
	}

	now := m.clock.Now()
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Meeting " + now.Local().Format("Jan 2, 2006 3:04 PM")
	}

	m.current = &domain.Meeting{
		ID:           m.newID(),
		Title:        title,
		StartTime:    now.UnixMilli(),
		Participants: []string{},
		Transcript:   []domain.TranscriptSegment{},
		ActionItems:  []domain.ActionItem{},
		Status:       domain.MeetingStatusRecording,
	}
	m.recording = domain.RecordingState{
		IsRecording: true,
		IsPaused:    false,
		Duration:    0,
		StartTime:   now.UnixMilli(),
	}
	m.metrics.RecordSessionStart()
	m.logger.Info().Str("meetingId", m.current.ID).Str("title", title).Msg("session started")
	return m.current.Clone(), nil
}

// StopSession completes the current meeting and prepends it to the archive.
// It reports false when no session is current.
func (m *SessionManager) StopSession() (domain.Meeting, bool) {
	return m.finish(domain.MeetingStatusCompleted)
}

// FailSession archives the current meeting with status failed.
func (m *SessionManager) FailSession() (domain.Meeting, bool) {
	return m.finish(domain.MeetingStatusFailed)
}

// AbortSession discards the current meeting without archiving it.
func (m *SessionManager) AbortSession() (domain.Meeting, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return domain.Meeting{}, false
	}
	discarded := m.current.Clone()
	m.current = nil
	m.recording = domain.RecordingState{}
	m.metrics.RecordSessionEnd("aborted")
	m.logger.Info().Str("meetingId", discarded.ID).Msg("session aborted")
	return discarded, true
}

// MarkProcessing freezes the recording clock and flags the current meeting as
// being analysed.
func (m *SessionManager) MarkProcessing() (domain.Meeting, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return domain.Meeting{}, false
	}
	m.freezeDurationLocked()
	m.current.Status = domain.MeetingStatusProcessing
	return m.current.Clone(), true
}

func (m *SessionManager) finish(status domain.MeetingStatus) (domain.Meeting, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return domain.Meeting{}, false
	}

	m.freezeDurationLocked()
	end := m.clock.Now().UnixMilli()
	meeting := m.current.Clone()
	meeting.EndTime = &end
	meeting.Status = status

	m.archive = append([]domain.Meeting{meeting}, m.archive...)
	m.current = nil
	m.recording = domain.RecordingState{}

	m.metrics.RecordSessionEnd(string(status))
	m.logger.Info().
		Str("meetingId", meeting.ID).
		Str("status", string(status)).
		Int("duration", meeting.Duration).
		Int("segments", len(meeting.Transcript)).
		Msg("session finished")
	return meeting.Clone(), true
}

// freezeDurationLocked takes the final tick and ends the recording state.
func (m *SessionManager) freezeDurationLocked() {
	if !m.recording.IsRecording {
		return
	}
	m.recording.Duration = Elapsed(m.recording, m.clock.Now())
	m.current.Duration = m.recording.Duration
	m.recording.IsRecording = false
	m.recording.IsPaused = false
}

// PauseSession pauses the recording clock. Repeated calls are no-ops.
func (m *SessionManager) PauseSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || !m.recording.IsRecording || m.recording.IsPaused {
		return false
	}
	now := m.clock.Now()
	m.recording.Duration = Elapsed(m.recording, now)
	m.current.Duration = m.recording.Duration
	m.recording.IsPaused = true
	m.recording.PausedAt = now.UnixMilli()
	return true
}

// ResumeSession resumes a paused recording clock. Repeated calls are no-ops.
func (m *SessionManager) ResumeSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || !m.recording.IsRecording || !m.recording.IsPaused {
		return false
	}
	now := m.clock.Now().UnixMilli()
	if m.recording.PausedAt > 0 && now > m.recording.PausedAt {
		m.recording.PausedTotal += now - m.recording.PausedAt
	}
	m.recording.PausedAt = 0
	m.recording.IsPaused = false
	return true
}

// Tick recomputes the recorded duration. It does nothing while paused.
func (m *SessionManager) Tick() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || !m.recording.IsRecording || m.recording.IsPaused {
		return m.recording.Duration
	}
	m.recording.Duration = Elapsed(m.recording, m.clock.Now())
	m.current.Duration = m.recording.Duration
	return m.recording.Duration
}

// AppendTranscriptSegment appends seg to the current meeting unless a segment
// with the same id is already present.
func (m *SessionManager) AppendTranscriptSegment(seg domain.TranscriptSegment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNoActiveSession
	}
	m.appendSegmentLocked(seg)
	return nil
}

// IngestTranscriptSegment applies a live update addressed to meetingID.
// Updates for any meeting other than the current one are dropped.
func (m *SessionManager) IngestTranscriptSegment(meetingID string, seg domain.TranscriptSegment) IngestResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isCurrentLocked(meetingID) {
		m.dropLocked(meetingID, "transcript", seg.ID)
		return IngestDropped
	}
	return m.appendSegmentLocked(seg)
}

func (m *SessionManager) appendSegmentLocked(seg domain.TranscriptSegment) IngestResult {
	if lo.ContainsBy(m.current.Transcript, func(s domain.TranscriptSegment) bool { return s.ID == seg.ID }) {
		m.metrics.SegmentsDuplicate.Inc()
		return IngestDuplicate
	}
	if seg.Timestamp == 0 {
		seg.Timestamp = m.clock.Now().UnixMilli()
	}
	m.current.Transcript = append(m.current.Transcript, seg)
	if seg.Speaker != "" && !lo.Contains(m.current.Participants, seg.Speaker) {
		m.current.Participants = append(m.current.Participants, seg.Speaker)
	}
	m.metrics.SegmentsApplied.Inc()
	return IngestApplied
}

// TranscriptSegment returns the stored copy of a segment in the current
// meeting.
func (m *SessionManager) TranscriptSegment(id string) (domain.TranscriptSegment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return domain.TranscriptSegment{}, false
	}
	return lo.Find(m.current.Transcript, func(s domain.TranscriptSegment) bool { return s.ID == id })
}

// EditTranscriptSegment replaces the text of a segment in the current meeting.
// Unknown ids are ignored.
func (m *SessionManager) EditTranscriptSegment(id string, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false
	}
	_, idx, ok := lo.FindIndexOf(m.current.Transcript, func(s domain.TranscriptSegment) bool { return s.ID == id })
	if !ok {
		return false
	}
	m.current.Transcript[idx].Text = text
	return true
}

// AppendActionItem adds item to the current meeting unless its id is known.
func (m *SessionManager) AppendActionItem(item domain.ActionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNoActiveSession
	}
	m.appendItemLocked(item)
	return nil
}

// IngestActionItem applies a live action item addressed to meetingID.
func (m *SessionManager) IngestActionItem(meetingID string, item domain.ActionItem) IngestResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isCurrentLocked(meetingID) {
		m.dropLocked(meetingID, "action_item", item.ID)
		return IngestDropped
	}
	return m.appendItemLocked(item)
}

func (m *SessionManager) appendItemLocked(item domain.ActionItem) IngestResult {
	if lo.ContainsBy(m.current.ActionItems, func(a domain.ActionItem) bool { return a.ID == item.ID }) {
		return IngestDuplicate
	}
	item = item.Clone()
	item.MeetingID = m.current.ID
	if item.Timestamp == 0 {
		item.Timestamp = m.clock.Now().UnixMilli()
	}
	m.current.ActionItems = append(m.current.ActionItems, item)
	m.metrics.ItemsApplied.Inc()
	return IngestApplied
}

// UpdateActionItemFields merges patch into the action item with id.
func (m *SessionManager) UpdateActionItemFields(id string, patch domain.ActionItemPatch) (domain.ActionItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.itemIndexLocked(id)
	if !ok {
		return domain.ActionItem{}, false
	}
	updated := patch.Apply(m.current.ActionItems[idx])
	m.current.ActionItems[idx] = updated
	return updated.Clone(), true
}

// ApproveActionItem moves a pending or failed item to approved.
func (m *SessionManager) ApproveActionItem(id string) (domain.ActionItem, bool) {
	return m.transition(id, domain.ActionItemEventApprove, nil)
}

// BeginIssueCreation moves an approved item to creating.
func (m *SessionManager) BeginIssueCreation(id string) (domain.ActionItem, bool) {
	return m.transition(id, domain.ActionItemEventBegin, nil)
}

// CompleteIssueCreation records the created issue on a creating item.
func (m *SessionManager) CompleteIssueCreation(id string, ref domain.IssueRef) (domain.ActionItem, bool) {
	return m.transition(id, domain.ActionItemEventComplete, func(item *domain.ActionItem) {
		issue := ref
		item.GitHubIssue = &issue
	})
}

// FailIssueCreation moves a creating item to failed so it can be re-approved.
func (m *SessionManager) FailIssueCreation(id string) (domain.ActionItem, bool) {
	return m.transition(id, domain.ActionItemEventFail, nil)
}

func (m *SessionManager) transition(id string, event domain.ActionItemEvent, mutate func(*domain.ActionItem)) (domain.ActionItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.itemIndexLocked(id)
	if !ok {
		return domain.ActionItem{}, false
	}
	item := &m.current.ActionItems[idx]
	next, ok := item.Status.Next(event)
	if !ok {
		m.logger.Debug().
			Str("itemId", id).
			Str("status", string(item.Status)).
			Str("event", string(event)).
			Msg("ignoring illegal action item transition")
		return item.Clone(), false
	}

	item.Status = next
	if mutate != nil {
		mutate(item)
	}
	if item.Status != domain.ActionItemCreated {
		item.GitHubIssue = nil
	}
	return item.Clone(), true
}

// SetSummary stores the analysis results on the current meeting.
func (m *SessionManager) SetSummary(summary *domain.MeetingSummary, nextSteps []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false
	}
	if summary != nil {
		copied := *summary
		if copied.GeneratedAt == 0 {
			copied.GeneratedAt = m.clock.Now().UnixMilli()
		}
		m.current.Summary = &copied
	}
	m.current.NextSteps = append([]string(nil), nextSteps...)
	return true
}

// Current returns a copy of the meeting being recorded.
func (m *SessionManager) Current() (domain.Meeting, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return domain.Meeting{}, false
	}
	return m.current.Clone(), true
}

// RecordingState returns the recording clock state.
func (m *SessionManager) RecordingState() domain.RecordingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording
}

// Archive returns completed meetings, most recent first.
func (m *SessionManager) Archive() []domain.Meeting {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Meeting, len(m.archive))
	for i, meeting := range m.archive {
		out[i] = meeting.Clone()
	}
	return out
}

// ArchiveLookup finds an archived meeting by id.
func (m *SessionManager) ArchiveLookup(id string) (domain.Meeting, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meeting, ok := lo.Find(m.archive, func(a domain.Meeting) bool { return a.ID == id })
	if !ok {
		return domain.Meeting{}, false
	}
	return meeting.Clone(), true
}

// RemoveFromArchive deletes an archived meeting. The current meeting is never
// affected.
func (m *SessionManager) RemoveFromArchive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.archive)
	m.archive = lo.Reject(m.archive, func(a domain.Meeting, _ int) bool { return a.ID == id })
	return len(m.archive) != before
}

// LoadArchive replaces the archive with meetings, which must already be
// ordered most recent first.
func (m *SessionManager) LoadArchive(meetings []domain.Meeting) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.archive = make([]domain.Meeting, len(meetings))
	for i, meeting := range meetings {
		m.archive[i] = meeting.Clone()
	}
}

func (m *SessionManager) itemIndexLocked(id string) (int, bool) {
	if m.current == nil {
		return 0, false
	}
	_, idx, ok := lo.FindIndexOf(m.current.ActionItems, func(a domain.ActionItem) bool { return a.ID == id })
	return idx, ok
}

func (m *SessionManager) isCurrentLocked(meetingID string) bool {
	return m.current != nil && m.current.ID == meetingID
}

func (m *SessionManager) dropLocked(meetingID, kind, id string) {
	reason := "no_session"
	if m.current != nil {
		reason = "stale_meeting"
	}
	m.metrics.RecordDropped(reason)
	m.logger.Warn().
		Str("meetingId", meetingID).
		Str("type", kind).
		Str("id", id).
		Str("reason", reason).
		Msg("dropping update for a meeting that is not current")
}
