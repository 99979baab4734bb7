package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fomo/internal/domain"
	"fomo/internal/logging"
	"fomo/internal/metrics"
	"fomo/internal/ports"
)

// Config controls session orchestration.
type Config struct {
	TickInterval  time.Duration
	AnalyzeOnStop bool
	Issues        IssueConfig
}

// SessionController drives the capture backend, live updates, the duration
// ticker and archive persistence around the SessionManager.
type SessionController struct {
	manager *SessionManager
	backend ports.CaptureBackend
	updates ports.UpdateStrategy
	archive ports.ArchiveStore
	events  ports.EventSink
	issues  issueCreator
	metrics *metrics.Metrics
	cfg     Config
	logger  zerolog.Logger

	// lifecycleMu serialises Start, Stop and Abort. Manager state has its own
	// lock; this one keeps backend calls of two lifecycle operations apart.
	lifecycleMu sync.Mutex

	mu         sync.Mutex
	current    *activeSession
	connection domain.ConnectionStatus
}

func NewSessionController(
	manager *SessionManager,
	backend ports.CaptureBackend,
	updates ports.UpdateStrategy,
	archive ports.ArchiveStore,
	tracker ports.IssueTracker,
	events ports.EventSink,
	mt *metrics.Metrics,
	cfg Config,
) *SessionController {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if mt == nil {
		mt = metrics.New(nil)
	}
	return &SessionController{
		manager: manager,
		backend: backend,
		updates: updates,
		archive: archive,
		events:  events,
		issues:  newIssueCreator(manager, tracker, events, mt, cfg.Issues),
		metrics: mt,
		cfg:     cfg,
		logger:  logging.WithComponent("session_controller"),
	}
}

// Manager exposes the underlying session manager for read access.
func (c *SessionController) Manager() *SessionManager {
	return c.manager
}

// LoadArchive fills the manager's archive from persistent storage.
func (c *SessionController) LoadArchive(ctx context.Context) error {
	if c.archive == nil {
		return nil
	}
	meetings, err := c.archive.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load meeting archive: %w", err)
	}
	c.manager.LoadArchive(meetings)
	c.logger.Info().Int("meetings", len(meetings)).Msg("meeting archive loaded")
	return nil
}

// Start begins a new meeting, starts backend capture and subscribes to live
// updates. A failed backend start leaves no meeting behind.
func (c *SessionController) Start(ctx context.Context, title string) (domain.Meeting, error) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	meeting, err := c.manager.StartSession(title)
	if err != nil {
		return domain.Meeting{}, err
	}

	if err := c.backend.StartCapture(ctx, meeting.ID, meeting.Title); err != nil {
		c.manager.AbortSession()
		c.events.SessionStateChanged(meeting, domain.SessionReasonStartFailed)
		c.events.SessionError(domain.ErrorCodeBackend, err.Error())
		return domain.Meeting{}, fmt.Errorf("could not start recording; check that the capture backend is running and microphone access is granted: %w", err)
	}

	active := &activeSession{meetingID: meeting.ID}
	c.setConnection(domain.ConnectionStatus{State: domain.ConnectionConnecting, Transport: c.updates.Name()})
	active.subscription = c.updates.Subscribe(meeting.ID, ingestionSink{controller: c})

	tickerCtx, cancel := context.WithCancel(context.Background())
	active.cancelTicker = cancel
	active.tickerDone = make(chan struct{})
	go c.runTicker(tickerCtx, meeting.ID, active.tickerDone)

	c.mu.Lock()
	c.current = active
	c.mu.Unlock()

	c.events.SessionStateChanged(meeting, domain.SessionReasonRecordingStarted)
	return meeting, nil
}

// Stop ends the current meeting. Live updates are cancelled before the
// meeting is archived, so an archived meeting is never mutated again.
func (c *SessionController) Stop(ctx context.Context) (domain.Meeting, error) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	active, err := c.takeCurrent()
	if err != nil {
		return domain.Meeting{}, err
	}
	active.release()

	if err := c.backend.StopCapture(ctx, active.meetingID); err != nil {
		c.logger.Warn().Err(err).Str("meetingId", active.meetingID).Msg("backend stop failed")
		c.events.SessionError(domain.ErrorCodeBackend, fmt.Sprintf("failed to stop capture cleanly: %v", err))
	}

	meeting, reason := c.finalize(ctx, active.meetingID)

	var saveErr error
	if c.archive != nil {
		if err := c.archive.Save(ctx, meeting); err != nil {
			saveErr = fmt.Errorf("meeting %s was stopped but could not be saved: %w", meeting.ID, err)
			c.events.SessionError(domain.ErrorCodeStorage, saveErr.Error())
		}
	}

	c.setConnection(domain.ConnectionStatus{State: domain.ConnectionClosed, Transport: c.updates.Name()})
	c.events.SessionStateChanged(meeting, reason)
	return meeting, saveErr
}

func (c *SessionController) finalize(ctx context.Context, meetingID string) (domain.Meeting, domain.SessionStateReason) {
	if !c.cfg.AnalyzeOnStop {
		meeting, _ := c.manager.StopSession()
		return meeting, domain.SessionReasonMeetingCompleted
	}

	if processing, ok := c.manager.MarkProcessing(); ok {
		c.events.SessionStateChanged(processing, domain.SessionReasonAnalyzing)
	}

	analysis, err := c.backend.Analyze(ctx, meetingID)
	if err != nil {
		c.logger.Error().Err(err).Str("meetingId", meetingID).Msg("meeting analysis failed")
		c.events.SessionError(domain.ErrorCodeAnalysis, err.Error())
		meeting, _ := c.manager.FailSession()
		return meeting, domain.SessionReasonMeetingFailed
	}

	for _, item := range analysis.ActionItems {
		if c.manager.AppendActionItem(item) == nil {
			c.events.ActionItemChanged(meetingID, item)
		}
	}
	c.manager.SetSummary(analysis.Summary, analysis.NextSteps)

	meeting, _ := c.manager.StopSession()
	return meeting, domain.SessionReasonMeetingCompleted
}

// Abort discards the current meeting without archiving it.
func (c *SessionController) Abort(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	active, err := c.takeCurrent()
	if err != nil {
		return err
	}
	active.release()
	if err := c.backend.StopCapture(ctx, active.meetingID); err != nil {
		c.logger.Warn().Err(err).Str("meetingId", active.meetingID).Msg("backend stop failed during abort")
	}

	meeting, _ := c.manager.AbortSession()
	c.setConnection(domain.ConnectionStatus{State: domain.ConnectionClosed, Transport: c.updates.Name()})
	c.events.SessionStateChanged(meeting, domain.SessionReasonRecordingAborted)
	return nil
}

// Pause pauses recording locally, then notifies the backend. Duplicate calls
// are ignored.
func (c *SessionController) Pause(ctx context.Context) error {
	if !c.manager.PauseSession() {
		return nil
	}
	meeting, ok := c.manager.Current()
	if !ok {
		return nil
	}
	c.events.SessionStateChanged(meeting, domain.SessionReasonRecordingPaused)
	if err := c.backend.PauseCapture(ctx, meeting.ID); err != nil {
		c.events.SessionError(domain.ErrorCodeBackend, fmt.Sprintf("failed to pause capture: %v", err))
		return err
	}
	return nil
}

// Resume resumes a paused recording.
func (c *SessionController) Resume(ctx context.Context) error {
	if !c.manager.ResumeSession() {
		return nil
	}
	meeting, ok := c.manager.Current()
	if !ok {
		return nil
	}
	c.events.SessionStateChanged(meeting, domain.SessionReasonRecordingResumed)
	if err := c.backend.ResumeCapture(ctx, meeting.ID); err != nil {
		c.events.SessionError(domain.ErrorCodeBackend, fmt.Sprintf("failed to resume capture: %v", err))
		return err
	}
	return nil
}

// EditTranscriptSegment changes the text of a segment in the current meeting.
func (c *SessionController) EditTranscriptSegment(id, text string) bool {
	if !c.manager.EditTranscriptSegment(id, text) {
		return false
	}
	if meeting, ok := c.manager.Current(); ok {
		if seg, found := c.manager.TranscriptSegment(id); found {
			c.events.TranscriptSegmentEdited(meeting.ID, seg)
		}
	}
	return true
}

// UpdateActionItem merges a user edit into an action item.
func (c *SessionController) UpdateActionItem(id string, patch domain.ActionItemPatch) (domain.ActionItem, bool) {
	item, ok := c.manager.UpdateActionItemFields(id, patch)
	if ok {
		c.events.ActionItemChanged(item.MeetingID, item)
	}
	return item, ok
}

// ApproveActionItem approves a pending or failed action item.
func (c *SessionController) ApproveActionItem(id string) (domain.ActionItem, bool) {
	item, ok := c.manager.ApproveActionItem(id)
	if ok {
		c.events.ActionItemChanged(item.MeetingID, item)
	}
	return item, ok
}

// CreateIssue turns an approved action item into a GitHub issue.
func (c *SessionController) CreateIssue(ctx context.Context, id string) (domain.ActionItem, error) {
	return c.issues.Create(ctx, id)
}

// DeleteMeeting removes an archived meeting from memory and storage.
func (c *SessionController) DeleteMeeting(ctx context.Context, id string) error {
	if !c.manager.RemoveFromArchive(id) {
		return fmt.Errorf("meeting %q not found in archive", id)
	}
	if c.archive == nil {
		return nil
	}
	if err := c.archive.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete meeting %q: %w", id, err)
	}
	return nil
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	recording := c.manager.RecordingState()

	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.Status{
		Recording:  recording.IsRecording,
		Paused:     recording.IsPaused,
		Connection: c.connection,
	}
	if c.current != nil {
		status.MeetingID = c.current.meetingID
		status.Connection.ChunksProcessed = c.current.processed()
		if c.current.connected() {
			status.Connection.State = domain.ConnectionConnected
		}
	}
	return status
}

// Shutdown releases live resources of an in-progress meeting. The meeting
// itself is ephemeral and is not archived.
func (c *SessionController) Shutdown(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	active, err := c.takeCurrent()
	if err != nil {
		return
	}
	active.release()
	if err := c.backend.StopCapture(ctx, active.meetingID); err != nil {
		c.logger.Warn().Err(err).Msg("backend stop failed during shutdown")
	}
	c.manager.AbortSession()
}

func (c *SessionController) runTicker(ctx context.Context, meetingID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seconds := c.manager.Tick()
			if seconds != last {
				last = seconds
				c.events.DurationChanged(meetingID, seconds)
			}
		}
	}
}

func (c *SessionController) takeCurrent() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	active := c.current
	c.current = nil
	return active, nil
}

func (c *SessionController) setConnection(status domain.ConnectionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connection = status
}
