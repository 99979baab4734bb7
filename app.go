package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"fomo/internal/bootstrap"
	"fomo/internal/domain"
	"fomo/internal/export"
	"fomo/internal/usecase"
)

const (
	eventSession    = "fomo:session"
	eventTranscript = "fomo:transcript"
	eventEdited     = "fomo:transcript_edited"
	eventActionItem = "fomo:action_item"
	eventConnection = "fomo:connection"
	eventDuration   = "fomo:duration"
	eventError      = "fomo:error"
)

const healthTimeout = 2 * time.Second

// App is the Wails application root.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.SessionController
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.controller = services.Controller
	a.SessionStateChanged(domain.Meeting{}, domain.SessionReasonIdle)
}

func (a *App) shutdown(ctx context.Context) {
	if a.controller == nil {
		return
	}
	_ = a.services.Close(ctx)
}

// StartMeeting begins recording a new meeting.
func (a *App) StartMeeting(title string) (domain.Meeting, error) {
	if err := a.requireReady(); err != nil {
		return domain.Meeting{}, err
	}
	return a.controller.Start(a.ctx, title)
}

// StopMeeting ends the current meeting and returns the archived record.
func (a *App) StopMeeting() (domain.Meeting, error) {
	if err := a.requireReady(); err != nil {
		return domain.Meeting{}, err
	}
	return a.controller.Stop(a.ctx)
}

// AbortMeeting discards the current meeting without archiving it.
func (a *App) AbortMeeting() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Abort(a.ctx); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

func (a *App) PauseMeeting() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Pause(a.ctx)
}

func (a *App) ResumeMeeting() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Resume(a.ctx)
}

// EditTranscriptSegment replaces the text of a segment in the current meeting.
func (a *App) EditTranscriptSegment(id string, text string) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.controller.EditTranscriptSegment(id, text), nil
}

// UpdateActionItem edits the mutable fields of an action item.
func (a *App) UpdateActionItem(id string, patch domain.ActionItemPatch) (domain.ActionItem, error) {
	if err := a.requireReady(); err != nil {
		return domain.ActionItem{}, err
	}
	item, ok := a.controller.UpdateActionItem(id, patch)
	if !ok {
		return domain.ActionItem{}, fmt.Errorf("action item %q not found in the current meeting", id)
	}
	return item, nil
}

// ApproveActionItem moves a pending action item to approved. Items in any
// other state are returned unchanged.
func (a *App) ApproveActionItem(id string) (domain.ActionItem, error) {
	if err := a.requireReady(); err != nil {
		return domain.ActionItem{}, err
	}
	item, _ := a.controller.ApproveActionItem(id)
	if item.ID == "" {
		return domain.ActionItem{}, fmt.Errorf("action item %q not found in the current meeting", id)
	}
	return item, nil
}

// CreateGitHubIssue files an issue for an approved action item.
func (a *App) CreateGitHubIssue(id string) (domain.ActionItem, error) {
	if err := a.requireReady(); err != nil {
		return domain.ActionItem{}, err
	}
	return a.controller.CreateIssue(a.ctx, id)
}

// GetCurrentMeeting returns the meeting being recorded, or nil.
func (a *App) GetCurrentMeeting() *domain.Meeting {
	if a.controller == nil {
		return nil
	}
	meeting, ok := a.controller.Manager().Current()
	if !ok {
		return nil
	}
	return &meeting
}

func (a *App) GetRecordingState() domain.RecordingState {
	if a.controller == nil {
		return domain.RecordingState{}
	}
	return a.controller.Manager().RecordingState()
}

// GetStatus returns the session status and checks the capture backend while
// idle.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{Message: a.bootErr.Error()}
		}
		return domain.Status{}
	}

	status := a.controller.Status()
	if !status.Recording && a.services.Backend != nil {
		ctx, cancel := context.WithTimeout(a.context(), healthTimeout)
		defer cancel()
		if err := a.services.Backend.Health(ctx); err != nil {
			status.Message = "Capture backend unreachable: " + err.Error()
		}
	}
	return status
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	github := "disabled"
	if cfg.GitHubEnabled() {
		github = cfg.GitHub.Repository
	}
	return map[string]string{
		"backend":    cfg.Backend.BaseURL,
		"transport":  cfg.Backend.Transport,
		"github":     github,
		"archive":    cfg.Store.Path,
		"configFile": cfg.File,
	}
}

// ListMeetings returns archived meetings, most recent first.
func (a *App) ListMeetings() []domain.Meeting {
	if a.controller == nil {
		return []domain.Meeting{}
	}
	return a.controller.Manager().Archive()
}

func (a *App) GetMeeting(id string) (domain.Meeting, error) {
	if err := a.requireReady(); err != nil {
		return domain.Meeting{}, err
	}
	meeting, ok := a.controller.Manager().ArchiveLookup(id)
	if !ok {
		return domain.Meeting{}, fmt.Errorf("meeting %q not found in archive", id)
	}
	return meeting, nil
}

func (a *App) DeleteMeeting(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.DeleteMeeting(a.ctx, id)
}

// ExportMeeting renders an archived meeting as markdown or JSON.
func (a *App) ExportMeeting(id string, format string) (string, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	meeting, err := a.GetMeeting(id)
	if err != nil {
		return "", err
	}
	return export.String(meeting, f)
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) context() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// SessionStateChanged emits meeting lifecycle updates to the frontend.
func (a *App) SessionStateChanged(meeting domain.Meeting, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]any{
		"meeting": meeting,
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

func (a *App) TranscriptAppended(meetingID string, segment domain.TranscriptSegment) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, map[string]any{
		"meetingId": meetingID,
		"segment":   segment,
	})
}

func (a *App) TranscriptSegmentEdited(meetingID string, segment domain.TranscriptSegment) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventEdited, map[string]any{
		"meetingId": meetingID,
		"segment":   segment,
	})
}

func (a *App) ActionItemChanged(meetingID string, item domain.ActionItem) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventActionItem, map[string]any{
		"meetingId": meetingID,
		"item":      item,
	})
}

func (a *App) ConnectionChanged(meetingID string, status domain.ConnectionStatus) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventConnection, map[string]any{
		"meetingId": meetingID,
		"status":    status,
	})
}

func (a *App) DurationChanged(meetingID string, seconds int) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventDuration, map[string]any{
		"meetingId": meetingID,
		"duration":  seconds,
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonIdle:
		return "Ready to record"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonRecordingPaused:
		return "Recording paused"
	case domain.SessionReasonRecordingResumed:
		return "Recording resumed"
	case domain.SessionReasonAnalyzing:
		return "Recording stopped. Analyzing..."
	case domain.SessionReasonMeetingCompleted:
		return "Meeting saved"
	case domain.SessionReasonMeetingFailed:
		return "Meeting saved with errors"
	case domain.SessionReasonRecordingAborted:
		return "Recording discarded"
	case domain.SessionReasonStartFailed:
		return "Could not start recording"
	case domain.SessionReasonIngestionDegraded:
		return "Live updates unavailable"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeBackend:
		return "Capture backend error"
	case domain.ErrorCodeIngestion:
		return "Live update connection lost"
	case domain.ErrorCodeAnalysis:
		return "Meeting analysis failed"
	case domain.ErrorCodeIssueCreation:
		return "GitHub issue creation failed"
	case domain.ErrorCodeStorage:
		return "Could not save meeting"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
