package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"fomo/internal/domain"
	"fomo/internal/ports"
)

func TestSessionControllerStartStopSuccess(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})

	meeting, err := h.controller.Start(context.Background(), "Standup")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if meeting.Title != "Standup" || meeting.Status != domain.MeetingStatusRecording {
		t.Fatalf("unexpected meeting: %+v", meeting)
	}
	if got := h.backend.calls(); len(got) != 1 || got[0] != "start:"+meeting.ID {
		t.Fatalf("unexpected backend calls: %v", got)
	}

	sink := h.strategy.lastSink()
	sink.Transcript(meeting.ID, segment("seg-1", 0, 2))
	sink.Transcript(meeting.ID, segment("seg-1", 0, 2))
	sink.ActionItem(meeting.ID, actionItem("item-1"))

	h.clock.Advance(5 * time.Second)
	stopped, err := h.controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if stopped.Status != domain.MeetingStatusCompleted {
		t.Fatalf("unexpected status: %s", stopped.Status)
	}
	if stopped.Duration != 5 {
		t.Fatalf("unexpected duration: %d", stopped.Duration)
	}
	if len(stopped.Transcript) != 1 || len(stopped.ActionItems) != 1 {
		t.Fatalf("unexpected contents: %d segments, %d items", len(stopped.Transcript), len(stopped.ActionItems))
	}
	if stopped.ActionItems[0].MeetingID != meeting.ID {
		t.Fatalf("action item not bound to meeting: %q", stopped.ActionItems[0].MeetingID)
	}

	if len(h.events.snapshotTranscripts()) != 1 {
		t.Fatalf("expected one transcript event for a duplicated segment")
	}
	states := h.events.snapshotStates()
	if states[0].reason != domain.SessionReasonRecordingStarted {
		t.Fatalf("unexpected first reason: %s", states[0].reason)
	}
	if states[len(states)-1].reason != domain.SessionReasonMeetingCompleted {
		t.Fatalf("unexpected final reason: %s", states[len(states)-1].reason)
	}

	saved := h.archive.snapshot()
	if len(saved) != 1 || saved[0].ID != meeting.ID {
		t.Fatalf("meeting was not persisted: %+v", saved)
	}
	if archived, ok := h.manager.ArchiveLookup(meeting.ID); !ok || archived.Status != domain.MeetingStatusCompleted {
		t.Fatalf("meeting missing from archive")
	}
}

func TestSessionControllerStopCancelsUpdatesBeforeArchiving(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	meeting, err := h.controller.Start(context.Background(), "Retro")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sub := h.strategy.lastSubscription()
	sink := h.strategy.lastSink()

	if _, err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if sub.unsubscribeCount() != 1 {
		t.Fatalf("expected exactly one unsubscribe, got %d", sub.unsubscribeCount())
	}
	order := h.log.snapshot()
	if indexOf(order, "unsubscribe") < 0 || indexOf(order, "unsubscribe") > indexOf(order, "save") {
		t.Fatalf("subscription must be cancelled before saving: %v", order)
	}

	sink.Transcript(meeting.ID, segment("late", 10, 11))
	sink.ActionItem(meeting.ID, actionItem("late-item"))

	archived, ok := h.manager.ArchiveLookup(meeting.ID)
	if !ok {
		t.Fatalf("meeting missing from archive")
	}
	if len(archived.Transcript) != 0 || len(archived.ActionItems) != 0 {
		t.Fatalf("archived meeting was mutated by a late update")
	}
}

func TestSessionControllerStartFailureAbortsSession(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	h.backend.startErr = errors.New("connection refused")

	if _, err := h.controller.Start(context.Background(), "Planning"); err == nil {
		t.Fatalf("expected start error")
	}
	if _, ok := h.manager.Current(); ok {
		t.Fatalf("failed start must not leave a current meeting")
	}
	if len(h.manager.Archive()) != 0 {
		t.Fatalf("failed start must not archive a meeting")
	}
	if h.strategy.subscriptionCount() != 0 {
		t.Fatalf("no subscription expected after a failed start")
	}

	states := h.events.snapshotStates()
	if len(states) != 1 || states[0].reason != domain.SessionReasonStartFailed {
		t.Fatalf("unexpected states: %+v", states)
	}
	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeBackend {
		t.Fatalf("unexpected errors: %+v", errs)
	}

	// A new meeting can be started after the failure.
	h.backend.startErr = nil
	if _, err := h.controller.Start(context.Background(), "Planning"); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
}

func TestSessionControllerStartWhileActive(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	if _, err := h.controller.Start(context.Background(), "One"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := h.controller.Start(context.Background(), "Two"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if h.strategy.subscriptionCount() != 1 {
		t.Fatalf("second start must not subscribe again")
	}
}

func TestSessionControllerStopWithoutActiveSession(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{})
	if _, err := h.controller.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if err := h.controller.Abort(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestSessionControllerStopBackendFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	h.backend.stopErr = errors.New("backend gone")

	if _, err := h.controller.Start(context.Background(), "Sync"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	meeting, err := h.controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop should succeed when the backend stop fails: %v", err)
	}
	if meeting.Status != domain.MeetingStatusCompleted {
		t.Fatalf("unexpected status: %s", meeting.Status)
	}
	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeBackend {
		t.Fatalf("expected a backend error event, got %+v", errs)
	}
}

func TestSessionControllerStopSaveFailure(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	h.archive.saveErr = errors.New("disk full")

	meeting, err := h.controller.Start(context.Background(), "Sync")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := h.controller.Stop(context.Background()); err == nil {
		t.Fatalf("expected save error")
	}
	if _, ok := h.manager.ArchiveLookup(meeting.ID); !ok {
		t.Fatalf("meeting should stay archived in memory")
	}
	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeStorage {
		t.Fatalf("expected a storage error event, got %+v", errs)
	}
}

func TestSessionControllerAnalyzeOnStop(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour, AnalyzeOnStop: true})
	h.backend.analysis = ports.Analysis{
		ActionItems: []domain.ActionItem{actionItem("from-analysis")},
		Summary:     &domain.MeetingSummary{Overview: "Shipped the release"},
		NextSteps:   []string{"Announce"},
	}

	if _, err := h.controller.Start(context.Background(), "Review"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	meeting, err := h.controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if meeting.Summary == nil || meeting.Summary.Overview != "Shipped the release" {
		t.Fatalf("summary missing: %+v", meeting.Summary)
	}
	if len(meeting.NextSteps) != 1 || len(meeting.ActionItems) != 1 {
		t.Fatalf("analysis results missing: %+v", meeting)
	}

	states := h.events.snapshotStates()
	reasons := make([]domain.SessionStateReason, 0, len(states))
	for _, s := range states {
		reasons = append(reasons, s.reason)
	}
	want := []domain.SessionStateReason{
		domain.SessionReasonRecordingStarted,
		domain.SessionReasonAnalyzing,
		domain.SessionReasonMeetingCompleted,
	}
	if len(reasons) != len(want) {
		t.Fatalf("unexpected reasons: %v", reasons)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Fatalf("unexpected reasons: %v", reasons)
		}
	}
}

func TestSessionControllerAnalyzeFailureFailsMeeting(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour, AnalyzeOnStop: true})
	h.backend.analyzeErr = errors.New("model unavailable")

	if _, err := h.controller.Start(context.Background(), "Review"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	meeting, err := h.controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if meeting.Status != domain.MeetingStatusFailed {
		t.Fatalf("unexpected status: %s", meeting.Status)
	}
	if len(h.archive.snapshot()) != 1 {
		t.Fatalf("failed meeting should still be persisted")
	}
	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeAnalysis {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestSessionControllerAbortLifecycle(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	if _, err := h.controller.Start(context.Background(), "Scratch"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sub := h.strategy.lastSubscription()

	if err := h.controller.Abort(context.Background()); err != nil {
		t.Fatalf("abort failed: %v", err)
	}
	if sub.unsubscribeCount() != 1 {
		t.Fatalf("abort must unsubscribe")
	}
	if len(h.manager.Archive()) != 0 || len(h.archive.snapshot()) != 0 {
		t.Fatalf("aborted meeting must not be archived")
	}
	states := h.events.snapshotStates()
	if states[len(states)-1].reason != domain.SessionReasonRecordingAborted {
		t.Fatalf("unexpected final reason: %s", states[len(states)-1].reason)
	}
}

func TestSessionControllerPauseResume(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	meeting, err := h.controller.Start(context.Background(), "Focus")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := h.controller.Pause(context.Background()); err != nil {
			t.Fatalf("pause failed: %v", err)
		}
	}
	if !h.controller.Status().Paused {
		t.Fatalf("expected paused status")
	}
	for i := 0; i < 2; i++ {
		if err := h.controller.Resume(context.Background()); err != nil {
			t.Fatalf("resume failed: %v", err)
		}
	}

	want := []string{"start:" + meeting.ID, "pause:" + meeting.ID, "resume:" + meeting.ID}
	got := h.backend.calls()
	if len(got) != len(want) {
		t.Fatalf("duplicate pause/resume reached the backend: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected backend calls: %v", got)
		}
	}
}

func TestSessionControllerTickerEmitsDuration(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: 5 * time.Millisecond})
	if _, err := h.controller.Start(context.Background(), "Timer"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	h.clock.Advance(3 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.events.lastDuration() == 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if h.events.lastDuration() != 3 {
		t.Fatalf("expected duration event of 3s, got %d", h.events.lastDuration())
	}
	if _, err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestSessionControllerConnectionFailureReportsError(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	meeting, err := h.controller.Start(context.Background(), "Flaky")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	h.strategy.lastSink().ConnectionChanged(meeting.ID, domain.ConnectionStatus{
		State:     domain.ConnectionFailed,
		Transport: "push",
		Message:   "gave up after 3 attempts",
	})

	if h.controller.Status().Connection.State != domain.ConnectionFailed {
		t.Fatalf("status should reflect the failed connection")
	}
	errs := h.events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeIngestion {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	states := h.events.snapshotStates()
	if last := states[len(states)-1]; last.reason != domain.SessionReasonIngestionDegraded || last.meeting.ID != meeting.ID {
		t.Fatalf("expected degraded session state, got %+v", last)
	}
}

func TestSessionControllerEmitsStoredSegments(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	meeting, err := h.controller.Start(context.Background(), "Sync")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	h.strategy.lastSink().Transcript(meeting.ID, segment("s1", 0, 1))
	transcripts := h.events.snapshotTranscripts()
	if len(transcripts) != 1 || transcripts[0].Timestamp != h.clock.Now().UnixMilli() {
		t.Fatalf("expected stored segment with arrival timestamp, got %+v", transcripts)
	}

	if !h.controller.EditTranscriptSegment("s1", "corrected") {
		t.Fatalf("edit failed")
	}
	if got := h.events.snapshotTranscripts(); len(got) != 1 {
		t.Fatalf("edits must not be reported as appended segments: %+v", got)
	}
	edits := h.events.snapshotEdits()
	if len(edits) != 1 || edits[0].Text != "corrected" || edits[0].Timestamp != transcripts[0].Timestamp {
		t.Fatalf("unexpected edit events: %+v", edits)
	}
}

func TestSessionControllerStatusActive(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	meeting, err := h.controller.Start(context.Background(), "Status")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sub := h.strategy.lastSubscription()
	sub.setConnected(true, 7)

	status := h.controller.Status()
	if !status.Recording || status.MeetingID != meeting.ID {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Connection.State != domain.ConnectionConnected || status.Connection.ChunksProcessed != 7 {
		t.Fatalf("unexpected connection: %+v", status.Connection)
	}
}

func TestSessionControllerCreateIssue(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{
		TickInterval: time.Hour,
		Issues: IssueConfig{
			Repository: "acme/app",
			Labels:     []string{"meeting"},
			Assignees:  map[string]string{"Alice": "alice-gh"},
		},
	})
	meeting, err := h.controller.Start(context.Background(), "Planning")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	item := actionItem("item-1")
	assignee := "alice"
	item.Assignee = &assignee
	item.Context = "We agreed on Friday."
	h.strategy.lastSink().ActionItem(meeting.ID, item)

	if _, err := h.controller.CreateIssue(context.Background(), "item-1"); !errors.Is(err, ErrActionItemNotApproved) {
		t.Fatalf("expected ErrActionItemNotApproved, got %v", err)
	}
	if _, ok := h.controller.ApproveActionItem("item-1"); !ok {
		t.Fatalf("approve failed")
	}

	created, err := h.controller.CreateIssue(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("create issue failed: %v", err)
	}
	if created.Status != domain.ActionItemCreated || created.GitHubIssue == nil || created.GitHubIssue.Number != 42 {
		t.Fatalf("unexpected item: %+v", created)
	}

	req := h.tracker.lastRequest()
	if req.Repository != "acme/app" || req.Assignee != "alice-gh" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(req.Labels) != 2 || req.Labels[1] != "priority:medium" {
		t.Fatalf("unexpected labels: %v", req.Labels)
	}

	if _, err := h.controller.CreateIssue(context.Background(), "missing"); !errors.Is(err, ErrActionItemNotFound) {
		t.Fatalf("expected ErrActionItemNotFound, got %v", err)
	}
}

func TestSessionControllerCreateIssueKeepsSpokenAssigneeInBody(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{
		TickInterval: time.Hour,
		Issues:       IssueConfig{Repository: "acme/app", Assignees: map[string]string{"Bob": "bobdev"}},
	})
	meeting, err := h.controller.Start(context.Background(), "Launch")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	item := actionItem("item-1")
	assignee := "Sarah from marketing"
	item.Assignee = &assignee
	h.strategy.lastSink().ActionItem(meeting.ID, item)
	if _, ok := h.controller.ApproveActionItem("item-1"); !ok {
		t.Fatalf("approve failed")
	}

	if _, err := h.controller.CreateIssue(context.Background(), "item-1"); err != nil {
		t.Fatalf("create issue failed: %v", err)
	}
	req := h.tracker.lastRequest()
	if req.Assignee != "" {
		t.Fatalf("unmapped name must not be sent as a GitHub assignee: %q", req.Assignee)
	}
	if !strings.Contains(req.Body, "**Assignee:** Sarah from marketing") {
		t.Fatalf("assignee missing from body: %q", req.Body)
	}
}

func TestBuildIssueRequestTruncatesTitleOnRuneBoundary(t *testing.T) {
	t.Parallel()

	item := actionItem("item-1")
	item.Text = strings.Repeat("é", 150)

	req := buildIssueRequest("Planning", item, IssueConfig{})
	if !utf8.ValidString(req.Title) {
		t.Fatalf("title is not valid UTF-8: %q", req.Title)
	}
	if got := utf8.RuneCountInString(req.Title); got != maxIssueTitle {
		t.Fatalf("unexpected title length %d", got)
	}
	if !strings.HasSuffix(req.Title, "...") {
		t.Fatalf("truncated title should end with an ellipsis: %q", req.Title)
	}

	item.Text = strings.Repeat("é", maxIssueTitle)
	if req := buildIssueRequest("Planning", item, IssueConfig{}); req.Title != item.Text {
		t.Fatalf("title at the limit should be kept: %q", req.Title)
	}
}

func TestSessionControllerCreateIssueFailureAllowsRetry(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour, Issues: IssueConfig{Repository: "acme/app"}})
	meeting, err := h.controller.Start(context.Background(), "Planning")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	h.strategy.lastSink().ActionItem(meeting.ID, actionItem("item-1"))
	h.controller.ApproveActionItem("item-1")
	h.tracker.err = errors.New("rate limited")

	failed, err := h.controller.CreateIssue(context.Background(), "item-1")
	var issueErr *IssueCreationError
	if !errors.As(err, &issueErr) || issueErr.ItemID != "item-1" {
		t.Fatalf("expected IssueCreationError, got %v", err)
	}
	if failed.Status != domain.ActionItemFailed || failed.GitHubIssue != nil {
		t.Fatalf("unexpected item after failure: %+v", failed)
	}

	h.tracker.err = nil
	if _, ok := h.controller.ApproveActionItem("item-1"); !ok {
		t.Fatalf("failed item should be re-approvable")
	}
	created, err := h.controller.CreateIssue(context.Background(), "item-1")
	if err != nil || created.Status != domain.ActionItemCreated {
		t.Fatalf("retry failed: %v %+v", err, created)
	}
}

func TestSessionControllerCreateIssueNotConfigured(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	if _, err := h.controller.CreateIssue(context.Background(), "item-1"); !errors.Is(err, ErrIssueTrackerNotConfigured) {
		t.Fatalf("expected ErrIssueTrackerNotConfigured, got %v", err)
	}
}

func TestSessionControllerDeleteMeeting(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	meeting, err := h.controller.Start(context.Background(), "Old")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := h.controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if err := h.controller.DeleteMeeting(context.Background(), meeting.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := h.manager.ArchiveLookup(meeting.ID); ok {
		t.Fatalf("meeting still archived")
	}
	if len(h.archive.snapshot()) != 0 {
		t.Fatalf("meeting still persisted")
	}
	if err := h.controller.DeleteMeeting(context.Background(), meeting.ID); err == nil {
		t.Fatalf("expected error for unknown meeting")
	}
}

func TestSessionControllerLoadArchive(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{})
	h.archive.meetings = []domain.Meeting{
		{ID: "meeting_b", Title: "B", Status: domain.MeetingStatusCompleted},
		{ID: "meeting_a", Title: "A", Status: domain.MeetingStatusCompleted},
	}
	if err := h.controller.LoadArchive(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	archive := h.manager.Archive()
	if len(archive) != 2 || archive[0].ID != "meeting_b" {
		t.Fatalf("unexpected archive: %+v", archive)
	}
}

func TestSessionControllerShutdownDiscardsActiveMeeting(t *testing.T) {
	t.Parallel()

	h := newControllerHarness(Config{TickInterval: time.Hour})
	if _, err := h.controller.Start(context.Background(), "Unsaved"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sub := h.strategy.lastSubscription()

	h.controller.Shutdown(context.Background())
	if sub.unsubscribeCount() != 1 {
		t.Fatalf("shutdown must unsubscribe")
	}
	if _, ok := h.manager.Current(); ok {
		t.Fatalf("shutdown must clear the current meeting")
	}
	if len(h.archive.snapshot()) != 0 {
		t.Fatalf("shutdown must not persist the meeting")
	}
}

type controllerHarness struct {
	clock      *fakeClock
	manager    *SessionManager
	backend    *fakeBackend
	strategy   *fakeStrategy
	archive    *fakeArchive
	tracker    *fakeTracker
	events     *fakeEventSink
	log        *callLog
	controller *SessionController
}

func newControllerHarness(cfg Config) *controllerHarness {
	log := &callLog{}
	clock := newFakeClock()
	h := &controllerHarness{
		clock:    clock,
		manager:  newTestManager(clock),
		backend:  &fakeBackend{},
		strategy: &fakeStrategy{log: log},
		archive:  &fakeArchive{log: log},
		tracker:  &fakeTracker{ref: domain.IssueRef{Number: 42, URL: "https://github.com/acme/app/issues/42", Repository: "acme/app"}},
		events:   &fakeEventSink{},
		log:      log,
	}
	h.controller = NewSessionController(h.manager, h.backend, h.strategy, h.archive, h.tracker, h.events, nil, cfg)
	return h
}

type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func indexOf(entries []string, target string) int {
	for i, entry := range entries {
		if entry == target {
			return i
		}
	}
	return -1
}

type fakeBackend struct {
	mu sync.Mutex

	startErr   error
	stopErr    error
	analyzeErr error
	analysis   ports.Analysis
	log        []string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, call)
}

func (f *fakeBackend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func (f *fakeBackend) StartCapture(_ context.Context, meetingID, _ string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.record("start:" + meetingID)
	return nil
}

func (f *fakeBackend) StopCapture(_ context.Context, meetingID string) error {
	f.record("stop:" + meetingID)
	return f.stopErr
}

func (f *fakeBackend) PauseCapture(_ context.Context, meetingID string) error {
	f.record("pause:" + meetingID)
	return nil
}

func (f *fakeBackend) ResumeCapture(_ context.Context, meetingID string) error {
	f.record("resume:" + meetingID)
	return nil
}

func (f *fakeBackend) Analyze(_ context.Context, _ string) (ports.Analysis, error) {
	return f.analysis, f.analyzeErr
}

func (f *fakeBackend) Health(context.Context) error { return nil }

type fakeStrategy struct {
	mu   sync.Mutex
	log  *callLog
	subs []*fakeSubscription
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Subscribe(meetingID string, sink ports.UpdateSink) ports.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSubscription{meetingID: meetingID, sink: sink, log: f.log}
	f.subs = append(f.subs, sub)
	return sub
}

func (f *fakeStrategy) subscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeStrategy) lastSubscription() *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[len(f.subs)-1]
}

func (f *fakeStrategy) lastSink() ports.UpdateSink {
	return f.lastSubscription().sink
}

type fakeSubscription struct {
	mu        sync.Mutex
	meetingID string
	sink      ports.UpdateSink
	log       *callLog

	unsubscribed int
	isConnected  bool
	chunks       int
}

func (f *fakeSubscription) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed++
	f.log.add("unsubscribe")
}

func (f *fakeSubscription) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isConnected
}

func (f *fakeSubscription) Processed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks
}

func (f *fakeSubscription) setConnected(connected bool, chunks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isConnected = connected
	f.chunks = chunks
}

func (f *fakeSubscription) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

type fakeArchive struct {
	mu       sync.Mutex
	log      *callLog
	meetings []domain.Meeting
	saveErr  error
}

func (f *fakeArchive) Save(_ context.Context, meeting domain.Meeting) error {
	f.log.add("save")
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meetings = append([]domain.Meeting{meeting}, f.meetings...)
	return nil
}

func (f *fakeArchive) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.meetings[:0]
	for _, m := range f.meetings {
		if m.ID != id {
			out = append(out, m)
		}
	}
	f.meetings = out
	return nil
}

func (f *fakeArchive) List(context.Context) ([]domain.Meeting, error) {
	return f.snapshot(), nil
}

func (f *fakeArchive) Get(_ context.Context, id string) (domain.Meeting, error) {
	for _, m := range f.snapshot() {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Meeting{}, errors.New("not found")
}

func (f *fakeArchive) snapshot() []domain.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Meeting(nil), f.meetings...)
}

type fakeTracker struct {
	mu   sync.Mutex
	ref  domain.IssueRef
	err  error
	reqs []ports.IssueRequest
}

func (f *fakeTracker) CreateIssue(_ context.Context, req ports.IssueRequest) (domain.IssueRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return domain.IssueRef{}, f.err
	}
	return f.ref, nil
}

func (f *fakeTracker) lastRequest() ports.IssueRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type fakeEventSink struct {
	mu sync.Mutex

	states      []stateEvent
	transcripts []domain.TranscriptSegment
	edits       []domain.TranscriptSegment
	items       []domain.ActionItem
	connections []domain.ConnectionStatus
	durations   []int
	errors      []errEvent
}

type stateEvent struct {
	meeting domain.Meeting
	reason  domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(meeting domain.Meeting, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{meeting: meeting, reason: reason})
}

func (f *fakeEventSink) TranscriptAppended(_ string, seg domain.TranscriptSegment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, seg)
}

func (f *fakeEventSink) ActionItemChanged(_ string, item domain.ActionItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
}

func (f *fakeEventSink) ConnectionChanged(_ string, status domain.ConnectionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections = append(f.connections, status)
}

func (f *fakeEventSink) DurationChanged(_ string, seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations = append(f.durations, seconds)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeEventSink) TranscriptSegmentEdited(_ string, seg domain.TranscriptSegment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, seg)
}

func (f *fakeEventSink) snapshotEdits() []domain.TranscriptSegment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TranscriptSegment(nil), f.edits...)
}

func (f *fakeEventSink) snapshotTranscripts() []domain.TranscriptSegment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TranscriptSegment(nil), f.transcripts...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeEventSink) lastDuration() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.durations) == 0 {
		return -1
	}
	return f.durations[len(f.durations)-1]
}
