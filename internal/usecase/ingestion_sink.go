package usecase

import (
	"fomo/internal/domain"
	"fomo/internal/ports"
)

// ingestionSink forwards live updates into the manager and notifies the UI
// about the ones that changed the current meeting.
type ingestionSink struct {
	controller *SessionController
}

var _ ports.UpdateSink = ingestionSink{}

func (s ingestionSink) Transcript(meetingID string, segment domain.TranscriptSegment) {
	c := s.controller
	if c.manager.IngestTranscriptSegment(meetingID, segment) != IngestApplied {
		return
	}
	if stored, ok := c.manager.TranscriptSegment(segment.ID); ok {
		c.events.TranscriptAppended(meetingID, stored)
	}
}

func (s ingestionSink) ActionItem(meetingID string, item domain.ActionItem) {
	c := s.controller
	if c.manager.IngestActionItem(meetingID, item) != IngestApplied {
		return
	}
	if current, ok := c.manager.Current(); ok {
		if stored, found := findItem(current, item.ID); found {
			c.events.ActionItemChanged(meetingID, stored)
		}
	}
}

func (s ingestionSink) ConnectionChanged(meetingID string, status domain.ConnectionStatus) {
	c := s.controller
	c.setConnection(status)
	c.events.ConnectionChanged(meetingID, status)
	if status.State != domain.ConnectionFailed {
		return
	}
	c.events.SessionError(domain.ErrorCodeIngestion, "live updates stopped after repeated failures: "+status.Message)
	if current, ok := c.manager.Current(); ok && current.ID == meetingID {
		c.events.SessionStateChanged(current, domain.SessionReasonIngestionDegraded)
	}
}

func findItem(meeting domain.Meeting, id string) (domain.ActionItem, bool) {
	for _, item := range meeting.ActionItems {
		if item.ID == id {
			return item, true
		}
	}
	return domain.ActionItem{}, false
}
