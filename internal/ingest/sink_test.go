package ingest

import (
	"sync"
	"testing"
	"time"

	"fomo/internal/domain"
)

type recordingSink struct {
	mu          sync.Mutex
	meetingIDs  []string
	segments    []domain.TranscriptSegment
	items       []domain.ActionItem
	connections []domain.ConnectionStatus
}

func (r *recordingSink) Transcript(meetingID string, seg domain.TranscriptSegment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetingIDs = append(r.meetingIDs, meetingID)
	r.segments = append(r.segments, seg)
}

func (r *recordingSink) ActionItem(meetingID string, item domain.ActionItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetingIDs = append(r.meetingIDs, meetingID)
	r.items = append(r.items, item)
}

func (r *recordingSink) ConnectionChanged(_ string, status domain.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = append(r.connections, status)
}

func (r *recordingSink) segmentIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.segments))
	for _, seg := range r.segments {
		ids = append(ids, seg.ID)
	}
	return ids
}

func (r *recordingSink) itemCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *recordingSink) states() []domain.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ConnectionState, 0, len(r.connections))
	for _, c := range r.connections {
		out = append(out, c.State)
	}
	return out
}

func (r *recordingSink) hasState(state domain.ConnectionState) bool {
	for _, s := range r.states() {
		if s == state {
			return true
		}
	}
	return false
}

func (r *recordingSink) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segments) + len(r.items) + len(r.connections)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
