package usecase

import (
	"sync"
	"time"

	"fomo/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(clock *fakeClock) *SessionManager {
	var mu sync.Mutex
	n := 0
	return NewSessionManager(clock, WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "meeting_" + string(rune('0'+n))
	}))
}

func segment(id string, start, end float64) domain.TranscriptSegment {
	return domain.TranscriptSegment{
		ID:         id,
		Speaker:    "Speaker A",
		Text:       "hello",
		Confidence: 0.9,
		StartTime:  start,
		EndTime:    end,
	}
}

func actionItem(id string) domain.ActionItem {
	return domain.ActionItem{
		ID:       id,
		Text:     "Write the follow-up email",
		Priority: domain.PriorityMedium,
		Status:   domain.ActionItemPending,
	}
}
