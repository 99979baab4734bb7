package usecase

import (
	"sync"

	"fomo/internal/ports"
)

// activeSession holds the resources bound to the meeting being recorded.
type activeSession struct {
	meetingID    string
	subscription ports.Subscription

	cancelTicker func()
	tickerDone   chan struct{}

	releaseOnce sync.Once
}

// release stops the duration ticker and the live update subscription. When it
// returns no further ingestion callback or tick for this meeting can run.
func (s *activeSession) release() {
	s.releaseOnce.Do(func() {
		if s.cancelTicker != nil {
			s.cancelTicker()
			<-s.tickerDone
		}
		if s.subscription != nil {
			s.subscription.Unsubscribe()
		}
	})
}

func (s *activeSession) connected() bool {
	return s.subscription != nil && s.subscription.Connected()
}

func (s *activeSession) processed() int {
	if s.subscription == nil {
		return 0
	}
	return s.subscription.Processed()
}
