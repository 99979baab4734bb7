package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"fomo/internal/domain"
	"fomo/internal/metrics"
	"fomo/internal/ports"
)

const (
	TransportPush = "push"
	TransportPoll = "poll"
)

// TransportError is a failed connect, read or fetch on a live update channel.
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// subscription is the handle shared by the push and poll strategies. All sink
// calls happen on the run goroutine, which closes done when it exits.
type subscription struct {
	meetingID string
	transport string
	sink      ports.UpdateSink
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	maxRetries int
	failures   int

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	connected atomic.Bool
	processed atomic.Int64
}

var _ ports.Subscription = (*subscription)(nil)

func newSubscription(meetingID, transport string, sink ports.UpdateSink, mt *metrics.Metrics, logger zerolog.Logger, maxRetries int) (*subscription, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &subscription{
		meetingID:  meetingID,
		transport:  transport,
		sink:       sink,
		metrics:    mt,
		logger:     logger,
		maxRetries: maxRetries,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, ctx
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
	<-s.done
}

func (s *subscription) Connected() bool {
	return s.connected.Load()
}

func (s *subscription) Processed() int {
	return int(s.processed.Load())
}

func (s *subscription) markConnected(message string) {
	s.failures = 0
	s.connected.Store(true)
	s.notify(domain.ConnectionConnected, message)
}

func (s *subscription) setProcessed(chunks int) bool {
	if chunks <= 0 {
		return false
	}
	return s.processed.Swap(int64(chunks)) != int64(chunks)
}

// failure records one consecutive transport failure. It reports false once
// the retry ceiling is exhausted, after emitting the failed status.
func (s *subscription) failure(err error) bool {
	terr := &TransportError{Transport: s.transport, Err: err}
	s.connected.Store(false)
	s.failures++
	s.metrics.RecordTransportError(s.transport)

	if s.maxRetries > 0 && s.failures >= s.maxRetries {
		s.logger.Error().Err(terr).Int("failures", s.failures).Msg("live updates failed; giving up")
		s.notify(domain.ConnectionFailed, fmt.Sprintf("gave up after %d consecutive failures: %v", s.failures, err))
		return false
	}

	s.logger.Warn().Err(terr).Int("failures", s.failures).Msg("live update channel failed")
	s.notify(domain.ConnectionDisconnected, err.Error())
	return true
}

func (s *subscription) notify(state domain.ConnectionState, message string) {
	s.sink.ConnectionChanged(s.meetingID, domain.ConnectionStatus{
		State:           state,
		Transport:       s.transport,
		ChunksProcessed: s.Processed(),
		Message:         message,
	})
}

// sleep waits for d or until ctx is cancelled, reporting whether to go on.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
