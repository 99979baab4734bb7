package ingest

import (
	"context"
	"time"

	"fomo/internal/domain"
	"fomo/internal/logging"
	"fomo/internal/metrics"
	"fomo/internal/ports"
)

// PollConfig controls snapshot polling.
type PollConfig struct {
	Interval   time.Duration
	MaxRetries int
}

// PollStrategy implements ports.UpdateStrategy by fetching meeting snapshots
// on an interval and emitting only the transcript suffix not yet delivered.
type PollStrategy struct {
	source  ports.SnapshotSource
	cfg     PollConfig
	metrics *metrics.Metrics
}

var _ ports.UpdateStrategy = (*PollStrategy)(nil)

func NewPollStrategy(source ports.SnapshotSource, cfg PollConfig, mt *metrics.Metrics) *PollStrategy {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if mt == nil {
		mt = metrics.New(nil)
	}
	return &PollStrategy{
		source:  source,
		cfg:     cfg,
		metrics: mt,
	}
}

func (p *PollStrategy) Name() string { return TransportPoll }

func (p *PollStrategy) Subscribe(meetingID string, sink ports.UpdateSink) ports.Subscription {
	logger := logging.WithMeeting("ingest_poll", meetingID)
	sub, ctx := newSubscription(meetingID, TransportPoll, sink, p.metrics, logger, p.cfg.MaxRetries)
	go p.run(ctx, sub)
	return sub
}

func (p *PollStrategy) run(ctx context.Context, sub *subscription) {
	defer close(sub.done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	cursor := 0
	for {
		var ok bool
		cursor, ok = p.poll(ctx, sub, cursor)
		if !ok {
			return
		}
		select {
		case <-ctx.Done():
			sub.connected.Store(false)
			return
		case <-ticker.C:
		}
	}
}

// poll fetches one snapshot and returns the new cursor. It reports false when
// polling must stop.
func (p *PollStrategy) poll(ctx context.Context, sub *subscription, cursor int) (int, bool) {
	snapshot, err := p.source.Snapshot(ctx, sub.meetingID)
	if ctx.Err() != nil {
		return cursor, false
	}
	if err != nil {
		return cursor, sub.failure(err)
	}

	wasConnected := sub.Connected()
	chunksChanged := sub.setProcessed(snapshot.ChunksProcessed)
	if !wasConnected {
		sub.markConnected("")
	} else if chunksChanged {
		sub.notify(domain.ConnectionConnected, "")
	}

	if len(snapshot.Transcript) < cursor {
		sub.logger.Warn().
			Int("cursor", cursor).
			Int("length", len(snapshot.Transcript)).
			Msg("snapshot transcript shrank; resetting cursor")
		cursor = len(snapshot.Transcript)
	}
	for _, seg := range snapshot.Transcript[cursor:] {
		normalized, err := domain.NormalizeSegment(seg)
		if err != nil {
			p.metrics.RecordRejected(TransportPoll, string(MessageTranscript))
			sub.logger.Warn().Err(err).Msg("skipping malformed transcript segment")
			continue
		}
		sub.sink.Transcript(sub.meetingID, normalized)
	}
	cursor = len(snapshot.Transcript)

	for _, item := range snapshot.ActionItems {
		normalized, err := domain.NormalizeActionItem(item)
		if err != nil {
			p.metrics.RecordRejected(TransportPoll, string(MessageActionItem))
			sub.logger.Warn().Err(err).Msg("skipping malformed action item")
			continue
		}
		sub.sink.ActionItem(sub.meetingID, normalized)
	}
	return cursor, true
}
