package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"fomo/internal/domain"
	"fomo/internal/logging"
	"fomo/internal/metrics"
	"fomo/internal/ports"
)

// PushConfig controls the websocket push channel.
type PushConfig struct {
	URL              string
	ReconnectBackoff time.Duration
	MaxRetries       int
	HandshakeTimeout time.Duration
}

// PushStrategy implements ports.UpdateStrategy over a websocket.
type PushStrategy struct {
	cfg     PushConfig
	dialer  *websocket.Dialer
	metrics *metrics.Metrics
}

var _ ports.UpdateStrategy = (*PushStrategy)(nil)

func NewPushStrategy(cfg PushConfig, mt *metrics.Metrics) *PushStrategy {
	if cfg.URL == "" {
		cfg.URL = "ws://localhost:5000/ws/transcript"
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 3 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if mt == nil {
		mt = metrics.New(nil)
	}
	return &PushStrategy{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		metrics: mt,
	}
}

func (p *PushStrategy) Name() string { return TransportPush }

func (p *PushStrategy) Subscribe(meetingID string, sink ports.UpdateSink) ports.Subscription {
	logger := logging.WithMeeting("ingest_push", meetingID)
	sub, ctx := newSubscription(meetingID, TransportPush, sink, p.metrics, logger, p.cfg.MaxRetries)
	go p.run(ctx, sub)
	return sub
}

func (p *PushStrategy) run(ctx context.Context, sub *subscription) {
	defer close(sub.done)

	wsURL, err := buildStreamURL(p.cfg.URL, sub.meetingID)
	if err != nil {
		sub.logger.Error().Err(err).Msg("cannot open live update channel")
		sub.notify(domain.ConnectionFailed, err.Error())
		return
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			p.metrics.RecordReconnect(TransportPush)
			sub.logger.Info().Int("attempt", attempt).Msg("reconnecting live update channel")
		}

		err := p.stream(ctx, sub, wsURL)
		if ctx.Err() != nil {
			sub.connected.Store(false)
			return
		}
		if !sub.failure(err) {
			return
		}
		if !sleep(ctx, p.cfg.ReconnectBackoff) {
			return
		}
	}
}

// stream holds one websocket connection until it fails or ctx is cancelled.
func (p *PushStrategy) stream(ctx context.Context, sub *subscription, wsURL string) error {
	conn, _, err := p.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
			_ = conn.Close()
		}
	}()

	sub.markConnected("")
	sub.logger.Info().Msg("live update channel connected")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("server closed the connection")
			}
			return fmt.Errorf("failed to read update: %w", err)
		}
		p.dispatch(sub, payload)
	}
}

func (p *PushStrategy) dispatch(sub *subscription, payload []byte) {
	msg, err := DecodeMessage(payload)
	if err != nil {
		kind := string(msg.Type)
		if kind == "" {
			kind = "unknown"
		}
		p.metrics.RecordRejected(TransportPush, kind)
		sub.logger.Warn().Err(err).Str("type", kind).Msg("skipping malformed update")
		return
	}

	switch msg.Type {
	case MessageTranscript:
		sub.sink.Transcript(sub.meetingID, *msg.Segment)
	case MessageActionItem:
		sub.sink.ActionItem(sub.meetingID, *msg.Item)
	case MessageStatus:
		changed := sub.setProcessed(msg.Status.ChunksProcessed)
		if changed || msg.Status.Message != "" {
			sub.notify(domain.ConnectionConnected, msg.Status.Message)
		}
	case MessageError:
		sub.logger.Warn().Str("error", msg.Error).Msg("backend reported an error")
	}
}

// buildStreamURL turns base into a websocket URL carrying the meeting id.
func buildStreamURL(base, meetingID string) (string, error) {
	base = strings.TrimSpace(base)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	streamURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	if streamURL.Scheme != "ws" && streamURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid websocket URL %q: scheme must be ws or wss", base)
	}
	query := streamURL.Query()
	query.Set("meeting_id", meetingID)
	streamURL.RawQuery = query.Encode()
	return streamURL.String(), nil
}
