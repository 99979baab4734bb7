package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fomo/internal/domain"
)

// MessageType tags a push channel message.
type MessageType string

const (
	MessageTranscript MessageType = "transcript"
	MessageActionItem MessageType = "action_item"
	MessageStatus     MessageType = "status"
	MessageError      MessageType = "error"
)

var errUnknownMessage = errors.New("unknown message type")

type envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// StatusPayload is the backend's progress report for a meeting.
type StatusPayload struct {
	State           string `json:"state"`
	Message         string `json:"message"`
	ChunksProcessed int    `json:"chunksProcessed"`
}

// Message is a decoded push channel message. Exactly one payload field is set,
// matching Type.
type Message struct {
	Type      MessageType
	Timestamp int64

	Segment *domain.TranscriptSegment
	Item    *domain.ActionItem
	Status  *StatusPayload
	Error   string
}

// DecodeMessage parses and validates one push channel frame.
func DecodeMessage(payload []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Message{}, fmt.Errorf("malformed envelope: %w", err)
	}

	msg := Message{Type: env.Type, Timestamp: env.Timestamp}
	switch env.Type {
	case MessageTranscript:
		var seg domain.TranscriptSegment
		if err := json.Unmarshal(env.Data, &seg); err != nil {
			return msg, fmt.Errorf("malformed transcript payload: %w", err)
		}
		seg, err := domain.NormalizeSegment(seg)
		if err != nil {
			return msg, err
		}
		if seg.Timestamp == 0 {
			seg.Timestamp = env.Timestamp
		}
		msg.Segment = &seg
	case MessageActionItem:
		var item domain.ActionItem
		if err := json.Unmarshal(env.Data, &item); err != nil {
			return msg, fmt.Errorf("malformed action item payload: %w", err)
		}
		item, err := domain.NormalizeActionItem(item)
		if err != nil {
			return msg, err
		}
		if item.Timestamp == 0 {
			item.Timestamp = env.Timestamp
		}
		msg.Item = &item
	case MessageStatus:
		var status StatusPayload
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &status); err != nil {
				return msg, fmt.Errorf("malformed status payload: %w", err)
			}
		}
		msg.Status = &status
	case MessageError:
		msg.Error = decodeErrorPayload(env.Data)
	default:
		return msg, fmt.Errorf("%w %q", errUnknownMessage, env.Type)
	}
	return msg, nil
}

// decodeErrorPayload accepts either a bare string or an object with a message
// or error field.
func decodeErrorPayload(data json.RawMessage) string {
	if len(data) == 0 {
		return "backend reported an unknown error"
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if m := strings.TrimSpace(obj.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(obj.Error); m != "" {
			return m
		}
	}
	return "backend reported an unknown error"
}
