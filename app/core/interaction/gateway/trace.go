package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/sjson"
)

type TraceEvent struct {
	Timestamp      string `json:"timestamp"`
	RequestID      string `json:"request_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	ChannelID      string `json:"channel_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Event          string `json:"event"`
	Status         string `json:"status"`
	Detail         string `json:"detail,omitempty"`
}

type TraceRecorder interface {
	Record(TraceEvent) error
}

// JSONLTraceRecorder appends one JSON line per event to a daily file.
type JSONLTraceRecorder struct {
	basePath string
	mu       sync.Mutex
}

func NewTraceRecorder(basePath string) (*JSONLTraceRecorder, error) {
	path := strings.TrimSpace(basePath)
	if path == "" {
		return nil, fmt.Errorf("trace base path is required")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	return &JSONLTraceRecorder{basePath: path}, nil
}

func (r *JSONLTraceRecorder) Record(event TraceEvent) error {
	if r == nil {
		return nil
	}
	ts := time.Now().UTC()
	if strings.TrimSpace(event.Timestamp) == "" {
		event.Timestamp = ts.Format(time.RFC3339Nano)
	}
	if strings.TrimSpace(event.Status) == "" {
		event.Status = "ok"
	}
	if strings.TrimSpace(event.Event) == "" {
		event.Event = "unknown"
	}

	payload, err := encodeTraceEvent(event)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.basePath, fmt.Sprintf("trace_%s.jsonl", ts.Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(payload, '\n')); err != nil {
		return err
	}
	return nil
}

func encodeTraceEvent(event TraceEvent) ([]byte, error) {
	fields := []struct {
		key   string
		value string
	}{
		{"timestamp", event.Timestamp},
		{"request_id", event.RequestID},
		{"message_id", event.MessageID},
		{"channel_id", event.ChannelID},
		{"user_id", event.UserID},
		{"conversation_id", event.ConversationID},
		{"event", event.Event},
		{"status", event.Status},
		{"detail", event.Detail},
	}
	payload := []byte(`{}`)
	var err error
	for _, f := range fields {
		if f.value == "" && f.key != "event" && f.key != "status" && f.key != "timestamp" {
			continue
		}
		payload, err = sjson.SetBytes(payload, f.key, f.value)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}
