package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestWriterRecorderWireFieldNames(t *testing.T) {
	var buf bytes.Buffer
	r := NewWriterRecorder(&buf)

	err := r.Log(context.Background(), Event{
		UID:       "u1",
		ActorUID:  "admin1",
		Action:    ActionUserBlocked,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IP:        "10.0.0.9",
		UserAgent: "test-agent",
		Metadata:  map[string]string{"reason": "abuse"},
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}

	for _, field := range []string{"uid", "actorUid", "action", "timestamp", "ip", "userAgent", "metadata"} {
		if _, ok := decoded[field]; !ok {
			t.Fatalf("missing wire field %q in %s", field, line)
		}
	}
	if decoded["timestamp"] != "2025-06-01T12:00:00Z" {
		t.Fatalf("expected ISO-8601 timestamp, got %v", decoded["timestamp"])
	}
}

func TestWriterRecorderOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	r := NewWriterRecorder(&buf)

	if err := r.Log(context.Background(), Event{Action: ActionLoginFailed}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	line := buf.String()
	for _, field := range []string{"uid", "actorUid", "ip", "userAgent", "metadata"} {
		if strings.Contains(line, `"`+field+`"`) {
			t.Fatalf("expected empty field %q omitted, got %s", field, line)
		}
	}
	if !strings.Contains(line, `"action":"LOGIN_FAILED"`) {
		t.Fatalf("missing action in %s", line)
	}
}

func TestWriterRecorderStampsZeroTimestamp(t *testing.T) {
	var buf bytes.Buffer
	r := NewWriterRecorder(&buf)

	before := time.Now().UTC()
	if err := r.Log(context.Background(), Event{Action: ActionLogin}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if decoded.Timestamp.Before(before.Add(-time.Second)) {
		t.Fatalf("expected recorder to stamp timestamp, got %v", decoded.Timestamp)
	}
}

func TestChannelRecorderDeliversAndHonorsContext(t *testing.T) {
	r := NewChannelRecorder(1)

	if err := r.Log(context.Background(), Event{Action: ActionLogout, UID: "u1"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	event := <-r.Events()
	if event.Action != ActionLogout || event.UID != "u1" {
		t.Fatalf("unexpected event %+v", event)
	}

	// Buffer full and nobody reading: a cancelled context must unblock.
	if err := r.Log(context.Background(), Event{Action: ActionLogin}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Log(ctx, Event{Action: ActionLogin}); err == nil {
		t.Fatal("expected context error when buffer is full")
	}
}

func TestNopRecorderAcceptsEverything(t *testing.T) {
	if err := (NopRecorder{}).Log(context.Background(), Event{Action: ActionLogin}); err != nil {
		t.Fatalf("NopRecorder returned error: %v", err)
	}
}
