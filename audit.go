package authkit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Action is the closed audit action vocabulary shared with the audit service.
type Action string

const (
	ActionRegister              Action = "REGISTER"
	ActionLogin                 Action = "LOGIN"
	ActionLogout                Action = "LOGOUT"
	ActionLoginFailed           Action = "LOGIN_FAILED"
	ActionPasswordResetLinkSent Action = "PASSWORD_RESET_LINK_SENT"
	ActionCredentialsUpdated    Action = "CREDENTIALS_UPDATED"
	ActionUserBlocked           Action = "USER_BLOCKED"
	ActionUserUnblocked         Action = "USER_UNBLOCKED"
	ActionRoleChanged           Action = "ROLE_CHANGED"
)

// Event is one audit record. The JSON field names are the wire contract of
// the audit service; nullable fields are omitted when empty.
type Event struct {
	UID       string            `json:"uid,omitempty"`
	ActorUID  string            `json:"actorUid,omitempty"`
	Action    Action            `json:"action"`
	Timestamp time.Time         `json:"timestamp"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Recorder delivers one audit event per call. Log returns nil only when the
// event was accepted by the destination; everything else wraps
// ErrAuditDelivery. Callers decide what a delivery failure means.
type Recorder interface {
	Log(ctx context.Context, event Event) error
}

type NopRecorder struct{}

func (NopRecorder) Log(context.Context, Event) error { return nil }

type ChannelRecorder struct {
	events chan Event
}

func NewChannelRecorder(buffer int) *ChannelRecorder {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelRecorder{
		events: make(chan Event, buffer),
	}
}

func (r *ChannelRecorder) Log(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case r.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ChannelRecorder) Events() <-chan Event {
	return r.events
}

type WriterRecorder struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewWriterRecorder(w io.Writer) *WriterRecorder {
	return &WriterRecorder{
		writer: w,
	}
}

func (r *WriterRecorder) Log(_ context.Context, event Event) error {
	if r == nil || r.writer == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.writer.Write(data); err != nil {
		return err
	}
	_, err = r.writer.Write([]byte("\n"))
	return err
}
