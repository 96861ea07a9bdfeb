package authkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const auditEndpointPath = "/api/audits"

// HTTPRecorder defines a public type used by authkit APIs.
//
// HTTPRecorder posts each event to the audit service in a single attempt.
// There is no retry and no buffering; a failed delivery is reported to the
// caller as an ErrAuditDelivery-wrapped error and the event is gone.
type HTTPRecorder struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPRecorder describes the newhttprecorder operation and its observable behavior.
//
// NewHTTPRecorder may return an error when input validation, dependency calls, or security checks fail.
// NewHTTPRecorder does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewHTTPRecorder(cfg AuditConfig, logger *zap.Logger) *HTTPRecorder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().Audit.BaseURL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 3 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	return &HTTPRecorder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Transport: transport,
			// Bounds the entire exchange including the body drain; a
			// stalled response body must not block the caller.
			Timeout: cfg.ConnectTimeout + cfg.ReadTimeout,
		},
		logger: logger,
	}
}

// Log describes the log operation and its observable behavior.
//
// Log may return an error when input validation, dependency calls, or security checks fail.
// Log does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *HTTPRecorder) Log(ctx context.Context, event Event) error {
	if r == nil || r.client == nil {
		return ErrEngineNotReady
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuditDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+auditEndpointPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuditDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("audit event not delivered",
			zap.String("action", string(event.Action)),
			zap.String("uid", event.UID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrAuditDelivery, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		r.logger.Warn("audit event rejected by audit service",
			zap.String("action", string(event.Action)),
			zap.String("uid", event.UID),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: audit service returned status %d", ErrAuditDelivery, resp.StatusCode)
	}

	r.logger.Info("audit event delivered",
		zap.String("action", string(event.Action)),
		zap.String("uid", event.UID),
	)
	return nil
}
