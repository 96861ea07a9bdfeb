package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FailurePolicy defines a public type used by authkit APIs.
//
// FailurePolicy selects, per call site, what an audit delivery failure means
// for the surrounding operation. There is no ad hoc recovery: every emission
// names its policy explicitly.
type FailurePolicy uint8

const (
	// IsolateFailures is an exported constant or variable used by the authentication engine.
	IsolateFailures FailurePolicy = iota
	// PropagateFailures is an exported constant or variable used by the authentication engine.
	PropagateFailures
)

const reasonSystemError = "SYSTEM_ERROR"

const (
	metaKeyReason = "reason"
	metaKeyEmail  = "email"
	metaKeyMethod = "method"
	metaKeyAction = "action"
	metaKeyDetail = "detail"
)

func (e *Engine) emitAudit(ctx context.Context, policy FailurePolicy, event Event) error {
	if e == nil || e.recorder == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = userAgentFromContext(ctx)
	}

	err := e.recorder.Log(ctx, event)
	if err == nil {
		return nil
	}

	if policy == PropagateFailures {
		e.logger.Error("audit delivery failed",
			zap.String("action", string(event.Action)),
			zap.String("uid", event.UID),
			zap.Error(err),
		)
		if errors.Is(err, ErrAuditDelivery) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrAuditDelivery, err)
	}

	e.logger.Warn("audit delivery failed, outcome unaffected",
		zap.String("action", string(event.Action)),
		zap.String("uid", event.UID),
		zap.Error(err),
	)
	return nil
}

// AuditLogout describes the auditlogout operation and its observable behavior.
//
// AuditLogout may return an error when input validation, dependency calls, or security checks fail.
// AuditLogout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Recording the logout is the whole operation, so delivery failures
// propagate to the caller.
func (e *Engine) AuditLogout(ctx context.Context, uid string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.emitAudit(ctx, PropagateFailures, Event{
		UID:      uid,
		ActorUID: uid,
		Action:   ActionLogout,
	})
}

// ReportFailedLogin describes the reportfailedlogin operation and its observable behavior.
//
// ReportFailedLogin may return an error when input validation, dependency calls, or security checks fail.
// ReportFailedLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ReportFailedLogin(ctx context.Context, email, reason string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.emitAudit(ctx, PropagateFailures, Event{
		Action: ActionLoginFailed,
		Metadata: map[string]string{
			metaKeyEmail:  email,
			metaKeyReason: reason,
		},
	})
}

// AuditPasswordResetRequested describes the auditpasswordresetrequested operation and its observable behavior.
//
// AuditPasswordResetRequested may return an error when input validation, dependency calls, or security checks fail.
// AuditPasswordResetRequested does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditPasswordResetRequested(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.emitAudit(ctx, PropagateFailures, Event{
		Action: ActionPasswordResetLinkSent,
		Metadata: map[string]string{
			metaKeyEmail: email,
		},
	})
}
