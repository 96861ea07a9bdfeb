package authkit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/etikos/authkit/internal"
)

const (
	factorMethodPassword  = "password"
	factorMethodBiometric = "biometric"
	factorMethodTOTP      = "totp"
)

// PasswordLogin describes the passwordlogin operation and its observable behavior.
//
// PasswordLogin may return an error when input validation, dependency calls, or security checks fail.
// PasswordLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The checks run in a fixed order: unknown email, disabled account, password
// mismatch. The first failed check decides the rejection reason; an
// unknown-email rejection therefore never leaks whether the account is
// disabled.
func (e *Engine) PasswordLogin(ctx context.Context, email, password string) (Outcome, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	account, err := e.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return e.rejectLogin(ctx, "", RejectUserNotFound, map[string]string{metaKeyEmail: email})
		}
		return e.failLogin(ctx, "", map[string]string{metaKeyEmail: email}, err)
	}
	if err := CheckAccountUsable(account); err != nil {
		return e.rejectLogin(ctx, account.UID, RejectAccountDisabled, map[string]string{metaKeyEmail: email})
	}
	if !VerifyPassword(account, password) {
		return e.rejectLogin(ctx, account.UID, RejectInvalidPassword, map[string]string{metaKeyEmail: email})
	}

	return e.settleFirstFactor(ctx, account, factorMethodPassword)
}

// BiometricLogin describes the biometriclogin operation and its observable behavior.
//
// BiometricLogin may return an error when input validation, dependency calls, or security checks fail.
// BiometricLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The biometric proof itself is verified by a trusted device collaborator
// before this call; the engine only checks that the account exists, is
// usable, and has opted in to biometric login.
func (e *Engine) BiometricLogin(ctx context.Context, uid string) (Outcome, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	account, err := e.directory.FindByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return e.rejectLogin(ctx, uid, RejectUserNotFound, nil)
		}
		return e.failLogin(ctx, uid, nil, err)
	}
	if err := CheckAccountUsable(account); err != nil {
		return e.rejectLogin(ctx, account.UID, RejectAccountDisabled, nil)
	}
	if !account.BiometricEnabled {
		return e.rejectLogin(ctx, account.UID, RejectBiometricNotEnabled, nil)
	}

	return e.settleFirstFactor(ctx, account, factorMethodBiometric)
}

// CompleteTOTPLogin describes the completetotplogin operation and its observable behavior.
//
// CompleteTOTPLogin may return an error when input validation, dependency calls, or security checks fail.
// CompleteTOTPLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The pending token is single-use: it is consumed on success and on every
// terminal rejection, and an invalid code burns one of the challenge's
// attempts. An account whose TOTP flag turned out to be off is a
// configuration fault (ErrTOTPNotEnabled), not a login rejection.
func (e *Engine) CompleteTOTPLogin(ctx context.Context, pendingToken, code string) (Outcome, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.pending == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.pending.Get(ctx, pendingToken)
	if err != nil {
		if errors.Is(err, errPendingChallengeNotFound) || errors.Is(err, errPendingChallengeExpired) {
			return e.rejectLogin(ctx, "", RejectInvalidTOTP, map[string]string{metaKeyDetail: "challenge_invalid"})
		}
		return e.failLogin(ctx, "", nil, ErrChallengeUnavailable)
	}

	account, err := e.directory.FindByUID(ctx, record.UID)
	if err != nil {
		_, _ = e.pending.Consume(ctx, pendingToken)
		if errors.Is(err, ErrUserNotFound) {
			return e.rejectLogin(ctx, record.UID, RejectUserNotFound, nil)
		}
		return e.failLogin(ctx, record.UID, nil, err)
	}
	if err := CheckAccountUsable(account); err != nil {
		_, _ = e.pending.Consume(ctx, pendingToken)
		return e.rejectLogin(ctx, account.UID, RejectAccountDisabled, nil)
	}
	if !account.TOTPEnabled || len(account.TOTPSecret) == 0 {
		_, _ = e.pending.Consume(ctx, pendingToken)
		_ = e.emitAudit(ctx, IsolateFailures, Event{
			UID:    account.UID,
			Action: ActionLoginFailed,
			Metadata: map[string]string{
				metaKeyReason: "TOTP_NOT_ENABLED",
			},
		})
		return nil, ErrTOTPNotEnabled
	}

	ok, err := e.totp.VerifyCode(account.TOTPSecret, code, time.Now())
	if err != nil {
		return e.failLogin(ctx, account.UID, nil, err)
	}
	if !ok {
		meta := map[string]string{}
		exceeded, ferr := e.pending.RecordFailure(ctx, pendingToken, e.config.PendingLogin.MaxAttempts)
		if ferr != nil && errors.Is(ferr, errPendingChallengeBackend) {
			e.logger.Warn("challenge attempt count not recorded", zap.Error(ferr))
		}
		if exceeded {
			meta[metaKeyDetail] = "attempts_exceeded"
		}
		return e.rejectLogin(ctx, account.UID, RejectInvalidTOTP, meta)
	}

	consumed, err := e.pending.Consume(ctx, pendingToken)
	if err != nil {
		return e.failLogin(ctx, account.UID, nil, ErrChallengeUnavailable)
	}
	if !consumed {
		return e.rejectLogin(ctx, account.UID, RejectInvalidTOTP, map[string]string{metaKeyDetail: "challenge_replayed"})
	}

	return e.issueSession(ctx, account, factorMethodTOTP)
}

func (e *Engine) settleFirstFactor(ctx context.Context, account *Account, method string) (Outcome, error) {
	if account.TOTPEnabled {
		token, err := internal.NewChallengeToken()
		if err != nil {
			return e.failLogin(ctx, account.UID, nil, err)
		}
		record := &pendingLogin{
			UID:       account.UID,
			Method:    method,
			ExpiresAt: time.Now().Add(e.config.PendingLogin.TTL).Unix(),
		}
		if err := e.pending.Save(ctx, token, record, e.config.PendingLogin.TTL); err != nil {
			return e.failLogin(ctx, account.UID, nil, ErrChallengeUnavailable)
		}
		return SecondFactorRequired{PendingToken: token, Account: *account}, nil
	}

	return e.issueSession(ctx, account, method)
}

func (e *Engine) issueSession(ctx context.Context, account *Account, method string) (Outcome, error) {
	if e.issuer == nil {
		return nil, ErrEngineNotReady
	}

	token, err := e.issuer.IssueToken(ctx, account.Username, account.Role, account.UID)
	if err != nil {
		e.logger.Error("session token issuance failed",
			zap.String("uid", account.UID),
			zap.Error(err),
		)
		return e.failLogin(ctx, account.UID, nil, ErrTokenIssuance)
	}

	var meta map[string]string
	if method != factorMethodPassword {
		meta = map[string]string{metaKeyMethod: method}
	}
	_ = e.emitAudit(ctx, IsolateFailures, Event{
		UID:      account.UID,
		ActorUID: account.UID,
		Action:   ActionLogin,
		Metadata: meta,
	})

	return TokenIssued{Token: token, Account: *account}, nil
}

// rejectLogin is the single exit for every login rejection: one LOGIN_FAILED
// event carrying the reason, delivery isolated from the outcome.
func (e *Engine) rejectLogin(ctx context.Context, uid string, reason RejectReason, meta map[string]string) (Outcome, error) {
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta[metaKeyReason] = string(reason)
	_ = e.emitAudit(ctx, IsolateFailures, Event{
		UID:      uid,
		Action:   ActionLoginFailed,
		Metadata: meta,
	})
	return Rejected{Reason: reason}, nil
}

// failLogin handles unexpected backend failures: audited as LOGIN_FAILED
// with reason SYSTEM_ERROR, surfaced to the caller as an error.
func (e *Engine) failLogin(ctx context.Context, uid string, meta map[string]string, cause error) (Outcome, error) {
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta[metaKeyReason] = reasonSystemError
	_ = e.emitAudit(ctx, IsolateFailures, Event{
		UID:      uid,
		Action:   ActionLoginFailed,
		Metadata: meta,
	})
	return nil, cause
}
