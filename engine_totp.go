package authkit

import (
	"context"
	"time"
)

// SetupTOTP describes the setuptotp operation and its observable behavior.
//
// SetupTOTP may return an error when input validation, dependency calls, or security checks fail.
// SetupTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The generated secret is stored with the TOTP flag still off; only
// [Engine.ConfirmTOTPSetup] turns it on. Setup is refused with
// [ErrTOTPAlreadyEnabled] while TOTP is active on the account, so the
// active secret can only be replaced through the code-guarded
// [Engine.DisableTOTP]. When the returned error wraps [ErrAuditDelivery]
// the setup itself succeeded and the returned material is valid.
func (e *Engine) SetupTOTP(ctx context.Context, uid string) (*TOTPSetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(uid)
	defer unlock()

	account, err := e.directory.FindByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := CheckAccountUsable(account); err != nil {
		return nil, err
	}
	if account.TOTPEnabled {
		return nil, ErrTOTPAlreadyEnabled
	}

	raw, encoded, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	if err := e.directory.SetTOTP(ctx, uid, false, raw, account.Version); err != nil {
		return nil, err
	}

	label := account.Email
	if label == "" {
		label = account.Username
	}
	setup := &TOTPSetup{
		SecretBase32: encoded,
		URI:          e.totp.ProvisionURI(encoded, label),
	}

	return setup, e.emitAudit(ctx, PropagateFailures, Event{
		UID:      uid,
		ActorUID: uid,
		Action:   ActionCredentialsUpdated,
		Metadata: map[string]string{metaKeyAction: "totp_setup_initiated"},
	})
}

// ConfirmTOTPSetup describes the confirmtotpsetup operation and its observable behavior.
//
// ConfirmTOTPSetup may return an error when input validation, dependency calls, or security checks fail.
// ConfirmTOTPSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The code must verify against the secret stored by [Engine.SetupTOTP].
// Flag and secret are committed in one version-checked directory update, so
// the flag can never turn on without a secret behind it.
func (e *Engine) ConfirmTOTPSetup(ctx context.Context, uid, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	unlock := e.locks.Lock(uid)
	defer unlock()

	account, err := e.directory.FindByUID(ctx, uid)
	if err != nil {
		return err
	}
	if err := CheckAccountUsable(account); err != nil {
		return err
	}
	if account.TOTPEnabled {
		return nil
	}
	if len(account.TOTPSecret) == 0 {
		return ErrTOTPNotConfigured
	}

	ok, err := e.totp.VerifyCode(account.TOTPSecret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrTOTPInvalid
	}

	if err := e.directory.SetTOTP(ctx, uid, true, account.TOTPSecret, account.Version); err != nil {
		return err
	}

	return e.emitAudit(ctx, PropagateFailures, Event{
		UID:      uid,
		ActorUID: uid,
		Action:   ActionCredentialsUpdated,
		Metadata: map[string]string{metaKeyAction: "totp_enabled"},
	})
}

// DisableTOTP describes the disabletotp operation and its observable behavior.
//
// DisableTOTP may return an error when input validation, dependency calls, or security checks fail.
// DisableTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A valid current code is required. Flag and secret are cleared together in
// one version-checked update; a stale secret never survives behind a false
// flag. Disabling an account whose TOTP is already off is a no-op.
func (e *Engine) DisableTOTP(ctx context.Context, uid, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	unlock := e.locks.Lock(uid)
	defer unlock()

	account, err := e.directory.FindByUID(ctx, uid)
	if err != nil {
		return err
	}
	if !account.TOTPEnabled {
		return nil
	}
	if len(account.TOTPSecret) == 0 {
		return ErrTOTPNotConfigured
	}

	ok, err := e.totp.VerifyCode(account.TOTPSecret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrTOTPInvalid
	}

	if err := e.directory.SetTOTP(ctx, uid, false, nil, account.Version); err != nil {
		return err
	}

	return e.emitAudit(ctx, PropagateFailures, Event{
		UID:      uid,
		ActorUID: uid,
		Action:   ActionCredentialsUpdated,
		Metadata: map[string]string{metaKeyAction: "totp_disabled"},
	})
}

// TOTPEnabled describes the totpenabled operation and its observable behavior.
//
// TOTPEnabled may return an error when input validation, dependency calls, or security checks fail.
// TOTPEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) TOTPEnabled(ctx context.Context, uid string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	account, err := e.directory.FindByUID(ctx, uid)
	if err != nil {
		return false, err
	}
	return account.TOTPEnabled, nil
}
