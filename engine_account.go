package authkit

import "context"

// SetBiometricPreference describes the setbiometricpreference operation and its observable behavior.
//
// SetBiometricPreference may return an error when input validation, dependency calls, or security checks fail.
// SetBiometricPreference does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SetBiometricPreference(ctx context.Context, uid string, enabled bool) error {
	if err := e.ready(); err != nil {
		return err
	}

	account, err := e.directory.FindByUID(ctx, uid)
	if err != nil {
		return err
	}
	if err := CheckAccountUsable(account); err != nil {
		return err
	}

	if err := e.directory.SetBiometric(ctx, uid, enabled); err != nil {
		return err
	}

	action := "biometric_disabled"
	if enabled {
		action = "biometric_enabled"
	}
	return e.emitAudit(ctx, PropagateFailures, Event{
		UID:      uid,
		ActorUID: uid,
		Action:   ActionCredentialsUpdated,
		Metadata: map[string]string{metaKeyAction: action},
	})
}

// BiometricPreference describes the biometricpreference operation and its observable behavior.
//
// BiometricPreference may return an error when input validation, dependency calls, or security checks fail.
// BiometricPreference does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BiometricPreference(ctx context.Context, uid string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	account, err := e.directory.FindByUID(ctx, uid)
	if err != nil {
		return false, err
	}
	return account.BiometricEnabled, nil
}

// SetAccountDisabled describes the setaccountdisabled operation and its observable behavior.
//
// SetAccountDisabled may return an error when input validation, dependency calls, or security checks fail.
// SetAccountDisabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// actorUID is the administrator performing the change and is recorded as the
// audit actor, distinct from the affected account.
func (e *Engine) SetAccountDisabled(ctx context.Context, actorUID, uid string, disabled bool) error {
	if err := e.ready(); err != nil {
		return err
	}

	if _, err := e.directory.FindByUID(ctx, uid); err != nil {
		return err
	}

	if err := e.directory.SetDisabled(ctx, uid, disabled); err != nil {
		return err
	}

	action := ActionUserUnblocked
	if disabled {
		action = ActionUserBlocked
	}
	return e.emitAudit(ctx, PropagateFailures, Event{
		UID:      uid,
		ActorUID: actorUID,
		Action:   action,
	})
}
