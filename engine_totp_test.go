package authkit

import (
	"context"
	"encoding/base32"
	"errors"
	"testing"
)

func TestSetupTOTPStoresSecretWithFlagOff(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	recorder := &captureRecorder{}
	engine, _ := newTestEngine(t, directory, recorder)

	setup, err := engine.SetupTOTP(context.Background(), "u1")
	if err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}
	if setup.SecretBase32 == "" || setup.URI == "" {
		t.Fatalf("incomplete setup material %+v", setup)
	}

	account := directory.get("u1")
	if account.TOTPEnabled {
		t.Fatal("flag must stay off until confirmation")
	}
	if len(account.TOTPSecret) == 0 {
		t.Fatal("expected pending secret stored")
	}

	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(setup.SecretBase32)
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}
	if string(decoded) != string(account.TOTPSecret) {
		t.Fatal("returned secret does not match stored secret")
	}

	event := recorder.last(t)
	if event.Action != ActionCredentialsUpdated || event.Metadata["action"] != "totp_setup_initiated" {
		t.Fatalf("unexpected audit event %+v", event)
	}
}

func TestSetupTOTPRejectedWhileEnabled(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	recorder := &captureRecorder{}
	engine, _ := newTestEngine(t, directory, recorder)

	if _, err := engine.SetupTOTP(context.Background(), "u1"); err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}
	secret := directory.get("u1").TOTPSecret
	if err := engine.ConfirmTOTPSetup(context.Background(), "u1", codeForNow(t, secret)); err != nil {
		t.Fatalf("ConfirmTOTPSetup failed: %v", err)
	}
	before := len(recorder.all())

	// A repeat setup would otherwise write flag=false with a fresh
	// secret, disabling active TOTP without ever asking for a code.
	if _, err := engine.SetupTOTP(context.Background(), "u1"); !errors.Is(err, ErrTOTPAlreadyEnabled) {
		t.Fatalf("expected ErrTOTPAlreadyEnabled, got %v", err)
	}

	account := directory.get("u1")
	if !account.TOTPEnabled {
		t.Fatal("active flag must survive a refused setup")
	}
	if string(account.TOTPSecret) != string(secret) {
		t.Fatal("active secret must survive a refused setup")
	}
	if got := len(recorder.all()); got != before {
		t.Fatalf("refused setup must not audit, got %d new events", got-before)
	}
}

func TestConfirmTOTPSetupEnablesFlag(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	recorder := &captureRecorder{}
	engine, _ := newTestEngine(t, directory, recorder)

	if _, err := engine.SetupTOTP(context.Background(), "u1"); err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}

	secret := directory.get("u1").TOTPSecret
	if err := engine.ConfirmTOTPSetup(context.Background(), "u1", codeForNow(t, secret)); err != nil {
		t.Fatalf("ConfirmTOTPSetup failed: %v", err)
	}

	account := directory.get("u1")
	if !account.TOTPEnabled || len(account.TOTPSecret) == 0 {
		t.Fatalf("expected flag on with secret present, got %+v", account)
	}

	event := recorder.last(t)
	if event.Metadata["action"] != "totp_enabled" {
		t.Fatalf("unexpected audit event %+v", event)
	}

	enabled, err := engine.TOTPEnabled(context.Background(), "u1")
	if err != nil || !enabled {
		t.Fatalf("expected TOTPEnabled true, got %v err=%v", enabled, err)
	}
}

func TestConfirmTOTPSetupWrongCode(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	engine, _ := newTestEngine(t, directory, &captureRecorder{})

	if _, err := engine.SetupTOTP(context.Background(), "u1"); err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}

	if err := engine.ConfirmTOTPSetup(context.Background(), "u1", "000000"); !errors.Is(err, ErrTOTPInvalid) {
		t.Fatalf("expected ErrTOTPInvalid, got %v", err)
	}
	if directory.get("u1").TOTPEnabled {
		t.Fatal("flag must not turn on after a failed confirmation")
	}
}

func TestConfirmTOTPSetupWithoutSetup(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	engine, _ := newTestEngine(t, directory, &captureRecorder{})

	if err := engine.ConfirmTOTPSetup(context.Background(), "u1", "123456"); !errors.Is(err, ErrTOTPNotConfigured) {
		t.Fatalf("expected ErrTOTPNotConfigured, got %v", err)
	}
}

func TestDisableTOTPClearsFlagAndSecretTogether(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	recorder := &captureRecorder{}
	engine, _ := newTestEngine(t, directory, recorder)

	if _, err := engine.SetupTOTP(context.Background(), "u1"); err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}
	secret := directory.get("u1").TOTPSecret
	if err := engine.ConfirmTOTPSetup(context.Background(), "u1", codeForNow(t, secret)); err != nil {
		t.Fatalf("ConfirmTOTPSetup failed: %v", err)
	}

	if err := engine.DisableTOTP(context.Background(), "u1", codeForNow(t, secret)); err != nil {
		t.Fatalf("DisableTOTP failed: %v", err)
	}

	account := directory.get("u1")
	if account.TOTPEnabled {
		t.Fatal("expected flag cleared")
	}
	if len(account.TOTPSecret) != 0 {
		t.Fatal("expected secret cleared with the flag")
	}

	event := recorder.last(t)
	if event.Metadata["action"] != "totp_disabled" {
		t.Fatalf("unexpected audit event %+v", event)
	}
}

func TestDisableTOTPRequiresValidCode(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	engine, _ := newTestEngine(t, directory, &captureRecorder{})

	if _, err := engine.SetupTOTP(context.Background(), "u1"); err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}
	secret := directory.get("u1").TOTPSecret
	if err := engine.ConfirmTOTPSetup(context.Background(), "u1", codeForNow(t, secret)); err != nil {
		t.Fatalf("ConfirmTOTPSetup failed: %v", err)
	}

	if err := engine.DisableTOTP(context.Background(), "u1", "000000"); !errors.Is(err, ErrTOTPInvalid) {
		t.Fatalf("expected ErrTOTPInvalid, got %v", err)
	}
	if !directory.get("u1").TOTPEnabled {
		t.Fatal("flag must survive a failed disable")
	}
}

func TestDisableTOTPAlreadyDisabledIsNoOp(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	recorder := &captureRecorder{}
	engine, _ := newTestEngine(t, directory, recorder)

	if err := engine.DisableTOTP(context.Background(), "u1", "000000"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if got := len(recorder.all()); got != 0 {
		t.Fatalf("no-op disable must not audit, got %d events", got)
	}
}

func TestTOTPLifecycleSurfacesVersionConflict(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	engine, _ := newTestEngine(t, directory, &captureRecorder{})

	if _, err := engine.SetupTOTP(context.Background(), "u1"); err != nil {
		t.Fatalf("SetupTOTP failed: %v", err)
	}

	directory.failSet = ErrVersionConflict
	secret := directory.get("u1").TOTPSecret
	err := engine.ConfirmTOTPSetup(context.Background(), "u1", codeForNow(t, secret))
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestTOTPLifecycleAuditFailurePropagates(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	engine, _ := newTestEngine(t, directory, failingRecorder{})

	setup, err := engine.SetupTOTP(context.Background(), "u1")
	if !errors.Is(err, ErrAuditDelivery) {
		t.Fatalf("expected ErrAuditDelivery, got %v", err)
	}
	if setup == nil || setup.SecretBase32 == "" {
		t.Fatal("setup material must still be returned; the mutation stands")
	}
	if len(directory.get("u1").TOTPSecret) == 0 {
		t.Fatal("pending secret must survive the audit failure")
	}
}

func TestSetupTOTPUnknownOrDisabledAccount(t *testing.T) {
	directory := newMemDirectory()
	disabled := testAccount(t, "u2", "u2@example.com", "hunter2")
	disabled.Disabled = true
	directory.add(disabled)
	engine, _ := newTestEngine(t, directory, &captureRecorder{})

	if _, err := engine.SetupTOTP(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := engine.SetupTOTP(context.Background(), "u2"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}
