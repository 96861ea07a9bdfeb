package authkit

import (
	"context"
	"errors"
	"testing"
)

func TestSetBiometricPreferenceTogglesAndAudits(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	recorder := &captureRecorder{}
	engine, _ := newTestEngine(t, directory, recorder)

	if err := engine.SetBiometricPreference(context.Background(), "u1", true); err != nil {
		t.Fatalf("SetBiometricPreference failed: %v", err)
	}

	enabled, err := engine.BiometricPreference(context.Background(), "u1")
	if err != nil || !enabled {
		t.Fatalf("expected biometric enabled, got %v err=%v", enabled, err)
	}

	event := recorder.last(t)
	if event.Action != ActionCredentialsUpdated || event.Metadata["action"] != "biometric_enabled" {
		t.Fatalf("unexpected audit event %+v", event)
	}

	if err := engine.SetBiometricPreference(context.Background(), "u1", false); err != nil {
		t.Fatalf("SetBiometricPreference failed: %v", err)
	}
	if event := recorder.last(t); event.Metadata["action"] != "biometric_disabled" {
		t.Fatalf("unexpected audit event %+v", event)
	}
}

func TestSetAccountDisabledRecordsActingAdmin(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	recorder := &captureRecorder{}
	engine, _ := newTestEngine(t, directory, recorder)

	if err := engine.SetAccountDisabled(context.Background(), "admin1", "u1", true); err != nil {
		t.Fatalf("SetAccountDisabled failed: %v", err)
	}
	if !directory.get("u1").Disabled {
		t.Fatal("expected account disabled")
	}
	event := recorder.last(t)
	if event.Action != ActionUserBlocked || event.UID != "u1" || event.ActorUID != "admin1" {
		t.Fatalf("unexpected audit event %+v", event)
	}

	if err := engine.SetAccountDisabled(context.Background(), "admin1", "u1", false); err != nil {
		t.Fatalf("SetAccountDisabled failed: %v", err)
	}
	if event := recorder.last(t); event.Action != ActionUserUnblocked {
		t.Fatalf("expected USER_UNBLOCKED, got %+v", event)
	}
}

func TestSetAccountDisabledAuditFailurePropagates(t *testing.T) {
	directory := newMemDirectory()
	directory.add(testAccount(t, "u1", "u1@example.com", "hunter2"))
	engine, _ := newTestEngine(t, directory, failingRecorder{})

	err := engine.SetAccountDisabled(context.Background(), "admin1", "u1", true)
	if !errors.Is(err, ErrAuditDelivery) {
		t.Fatalf("expected ErrAuditDelivery, got %v", err)
	}
	if !directory.get("u1").Disabled {
		t.Fatal("the mutation must stand even when delivery fails")
	}
}

func TestAccountTogglesUnknownUID(t *testing.T) {
	engine, _ := newTestEngine(t, newMemDirectory(), &captureRecorder{})

	if err := engine.SetBiometricPreference(context.Background(), "ghost", true); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := engine.SetAccountDisabled(context.Background(), "admin1", "ghost", true); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
