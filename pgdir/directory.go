// Package pgdir implements the account directory on PostgreSQL.
package pgdir

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/etikos/authkit"
)

const accountColumns = "uid, email, username, password_hash, role, disabled, biometric_enabled, totp_enabled, totp_secret, version"

// Directory defines a public type used by authkit APIs.
//
// Directory instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Directory struct {
	pool *pgxpool.Pool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// Migrate describes the migrate operation and its observable behavior.
//
// Migrate may return an error when input validation, dependency calls, or security checks fail.
// Migrate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Directory) Migrate(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			uid               TEXT PRIMARY KEY,
			email             TEXT NOT NULL UNIQUE,
			username          TEXT NOT NULL,
			password_hash     TEXT NOT NULL,
			role              TEXT NOT NULL DEFAULT 'USER',
			disabled          BOOLEAN NOT NULL DEFAULT FALSE,
			biometric_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			totp_enabled      BOOLEAN NOT NULL DEFAULT FALSE,
			totp_secret       BYTEA,
			version           BIGINT NOT NULL DEFAULT 1
		)`)
	if err != nil {
		return fmt.Errorf("migrate accounts: %w", err)
	}
	return nil
}

// FindByEmail describes the findbyemail operation and its observable behavior.
//
// FindByEmail may return an error when input validation, dependency calls, or security checks fail.
// FindByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*authkit.Account, error) {
	row := d.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = $1", email)
	return scanAccount(row)
}

// FindByUID describes the findbyuid operation and its observable behavior.
//
// FindByUID may return an error when input validation, dependency calls, or security checks fail.
// FindByUID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Directory) FindByUID(ctx context.Context, uid string) (*authkit.Account, error) {
	row := d.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE uid = $1", uid)
	return scanAccount(row)
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Directory) Create(ctx context.Context, account *authkit.Account) (string, error) {
	uid := account.UID
	if uid == "" {
		uid = uuid.NewString()
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO accounts (uid, email, username, password_hash, role, disabled, biometric_enabled, totp_enabled, totp_secret, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)`,
		uid, account.Email, account.Username, account.PasswordHash, account.Role,
		account.Disabled, account.BiometricEnabled, account.TOTPEnabled, account.TOTPSecret)
	if err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}
	return uid, nil
}

// SetTOTP describes the settotp operation and its observable behavior.
//
// SetTOTP may return an error when input validation, dependency calls, or security checks fail.
// SetTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Flag and secret change in one statement guarded by the expected version.
func (d *Directory) SetTOTP(ctx context.Context, uid string, enabled bool, secret []byte, expectVersion uint64) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE accounts
		SET totp_enabled = $2, totp_secret = $3, version = version + 1
		WHERE uid = $1 AND version = $4`,
		uid, enabled, secret, expectVersion)
	if err != nil {
		return fmt.Errorf("update totp state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return d.missOrConflict(ctx, uid)
	}
	return nil
}

// SetBiometric describes the setbiometric operation and its observable behavior.
//
// SetBiometric may return an error when input validation, dependency calls, or security checks fail.
// SetBiometric does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Directory) SetBiometric(ctx context.Context, uid string, enabled bool) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE accounts SET biometric_enabled = $2, version = version + 1 WHERE uid = $1`,
		uid, enabled)
	if err != nil {
		return fmt.Errorf("update biometric preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrUserNotFound
	}
	return nil
}

// SetDisabled describes the setdisabled operation and its observable behavior.
//
// SetDisabled may return an error when input validation, dependency calls, or security checks fail.
// SetDisabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *Directory) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE accounts SET disabled = $2, version = version + 1 WHERE uid = $1`,
		uid, disabled)
	if err != nil {
		return fmt.Errorf("update disabled flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authkit.ErrUserNotFound
	}
	return nil
}

// missOrConflict decides whether a zero-row conditional update lost the
// version race or targeted a missing account.
func (d *Directory) missOrConflict(ctx context.Context, uid string) error {
	var exists bool
	err := d.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM accounts WHERE uid = $1)", uid).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check account existence: %w", err)
	}
	if exists {
		return authkit.ErrVersionConflict
	}
	return authkit.ErrUserNotFound
}

func scanAccount(row pgx.Row) (*authkit.Account, error) {
	account := &authkit.Account{}
	err := row.Scan(
		&account.UID,
		&account.Email,
		&account.Username,
		&account.PasswordHash,
		&account.Role,
		&account.Disabled,
		&account.BiometricEnabled,
		&account.TOTPEnabled,
		&account.TOTPSecret,
		&account.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authkit.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return account, nil
}
