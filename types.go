package authkit

import "context"

// Account defines a public type used by authkit APIs.
//
// Account instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Invariant: TOTPSecret is non-empty whenever TOTPEnabled is true. A secret
// present while the flag is false is the mid-setup state between
// [Engine.SetupTOTP] and [Engine.ConfirmTOTPSetup].
type Account struct {
	UID              string
	Email            string
	Username         string
	PasswordHash     string
	Role             string
	Disabled         bool
	BiometricEnabled bool
	TOTPEnabled      bool
	TOTPSecret       []byte
	Version          uint64
}

// Directory defines a public type used by authkit APIs.
//
// Implementations own account storage. Lookup methods return
// [ErrUserNotFound] for unknown identifiers. Mutations that carry
// expectVersion must apply atomically and fail with [ErrVersionConflict]
// when the stored version no longer matches.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByUID(ctx context.Context, uid string) (*Account, error)
	Create(ctx context.Context, account *Account) (string, error)
	SetTOTP(ctx context.Context, uid string, enabled bool, secret []byte, expectVersion uint64) error
	SetBiometric(ctx context.Context, uid string, enabled bool) error
	SetDisabled(ctx context.Context, uid string, disabled bool) error
}

// TokenIssuer defines a public type used by authkit APIs.
//
// IssueToken mints a session token for a fully authenticated account.
// The engine never inspects the returned token.
type TokenIssuer interface {
	IssueToken(ctx context.Context, subject, role, uid string) (string, error)
}

// RejectReason defines a public type used by authkit APIs.
//
// RejectReason instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RejectReason string

const (
	// RejectUserNotFound is an exported constant or variable used by the authentication engine.
	RejectUserNotFound RejectReason = "USER_NOT_FOUND"
	// RejectAccountDisabled is an exported constant or variable used by the authentication engine.
	RejectAccountDisabled RejectReason = "ACCOUNT_DISABLED"
	// RejectInvalidPassword is an exported constant or variable used by the authentication engine.
	RejectInvalidPassword RejectReason = "INVALID_PASSWORD"
	// RejectBiometricNotEnabled is an exported constant or variable used by the authentication engine.
	RejectBiometricNotEnabled RejectReason = "BIOMETRIC_NOT_ENABLED"
	// RejectInvalidTOTP is an exported constant or variable used by the authentication engine.
	RejectInvalidTOTP RejectReason = "INVALID_TOTP"
)

// Outcome defines a public type used by authkit APIs.
//
// Outcome is the closed result union of the login entry points. Exactly one
// of [TokenIssued], [SecondFactorRequired], or [Rejected] is returned per
// attempt; a session token and a pending second-factor marker never coexist.
type Outcome interface {
	loginOutcome()
}

// TokenIssued defines a public type used by authkit APIs.
//
// TokenIssued instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenIssued struct {
	Token   string
	Account Account
}

// SecondFactorRequired defines a public type used by authkit APIs.
//
// PendingToken is a single-use opaque challenge handle for
// [Engine.CompleteTOTPLogin]; it carries no authority on its own beyond the
// challenge record it names.
type SecondFactorRequired struct {
	PendingToken string
	Account      Account
}

// Rejected defines a public type used by authkit APIs.
//
// Rejected instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Rejected struct {
	Reason RejectReason
}

func (TokenIssued) loginOutcome()          {}
func (SecondFactorRequired) loginOutcome() {}
func (Rejected) loginOutcome()             {}

// TOTPSetup defines a public type used by authkit APIs.
//
// TOTPSetup instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPSetup struct {
	SecretBase32 string
	URI          string
}
