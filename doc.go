// Package authkit provides the core of a multi-factor authentication service:
// password and biometric first-factor verification, an RFC 6238 TOTP second
// factor, short-lived Redis-backed pending login challenges, and synchronous
// audit event delivery to an external audit service.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config], the
// login outcome types, and the [Recorder] audit boundary. The directory of
// accounts and the session-token issuer are collaborators supplied at build
// time ([Directory], [TokenIssuer]); the engine never owns account storage.
//
// # What this package must NOT do
//
//   - Expose Redis clients, challenge encoding, or directory internals in its
//     public API.
//   - Decide a login outcome based on audit delivery: login-flow audit
//     failures are isolated, never folded into the returned outcome.
//   - Issue a session token and a pending second-factor challenge for the
//     same login attempt.
package authkit
