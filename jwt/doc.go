// Package jwt issues and parses the HS256 session tokens minted after a
// fully settled login.
package jwt
