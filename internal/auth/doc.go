// Package auth provides the authentication primitives for Secure Notes.
//
// This package implements:
//   - Salted password hashing and constant-time verification (bcrypt)
//   - RS256 token issuance with the deployment private key
//   - Token validation with the public key and typed failure kinds
//   - PEM key material loading
//
// Nothing here performs network or disk I/O; callers supply key bytes and
// persist credentials themselves.
package auth
