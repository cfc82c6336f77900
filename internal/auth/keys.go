// Package auth provides the bearer-token primitives used by the control
// plane's admin-key check.
package auth

import (
	"crypto/subtle"
	"strings"
)

// VerifyAPIKeyConstantTime compares a presented token against the
// configured admin key in constant time, so a timing side-channel can't
// be used to guess it one byte at a time.
func VerifyAPIKeyConstantTime(got, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// ExtractBearerToken extracts the token from an `Authorization: Bearer
// <token>` header, case-insensitively. Returns "" for an empty header; a
// header without the bearer prefix is returned trimmed but otherwise as is.
func ExtractBearerToken(authHeader string) string {
	token := strings.TrimSpace(authHeader)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
