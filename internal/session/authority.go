// Package session issues and checks the bearer tokens that authenticate a
// handle between proof-of-possession events.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"vibetrust/pkg/errors"
)

const tokenSeparator = "."

// Authority mints tokens of the form "<session_id>.<base64url(hmac)>", where
// the MAC covers the session id and the lowercased handle.
type Authority struct {
	secret []byte
}

func NewAuthority(secret string) *Authority {
	return &Authority{secret: []byte(secret)}
}

type VerifyResult struct {
	Valid     bool
	SessionID string
	Reason    errors.Reason
}

func (a *Authority) mac(sessionID, handle string) []byte {
	h := hmac.New(sha256.New, a.secret)
	h.Write([]byte(sessionID + ":" + strings.ToLower(handle)))
	return h.Sum(nil)
}

func (a *Authority) Issue(sessionID, handle string) string {
	return sessionID + tokenSeparator + base64.RawURLEncoding.EncodeToString(a.mac(sessionID, handle))
}

// Verify accepts token only for the handle it was issued to.
func (a *Authority) Verify(token, expectedHandle string) VerifyResult {
	sessionID, encoded, ok := strings.Cut(token, tokenSeparator)
	if !ok || sessionID == "" || encoded == "" {
		return VerifyResult{Reason: errors.ReasonUnauthorized}
	}
	got, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return VerifyResult{Reason: errors.ReasonUnauthorized}
	}
	if !hmac.Equal(got, a.mac(sessionID, expectedHandle)) {
		return VerifyResult{Reason: errors.ReasonHandleMismatch}
	}
	return VerifyResult{Valid: true, SessionID: sessionID}
}
