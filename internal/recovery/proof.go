// Package recovery verifies the recovery-key proofs that authorise key
// rotation and identity revocation.
package recovery

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"time"

	"vibetrust/pkg/canonical"
)

type Operation string

const (
	OpRotation   Operation = "rotation"
	OpRevocation Operation = "revocation"
)

const RevokeAction = "revoke"

// Proof authorises replacing an identity's signing key with NewPublicKey.
// The signature covers the canonical form of the other three fields.
type Proof struct {
	NewPublicKey string `json:"new_public_key"`
	Timestamp    int64  `json:"timestamp"`
	Nonce        string `json:"nonce"`
	Signature    string `json:"signature"`
}

func (p Proof) signedFields() map[string]any {
	return map[string]any{
		"new_public_key": p.NewPublicKey,
		"timestamp":      p.Timestamp,
		"nonce":          p.Nonce,
	}
}

// RevocationProof authorises retiring an identity for good.
type RevocationProof struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

func (p RevocationProof) signedFields() map[string]any {
	return map[string]any{
		"action":    p.Action,
		"timestamp": p.Timestamp,
		"nonce":     p.Nonce,
	}
}

// NewNonce returns 16 random bytes, hex encoded.
func NewNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SignRotation builds a rotation proof signed with the recovery private key.
func SignRotation(recoveryKey ed25519.PrivateKey, newPublicKey string, at time.Time, nonce string) (Proof, error) {
	p := Proof{NewPublicKey: newPublicKey, Timestamp: at.Unix(), Nonce: nonce}
	sig, err := canonical.SignEncoded(p.signedFields(), recoveryKey)
	if err != nil {
		return Proof{}, err
	}
	p.Signature = sig
	return p, nil
}

func SignRevocation(recoveryKey ed25519.PrivateKey, at time.Time, nonce string) (RevocationProof, error) {
	p := RevocationProof{Action: RevokeAction, Timestamp: at.Unix(), Nonce: nonce}
	sig, err := canonical.SignEncoded(p.signedFields(), recoveryKey)
	if err != nil {
		return RevocationProof{}, err
	}
	p.Signature = sig
	return p, nil
}
