package canonical

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
)

// WirePrefix tags public keys exchanged as strings.
const WirePrefix = "ed25519:"

// KeyFormatError reports a public key that is neither a raw Ed25519 key nor an
// SPKI envelope around one.
type KeyFormatError struct {
	Length int
	Reason string
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("canonical: invalid ed25519 public key (%d bytes): %s", e.Length, e.Reason)
}

// ParsePublicKey accepts a raw 32-byte key or a DER-encoded SubjectPublicKeyInfo.
func ParsePublicKey(b []byte) (ed25519.PublicKey, error) {
	if len(b) == ed25519.PublicKeySize {
		out := make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(out, b)
		return out, nil
	}
	if len(b) == 0 {
		return nil, &KeyFormatError{Length: 0, Reason: "empty"}
	}
	parsed, err := x509.ParsePKIXPublicKey(b)
	if err != nil {
		return nil, &KeyFormatError{Length: len(b), Reason: "not a raw key and not SPKI"}
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, &KeyFormatError{Length: len(b), Reason: fmt.Sprintf("SPKI holds %T", parsed)}
	}
	return pub, nil
}

// ParseWirePublicKey decodes "ed25519:<base64>".
func ParseWirePublicKey(s string) (ed25519.PublicKey, error) {
	rest, ok := strings.CutPrefix(s, WirePrefix)
	if !ok {
		return nil, &KeyFormatError{Length: len(s), Reason: "missing " + WirePrefix + " prefix"}
	}
	raw, err := decodeBase64(rest)
	if err != nil {
		return nil, &KeyFormatError{Length: len(rest), Reason: "bad base64"}
	}
	return ParsePublicKey(raw)
}

// FormatWirePublicKey renders the raw key in wire form.
func FormatWirePublicKey(pub ed25519.PublicKey) string {
	return WirePrefix + base64.StdEncoding.EncodeToString(pub)
}

// NormalizeWirePublicKey re-encodes any accepted key form as the raw wire form.
func NormalizeWirePublicKey(s string) (string, error) {
	pub, err := ParseWirePublicKey(s)
	if err != nil {
		return "", err
	}
	return FormatWirePublicKey(pub), nil
}

func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
