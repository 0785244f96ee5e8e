package canonical

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
)

// SignatureField is excluded from the signed bytes.
const SignatureField = "signature"

var (
	ErrMissingSignature = errors.New("canonical: signature field missing")
	ErrBadSignature     = errors.New("canonical: signature is not valid base64")
)

// SigningBytes returns the canonical form of value with its signature field removed.
func SigningBytes(value any) ([]byte, error) {
	obj, err := ToObject(value)
	if err != nil {
		return nil, err
	}
	delete(obj, SignatureField)
	return Bytes(obj)
}

func Sign(value any, priv ed25519.PrivateKey) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("canonical: private key must be %d bytes", ed25519.PrivateKeySize)
	}
	msg, err := SigningBytes(value)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(priv, msg), nil
}

// SignEncoded signs value and returns the signature in its wire (base64) form.
func SignEncoded(value any, priv ed25519.PrivateKey) (string, error) {
	sig, err := Sign(value, priv)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks the base64 signature embedded in value against the rest of it.
func Verify(value any, pub ed25519.PublicKey) (bool, error) {
	obj, err := ToObject(value)
	if err != nil {
		return false, err
	}
	raw, ok := obj[SignatureField].(string)
	if !ok || raw == "" {
		return false, ErrMissingSignature
	}
	sig, err := decodeBase64(raw)
	if err != nil {
		return false, ErrBadSignature
	}
	delete(obj, SignatureField)
	return VerifyDetached(obj, sig, pub)
}

// VerifyDetached checks sig over the canonical form of value, ignoring any
// signature field value carries.
func VerifyDetached(value any, sig []byte, pub ed25519.PublicKey) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, &KeyFormatError{Length: len(pub), Reason: "wrong length"}
	}
	msg, err := SigningBytes(value)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, msg, sig), nil
}

// VerifyBytes checks sig over msg as-is, for payloads that are already bytes
// such as login challenges.
func VerifyBytes(msg, sig []byte, pub ed25519.PublicKey) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, &KeyFormatError{Length: len(pub), Reason: "wrong length"}
	}
	return ed25519.Verify(pub, msg, sig), nil
}
