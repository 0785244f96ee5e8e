package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"vibetrust/internal/recovery"
	"vibetrust/pkg/canonical"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func keygen(c *cli.Context) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return errors.Wrap(err, "generate key")
	}
	return printJSON(map[string]string{
		"public_key":  canonical.FormatWirePublicKey(pub),
		"private_key": base64.StdEncoding.EncodeToString(priv.Seed()),
	})
}

// parsePrivateKey accepts a base64 seed or a full 64-byte private key, with an
// optional "ed25519:" prefix.
func parsePrivateKey(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), canonical.WirePrefix)
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode private key")
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

func proofParams(c *cli.Context) (ed25519.PrivateKey, time.Time, string, error) {
	priv, err := parsePrivateKey(c.String("recovery-key"))
	if err != nil {
		return nil, time.Time{}, "", err
	}
	at := time.Now()
	if ts := c.Int64("timestamp"); ts != 0 {
		at = time.Unix(ts, 0)
	}
	nonce := c.String("nonce")
	if nonce == "" {
		if nonce, err = recovery.NewNonce(); err != nil {
			return nil, time.Time{}, "", errors.Wrap(err, "nonce")
		}
	}
	return priv, at, nonce, nil
}

func signRotation(c *cli.Context) error {
	priv, at, nonce, err := proofParams(c)
	if err != nil {
		return err
	}
	newKey := c.String("new-public-key")
	proof, err := recovery.SignRotation(priv, newKey, at, nonce)
	if err != nil {
		return errors.Wrap(err, "sign rotation")
	}
	return printJSON(map[string]any{"new_public_key": newKey, "proof": proof})
}

func signRevocation(c *cli.Context) error {
	priv, at, nonce, err := proofParams(c)
	if err != nil {
		return err
	}
	proof, err := recovery.SignRevocation(priv, at, nonce)
	if err != nil {
		return errors.Wrap(err, "sign revocation")
	}
	return printJSON(map[string]any{"proof": proof})
}
