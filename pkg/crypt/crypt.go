/*
2026 © Postgres.ai
*/

// Package crypt seals credential passwords at rest.
package crypt

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/pkg/errors"
)

// ErrNoKey is returned when a sealed value is met but no key is configured.
var ErrNoKey = errors.New("sealing key is not configured")

// Sealer encrypts and decrypts secrets.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// AgeSealer seals secrets with an age X25519 identity. Sealed values are base64 encoded.
type AgeSealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAgeSealer creates a sealer from an identity in the AGE-SECRET-KEY-1... form.
func NewAgeSealer(identity string) (*AgeSealer, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return nil, errors.Wrap(err, "invalid age identity")
	}

	return &AgeSealer{identity: id, recipient: id.Recipient()}, nil
}

// LoadAgeSealer reads the identity from a key file. Comment lines are ignored.
func LoadAgeSealer(path string) (*AgeSealer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read the key file")
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		return NewAgeSealer(line)
	}

	return nil, errors.Errorf("no identity found in %s", path)
}

// GenerateIdentity returns a new identity and its public recipient.
func GenerateIdentity() (identity string, recipient string, err error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", errors.Wrap(err, "failed to generate an age identity")
	}

	return id.String(), id.Recipient().String(), nil
}

// Recipient returns the public key of the sealer.
func (s *AgeSealer) Recipient() string {
	return s.recipient.String()
}

// Seal implements Sealer.
func (s *AgeSealer) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer

	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", errors.Wrap(err, "failed to create an encryptor")
	}

	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", errors.Wrap(err, "failed to encrypt")
	}

	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "failed to finalize encryption")
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open implements Sealer.
func (s *AgeSealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode a sealed value")
	}

	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt")
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "failed to read decrypted value")
	}

	return string(plaintext), nil
}

// NoKey is a Sealer for deployments without encrypted passwords.
type NoKey struct{}

// Seal implements Sealer.
func (NoKey) Seal(string) (string, error) {
	return "", ErrNoKey
}

// Open implements Sealer.
func (NoKey) Open(string) (string, error) {
	return "", ErrNoKey
}
