// Package gate implements the shared-passphrase unlock. The passphrase
// is a gate, not an identity system: anyone who knows it picks a free
// text display name used purely for attribution.
package gate

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrWrongPassphrase = errors.New("wrong passphrase")

// Service checks unlock attempts against the configured passphrase
// and/or the password stored in the trip document itself.
type Service struct {
	passphrase     string
	passphraseHash string
}

// New creates the gate. passphraseHash, when non-empty, is a bcrypt
// hash checked instead of the plain static passphrase.
func New(passphrase, passphraseHash string) *Service {
	return &Service{passphrase: passphrase, passphraseHash: passphraseHash}
}

// Verify checks an unlock attempt. documentPassword is the password
// configured inside the trip document; either it or the static
// passphrase unlocks.
func (s *Service) Verify(input, documentPassword string) error {
	if s.passphraseHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(s.passphraseHash), []byte(input)) == nil {
			return nil
		}
		return ErrWrongPassphrase
	}
	if s.passphrase != "" && input == s.passphrase {
		return nil
	}
	if documentPassword != "" && input == documentPassword {
		return nil
	}
	return ErrWrongPassphrase
}

// ValidName reports whether a display name is usable after trimming.
func ValidName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	return name, name != ""
}
