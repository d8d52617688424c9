// Package credential verifies supervisor credentials presented with
// privileged rehabilitation requests.
package credential

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Verifier checks a presented supervisor credential. Implementations must
// treat any failure as a denial; the caller does not distinguish "wrong
// credential" from "could not check".
type Verifier interface {
	// Verify reports whether the presented credential is valid.
	Verify(presented string) bool
}

// BcryptVerifier checks credentials against a bcrypt hash. This is the
// production verifier; the hash comes from configuration, never the
// plaintext.
type BcryptVerifier struct {
	hash []byte
}

// NewBcryptVerifier validates the hash up front so a misconfigured
// deployment fails at startup rather than denying every request at runtime.
func NewBcryptVerifier(hash string) (*BcryptVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid bcrypt hash: %w", err)
	}
	return &BcryptVerifier{hash: []byte(hash)}, nil
}

func (v *BcryptVerifier) Verify(presented string) bool {
	return bcrypt.CompareHashAndPassword(v.hash, []byte(presented)) == nil
}

// StaticVerifier compares against a fixed plaintext credential in constant
// time. Intended for development and tests only.
type StaticVerifier struct {
	credential string
}

func NewStaticVerifier(credential string) *StaticVerifier {
	return &StaticVerifier{credential: credential}
}

func (v *StaticVerifier) Verify(presented string) bool {
	if v.credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(v.credential), []byte(presented)) == 1
}
