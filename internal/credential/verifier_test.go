package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptVerifier(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("supervisor-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	v, err := NewBcryptVerifier(string(hash))
	require.NoError(t, err)

	assert.True(t, v.Verify("supervisor-secret"))
	assert.False(t, v.Verify("wrong"))
	assert.False(t, v.Verify(""))
}

func TestBcryptVerifierRejectsMalformedHash(t *testing.T) {
	_, err := NewBcryptVerifier("not-a-bcrypt-hash")
	assert.Error(t, err)
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier("dev-credential")
	assert.True(t, v.Verify("dev-credential"))
	assert.False(t, v.Verify("other"))

	empty := NewStaticVerifier("")
	assert.False(t, empty.Verify(""), "empty configured credential must never verify")
}
