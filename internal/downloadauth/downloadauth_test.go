package downloadauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_MintAndVerify(t *testing.T) {
	s := NewSigner("secret", time.Minute)

	token, err := s.Mint("https://bucket/object")
	require.NoError(t, err)
	assert.NoError(t, s.Verify(token, "https://bucket/object"))
}

func TestSigner_VerifyRejectsWrongURI(t *testing.T) {
	s := NewSigner("secret", time.Minute)

	token, err := s.Mint("https://bucket/object")
	require.NoError(t, err)
	assert.Error(t, s.Verify(token, "https://bucket/other"))
}

func TestSigner_VerifyRejectsExpiredToken(t *testing.T) {
	s := NewSigner("secret", -time.Minute)

	token, err := s.Mint("https://bucket/object")
	require.NoError(t, err)
	assert.Error(t, s.Verify(token, "https://bucket/object"))
}

func TestSigner_VerifyRejectsWrongKey(t *testing.T) {
	s1 := NewSigner("secret", time.Minute)
	s2 := NewSigner("other-secret", time.Minute)

	token, err := s1.Mint("https://bucket/object")
	require.NoError(t, err)
	assert.Error(t, s2.Verify(token, "https://bucket/object"))
}
