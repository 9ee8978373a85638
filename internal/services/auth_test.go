package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInAnonymously(t *testing.T) {
	svc := NewAuthService("test-secret")

	identity, err := svc.SignInAnonymously("")
	require.NoError(t, err)
	assert.NotEmpty(t, identity.UID)
	assert.NotEmpty(t, identity.Token)

	t.Run("token round-trips to the minted uid", func(t *testing.T) {
		uid, err := svc.ValidateToken(identity.Token)
		require.NoError(t, err)
		assert.Equal(t, identity.UID, uid)
	})

	t.Run("an existing uid is kept on re-sign-in", func(t *testing.T) {
		again, err := svc.SignInAnonymously(identity.UID)
		require.NoError(t, err)
		assert.Equal(t, identity.UID, again.UID)

		uid, err := svc.ValidateToken(again.Token)
		require.NoError(t, err)
		assert.Equal(t, identity.UID, uid)
	})
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService("test-secret")

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.Error(t, err)
	})

	t.Run("token signed with a different secret", func(t *testing.T) {
		other := NewAuthService("other-secret")
		token, err := other.GenerateToken("uid-1")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})
}
