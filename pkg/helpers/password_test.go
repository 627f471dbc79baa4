package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgon2Hasher_Hash(t *testing.T) {
	h := NewArgon2Hasher()

	t.Run("produces PHC-encoded argon2id string", func(t *testing.T) {
		hash, err := h.Hash("correct horse battery staple")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
		assert.Len(t, strings.Split(hash, "$"), 6)
	})

	t.Run("fresh salt per call", func(t *testing.T) {
		first, err := h.Hash("same password")
		require.NoError(t, err)
		second, err := h.Hash("same password")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := h.Hash("")
		require.ErrorIs(t, err, ErrEmptyPassword)
	})
}

func TestArgon2Hasher_Verify(t *testing.T) {
	h := NewArgon2Hasher()
	hash, err := h.Hash("s3cret")
	require.NoError(t, err)

	t.Run("matches the original password", func(t *testing.T) {
		assert.True(t, h.Verify(hash, "s3cret"))
	})

	t.Run("rejects a different password", func(t *testing.T) {
		assert.False(t, h.Verify(hash, "s3cret!"))
	})

	t.Run("rejects empty password against real hash", func(t *testing.T) {
		assert.False(t, h.Verify(hash, ""))
	})

	t.Run("malformed hashes verify false, not error", func(t *testing.T) {
		malformed := []string{
			"",
			"not a hash",
			"$argon2id$v=19$m=65536,t=1,p=4$onlyfivefields",
			"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
			"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=banana,t=1,p=4$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
			"$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!",
			"$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$",
		}
		for _, m := range malformed {
			assert.False(t, h.Verify(m, "s3cret"), "hash %q should not verify", m)
		}
	})
}
