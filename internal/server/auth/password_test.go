package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHasher() *Argon2Hasher {
	return &Argon2Hasher{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
}

func TestArgon2Hasher_RoundTrip(t *testing.T) {
	h := testHasher()

	enc, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, "$argon2id$v=19$m=1024,t=1,p=1$"))

	assert.True(t, h.Matches("correct horse", enc))
	assert.False(t, h.Matches("battery staple", enc))
}

func TestArgon2Hasher_SaltsDiffer(t *testing.T) {
	h := testHasher()

	a, err := h.Hash("pw")
	require.NoError(t, err)
	b, err := h.Hash("pw")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestArgon2Hasher_ParamsTravelWithHash(t *testing.T) {
	enc, err := testHasher().Hash("pw")
	require.NoError(t, err)

	assert.True(t, DefaultArgon2Hasher().Matches("pw", enc))
}

func TestArgon2Hasher_GarbageNeverMatches(t *testing.T) {
	h := testHasher()

	for _, enc := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	} {
		assert.False(t, h.Matches("pw", enc), enc)
	}
}
