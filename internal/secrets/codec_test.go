package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec("unit-test-key")
	require.NoError(t, err)

	cipher, err := codec.Encrypt("+93700000000")
	require.NoError(t, err)
	assert.NotContains(t, cipher, "93700000000")

	plain, err := codec.Decrypt(cipher)
	require.NoError(t, err)
	assert.Equal(t, "+93700000000", plain)
}

func TestCodecNoncePerEncryption(t *testing.T) {
	codec, err := NewCodec("unit-test-key")
	require.NoError(t, err)

	a, err := codec.Encrypt("same plaintext")
	require.NoError(t, err)
	b, err := codec.Encrypt("same plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodecRejectsTamperedCiphertext(t *testing.T) {
	codec, err := NewCodec("unit-test-key")
	require.NoError(t, err)

	cipher, err := codec.Encrypt("secret")
	require.NoError(t, err)

	for _, bad := range []string{
		"not base64 !!!",
		"",
		"c2hvcnQ=",
		cipher[:len(cipher)-5] + "AAAA=",
	} {
		_, err := codec.Decrypt(bad)
		assert.ErrorIs(t, err, ErrCiphertextInvalid, "input %q", bad)
	}
}

func TestCodecWrongKeyFails(t *testing.T) {
	a, err := NewCodec("key-one")
	require.NoError(t, err)
	b, err := NewCodec("key-two")
	require.NoError(t, err)

	cipher, err := a.Encrypt("secret")
	require.NoError(t, err)
	_, err = b.Decrypt(cipher)
	assert.ErrorIs(t, err, ErrCiphertextInvalid)
}

func TestSubjectHashStable(t *testing.T) {
	h1 := SubjectHash("+33612345678")
	h2 := SubjectHash("+33612345678")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, SubjectHash("+33612345679"))
}

func TestNewPublicID(t *testing.T) {
	id := NewPublicID()
	assert.True(t, strings.HasPrefix(id, "TX-"))
	assert.Len(t, id, 19)
	assert.NotEqual(t, id, NewPublicID())
}
