package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	SetEncryptionKey("test-key")
	defer SetEncryptionKey("")

	cipher, err := Encrypt("sk-secret-value")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-secret-value", cipher)

	plain, err := Decrypt(cipher)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-value", plain)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	SetEncryptionKey("test-key")
	defer SetEncryptionKey("")

	a, err := Encrypt("same input")
	require.NoError(t, err)
	b, err := Encrypt("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "a fresh nonce must be used per encryption")
}

func TestPassThroughWithoutKey(t *testing.T) {
	SetEncryptionKey("")

	cipher, err := Encrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", cipher)

	plain, err := Decrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", plain)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	SetEncryptionKey("test-key")
	defer SetEncryptionKey("")

	_, err := Decrypt("not base64 at all!!!")
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=") // valid base64, shorter than a nonce
	assert.Error(t, err)
}
