package engine

import (
	"crypto/elliptic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

func TestGenerateSymmetricKey(t *testing.T) {
	for _, size := range []int{16, 32} {
		key, err := GenerateSymmetricKey(size)
		require.NoError(t, err)
		assert.Len(t, key, size)
	}

	// Two keys must never collide.
	k1, err := GenerateSymmetricKey(32)
	require.NoError(t, err)
	k2, err := GenerateSymmetricKey(32)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	_, err = GenerateSymmetricKey(24)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMarshalParsePrivateKey_RSA(t *testing.T) {
	priv, err := GenerateRSAKey(2048)
	require.NoError(t, err)

	der, err := MarshalPrivateKey(priv)
	require.NoError(t, err)

	parsed, err := ParseRSAPrivateKey(der)
	require.NoError(t, err)
	assert.True(t, priv.Equal(parsed))

	_, err = ParseECDSAPrivateKey(der)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMarshalParsePrivateKey_ECDSA(t *testing.T) {
	priv, err := GenerateECDSAKey(elliptic.P384())
	require.NoError(t, err)

	der, err := MarshalPrivateKey(priv)
	require.NoError(t, err)

	parsed, err := ParseECDSAPrivateKey(der)
	require.NoError(t, err)
	assert.True(t, priv.Equal(parsed))

	_, err = ParseRSAPrivateKey(der)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestParsePrivateKey_Malformed(t *testing.T) {
	_, err := ParseRSAPrivateKey([]byte("not der"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = ParseECDSAPrivateKey(nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMarshalPublicKey(t *testing.T) {
	priv, err := GenerateECDSAKey(elliptic.P256())
	require.NoError(t, err)

	der, err := MarshalPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	assert.NotEmpty(t, der)
}

func TestHashAlgorithm_Sum(t *testing.T) {
	sizes := map[HashAlgorithm]int{SHA256: 32, SHA384: 48, SHA512: 64}
	for alg, size := range sizes {
		sum, err := alg.Sum([]byte("data"))
		require.NoError(t, err)
		assert.Len(t, sum, size)
	}

	_, err := HashAlgorithm("md5").Sum([]byte("data"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
