package signer

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	provider, err := NewLocalProvider(key)
	require.NoError(t, err)

	msg := []byte("batch root bytes")
	sig, err := provider.Sign(msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	require.True(t, sig[64] == 27 || sig[64] == 28)

	recovered, err := RecoverAddress(msg, sig)
	require.NoError(t, err)
	require.Equal(t, provider.Address(), recovered)
}

func TestRecoverRejectsWrongMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	provider, err := NewLocalProvider(key)
	require.NoError(t, err)

	sig, err := provider.Sign([]byte("original"))
	require.NoError(t, err)

	recovered, err := RecoverAddress([]byte("tampered"), sig)
	require.NoError(t, err)
	require.NotEqual(t, provider.Address(), recovered)
}

func TestRecoverRejectsMalformedSignature(t *testing.T) {
	_, err := RecoverAddress([]byte("msg"), []byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestMissingKeyMaterial(t *testing.T) {
	_, err := NewLocalProvider(nil)
	require.ErrorIs(t, err, ErrKeyMaterialMissing)

	_, err = NewLocalProvider(&ecdsa.PrivateKey{})
	require.ErrorIs(t, err, ErrKeyMaterialMissing)

	_, err = NewKeystoreProvider(KeystoreFileConfig{})
	require.ErrorIs(t, err, ErrKeyMaterialMissing)

	_, err = NewKeystoreProvider(KeystoreFileConfig{Path: "/does/not/exist"})
	require.ErrorIs(t, err, ErrKeyMaterialMissing)
}

func TestDifferentKeysDifferentSignatures(t *testing.T) {
	k1, err := crypto.GenerateKey()
	require.NoError(t, err)
	k2, err := crypto.GenerateKey()
	require.NoError(t, err)
	p1, err := NewLocalProvider(k1)
	require.NoError(t, err)
	p2, err := NewLocalProvider(k2)
	require.NoError(t, err)

	msg := []byte("same message")
	s1, err := p1.Sign(msg)
	require.NoError(t, err)
	s2, err := p2.Sign(msg)
	require.NoError(t, err)
	require.NotEqual(t, s1, s2)
}
