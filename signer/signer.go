package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/docanchor/docanchor/log"
)

var (
	// ErrKeyMaterialMissing is returned when a signing operation is attempted
	// without valid key material loaded.
	ErrKeyMaterialMissing = errors.New("signer: key material missing or malformed")
	// ErrInvalidSignature is returned when a signature cannot be recovered.
	ErrInvalidSignature = errors.New("signer: invalid signature")
)

const signatureLength = 65

// KeystoreFileConfig has all the information needed to load a private key from
// an encrypted keystore file.
type KeystoreFileConfig struct {
	// Path is the file path for the key store file
	Path string `mapstructure:"Path"`
	// Password is the password to decrypt the key store file
	Password string `mapstructure:"Password"`
}

// KeyProvider signs personal messages on behalf of one issuer identity.
// Implementations hold the private key, callers only ever see signatures.
type KeyProvider interface {
	// Sign signs msg with the personal-message scheme.
	Sign(msg []byte) ([]byte, error)
	// Address returns the wallet-style identity derived from the public key.
	Address() common.Address
	// PublicKey returns the uncompressed public key bytes.
	PublicKey() []byte
}

// localProvider is a KeyProvider backed by an in-process ECDSA private key.
type localProvider struct {
	pk      *ecdsa.PrivateKey
	address common.Address
}

// NewLocalProvider wraps an in-process private key. It fails fast when the key
// material is absent or malformed rather than deferring the failure to the
// first signature.
func NewLocalProvider(pk *ecdsa.PrivateKey) (KeyProvider, error) {
	if pk == nil || pk.D == nil || pk.D.Sign() == 0 {
		return nil, ErrKeyMaterialMissing
	}
	return &localProvider{
		pk:      pk,
		address: crypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// NewKeystoreProvider loads a private key from an encrypted keystore file.
func NewKeystoreProvider(cfg KeystoreFileConfig) (KeyProvider, error) {
	if cfg.Path == "" {
		return nil, ErrKeyMaterialMissing
	}
	keystoreEncrypted, err := os.ReadFile(filepath.Clean(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMaterialMissing, err)
	}
	log.Infof("decrypting key from: %v", cfg.Path)
	key, err := keystore.DecryptKey(keystoreEncrypted, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMaterialMissing, err)
	}
	return NewLocalProvider(key.PrivateKey)
}

// Sign signs msg with the personal-message scheme: the message is prefixed and
// hashed by accounts.TextHash before the ECDSA signature is applied, and V is
// normalized to 27/28 so recovery matches wallet-produced signatures.
func (p *localProvider) Sign(msg []byte) ([]byte, error) {
	if p.pk == nil {
		return nil, ErrKeyMaterialMissing
	}
	sig, err := crypto.Sign(accounts.TextHash(msg), p.pk)
	if err != nil {
		return nil, err
	}
	sig[signatureLength-1] += 27
	return sig, nil
}

func (p *localProvider) Address() common.Address {
	return p.address
}

func (p *localProvider) PublicKey() []byte {
	return crypto.FromECDSAPub(&p.pk.PublicKey)
}

// RecoverAddress recovers the signer identity of a personal-message signature.
func RecoverAddress(msg, sig []byte) (common.Address, error) {
	if len(sig) != signatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidSignature, signatureLength, len(sig))
	}
	normalized := make([]byte, signatureLength)
	copy(normalized, sig)
	if normalized[signatureLength-1] >= 27 {
		normalized[signatureLength-1] -= 27
	}
	pubKey, err := crypto.SigToPub(accounts.TextHash(msg), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
