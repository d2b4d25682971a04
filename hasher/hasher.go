package hasher

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Algorithm identifies a digest function. The identifier is persisted inside
// every proof record so that verification always recomputes with the same
// functions the batch was built with, regardless of defaults changing across
// releases.
type Algorithm string

const (
	// SHA256 is the leaf (content) digest algorithm.
	SHA256 Algorithm = "sha256"
	// Keccak256 is the inner-node combine digest algorithm.
	Keccak256 Algorithm = "keccak256"
)

// HashFunc computes a 32 byte digest over the concatenation of its inputs.
type HashFunc func(data ...[]byte) common.Hash

// Get returns the hash function for the given algorithm identifier.
func Get(a Algorithm) (HashFunc, error) {
	switch a {
	case SHA256:
		return hashSHA256, nil
	case Keccak256:
		return hashKeccak256, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", a)
	}
}

func hashSHA256(data ...[]byte) common.Hash {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return common.BytesToHash(h.Sum(nil))
}

func hashKeccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return common.BytesToHash(h.Sum(nil))
}

// HashBytes computes the content digest of raw file bytes. The exact byte
// sequence is hashed, no normalization of any kind.
func HashBytes(a Algorithm, data []byte) (common.Hash, error) {
	fn, err := Get(a)
	if err != nil {
		return common.Hash{}, err
	}
	return fn(data), nil
}

// HashFile computes the content digest of the file at path.
func HashFile(a Algorithm, path string) (common.Hash, error) {
	fn, err := Get(a)
	if err != nil {
		return common.Hash{}, err
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return common.Hash{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return common.Hash{}, err
	}
	return fn(data), nil
}
