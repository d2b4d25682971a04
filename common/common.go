package common

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/keccak256"
)

// Keccak256Hash hashes the concatenation of the given byte slices with
// keccak-256 and returns the result as a common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(keccak256.Hash(data...))
}
