package common

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestKeccak256Hash(t *testing.T) {
	// keccak-256 of the empty input
	empty := ethcommon.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	require.Equal(t, empty, Keccak256Hash())
	require.Equal(t, empty, Keccak256Hash([]byte{}))

	h1 := Keccak256Hash([]byte("foo"))
	h2 := Keccak256Hash([]byte("fo"), []byte("o"))
	require.Equal(t, h1, h2)
	require.NotEqual(t, h1, Keccak256Hash([]byte("bar")))
}
