package hasher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashBytesDeterministic(t *testing.T) {
	h1, err := HashBytes(SHA256, []byte("hello world"))
	require.NoError(t, err)
	h2, err := HashBytes(SHA256, []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	// Known sha256 of "hello world"
	require.Equal(t,
		"0xb94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		h1.Hex(),
	)
}

func TestHashBytesNoNormalization(t *testing.T) {
	h1, err := HashBytes(SHA256, []byte("content"))
	require.NoError(t, err)
	h2, err := HashBytes(SHA256, []byte("content\n"))
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0600))

	fromFile, err := HashFile(SHA256, path)
	require.NoError(t, err)
	fromBytes, err := HashBytes(SHA256, []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, fromBytes, fromFile)
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := HashBytes(Algorithm("md5"), []byte("x"))
	require.Error(t, err)
}

func TestKeccak256(t *testing.T) {
	h, err := HashBytes(Keccak256, []byte(""))
	require.NoError(t, err)
	// keccak-256 of the empty string
	require.Equal(t,
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		h.Hex(),
	)
}
