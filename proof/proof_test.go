package proof

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/docanchor/docanchor/hasher"
)

func sampleRecord() *Record {
	root := common.HexToHash("0xaabbcc")
	leaf := common.HexToHash("0x0102")
	return &Record{
		ID:         "0f8fad5b-d9cb-469f-a165-70867728950e",
		IssuerID:   "issuer-1",
		Batch:      "diplomas-2026",
		MerkleRoot: root,
		Signature:  []byte{0x01, 0x02},
		ProofJSON: Data{
			Proofs: []BatchProof{{
				MerkleRoot:  root,
				Leaves:      []common.Hash{leaf},
				Files:       []string{"diploma.pdf"},
				Proofs:      [][]common.Hash{{}},
				Signature:   []byte{0x01, 0x02},
				Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Unix(),
				FileLengths: []int64{1024},
			}},
			Network:         "sepolia",
			ExplorerURL:     "https://sepolia.etherscan.io",
			IssuerPublicKey: []byte{0x04, 0xff},
		},
		FilePaths:        []string{"/tmp/diploma.pdf"},
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC).Unix(),
		HashAlgorithm:    hasher.SHA256,
		CombineAlgorithm: hasher.Keccak256,
		Serialization:    SerializationVersion,
		ProofSignature:   []byte{0x09},
	}
}

func TestValidate(t *testing.T) {
	r := sampleRecord()
	require.NoError(t, r.Validate())

	broken := sampleRecord()
	broken.ProofJSON.Proofs[0].Proofs = nil
	require.Error(t, broken.Validate())

	broken = sampleRecord()
	broken.ProofJSON.Proofs = nil
	require.Error(t, broken.Validate())

	broken = sampleRecord()
	broken.HashAlgorithm = ""
	require.Error(t, broken.Validate())
}

func TestCanonicalBytesDeterministic(t *testing.T) {
	r := sampleRecord()
	b1, err := r.CanonicalBytes()
	require.NoError(t, err)
	b2, err := r.CanonicalBytes()
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}

func TestCanonicalBytesExcludeRecordSignature(t *testing.T) {
	r := sampleRecord()
	unsignedDigest, err := r.SigningDigest()
	require.NoError(t, err)

	// changing the record signature must not change the signed digest
	r.ProofSignature = []byte{0xde, 0xad}
	signedDigest, err := r.SigningDigest()
	require.NoError(t, err)
	require.Equal(t, unsignedDigest, signedDigest)

	// but changing any covered field must
	r.Batch = "different"
	changed, err := r.SigningDigest()
	require.NoError(t, err)
	require.NotEqual(t, unsignedDigest, changed)
}

func TestCanonicalBytesRejectUnknownVersion(t *testing.T) {
	r := sampleRecord()
	r.Serialization = "99"
	_, err := r.CanonicalBytes()
	require.ErrorIs(t, err, ErrUnknownSerializationVersion)
}

func TestMarshalRoundTrip(t *testing.T) {
	r := sampleRecord()
	data, err := r.Marshal()
	require.NoError(t, err)

	parsed, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, r, parsed)

	// canonical bytes survive the round trip
	b1, err := r.CanonicalBytes()
	require.NoError(t, err)
	b2, err := parsed.CanonicalBytes()
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}
