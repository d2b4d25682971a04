package proof

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	dacommon "github.com/docanchor/docanchor/common"
	"github.com/docanchor/docanchor/hasher"
)

// SerializationVersion identifies the canonical serialization this package
// produces. Record signatures are bound to it: a verifier must serialize with
// the version stored in the record, never with whatever the current code
// would produce by default.
const SerializationVersion = "1"

var (
	// ErrUnknownSerializationVersion is returned when a record declares a
	// canonical serialization this build does not implement.
	ErrUnknownSerializationVersion = errors.New("proof: unknown serialization version")
)

// BatchProof carries everything needed to re-verify any file of one batch
// offline: the root, the ordered leaf set, the per-leaf inclusion proofs and
// the root signature.
type BatchProof struct {
	MerkleRoot  common.Hash     `json:"merkleRoot"`
	Leaves      []common.Hash   `json:"leaves"`
	Files       []string        `json:"files"`
	Proofs      [][]common.Hash `json:"proofs"`
	Signature   hexutil.Bytes   `json:"signature"`
	Timestamp   int64           `json:"timestamp"`
	FileLengths []int64         `json:"fileLengths"`
}

// Data is the embedded sub-object of a record (the downloadable proof_json).
type Data struct {
	Proofs          []BatchProof  `json:"proofs"`
	Network         string        `json:"network"`
	ExplorerURL     string        `json:"explorerUrl"`
	IssuerPublicKey hexutil.Bytes `json:"issuerPublicKey"`
}

// Record is the durable artifact of one issued batch. It is created once and
// never mutated; a ledger-level invalidation supersedes it without touching it.
//
// Field order is part of the canonical serialization contract. Do not reorder.
type Record struct {
	ID               string           `json:"id"`
	IssuerID         string           `json:"issuer_id"`
	Batch            string           `json:"batch"`
	MerkleRoot       common.Hash      `json:"merkle_root"`
	Signature        hexutil.Bytes    `json:"signature"`
	ProofJSON        Data             `json:"proof_json"`
	FilePaths        []string         `json:"file_paths"`
	Description      string           `json:"description,omitempty"`
	ExpiryDate       string           `json:"expiry_date,omitempty"`
	CreatedAt        int64            `json:"created_at"`
	HashAlgorithm    hasher.Algorithm `json:"hash_algorithm"`
	CombineAlgorithm hasher.Algorithm `json:"combine_algorithm"`
	Serialization    string           `json:"serialization_version"`
	ProofSignature   hexutil.Bytes    `json:"proof_signature"`
}

// Validate checks the structural invariants every record must hold.
func (r *Record) Validate() error {
	if len(r.ProofJSON.Proofs) == 0 {
		return errors.New("proof: record carries no batch proof")
	}
	bp := r.ProofJSON.Proofs[0]
	if len(bp.Leaves) != len(bp.Proofs) {
		return fmt.Errorf("proof: %d leaves but %d inclusion proofs",
			len(bp.Leaves), len(bp.Proofs))
	}
	if len(bp.Leaves) != len(bp.Files) {
		return fmt.Errorf("proof: %d leaves but %d file names",
			len(bp.Leaves), len(bp.Files))
	}
	if r.HashAlgorithm == "" || r.CombineAlgorithm == "" {
		return errors.New("proof: record misses hash algorithm identifiers")
	}
	return nil
}

// CanonicalBytes produces the byte-exact serialization the record signature
// covers: the record with ProofSignature cleared, marshaled with the fixed
// field order of the struct and no floating whitespace.
func (r *Record) CanonicalBytes() ([]byte, error) {
	if r.Serialization != SerializationVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSerializationVersion, r.Serialization)
	}
	unsigned := *r
	unsigned.ProofSignature = nil
	return json.Marshal(&unsigned)
}

// SigningDigest is the keccak-256 digest of the canonical serialization. This
// is the message the record signature is taken over.
func (r *Record) SigningDigest() (common.Hash, error) {
	canonical, err := r.CanonicalBytes()
	if err != nil {
		return common.Hash{}, err
	}
	return dacommon.Keccak256Hash(canonical), nil
}

// Marshal renders the record as the downloadable JSON document.
func (r *Record) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Unmarshal parses a record from its JSON form.
func Unmarshal(data []byte) (*Record, error) {
	r := &Record{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}
