// Package verify drives a single document through the verification protocol:
// extract, recompute, locate, prove, anchor-check, signature-check. Every gate
// is hard: the first failing gate produces the result and later gates are
// never evaluated.
package verify

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/docanchor/docanchor/codec"
	dacommon "github.com/docanchor/docanchor/common"
	"github.com/docanchor/docanchor/etherman"
	"github.com/docanchor/docanchor/hasher"
	"github.com/docanchor/docanchor/log"
	"github.com/docanchor/docanchor/merkle"
	"github.com/docanchor/docanchor/proof"
	"github.com/docanchor/docanchor/signer"
)

// Gate names one stage of the verification protocol.
type Gate string

const (
	GateExtracted            Gate = "Extracted"
	GateRecordSignatureValid Gate = "RecordSignatureValid"
	GateHashComputed         Gate = "HashComputed"
	GateLeafLocated          Gate = "LeafLocated"
	GateMerkleProofValid     Gate = "MerkleProofValid"
	GateOnChainAnchored      Gate = "OnChainAnchored"
	GateRootSignatureValid   Gate = "RootSignatureValid"
)

// ErrorKind classifies why a gate failed.
type ErrorKind string

const (
	MalformedProof     ErrorKind = "MalformedProof"
	SignatureInvalid   ErrorKind = "SignatureInvalid"
	LeafNotFound       ErrorKind = "LeafNotFound"
	MerkleProofInvalid ErrorKind = "MerkleProofInvalid"
	NotAnchored        ErrorKind = "NotAnchored"
	LedgerUnreachable  ErrorKind = "LedgerUnreachable"
)

// Result is the structured outcome of one verification. A failed verification
// names exactly one failing gate; it is never an aggregate report.
type Result struct {
	Valid      bool
	FailedGate Gate
	Kind       ErrorKind
	Reason     string

	// Context of a successful (or partially progressed) verification.
	Record       *proof.Record
	LeafIndex    int
	DocumentHash common.Hash
	// UsedTrailingLFFallback is set when the leaf only matched after the
	// documented single-shot trailing line-feed retry.
	UsedTrailingLFFallback bool
	AnchoredAt             uint64
	// Invalidation is supplementary ledger state, reported alongside a Valid
	// result; it never gates the protocol.
	Invalidation *etherman.InvalidationStatus
}

func invalid(gate Gate, kind ErrorKind, format string, args ...interface{}) Result {
	reason := fmt.Sprintf(format, args...)
	log.WithFields("component", dacommon.VERIFIER).
		Infof("verification failed at gate %s (%s): %s", gate, kind, reason)
	return Result{FailedGate: gate, Kind: kind, Reason: reason}
}

// Ledger is the read surface of the external anchoring ledger.
type Ledger interface {
	GetRootTimestamp(ctx context.Context, root common.Hash) (uint64, error)
	IsInvalidated(ctx context.Context, docHash, root common.Hash, issuerID string,
		invalidationExpiry, issuedAt uint64) (etherman.InvalidationStatus, error)
}

// IssuerKeyLookup resolves the identity both record and root signatures must
// recover to. External issuer directories implement this; RecordKeyLookup is
// the self-contained default.
type IssuerKeyLookup interface {
	IssuerAddress(ctx context.Context, rec *proof.Record) (common.Address, error)
}

// RecordKeyLookup derives the expected issuer address from the public key
// embedded in the record itself.
type RecordKeyLookup struct{}

func (RecordKeyLookup) IssuerAddress(_ context.Context, rec *proof.Record) (common.Address, error) {
	pub, err := parsePublicKey(rec.ProofJSON.IssuerPublicKey)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func parsePublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("record carries no issuer public key")
	}
	return crypto.UnmarshalPubkey(raw)
}

// Engine verifies documents. Stateless and safe for concurrent use across
// unrelated documents.
type Engine struct {
	ledger Ledger
	keys   IssuerKeyLookup
}

// New creates a verification engine.
func New(ledger Ledger, keys IssuerKeyLookup) *Engine {
	if keys == nil {
		keys = RecordKeyLookup{}
	}
	return &Engine{ledger: ledger, keys: keys}
}

// Verify runs the full protocol over a document's bytes.
func (e *Engine) Verify(ctx context.Context, doc []byte) Result {
	// Extracted
	c := codec.ForDocument(doc)
	original, rec, err := c.Extract(doc)
	if err != nil {
		return invalid(GateExtracted, MalformedProof, "%v", err)
	}
	if err := rec.Validate(); err != nil {
		return invalid(GateExtracted, MalformedProof, "%v", err)
	}
	bp := rec.ProofJSON.Proofs[0]

	// RecordSignatureValid
	issuerAddr, err := e.keys.IssuerAddress(ctx, rec)
	if err != nil {
		return invalid(GateRecordSignatureValid, MalformedProof, "issuer key lookup: %v", err)
	}
	digest, err := rec.SigningDigest()
	if err != nil {
		return invalid(GateRecordSignatureValid, MalformedProof, "%v", err)
	}
	recovered, err := signer.RecoverAddress(digest.Bytes(), rec.ProofSignature)
	if err != nil {
		return invalid(GateRecordSignatureValid, SignatureInvalid, "%v", err)
	}
	if recovered != issuerAddr {
		return invalid(GateRecordSignatureValid, SignatureInvalid,
			"record signature recovers to %s, expected %s", recovered.Hex(), issuerAddr.Hex())
	}

	// HashComputed. The digest covers the canonical byte stream, mirroring
	// issuance: decorations sitting ahead of the proof block must not change
	// the hash.
	canonical, err := c.Canonicalize(original)
	if err != nil {
		return invalid(GateHashComputed, MalformedProof, "%v", err)
	}
	docHash, err := hasher.HashBytes(rec.HashAlgorithm, canonical)
	if err != nil {
		return invalid(GateHashComputed, MalformedProof, "%v", err)
	}

	// LeafLocated, with the documented single-shot trailing line-feed retry.
	// The fallback tolerates a known container-serialization artifact; it is
	// not a general trimming rule and is attempted exactly once.
	usedFallback := false
	idx := leafIndex(bp.Leaves, docHash)
	if idx < 0 && bytes.HasSuffix(canonical, []byte("\n")) {
		retryHash, err := hasher.HashBytes(rec.HashAlgorithm, canonical[:len(canonical)-1])
		if err == nil {
			if retryIdx := leafIndex(bp.Leaves, retryHash); retryIdx >= 0 {
				log.Infof("leaf matched after trailing line-feed fallback (hash %s)", retryHash.Hex())
				idx, docHash, usedFallback = retryIdx, retryHash, true
			}
		}
	}
	if idx < 0 {
		return invalid(GateLeafLocated, LeafNotFound,
			"document hash %s not present in the embedded leaf set", docHash.Hex())
	}

	// MerkleProofValid
	engine, err := merkle.New(rec.CombineAlgorithm)
	if err != nil {
		return invalid(GateMerkleProofValid, MalformedProof, "%v", err)
	}
	if !engine.Verify(docHash, bp.Proofs[idx], bp.MerkleRoot) {
		return invalid(GateMerkleProofValid, MerkleProofInvalid,
			"inclusion proof for leaf %d does not reproduce root %s", idx, bp.MerkleRoot.Hex())
	}
	if rec.MerkleRoot != bp.MerkleRoot {
		return invalid(GateMerkleProofValid, MerkleProofInvalid,
			"record root %s disagrees with batch proof root %s",
			rec.MerkleRoot.Hex(), bp.MerkleRoot.Hex())
	}

	// OnChainAnchored. A zero timestamp means "not anchored", never "unknown".
	anchoredAt, err := e.ledger.GetRootTimestamp(ctx, rec.MerkleRoot)
	if err != nil {
		return invalid(GateOnChainAnchored, LedgerUnreachable, "%v", err)
	}
	if anchoredAt == 0 {
		return invalid(GateOnChainAnchored, NotAnchored,
			"root %s has no anchoring timestamp on the ledger", rec.MerkleRoot.Hex())
	}

	// RootSignatureValid
	rootRecovered, err := signer.RecoverAddress(rec.MerkleRoot.Bytes(), bp.Signature)
	if err != nil {
		return invalid(GateRootSignatureValid, SignatureInvalid, "%v", err)
	}
	if rootRecovered != issuerAddr {
		return invalid(GateRootSignatureValid, SignatureInvalid,
			"root signature recovers to %s, expected %s", rootRecovered.Hex(), issuerAddr.Hex())
	}

	result := Result{
		Valid:                  true,
		Record:                 rec,
		LeafIndex:              idx,
		DocumentHash:           docHash,
		UsedTrailingLFFallback: usedFallback,
		AnchoredAt:             anchoredAt,
	}

	// Supplementary invalidation status. Unreachable here does not turn a
	// valid document into an invalid one; the status is simply left unknown.
	if status, err := e.ledger.IsInvalidated(ctx, docHash, rec.MerkleRoot, rec.IssuerID,
		invalidationExpiry(rec), uint64(bp.Timestamp)); err == nil {
		result.Invalidation = &status
	} else {
		log.Warnf("could not fetch invalidation status for %s: %v", docHash.Hex(), err)
	}
	return result
}

// invalidationExpiry converts the record's expiry date into the unix
// timestamp the isInvalidated call expects. Records carry the date as text;
// an empty or unparseable value means no expiry window, reported as zero.
func invalidationExpiry(rec *proof.Record) uint64 {
	if rec.ExpiryDate == "" {
		return 0
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, rec.ExpiryDate); err == nil {
			return uint64(ts.Unix())
		}
	}
	log.Warnf("record %s carries unparseable expiry date %q", rec.ID, rec.ExpiryDate)
	return 0
}

func leafIndex(leaves []common.Hash, h common.Hash) int {
	for i, leaf := range leaves {
		if leaf == h {
			return i
		}
	}
	return -1
}
