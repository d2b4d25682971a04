// Package issuance drives a batch of files through the proof lifecycle:
// hash, tree, anchor, sign, embed, persist.
package issuance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docanchor/docanchor/codec"
	dacommon "github.com/docanchor/docanchor/common"
	cfgtypes "github.com/docanchor/docanchor/config/types"
	"github.com/docanchor/docanchor/hasher"
	"github.com/docanchor/docanchor/log"
	"github.com/docanchor/docanchor/merkle"
	"github.com/docanchor/docanchor/proof"
	"github.com/docanchor/docanchor/signer"
)

// Step names one stage of the issuance state machine.
type Step string

const (
	StepHashing           Step = "Hashing"
	StepTreeBuilt         Step = "TreeBuilt"
	StepRootCheckedAbsent Step = "RootCheckedAbsent"
	StepAnchored          Step = "Anchored"
	StepRootSigned        Step = "RootSigned"
	StepRecordSigned      Step = "RecordSigned"
	StepEmbedded          Step = "Embedded"
	StepPersisted         Step = "Persisted"
	StepDone              Step = "Done"
)

// StepError is a terminal failure of the state machine. It carries the step it
// originated at.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("issuance failed at step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepErr(step Step, err error) *StepError {
	return &StepError{Step: step, Err: err}
}

// PartialEmbedError reports a batch where some containers could not be
// embedded. The batch stays anchored and signed; only the listed files need
// re-embedding from the persisted record.
type PartialEmbedError struct {
	Succeeded []string
	Failed    map[string]error
}

func (e *PartialEmbedError) Error() string {
	failed := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	return fmt.Sprintf("embedding failed for %v (succeeded: %v)", failed, e.Succeeded)
}

// Ledger is the write surface of the external anchoring ledger.
type Ledger interface {
	GetRootTimestamp(ctx context.Context, root common.Hash) (uint64, error)
	PutRoot(ctx context.Context, from common.Address, root common.Hash) (*types.Transaction, error)
	WaitTxToBeMined(ctx context.Context, tx *types.Transaction, timeout time.Duration) error
	Network() string
	ExplorerURL() string
}

// Store persists issued records.
type Store interface {
	AddRecord(ctx context.Context, rec *proof.Record) error
}

// Config of the issuance orchestrator.
type Config struct {
	// IssuerID is the registered issuer identity the batch is anchored under
	IssuerID string `mapstructure:"IssuerID"`
	// HashAlgorithm is the leaf (content) digest function
	HashAlgorithm hasher.Algorithm `mapstructure:"HashAlgorithm"`
	// CombineAlgorithm is the merkle inner-node digest function
	CombineAlgorithm hasher.Algorithm `mapstructure:"CombineAlgorithm"`
	// WaitTxTimeout bounds the wait for anchoring confirmation
	WaitTxTimeout cfgtypes.Duration `mapstructure:"WaitTxTimeout"`
	// Badge configures the decorative verification badge
	Badge codec.BadgeConfig `mapstructure:"Badge"`
}

// Request describes one batch to issue.
type Request struct {
	// Batch label
	Batch string
	// Files to issue, in submission order. Order is preserved in the record.
	Files []string
	// OutputDir receives the embedded documents and the record JSON
	OutputDir   string
	Description string
	ExpiryDate  string
}

// Orchestrator runs the issuance state machine.
type Orchestrator struct {
	cfg    Config
	ledger Ledger
	key    signer.KeyProvider
	store  Store
}

// New creates an orchestrator. The store may be nil for dry runs; everything
// else is required.
func New(cfg Config, ledger Ledger, key signer.KeyProvider, store Store) *Orchestrator {
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = hasher.SHA256
	}
	if cfg.CombineAlgorithm == "" {
		cfg.CombineAlgorithm = hasher.Keccak256
	}
	return &Orchestrator{cfg: cfg, ledger: ledger, key: key, store: store}
}

type hashedFile struct {
	path      string
	data      []byte
	canonical []byte
	leaf      common.Hash
}

// Issue drives one batch to Done. On a partial embed failure the record is
// still persisted and returned together with the error; the batch must not be
// re-anchored or re-signed to recover the failed files.
func (o *Orchestrator) Issue(ctx context.Context, req Request) (*proof.Record, error) {
	if len(req.Files) == 0 {
		return nil, stepErr(StepHashing, fmt.Errorf("empty batch"))
	}
	logger := log.WithFields("component", dacommon.ISSUER, "batch", req.Batch, "files", len(req.Files))

	// Hashing. Concurrent per file; the tree needs the complete leaf set, so
	// everything joins before the next step.
	hashed := make([]hashedFile, len(req.Files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range req.Files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			canonical, err := codec.ForDocument(data).Canonicalize(data)
			if err != nil {
				return fmt.Errorf("canonicalizing %s: %w", path, err)
			}
			leaf, err := hasher.HashBytes(o.cfg.HashAlgorithm, canonical)
			if err != nil {
				return err
			}
			hashed[i] = hashedFile{path: path, data: data, canonical: canonical, leaf: leaf}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stepErr(StepHashing, err)
	}
	leaves := make([]common.Hash, len(hashed))
	for i, h := range hashed {
		leaves[i] = h.leaf
	}
	logger.Infof("hashed %d files with %s", len(leaves), o.cfg.HashAlgorithm)

	// TreeBuilt
	engine, err := merkle.New(o.cfg.CombineAlgorithm)
	if err != nil {
		return nil, stepErr(StepTreeBuilt, err)
	}
	tree, err := engine.Build(leaves)
	if err != nil {
		return nil, stepErr(StepTreeBuilt, err)
	}
	root := tree.Root()
	logger.Infof("batch root: %s", root.Hex())

	// RootCheckedAbsent: the ledger is the source of truth for pending and
	// confirmed anchors, there is no client-side lock.
	ts, err := o.ledger.GetRootTimestamp(ctx, root)
	if err != nil {
		return nil, stepErr(StepRootCheckedAbsent, err)
	}
	if ts != 0 {
		return nil, stepErr(StepRootCheckedAbsent,
			fmt.Errorf("root %s already anchored at %d", root.Hex(), ts))
	}

	// Anchored: blocks until the transaction is terminal.
	tx, err := o.ledger.PutRoot(ctx, o.key.Address(), root)
	if err != nil {
		return nil, stepErr(StepAnchored, err)
	}
	if err := o.ledger.WaitTxToBeMined(ctx, tx, o.cfg.WaitTxTimeout.Duration); err != nil {
		return nil, stepErr(StepAnchored, err)
	}
	logger.Infof("root anchored, tx %s", tx.Hash().Hex())

	// RootSigned
	rootSig, err := o.key.Sign(root.Bytes())
	if err != nil {
		return nil, stepErr(StepRootSigned, err)
	}

	// RecordSigned
	rec, err := o.buildRecord(req, hashed, tree, rootSig)
	if err != nil {
		return nil, stepErr(StepRecordSigned, err)
	}
	digest, err := rec.SigningDigest()
	if err != nil {
		return nil, stepErr(StepRecordSigned, err)
	}
	rec.ProofSignature, err = o.key.Sign(digest.Bytes())
	if err != nil {
		return nil, stepErr(StepRecordSigned, err)
	}

	// Embedded: once per file, independently. A failed container never
	// re-anchors or re-signs the batch.
	embedErr := o.embedAll(req, hashed, rec, logger)

	// Persisted
	if o.store != nil {
		if err := o.store.AddRecord(ctx, rec); err != nil {
			return nil, stepErr(StepPersisted, err)
		}
	}
	if req.OutputDir != "" {
		if err := o.exportRecord(req.OutputDir, rec); err != nil {
			return nil, stepErr(StepPersisted, err)
		}
	}

	if embedErr != nil {
		return rec, stepErr(StepEmbedded, embedErr)
	}
	logger.Infof("batch %s issued, record %s", req.Batch, rec.ID)
	return rec, nil
}

func (o *Orchestrator) buildRecord(req Request, hashed []hashedFile, tree *merkle.Tree, rootSig []byte) (*proof.Record, error) {
	proofs, err := tree.Proofs()
	if err != nil {
		return nil, err
	}
	leaves := make([]common.Hash, len(hashed))
	files := make([]string, len(hashed))
	paths := make([]string, len(hashed))
	lengths := make([]int64, len(hashed))
	for i, h := range hashed {
		leaves[i] = h.leaf
		files[i] = filepath.Base(h.path)
		paths[i] = h.path
		lengths[i] = int64(len(h.data))
	}
	now := time.Now().Unix()
	return &proof.Record{
		ID:         uuid.NewString(),
		IssuerID:   o.cfg.IssuerID,
		Batch:      req.Batch,
		MerkleRoot: tree.Root(),
		Signature:  rootSig,
		ProofJSON: proof.Data{
			Proofs: []proof.BatchProof{{
				MerkleRoot:  tree.Root(),
				Leaves:      leaves,
				Files:       files,
				Proofs:      proofs,
				Signature:   rootSig,
				Timestamp:   now,
				FileLengths: lengths,
			}},
			Network:         o.ledger.Network(),
			ExplorerURL:     o.ledger.ExplorerURL(),
			IssuerPublicKey: o.key.PublicKey(),
		},
		FilePaths:        paths,
		Description:      req.Description,
		ExpiryDate:       req.ExpiryDate,
		CreatedAt:        now,
		HashAlgorithm:    o.cfg.HashAlgorithm,
		CombineAlgorithm: o.cfg.CombineAlgorithm,
		Serialization:    proof.SerializationVersion,
	}, nil
}

// embedAll embeds the finished record into every file of the batch and writes
// the results to the output directory. Decoration runs strictly after
// embedding and is never part of the hashed content.
func (o *Orchestrator) embedAll(req Request, hashed []hashedFile, rec *proof.Record, logger *log.Logger) error {
	partial := &PartialEmbedError{Failed: map[string]error{}}
	var badge []byte
	if o.cfg.Badge.Enabled {
		var err error
		badge, err = codec.BadgePNG(o.cfg.Badge, rec.ID)
		if err != nil {
			logger.Warnf("badge generation failed, embedding without decoration: %v", err)
			badge = nil
		}
	}
	for _, h := range hashed {
		if err := o.embedOne(req, h, rec, badge); err != nil {
			logger.Errorf("embedding %s: %v", h.path, err)
			partial.Failed[filepath.Base(h.path)] = err
			continue
		}
		partial.Succeeded = append(partial.Succeeded, filepath.Base(h.path))
	}
	if len(partial.Failed) > 0 {
		return partial
	}
	return nil
}

func (o *Orchestrator) embedOne(req Request, h hashedFile, rec *proof.Record, badge []byte) error {
	c := codec.ForDocument(h.data)
	out, err := c.Embed(h.data, rec)
	if err != nil {
		return err
	}
	if badge != nil {
		out, err = c.Decorate(out, badge)
		if err != nil {
			return err
		}
	}
	dest := h.path
	if req.OutputDir != "" {
		dest = filepath.Join(req.OutputDir, filepath.Base(h.path))
	}
	return os.WriteFile(dest, out, 0600)
}

func (o *Orchestrator) exportRecord(dir string, rec *proof.Record) error {
	data, err := rec.Marshal()
	if err != nil {
		return err
	}
	name := filepath.Join(dir, fmt.Sprintf("%s.proof.json", rec.ID))
	return os.WriteFile(name, data, 0600)
}
