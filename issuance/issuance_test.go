package issuance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/docanchor/docanchor/hasher"
	"github.com/docanchor/docanchor/merkle"
	"github.com/docanchor/docanchor/proof"
	"github.com/docanchor/docanchor/signer"
)

type fakeLedger struct {
	timestamps map[common.Hash]uint64
	putErr     error
	waitErr    error
	putCalls   int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{timestamps: map[common.Hash]uint64{}}
}

func (f *fakeLedger) GetRootTimestamp(_ context.Context, root common.Hash) (uint64, error) {
	return f.timestamps[root], nil
}

func (f *fakeLedger) PutRoot(_ context.Context, _ common.Address, root common.Hash) (*types.Transaction, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.putCalls++
	f.timestamps[root] = uint64(time.Now().Unix())
	return types.NewTx(&types.LegacyTx{}), nil
}

func (f *fakeLedger) WaitTxToBeMined(_ context.Context, _ *types.Transaction, _ time.Duration) error {
	return f.waitErr
}

func (f *fakeLedger) Network() string     { return "sepolia" }
func (f *fakeLedger) ExplorerURL() string { return "https://sepolia.etherscan.io" }

type fakeStore struct {
	records []*proof.Record
	err     error
}

func (f *fakeStore) AddRecord(_ context.Context, rec *proof.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func newKey(t *testing.T) signer.KeyProvider {
	t.Helper()
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	key, err := signer.NewLocalProvider(pk)
	require.NoError(t, err)
	return key
}

func writeFiles(t *testing.T, contents map[string][]byte) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(contents))
	for _, name := range sortedKeys(contents) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, contents[name], 0600))
		paths = append(paths, path)
	}
	return dir, paths
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}

func TestIssueBatch(t *testing.T) {
	_, paths := writeFiles(t, map[string][]byte{
		"a.txt": []byte("alpha content"),
		"b.txt": []byte("bravo content"),
		"c.txt": []byte("charlie content"),
	})
	outDir := t.TempDir()
	ledger := newFakeLedger()
	store := &fakeStore{}
	key := newKey(t)

	o := New(Config{IssuerID: "issuer-1"}, ledger, key, store)
	rec, err := o.Issue(context.Background(), Request{
		Batch:     "batch-1",
		Files:     paths,
		OutputDir: outDir,
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 1, ledger.putCalls)
	require.Len(t, store.records, 1)

	// the leaf set preserves submission order
	bp := rec.ProofJSON.Proofs[0]
	require.Len(t, bp.Leaves, 3)
	require.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, bp.Files)
	for i, path := range paths {
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		h, err := hasher.HashBytes(hasher.SHA256, content)
		require.NoError(t, err)
		require.Equal(t, h, bp.Leaves[i])
	}

	// every proof verifies against the anchored root
	engine, err := merkle.New(rec.CombineAlgorithm)
	require.NoError(t, err)
	for i, leaf := range bp.Leaves {
		require.True(t, engine.Verify(leaf, bp.Proofs[i], rec.MerkleRoot))
	}

	// signatures recover to the issuer key
	addr, err := signer.RecoverAddress(rec.MerkleRoot.Bytes(), rec.Signature)
	require.NoError(t, err)
	require.Equal(t, key.Address(), addr)
	digest, err := rec.SigningDigest()
	require.NoError(t, err)
	addr, err = signer.RecoverAddress(digest.Bytes(), rec.ProofSignature)
	require.NoError(t, err)
	require.Equal(t, key.Address(), addr)

	// embedded outputs and the record export exist
	for _, path := range paths {
		out := filepath.Join(outDir, filepath.Base(path))
		embedded, err := os.ReadFile(out)
		require.NoError(t, err)
		original, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Greater(t, len(embedded), len(original))
	}
	_, err = os.Stat(filepath.Join(outDir, rec.ID+".proof.json"))
	require.NoError(t, err)
}

func TestIssueEmptyBatch(t *testing.T) {
	o := New(Config{}, newFakeLedger(), newKey(t), nil)
	_, err := o.Issue(context.Background(), Request{Batch: "empty"})
	var stepError *StepError
	require.ErrorAs(t, err, &stepError)
	require.Equal(t, StepHashing, stepError.Step)
}

func TestIssueAlreadyAnchored(t *testing.T) {
	_, paths := writeFiles(t, map[string][]byte{"a.txt": []byte("content")})
	ledger := newFakeLedger()
	key := newKey(t)
	o := New(Config{IssuerID: "issuer-1"}, ledger, key, nil)

	// anchor the root the batch will produce
	h, err := hasher.HashBytes(hasher.SHA256, []byte("content"))
	require.NoError(t, err)
	ledger.timestamps[h] = 12345 // single leaf: root == leaf

	_, err = o.Issue(context.Background(), Request{Batch: "dup", Files: paths, OutputDir: t.TempDir()})
	var stepError *StepError
	require.ErrorAs(t, err, &stepError)
	require.Equal(t, StepRootCheckedAbsent, stepError.Step)
	require.Zero(t, ledger.putCalls)
}

func TestIssueAnchoringFails(t *testing.T) {
	_, paths := writeFiles(t, map[string][]byte{"a.txt": []byte("content")})
	ledger := newFakeLedger()
	ledger.putErr = errors.New("rpc down")
	o := New(Config{IssuerID: "issuer-1"}, ledger, newKey(t), nil)

	_, err := o.Issue(context.Background(), Request{Batch: "b", Files: paths, OutputDir: t.TempDir()})
	var stepError *StepError
	require.ErrorAs(t, err, &stepError)
	require.Equal(t, StepAnchored, stepError.Step)
}

func TestIssueConfirmationFails(t *testing.T) {
	_, paths := writeFiles(t, map[string][]byte{"a.txt": []byte("content")})
	ledger := newFakeLedger()
	ledger.waitErr = errors.New("timeout")
	o := New(Config{IssuerID: "issuer-1"}, ledger, newKey(t), nil)

	_, err := o.Issue(context.Background(), Request{Batch: "b", Files: paths, OutputDir: t.TempDir()})
	var stepError *StepError
	require.ErrorAs(t, err, &stepError)
	require.Equal(t, StepAnchored, stepError.Step)
}

func TestIssuePartialEmbedFailure(t *testing.T) {
	// pre-embed a proof block into one file: hashing canonicalizes it away,
	// but embedding refuses the second block
	preEmbedded := []byte("content b\n%%DOCANCHOR-PROOF v1 2%%\n{}\n%%DOCANCHOR-PROOF-END%%")
	_, paths := writeFiles(t, map[string][]byte{
		"a.txt": []byte("content a"),
		"b.txt": preEmbedded,
	})
	outDir := t.TempDir()
	ledger := newFakeLedger()
	store := &fakeStore{}
	o := New(Config{IssuerID: "issuer-1"}, ledger, newKey(t), store)

	rec, err := o.Issue(context.Background(), Request{Batch: "partial", Files: paths, OutputDir: outDir})
	var stepError *StepError
	require.ErrorAs(t, err, &stepError)
	require.Equal(t, StepEmbedded, stepError.Step)

	var partial *PartialEmbedError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, []string{"a.txt"}, partial.Succeeded)
	require.Contains(t, partial.Failed, "b.txt")

	// the batch stayed anchored and signed, and the record was persisted
	require.NotNil(t, rec)
	require.Equal(t, 1, ledger.putCalls)
	require.Len(t, store.records, 1)
}

func TestIssueDefaultsAlgorithms(t *testing.T) {
	_, paths := writeFiles(t, map[string][]byte{"a.txt": []byte("content")})
	o := New(Config{IssuerID: "issuer-1"}, newFakeLedger(), newKey(t), nil)

	rec, err := o.Issue(context.Background(), Request{Batch: "b", Files: paths, OutputDir: t.TempDir()})
	require.NoError(t, err)
	require.Equal(t, hasher.SHA256, rec.HashAlgorithm)
	require.Equal(t, hasher.Keccak256, rec.CombineAlgorithm)
	require.Equal(t, proof.SerializationVersion, rec.Serialization)
}
