package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/russross/meddler"

	"github.com/docanchor/docanchor/hasher"
	"github.com/docanchor/docanchor/proof"
)

// recordRow is the sqlite shape of a proof record. The table is append-only:
// rows are inserted at issuance and never updated.
type recordRow struct {
	ID               string        `meddler:"id"`
	IssuerID         string        `meddler:"issuer_id"`
	Batch            string        `meddler:"batch"`
	MerkleRoot       common.Hash   `meddler:"merkle_root,hash"`
	Signature        hexutil.Bytes `meddler:"signature,hexbytes"`
	ProofJSON        proof.Data    `meddler:"proof_json,json"`
	FilePaths        []string      `meddler:"file_paths,json"`
	Description      string        `meddler:"description"`
	ExpiryDate       string        `meddler:"expiry_date"`
	CreatedAt        int64         `meddler:"created_at"`
	HashAlgorithm    string        `meddler:"hash_algorithm"`
	CombineAlgorithm string        `meddler:"combine_algorithm"`
	Serialization    string        `meddler:"serialization_version"`
	ProofSignature   hexutil.Bytes `meddler:"proof_signature,hexbytes"`
}

func toRow(rec *proof.Record) *recordRow {
	return &recordRow{
		ID:               rec.ID,
		IssuerID:         rec.IssuerID,
		Batch:            rec.Batch,
		MerkleRoot:       rec.MerkleRoot,
		Signature:        rec.Signature,
		ProofJSON:        rec.ProofJSON,
		FilePaths:        rec.FilePaths,
		Description:      rec.Description,
		ExpiryDate:       rec.ExpiryDate,
		CreatedAt:        rec.CreatedAt,
		HashAlgorithm:    string(rec.HashAlgorithm),
		CombineAlgorithm: string(rec.CombineAlgorithm),
		Serialization:    rec.Serialization,
		ProofSignature:   rec.ProofSignature,
	}
}

func (r *recordRow) toRecord() *proof.Record {
	return &proof.Record{
		ID:               r.ID,
		IssuerID:         r.IssuerID,
		Batch:            r.Batch,
		MerkleRoot:       r.MerkleRoot,
		Signature:        r.Signature,
		ProofJSON:        r.ProofJSON,
		FilePaths:        r.FilePaths,
		Description:      r.Description,
		ExpiryDate:       r.ExpiryDate,
		CreatedAt:        r.CreatedAt,
		HashAlgorithm:    hasher.Algorithm(r.HashAlgorithm),
		CombineAlgorithm: hasher.Algorithm(r.CombineAlgorithm),
		Serialization:    r.Serialization,
		ProofSignature:   r.ProofSignature,
	}
}

// ProofStore persists issued proof records.
type ProofStore struct {
	db *sql.DB
}

// NewProofStore opens (and migrates) the proof record store at dbPath.
func NewProofStore(dbPath string, runMigrations func(string) error) (*ProofStore, error) {
	if err := runMigrations(dbPath); err != nil {
		return nil, err
	}
	database, err := NewSQLiteDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &ProofStore{db: database}, nil
}

// Close closes the underlying DB.
func (s *ProofStore) Close() error {
	return s.db.Close()
}

// AddRecord inserts a record. Records are immutable, a duplicate id is an
// error, never an overwrite.
func (s *ProofStore) AddRecord(ctx context.Context, rec *proof.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck
	if err := meddler.Insert(tx, "proof_record", toRow(rec)); err != nil {
		if sqliteErr, ok := SQLiteErr(err); ok && int(sqliteErr.ExtendedCode) == UniqueConstrain {
			return errors.New("record already exists: " + rec.ID)
		}
		return err
	}
	return tx.Commit()
}

// GetRecord returns the record with the given id.
func (s *ProofStore) GetRecord(ctx context.Context, id string) (*proof.Record, error) {
	row := &recordRow{}
	err := meddler.QueryRow(s.db, row, `SELECT * FROM proof_record WHERE id = $1;`, id)
	if err != nil {
		return nil, ReturnErrNotFound(err)
	}
	return row.toRecord(), nil
}

// GetRecordByRoot returns the record anchored under the given batch root.
func (s *ProofStore) GetRecordByRoot(ctx context.Context, root common.Hash) (*proof.Record, error) {
	row := &recordRow{}
	err := meddler.QueryRow(s.db, row, `SELECT * FROM proof_record WHERE merkle_root = $1;`, root.Hex())
	if err != nil {
		return nil, ReturnErrNotFound(err)
	}
	return row.toRecord(), nil
}

// GetRecordsByIssuer returns every record issued under the given identity,
// newest first.
func (s *ProofStore) GetRecordsByIssuer(ctx context.Context, issuerID string) ([]*proof.Record, error) {
	var rows []*recordRow
	err := meddler.QueryAll(s.db, &rows,
		`SELECT * FROM proof_record WHERE issuer_id = $1 ORDER BY created_at DESC;`, issuerID)
	if err != nil {
		return nil, err
	}
	records := make([]*proof.Record, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
	}
	return records, nil
}
