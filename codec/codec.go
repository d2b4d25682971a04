// Package codec embeds and extracts proof records in document containers.
//
// Two container families are supported: flat-append containers (PDF and
// anything else that tolerates trailing bytes) and OOXML zip packages. Both
// adapters share the same contract: Embed writes the serialized record into
// the document, Extract recovers the original bytes and the record, and
// Canonicalize produces the exact byte stream the content hash is taken over.
//
// Hashing always happens over canonicalized bytes, never over a decorated
// document: the decorative badge stage is applied strictly after embedding and
// is stripped by canonicalization, so the hash is reproducible regardless of
// whether or when a badge was added.
package codec

import (
	"bytes"
	"errors"

	"github.com/docanchor/docanchor/proof"
)

// Format names a container family.
type Format string

const (
	// FormatFlat is the flat-append container (PDF-like).
	FormatFlat Format = "flat"
	// FormatOOXML is the zip-based OOXML container (docx, xlsx, pptx).
	FormatOOXML Format = "ooxml"
)

var (
	// ErrMalformedProof is returned when a document carries no parseable
	// embedded proof block.
	ErrMalformedProof = errors.New("codec: missing or malformed embedded proof")
	// ErrAlreadyEmbedded is returned by the flat adapter when asked to embed
	// into a document that already carries a proof block.
	ErrAlreadyEmbedded = errors.New("codec: document already carries a proof block")
)

// Codec is one container adapter.
type Codec interface {
	Format() Format
	// Embed writes the record into the document and returns the new bytes.
	Embed(doc []byte, rec *proof.Record) ([]byte, error)
	// Extract returns the original (pre-embed) bytes and the embedded record.
	Extract(doc []byte) ([]byte, *proof.Record, error)
	// Canonicalize returns the byte stream content hashes are computed over.
	Canonicalize(doc []byte) ([]byte, error)
	// Decorate adds the verification badge. Never part of the hashed content.
	Decorate(doc []byte, badgePNG []byte) ([]byte, error)
}

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// ForDocument picks the adapter for a document by sniffing its leading bytes.
func ForDocument(doc []byte) Codec {
	if bytes.HasPrefix(doc, zipMagic) {
		return NewOOXML()
	}
	return NewFlat()
}
