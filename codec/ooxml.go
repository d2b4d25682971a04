package codec

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/docanchor/docanchor/proof"
)

// OOXML packages are zip archives. The proof is written as a dedicated
// internal part plus a relationship entry pointing to it; everything else in
// the package is left byte-identical. Hashing never sees the raw zip bytes:
// zip metadata (entry order, timestamps, compression) is incidental to
// content, so Canonicalize rewrites the package into a normal form first.
const (
	proofPartName = "docProps/docanchor-proof.json"
	badgePartName = "docProps/docanchor-badge.png"
	relsPartName  = "_rels/.rels"

	proofRelationship = `<Relationship Id="rIdDocanchorProof" Type="http://schemas.docanchor.io/proof" Target="/docProps/docanchor-proof.json"/>`
	badgeRelationship = `<Relationship Id="rIdDocanchorBadge" Type="http://schemas.docanchor.io/badge" Target="/docProps/docanchor-badge.png"/>`

	relsCloseTag = "</Relationships>"
)

type ooxmlCodec struct{}

// NewOOXML returns the adapter for zip-based OOXML containers.
func NewOOXML() Codec {
	return ooxmlCodec{}
}

func (ooxmlCodec) Format() Format {
	return FormatOOXML
}

func readZip(doc []byte) (*zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip package: %v", ErrMalformedProof, err)
	}
	return r, nil
}

func readPart(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, nil
}

func hasPart(r *zip.Reader, name string) bool {
	for _, f := range r.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Embed writes the proof part and its relationship. Idempotent: a package that
// already carries the proof part is returned unchanged.
func (c ooxmlCodec) Embed(doc []byte, rec *proof.Record) ([]byte, error) {
	r, err := readZip(doc)
	if err != nil {
		return nil, err
	}
	if hasPart(r, proofPartName) {
		return doc, nil
	}
	payload, err := rec.Marshal()
	if err != nil {
		return nil, err
	}
	return rewriteZip(r, map[string][]byte{proofPartName: payload}, proofRelationship)
}

// Decorate writes the badge part. Idempotent like Embed.
func (c ooxmlCodec) Decorate(doc []byte, badgePNG []byte) ([]byte, error) {
	r, err := readZip(doc)
	if err != nil {
		return nil, err
	}
	if hasPart(r, badgePartName) {
		return doc, nil
	}
	return rewriteZip(r, map[string][]byte{badgePartName: badgePNG}, badgeRelationship)
}

// rewriteZip copies every entry of the package as-is, appends the new parts
// and injects the relationship into the package-level rels part.
func rewriteZip(r *zip.Reader, newParts map[string][]byte, relationship string) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for _, f := range r.File {
		content, err := readPart(r, f.Name)
		if err != nil {
			return nil, err
		}
		if f.Name == relsPartName && relationship != "" {
			content = injectRelationship(content, relationship)
		}
		header := f.FileHeader
		fw, err := w.CreateHeader(&header)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(content); err != nil {
			return nil, err
		}
	}
	names := make([]string, 0, len(newParts))
	for name := range newParts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fw, err := w.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(newParts[name]); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func injectRelationship(rels []byte, relationship string) []byte {
	s := string(rels)
	if strings.Contains(s, relationship) {
		return rels
	}
	idx := strings.LastIndex(s, relsCloseTag)
	if idx < 0 {
		return rels
	}
	return []byte(s[:idx] + relationship + s[idx:])
}

// Extract returns the package without the anchor parts plus the parsed record.
// The returned original is in canonical form, matching what was hashed at
// issuance.
func (c ooxmlCodec) Extract(doc []byte) ([]byte, *proof.Record, error) {
	r, err := readZip(doc)
	if err != nil {
		return nil, nil, err
	}
	payload, err := readPart(r, proofPartName)
	if err != nil {
		return nil, nil, err
	}
	if payload == nil {
		return nil, nil, ErrMalformedProof
	}
	rec, err := proof.Unmarshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	original, err := c.Canonicalize(doc)
	if err != nil {
		return nil, nil, err
	}
	return original, rec, nil
}

// Canonicalize rewrites the package into its normal form: anchor parts and
// their relationships dropped, entries sorted by name, zero timestamps, stored
// (uncompressed) entries. Stored entries keep the normal form independent of
// compressor behavior, so the same package always canonicalizes to the same
// bytes no matter how it was last repacked or decorated.
func (c ooxmlCodec) Canonicalize(doc []byte) ([]byte, error) {
	r, err := readZip(doc)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if f.Name == proofPartName || f.Name == badgePartName {
			continue
		}
		names = append(names, f.Name)
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for _, name := range names {
		content, err := readPart(r, name)
		if err != nil {
			return nil, err
		}
		if name == relsPartName {
			content = stripRelationships(content)
		}
		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Store,
		})
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(content); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stripRelationships(rels []byte) []byte {
	s := string(rels)
	s = strings.ReplaceAll(s, proofRelationship, "")
	s = strings.ReplaceAll(s, badgeRelationship, "")
	return []byte(s)
}
