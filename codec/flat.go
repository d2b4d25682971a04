package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/docanchor/docanchor/proof"
)

// Flat-append block grammar, v1. The start marker carries the decimal length
// of the JSON payload, which makes the block self-delimiting: an extractor
// never has to guess where the payload ends, even if the payload itself were
// to contain marker-looking text.
//
//	\n%%DOCANCHOR-PROOF v1 <len>%%\n<json>\n%%DOCANCHOR-PROOF-END%%
//
// The badge block uses the same shape with its own markers and a base64
// payload. Both blocks sit after the document's natural end; everything before
// the proof start marker is the original document.
const (
	flatProofPrefix = "\n%%DOCANCHOR-PROOF v1 "
	flatProofEnd    = "\n%%DOCANCHOR-PROOF-END%%"
	flatBadgePrefix = "\n%%DOCANCHOR-BADGE v1 "
	flatBadgeEnd    = "\n%%DOCANCHOR-BADGE-END%%"
	flatMarkerClose = "%%\n"
)

type flatCodec struct{}

// NewFlat returns the adapter for flat-append containers.
func NewFlat() Codec {
	return flatCodec{}
}

func (flatCodec) Format() Format {
	return FormatFlat
}

// Embed appends the proof block after the document's natural end. Re-embedding
// is refused: a new document version carries a new block, never a second one.
func (c flatCodec) Embed(doc []byte, rec *proof.Record) ([]byte, error) {
	if bytes.Contains(doc, []byte(flatProofPrefix)) {
		return nil, ErrAlreadyEmbedded
	}
	payload, err := rec.Marshal()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(doc)+len(payload)+64)
	out = append(out, doc...)
	out = appendBlock(out, flatProofPrefix, flatProofEnd, payload)
	return out, nil
}

func appendBlock(out []byte, prefix, end string, payload []byte) []byte {
	out = append(out, prefix...)
	out = strconv.AppendInt(out, int64(len(payload)), 10)
	out = append(out, flatMarkerClose...)
	out = append(out, payload...)
	out = append(out, end...)
	return out
}

// Extract locates the proof block and returns everything before its start
// marker as the original document.
func (c flatCodec) Extract(doc []byte) ([]byte, *proof.Record, error) {
	start, payload, err := findBlock(doc, flatProofPrefix, flatProofEnd)
	if err != nil {
		return nil, nil, err
	}
	rec, err := proof.Unmarshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	return doc[:start], rec, nil
}

// findBlock returns the offset of the last block's start marker and its
// payload. The declared length is validated against the end marker.
func findBlock(doc []byte, prefix, end string) (int, []byte, error) {
	start := bytes.LastIndex(doc, []byte(prefix))
	if start < 0 {
		return 0, nil, ErrMalformedProof
	}
	rest := doc[start+len(prefix):]
	markerEnd := bytes.Index(rest, []byte(flatMarkerClose))
	if markerEnd < 0 {
		return 0, nil, fmt.Errorf("%w: unterminated start marker", ErrMalformedProof)
	}
	length, err := strconv.Atoi(string(rest[:markerEnd]))
	if err != nil || length < 0 {
		return 0, nil, fmt.Errorf("%w: bad length prefix", ErrMalformedProof)
	}
	body := rest[markerEnd+len(flatMarkerClose):]
	if len(body) < length+len(end) {
		return 0, nil, fmt.Errorf("%w: truncated block", ErrMalformedProof)
	}
	if string(body[length:length+len(end)]) != end {
		return 0, nil, fmt.Errorf("%w: end marker mismatch", ErrMalformedProof)
	}
	return start, body[:length], nil
}

// Canonicalize strips any proof and badge blocks. For an undecorated,
// unembedded flat document this is the identity.
func (c flatCodec) Canonicalize(doc []byte) ([]byte, error) {
	if start := bytes.LastIndex(doc, []byte(flatProofPrefix)); start >= 0 {
		doc = doc[:start]
	}
	if start := bytes.LastIndex(doc, []byte(flatBadgePrefix)); start >= 0 {
		doc = doc[:start]
	}
	return doc, nil
}

// Decorate appends the badge block. Applied after Embed; never hashed.
func (c flatCodec) Decorate(doc []byte, badgePNG []byte) ([]byte, error) {
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(badgePNG)))
	base64.StdEncoding.Encode(encoded, badgePNG)
	out := make([]byte, 0, len(doc)+len(encoded)+64)
	out = append(out, doc...)
	out = appendBlock(out, flatBadgePrefix, flatBadgeEnd, encoded)
	return out, nil
}
