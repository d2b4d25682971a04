package codec

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildPackage assembles a minimal OOXML-shaped zip with entries in the given
// order.
func buildPackage(t *testing.T, order []string) []byte {
	t.Helper()
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types></Types>`,
		relsPartName:          `<?xml version="1.0"?><Relationships></Relationships>`,
		"word/document.xml":   `<?xml version="1.0"?><document>hello</document>`,
	}
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for _, name := range order {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(parts[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

var defaultOrder = []string{"[Content_Types].xml", relsPartName, "word/document.xml"}

func TestOOXMLRoundTrip(t *testing.T) {
	c := NewOOXML()
	doc := buildPackage(t, defaultOrder)
	rec := testRecord()

	embedded, err := c.Embed(doc, rec)
	require.NoError(t, err)

	original, extracted, err := c.Extract(embedded)
	require.NoError(t, err)
	require.Equal(t, rec, extracted)

	canon, err := c.Canonicalize(doc)
	require.NoError(t, err)
	require.Equal(t, canon, original)
}

func TestOOXMLEmbedIdempotent(t *testing.T) {
	c := NewOOXML()
	doc := buildPackage(t, defaultOrder)

	once, err := c.Embed(doc, testRecord())
	require.NoError(t, err)
	twice, err := c.Embed(once, testRecord())
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestOOXMLEmbedAddsRelationship(t *testing.T) {
	c := NewOOXML()
	doc := buildPackage(t, defaultOrder)

	embedded, err := c.Embed(doc, testRecord())
	require.NoError(t, err)

	r, err := zip.NewReader(bytes.NewReader(embedded), int64(len(embedded)))
	require.NoError(t, err)
	rels, err := readPart(r, relsPartName)
	require.NoError(t, err)
	require.Contains(t, string(rels), proofRelationship)
	require.True(t, hasPart(r, proofPartName))
}

func TestOOXMLCanonicalizeIndependentOfEntryOrder(t *testing.T) {
	c := NewOOXML()
	a := buildPackage(t, defaultOrder)
	b := buildPackage(t, []string{"word/document.xml", "[Content_Types].xml", relsPartName})

	ca, err := c.Canonicalize(a)
	require.NoError(t, err)
	cb, err := c.Canonicalize(b)
	require.NoError(t, err)
	require.Equal(t, ca, cb)
}

func TestOOXMLCanonicalizeExcludesAnchorParts(t *testing.T) {
	c := NewOOXML()
	doc := buildPackage(t, defaultOrder)

	base, err := c.Canonicalize(doc)
	require.NoError(t, err)

	embedded, err := c.Embed(doc, testRecord())
	require.NoError(t, err)
	decorated, err := c.Decorate(embedded, []byte{0x89, 'P', 'N', 'G', 0x0d})
	require.NoError(t, err)

	canon, err := c.Canonicalize(decorated)
	require.NoError(t, err)
	require.Equal(t, base, canon)
}

func TestOOXMLDecorateIdempotent(t *testing.T) {
	c := NewOOXML()
	doc := buildPackage(t, defaultOrder)
	png := []byte{0x89, 'P', 'N', 'G'}

	once, err := c.Decorate(doc, png)
	require.NoError(t, err)
	twice, err := c.Decorate(once, png)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestOOXMLExtractWithoutProof(t *testing.T) {
	c := NewOOXML()
	doc := buildPackage(t, defaultOrder)
	_, _, err := c.Extract(doc)
	require.ErrorIs(t, err, ErrMalformedProof)
}

func TestOOXMLRejectsNonZip(t *testing.T) {
	c := NewOOXML()
	_, err := c.Embed([]byte("plain text"), testRecord())
	require.ErrorIs(t, err, ErrMalformedProof)
}

func TestForDocument(t *testing.T) {
	require.Equal(t, FormatOOXML, ForDocument(buildPackage(t, defaultOrder)).Format())
	require.Equal(t, FormatFlat, ForDocument([]byte("%PDF-1.7")).Format())
}
