package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// createTestDOCX creates a minimal valid DOCX file in memory.
func createTestDOCX(t *testing.T, documentXML, coreXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))
	require.NoError(t, err)

	if documentXML != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(documentXML))
		require.NoError(t, err)
	}

	if coreXML != "" {
		core, err := w.Create("docProps/core.xml")
		require.NoError(t, err)
		_, err = core.Write([]byte(coreXML))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func rawDOCX(content []byte) *domain.RawDocument {
	return &domain.RawDocument{
		URI:      "https://example.com/docs/leave-policy.docx",
		MIMEType: domain.FormatDOCX.MIMEType(),
		Format:   domain.FormatDOCX,
		Content:  content,
	}
}

func TestNormaliser_Descriptors(t *testing.T) {
	n := New()
	assert.Equal(t, []string{domain.FormatDOCX.MIMEType()}, n.SupportedMIMETypes())
	assert.Equal(t, []domain.Format{domain.FormatDOCX}, n.SupportedFormats())
	assert.Equal(t, 50, n.Priority())
}

func TestNormalise_Success(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document ` + wordNS + `>
<w:body>
<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>World</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>para</w:t></w:r></w:p>
</w:body>
</w:document>`

	coreXML := `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Leave Policy</dc:title>
</cp:coreProperties>`

	raw := rawDOCX(createTestDOCX(t, docXML, coreXML))
	original := append([]byte(nil), raw.Content...)

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, raw.URI, doc.URI)
	assert.Equal(t, "Leave Policy", doc.Title)
	assert.Equal(t, "Hello World\nSecond\tpara", doc.Content)
	assert.Equal(t, "docx", doc.Metadata["format"])
	assert.Equal(t, original, raw.Content, "input bytes must not change")
}

func TestNormalise_TableParagraphsInOrder(t *testing.T) {
	docXML := `<w:document ` + wordNS + `><w:body>
<w:p><w:r><w:t>Before</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:r><w:t>After</w:t></w:r></w:p>
</w:body></w:document>`

	result, err := New().Normalise(context.Background(), rawDOCX(createTestDOCX(t, docXML, "")))
	require.NoError(t, err)
	assert.Equal(t, "Before\nCell\nAfter", result.Document.Content)
	assert.Equal(t, "leave policy", result.Document.Title)
}

func TestNormalise_EmptyParagraphsKeepPositions(t *testing.T) {
	docXML := `<w:document ` + wordNS + `><w:body>
<w:p><w:r><w:t>One</w:t></w:r></w:p><w:p/><w:p><w:r><w:t>Two</w:t></w:r></w:p>
</w:body></w:document>`

	result, err := New().Normalise(context.Background(), rawDOCX(createTestDOCX(t, docXML, "")))
	require.NoError(t, err)
	assert.Equal(t, "One\n\nTwo", result.Document.Content)
}

func TestNormalise_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"not a zip", []byte("plain text")},
		{"missing document part", createTestDOCX(t, "", "")},
		{"malformed xml", createTestDOCX(t, `<w:document `+wordNS+`><w:body><w:p>`, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := New().Normalise(context.Background(), rawDOCX(tt.content))
			assert.ErrorIs(t, err, domain.ErrExtractionFailed)
			assert.Nil(t, result)
		})
	}
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Nil(t, result)
}
