package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat_IsValid(t *testing.T) {
	for _, f := range AllFormats() {
		assert.True(t, f.IsValid(), f.String())
		assert.NotEmpty(t, f.MIMEType())
	}
	assert.False(t, Format("txt").IsValid())
	assert.Empty(t, Format("txt").MIMEType())
}

func TestFormat_MIMEType(t *testing.T) {
	assert.Equal(t, "application/pdf", FormatPDF.MIMEType())
	assert.Equal(t, "message/rfc822", FormatEML.MIMEType())
	assert.Contains(t, FormatDOCX.MIMEType(), "wordprocessingml")
}

// TestRawDocument_Fields tests RawDocument structure fields
func TestRawDocument_Fields(t *testing.T) {
	raw := RawDocument{
		URI:      "https://example.com/a.eml",
		MIMEType: "message/rfc822",
		Format:   FormatEML,
		Content:  []byte("Subject: hi\r\n\r\nbody"),
	}

	assert.Equal(t, FormatEML, raw.Format)
	assert.Equal(t, "message/rfc822", raw.MIMEType)
	assert.Len(t, raw.Content, 19)
}
