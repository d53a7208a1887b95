package domain

// Format identifies a supported document format.
type Format string

// Supported document formats.
const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatEML  Format = "eml"
)

// IsValid returns true if the format is supported.
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatDOCX, FormatEML:
		return true
	default:
		return false
	}
}

// MIMEType returns the canonical MIME type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatEML:
		return "message/rfc822"
	default:
		return ""
	}
}

// String returns the string representation.
func (f Format) String() string {
	return string(f)
}

// AllFormats returns every supported format.
func AllFormats() []Format {
	return []Format{FormatPDF, FormatDOCX, FormatEML}
}

// RawDocument represents the downloaded bytes of a document.
// It is the fetcher's output before extraction.
type RawDocument struct {
	// URI is the URL the bytes were fetched from.
	URI string

	// MIMEType is the declared content type, parameters stripped.
	MIMEType string

	// Format is the classified document format.
	Format Format

	// Content is the raw bytes. Extractors must not modify it.
	Content []byte

	// Metadata contains fetch-specific key-value pairs.
	Metadata map[string]any
}
