// Package docx extracts paragraph text from Office Open XML documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

const (
	documentPart = "word/document.xml"
	corePart     = "docProps/core.xml"
)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{domain.FormatDOCX.MIMEType()}
}

// SupportedFormats returns the formats this normaliser handles.
func (n *Normaliser) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatDOCX}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts one line per paragraph, in document order. Table
// cell paragraphs are included where they appear.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidRequest)
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: docx: %v", domain.ErrExtractionFailed, err)
	}

	body, err := readPart(reader, documentPart)
	if err != nil {
		return nil, fmt.Errorf("%w: docx: %v", domain.ErrExtractionFailed, err)
	}

	content, err := paragraphText(body)
	if err != nil {
		return nil, fmt.Errorf("%w: docx: %v", domain.ErrExtractionFailed, err)
	}

	doc := normalisers.NewDocument(raw, coreTitle(reader), content)
	return &driven.NormaliseResult{Document: doc}, nil
}

var errPartMissing = errors.New("part missing")

func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s: %w", name, errPartMissing)
}

// paragraphText walks word/document.xml token by token. Text runs (w:t)
// are appended to the current paragraph; w:tab and w:br become a tab and
// a line break; each closing w:p ends a line.
func paragraphText(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		out    strings.Builder
		para   strings.Builder
		inText bool
		lines  int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if lines > 0 {
					out.WriteByte('\n')
				}
				out.WriteString(para.String())
				para.Reset()
				lines++
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// coreTitle returns the title from docProps/core.xml, or "" when the
// part is missing or unreadable.
func coreTitle(reader *zip.Reader) string {
	content, err := readPart(reader, corePart)
	if err != nil {
		return ""
	}
	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
