// Package pdf extracts page text from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles PDF documents.
type Normaliser struct{}

// New creates a new PDF normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf", "application/x-pdf"}
}

// SupportedFormats returns the formats this normaliser handles.
func (n *Normaliser) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatPDF}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise concatenates the plain text of every page in page order,
// separated by newlines. A page whose text cannot be extracted
// contributes an empty string. Only an unreadable file is an error.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidRequest)
	}

	reader, err := open(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf: %v", domain.ErrExtractionFailed, err)
	}

	numPages := reader.NumPage()
	pages := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := pageText(reader, i)
		if err != nil {
			logger.Debug("pdf: page %d of %s: %v", i, raw.URI, err)
			continue
		}
		pages[i-1] = text
	}

	doc := normalisers.NewDocument(raw, infoTitle(reader), strings.Join(pages, "\n"))
	doc.Metadata["pages"] = numPages
	return &driven.NormaliseResult{Document: doc}, nil
}

// open parses the cross-reference table. The parser panics on some
// malformed inputs, so panics are turned into errors.
func open(content []byte) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(content), int64(len(content)))
}

func pageText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("malformed page: %v", p)
		}
	}()
	page := r.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func infoTitle(r *pdf.Reader) (title string) {
	defer func() {
		if recover() != nil {
			title = ""
		}
	}()
	return strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text())
}
