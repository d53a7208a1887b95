// Package eml extracts headers and the body text of RFC 5322 email messages.
package eml

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/normalisers"
	"github.com/custodia-labs/docqa/internal/normalisers/html"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles EML (email) documents.
type Normaliser struct{}

// New creates a new EML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{domain.FormatEML.MIMEType()}
}

// SupportedFormats returns the formats this normaliser handles.
func (n *Normaliser) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatEML}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// headerOrder is the order headers appear in the extracted text.
var headerOrder = []string{"Subject", "From", "To", "Date"}

// Normalise converts an email into a header block, a blank line and the
// body. The body is the first text/plain part found depth-first, or the
// first text/html part converted to text when there is no plain part.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidRequest)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: eml: %v", domain.ErrExtractionFailed, err)
	}

	var content strings.Builder
	headers := make(map[string]string, len(headerOrder))
	for _, name := range headerOrder {
		v := decodeHeader(msg.Header.Get(name))
		if v == "" {
			continue
		}
		headers[name] = v
		fmt.Fprintf(&content, "%s: %s\n", name, v)
	}

	var b bodies
	if err := b.collect(textproto.MIMEHeader(msg.Header), msg.Body); err != nil {
		return nil, fmt.Errorf("%w: eml: %v", domain.ErrExtractionFailed, err)
	}
	if body := b.best(); body != "" {
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		content.WriteString(body)
	}

	doc := normalisers.NewDocument(raw, headers["Subject"], strings.TrimSpace(content.String()))
	for _, name := range []string{"From", "To", "Date"} {
		if v := headers[name]; v != "" {
			doc.Metadata[strings.ToLower(name)] = v
		}
	}

	return &driven.NormaliseResult{Document: doc}, nil
}

// decodeHeader decodes RFC 2047 encoded headers.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return strings.TrimSpace(decoded)
}

// bodies records the first plain and the first HTML body seen.
type bodies struct {
	plain   string
	html    string
	hasText bool
	hasHTML bool
}

func (b *bodies) best() string {
	if b.hasText {
		return strings.TrimSpace(b.plain)
	}
	if b.hasHTML {
		return html.ToText(b.html)
	}
	return ""
}

// collect walks one entity. Attachments are skipped; nested multiparts
// are searched depth-first, stopping once a plain part is found.
func (b *bodies) collect(header textproto.MIMEHeader, body io.Reader) error {
	if b.hasText {
		return nil
	}

	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if disp, _, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil && disp == "attachment" {
		return nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			err = b.collect(part.Header, part)
			part.Close()
			if err != nil {
				return err
			}
		}
	}

	if mediaType != "text/plain" && mediaType != "text/html" {
		return nil
	}

	data, err := io.ReadAll(decodeTransfer(body, header.Get("Content-Transfer-Encoding")))
	if err != nil {
		return err
	}

	switch {
	case mediaType == "text/plain":
		b.plain, b.hasText = string(data), true
	case !b.hasHTML:
		b.html, b.hasHTML = string(data), true
	}
	return nil
}

// decodeTransfer undoes a Content-Transfer-Encoding. multipart.Reader
// already decodes quoted-printable parts and drops their header.
func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
