// Package web downloads documents over HTTP(S) for ingestion.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Fetcher implements the interface.
var _ driven.Fetcher = (*Fetcher)(nil)

// Default configuration values.
const (
	DefaultMaxBytes  = int64(domain.DefaultMaxDocumentMB) * 1024 * 1024
	DefaultTimeout   = domain.DefaultFetchTimeout
	DefaultUserAgent = domain.DefaultUserAgent
)

// readSize is the fixed read buffer used while streaming a body.
const readSize = 32 * 1024

// genericTypes carry no format information; the URL extension decides.
var genericTypes = map[string]bool{
	"":                           true,
	"application/octet-stream":   true,
	"binary/octet-stream":        true,
	"application/download":       true,
	"application/x-download":     true,
	"application/force-download": true,
}

// mimeFormats maps declared content types to formats.
var mimeFormats = map[string]domain.Format{
	domain.FormatPDF.MIMEType():  domain.FormatPDF,
	"application/x-pdf":          domain.FormatPDF,
	domain.FormatDOCX.MIMEType(): domain.FormatDOCX,
	domain.FormatEML.MIMEType():  domain.FormatEML,
}

// extFormats maps URL path extensions to formats.
var extFormats = map[string]domain.Format{
	".pdf":  domain.FormatPDF,
	".docx": domain.FormatDOCX,
	".eml":  domain.FormatEML,
}

// Config holds fetcher configuration.
type Config struct {
	// MaxBytes caps the downloaded body size (default: 20 MB).
	MaxBytes int64

	// Timeout bounds a single download (default: 30s).
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
}

// Fetcher downloads and classifies documents.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{
		client:    client,
		maxBytes:  cfg.MaxBytes,
		userAgent: cfg.UserAgent,
	}
}

// Fetch downloads rawURL. The format is classified from the response
// headers before the body is read, so unsupported documents are never
// buffered.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*domain.RawDocument, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid document url %q", domain.ErrInvalidRequest, rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported url scheme %q", domain.ErrInvalidRequest, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.downloadError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d", domain.ErrDownloadFailed, u.Redacted(), resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: declared size %d bytes exceeds limit of %d", domain.ErrDocumentTooLarge, resp.ContentLength, f.maxBytes)
	}

	mimeType := mediaType(resp.Header.Get("Content-Type"))
	format, err := Classify(mimeType, resp.Request.URL.Path)
	if err != nil {
		return nil, err
	}

	content, err := f.readCapped(resp.Body, resp.ContentLength)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentTooLarge) {
			return nil, err
		}
		return nil, f.downloadError(ctx, err)
	}

	logger.Debug("Fetched %s: %d bytes, format %s", u.Redacted(), len(content), format)

	if genericTypes[mimeType] {
		mimeType = format.MIMEType()
	}
	return &domain.RawDocument{
		URI:      rawURL,
		MIMEType: mimeType,
		Format:   format,
		Content:  content,
		Metadata: map[string]any{
			"final_url":    resp.Request.URL.String(),
			"content_type": resp.Header.Get("Content-Type"),
			"size_bytes":   len(content),
		},
	}, nil
}

// readCapped reads r in fixed-size chunks and stops the moment the total
// exceeds the cap. sizeHint is the declared Content-Length, or -1. The
// buffer never grows past the cap.
func (f *Fetcher) readCapped(r io.Reader, sizeHint int64) ([]byte, error) {
	var out []byte
	if sizeHint > 0 {
		out = make([]byte, 0, min(sizeHint, f.maxBytes))
	}
	buf := make([]byte, readSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > f.maxBytes {
				return nil, fmt.Errorf("%w: document exceeds limit of %d bytes", domain.ErrDocumentTooLarge, f.maxBytes)
			}
			out = f.grow(out, n)
			out = append(out, buf[:n]...)
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// grow makes room for n more bytes, doubling capacity but never beyond
// the cap. Callers have already checked len(out)+n against the cap.
func (f *Fetcher) grow(out []byte, n int) []byte {
	need := len(out) + n
	if need <= cap(out) {
		return out
	}
	newCap := min(max(2*int64(cap(out)), int64(need), readSize), f.maxBytes)
	grown := make([]byte, len(out), newCap)
	copy(grown, out)
	return grown
}

// downloadError keeps the caller's deadline visible so the request can be
// reported as a timeout rather than a bad document.
func (f *Fetcher) downloadError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrDownloadFailed, ctxErr)
	}
	return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
}

// Classify decides the document format from a media type, falling back to
// the URL path extension when the media type is missing or generic.
func Classify(mimeType, urlPath string) (domain.Format, error) {
	if format, ok := mimeFormats[mimeType]; ok {
		return format, nil
	}
	if genericTypes[mimeType] {
		ext := strings.ToLower(path.Ext(urlPath))
		if format, ok := extFormats[ext]; ok {
			return format, nil
		}
		return "", fmt.Errorf("%w: cannot determine format of %q", domain.ErrUnsupportedFormat, path.Base(urlPath))
	}
	return "", fmt.Errorf("%w: content type %q", domain.ErrUnsupportedFormat, mimeType)
}

// mediaType strips parameters and lowercases a Content-Type header.
func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		mt, _, _ = strings.Cut(header, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
