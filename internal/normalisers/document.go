package normalisers

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// NewDocument builds a Document for extracted content, copying the raw
// metadata and recording the source MIME type and format.
func NewDocument(raw *domain.RawDocument, title, content string) domain.Document {
	meta := make(map[string]any, len(raw.Metadata)+2)
	for k, v := range raw.Metadata {
		meta[k] = v
	}
	meta["mime_type"] = raw.MIMEType
	meta["format"] = raw.Format.String()

	if title == "" {
		title = TitleFromURI(raw.URI)
	}

	return domain.Document{
		ID:        uuid.New().String(),
		URI:       raw.URI,
		Title:     title,
		Content:   content,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}
}

// TitleFromURI derives a title from the last path segment of a URL or
// file path, dropping the extension and turning separators into spaces.
func TitleFromURI(uri string) string {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return name
}
