package storage

import (
	"context"
	"io"
)

// DocumentStore persists downloaded document bodies keyed by instrument ID
// plus detected extension. Save returns the path (or object key) recorded on
// the convention for later retrieval by the presentation layer.
type DocumentStore interface {
	Save(ctx context.Context, instrumentID, ext string, r io.Reader, size int64) (string, error)
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".html":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
