package scraper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// DownloadDocument fetches the instrument's document body and stores a durable
// copy. It returns the storage path, a local temp file holding the same bytes
// for text extraction, and the inferred file extension. The caller removes the
// temp file.
func (s *Scraper) DownloadDocument(ctx context.Context, url, instrumentID string) (string, string, string, error) {
	res, err := s.fetch(ctx, url, 60*time.Second)
	if err != nil {
		return "", "", "", fmt.Errorf("download document: %w", err)
	}
	if res.status >= 400 {
		return "", "", "", fmt.Errorf("download document: status %d from %s", res.status, url)
	}
	if len(res.body) == 0 {
		return "", "", "", fmt.Errorf("download document: empty body from %s", url)
	}

	ext := extFromContentType(res.header.Get("Content-Type"))
	storagePath, err := s.docs.Save(ctx, instrumentID, ext, bytes.NewReader(res.body), int64(len(res.body)))
	if err != nil {
		return "", "", "", fmt.Errorf("store document: %w", err)
	}

	tmp, err := os.CreateTemp("", "convwatch-doc-*"+ext)
	if err != nil {
		return "", "", "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(res.body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", "", fmt.Errorf("close temp file: %w", err)
	}
	return storagePath, tmp.Name(), ext, nil
}

// extFromContentType maps the response content type onto a file extension,
// defaulting to .pdf since that is what the registry serves when it omits the
// header.
func extFromContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "html"):
		return ".html"
	default:
		return ".pdf"
	}
}
