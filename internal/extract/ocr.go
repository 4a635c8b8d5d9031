package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ocrPDF rasterizes each page and runs the OCR engine over it. Per-page OCR
// failures are logged and skipped; the concatenated result is returned even
// when short, since partial recovery beats none.
func (e *Extractor) ocrPDF(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "convwatch-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("rasterize pdf: %w (%s)", err, strings.TrimSpace(string(errb)))
	}

	// pdftoppm writes prefix-1.png, prefix-2.png, ...
	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if len(pages) == 0 {
		return "", fmt.Errorf("rasterizer produced no pages")
	}

	var b strings.Builder
	for _, img := range pages {
		out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", e.cfg.Language)
		if err != nil {
			e.logger.Warn("ocr page failed", "image", img, "err", err, "stderr", strings.TrimSpace(string(errb)))
			continue
		}
		b.Write(out)
		b.WriteString("\n")
	}
	return b.String(), nil
}
