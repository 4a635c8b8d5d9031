package extract

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"unicode/utf8"

	"convwatch/pkg/domain"
)

// minNativeTextRunes is the smallest native PDF text layer accepted without
// falling back to OCR.
const minNativeTextRunes = 100

// Runner executes an external tool and returns its stdout/stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// Config holds external tool settings for the extractor.
type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Language  string // tesseract language model, default "por"
	DPI       int    // rasterization DPI for scanned PDFs, default 300
}

// Extractor converts downloaded document bodies into plain text.
type Extractor struct {
	cfg       Config
	runner    Runner
	nativePDF func(path string) (string, error)
	logger    *slog.Logger
}

// NewExtractor applies defaults and returns a ready extractor.
func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "por"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, nativePDF: extractNativePDF, logger: logger}
}

// Extract converts the file at path into plain text, resolving the final
// document format. Markup parse failures yield empty text with the format
// unchanged; a thin native PDF text layer falls back to OCR and resolves as
// scanned regardless of how little the OCR recovers. Output is capped at
// domain.MaxExtractedTextRunes.
func (e *Extractor) Extract(ctx context.Context, path, ext string) (string, domain.DocumentFormat) {
	switch strings.ToLower(ext) {
	case ".html", ".htm":
		text, err := extractMarkup(path)
		if err != nil {
			e.logger.Warn("markup extraction failed", "path", path, "err", err)
			return "", domain.FormatMarkup
		}
		return truncateRunes(text, domain.MaxExtractedTextRunes), domain.FormatMarkup
	case ".pdf":
		text, err := e.nativePDF(path)
		if err == nil && utf8.RuneCountInString(strings.TrimSpace(text)) > minNativeTextRunes {
			return truncateRunes(text, domain.MaxExtractedTextRunes), domain.FormatPDFNative
		}
		if err != nil {
			e.logger.Warn("native pdf extraction failed, trying ocr", "path", path, "err", err)
		} else {
			e.logger.Info("native text layer too thin, trying ocr", "path", path)
		}
		ocrText, ocrErr := e.ocrPDF(ctx, path)
		if ocrErr != nil {
			e.logger.Error("ocr extraction failed", "path", path, "err", ocrErr)
			return "", domain.FormatPDFScanned
		}
		return truncateRunes(ocrText, domain.MaxExtractedTextRunes), domain.FormatPDFScanned
	default:
		e.logger.Warn("unsupported document extension", "path", path, "ext", ext)
		return "", domain.FormatUnknown
	}
}

func truncateRunes(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}
