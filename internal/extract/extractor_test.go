package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"convwatch/pkg/domain"
)

// fakeRunner simulates pdftoppm by materializing page images and tesseract by
// returning canned text per page.
type fakeRunner struct {
	pageCount int
	pageText  string
	calls     []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name)
	switch {
	case strings.Contains(name, "pdftoppm"):
		prefix := args[len(args)-1]
		for i := 1; i <= f.pageCount; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case strings.Contains(name, "tesseract"):
		return []byte(f.pageText), nil, nil
	default:
		return nil, nil, fmt.Errorf("unexpected tool %q", name)
	}
}

func newTestExtractor(t *testing.T, runner Runner) *Extractor {
	t.Helper()
	e := NewExtractor(Config{}, nil)
	if runner != nil {
		e.runner = runner
	}
	return e
}

func TestExtractMarkupStripsScriptAndStyle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.html")
	page := `<html><head><style>body { color: red }</style></head>
<body><h1>Convencao   Coletiva</h1>
<script>var secret = "hidden";</script>
<p>Clausula    primeira.</p></body></html>`
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatalf("write html: %v", err)
	}

	e := newTestExtractor(t, nil)
	text, format := e.Extract(context.Background(), path, ".html")
	if format != domain.FormatMarkup {
		t.Fatalf("format = %q, want %q", format, domain.FormatMarkup)
	}
	if strings.Contains(text, "secret") || strings.Contains(text, "color") {
		t.Fatalf("script/style content leaked into text: %q", text)
	}
	if text != "Convencao Coletiva Clausula primeira." {
		t.Fatalf("text = %q, want collapsed visible text", text)
	}
}

func TestExtractUnknownExtension(t *testing.T) {
	e := newTestExtractor(t, nil)
	text, format := e.Extract(context.Background(), "whatever.docx", ".docx")
	if text != "" || format != domain.FormatUnknown {
		t.Fatalf("got (%q, %q), want empty text and %q", text, format, domain.FormatUnknown)
	}
}

func TestExtractPDFNativeAboveThreshold(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestExtractor(t, runner)
	e.nativePDF = func(string) (string, error) {
		return strings.Repeat("a", 101), nil
	}
	text, format := e.Extract(context.Background(), "doc.pdf", ".pdf")
	if format != domain.FormatPDFNative {
		t.Fatalf("format = %q, want %q", format, domain.FormatPDFNative)
	}
	if len(text) != 101 {
		t.Fatalf("text length = %d, want 101", len(text))
	}
	if len(runner.calls) != 0 {
		t.Fatalf("OCR tools invoked for a native PDF: %v", runner.calls)
	}
}

func TestExtractPDFFallsBackToOCRWhenThin(t *testing.T) {
	runner := &fakeRunner{pageCount: 2, pageText: "pagina ocr"}
	e := newTestExtractor(t, runner)
	e.nativePDF = func(string) (string, error) {
		return strings.Repeat("a", 99), nil
	}
	text, format := e.Extract(context.Background(), "doc.pdf", ".pdf")
	if format != domain.FormatPDFScanned {
		t.Fatalf("format = %q, want %q", format, domain.FormatPDFScanned)
	}
	if strings.Count(text, "pagina ocr") != 2 {
		t.Fatalf("expected OCR text from both pages, got %q", text)
	}
}

func TestExtractPDFScannedEvenWhenOCRIsPoor(t *testing.T) {
	runner := &fakeRunner{pageCount: 1, pageText: ""}
	e := newTestExtractor(t, runner)
	e.nativePDF = func(string) (string, error) {
		return "", fmt.Errorf("no text layer")
	}
	text, format := e.Extract(context.Background(), "doc.pdf", ".pdf")
	if format != domain.FormatPDFScanned {
		t.Fatalf("format = %q, want %q", format, domain.FormatPDFScanned)
	}
	if strings.TrimSpace(text) != "" {
		t.Fatalf("text = %q, want blank OCR output passed through", text)
	}
}

func TestTruncateRunes(t *testing.T) {
	long := strings.Repeat("ç", domain.MaxExtractedTextRunes+50)
	got := truncateRunes(long, domain.MaxExtractedTextRunes)
	if utf8.RuneCountInString(got) != domain.MaxExtractedTextRunes {
		t.Fatalf("rune count = %d, want %d", utf8.RuneCountInString(got), domain.MaxExtractedTextRunes)
	}
	short := "pequeno"
	if truncateRunes(short, domain.MaxExtractedTextRunes) != short {
		t.Fatalf("short text must pass through untouched")
	}
}
