package util

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Diagnostic sequences that appear when UTF-8 bytes were decoded as latin-1.
var mojibakeMarkers = []string{"Ã§", "Ã£"}

// RepairMojibake re-decodes text that the source served as latin-1 while the
// bytes were really UTF-8. Text without the diagnostic markers is returned
// unchanged, as is anything the round-trip cannot repair.
func RepairMojibake(s string) string {
	marked := false
	for _, marker := range mojibakeMarkers {
		if strings.Contains(s, marker) {
			marked = true
			break
		}
	}
	if !marked {
		return s
	}
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return s
	}
	if !utf8.ValidString(raw) {
		return s
	}
	return raw
}
