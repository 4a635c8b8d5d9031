package scraper

import (
	"regexp"
	"strings"
)

// Navigation chrome that shows up as anchors on every registry page. Kept as
// data so the set can grow without touching the harvesting code.
var noiseExact = map[string]struct{}{
	"menu":           {},
	"login":          {},
	"entrar":         {},
	"sair":           {},
	"sobre":          {},
	"contato":        {},
	"ajuda":          {},
	"cadastro":       {},
	"acessibilidade": {},
	"início":         {},
	"inicio":         {},
	"voltar ao topo": {},
}

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^p[áa]gina\s+\d+$`),
	regexp.MustCompile(`(?i)^(pr[óo]xim[oa]|anterior)$`),
	regexp.MustCompile(`(?i)^ir para\b`),
}

// IsNoiseLink reports whether anchor text looks like site navigation rather
// than a document reference. Empty text is not noise; bare icon links often
// point at detail pages.
func IsNoiseLink(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	if _, ok := noiseExact[t]; ok {
		return true
	}
	for _, pat := range noisePatterns {
		if pat.MatchString(t) {
			return true
		}
	}
	return false
}
