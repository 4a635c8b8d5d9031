package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"convwatch/internal/util"
)

// ErrNoDetailPage means none of the candidate detail URLs answered for the
// instrument.
var ErrNoDetailPage = errors.New("scraper: no detail page found")

// Metadata is what the registry's detail page tells us about one instrument.
// Any field except InstrumentID may be missing.
type Metadata struct {
	InstrumentID    string
	Title           string
	PublicationDate *time.Time
	ValidityStart   *time.Time
	ValidityEnd     *time.Time
	EmployerUnion   string
	WorkerUnion     string
	CNAE            string
	Municipality    string
	State           string
	DocumentURL     string
}

// detailPaths are the URL shapes the registry has used for detail pages.
var detailPaths = []string{
	"/instrumento/%s",
	"/convencao/%s",
	"/detalhes/%s",
}

// Selector cascades for each metadata field, most specific first. The
// registry's markup drifts, so every field is a best-effort lookup.
var (
	titleSelectors    = []string{"h1", "h2", ".titulo", ".title", "#titulo"}
	pubSelectors      = []string{".data-publicacao", ".publicacao", "[data-field='publicacao']"}
	startSelectors    = []string{".vigencia-inicio", ".inicio-vigencia", "[data-field='vigencia_inicio']"}
	endSelectors      = []string{".vigencia-fim", ".fim-vigencia", "[data-field='vigencia_fim']"}
	employerSelectors = []string{".sindicato-empregador", "[data-field='sindicato_empregador']", ".sindicato-patronal"}
	workerSelectors   = []string{".sindicato-trabalhador", "[data-field='sindicato_trabalhador']", ".sindicato-laboral"}
	cnaeSelectors     = []string{".cnae", "[data-field='cnae']", ".atividade-economica"}
	munSelectors      = []string{".municipio", "[data-field='municipio']"}
	stateSelectors    = []string{".uf", ".estado", "[data-field='uf']"}
	docSelectors      = []string{"a[href$='.pdf']", "a.documento", "a[href*='download']", "a[href*='documento']"}
)

// dateLayouts are tried in order; all day-first except the ISO form.
var dateLayouts = []string{"02/01/2006", "02-01-2006", "02.01.2006", "2006-01-02"}

// FetchMetadata loads the first detail page that answers for the instrument
// and resolves each field through its selector cascade. Missing fields come
// back zero valued; only a completely unreachable instrument is an error.
func (s *Scraper) FetchMetadata(ctx context.Context, instrumentID string) (*Metadata, error) {
	doc, err := s.loadDetailPage(ctx, instrumentID)
	if err != nil {
		return nil, err
	}

	md := &Metadata{InstrumentID: instrumentID}
	md.Title = resolveText(doc, titleSelectors)
	if md.Title == "" {
		md.Title = fmt.Sprintf("Convenção %s", instrumentID)
	}
	md.PublicationDate = resolveDate(doc, pubSelectors)
	md.ValidityStart = resolveDate(doc, startSelectors)
	md.ValidityEnd = resolveDate(doc, endSelectors)
	md.EmployerUnion = resolveText(doc, employerSelectors)
	md.WorkerUnion = resolveText(doc, workerSelectors)
	md.CNAE = resolveText(doc, cnaeSelectors)
	md.Municipality = resolveText(doc, munSelectors)
	md.State = resolveText(doc, stateSelectors)
	md.DocumentURL = s.resolveLink(doc, docSelectors)

	s.sleep(ctx)
	return md, nil
}

func (s *Scraper) loadDetailPage(ctx context.Context, instrumentID string) (*goquery.Document, error) {
	for _, pattern := range detailPaths {
		url := s.baseURL + fmt.Sprintf(pattern, instrumentID)
		res, err := s.fetch(ctx, url, 30*time.Second)
		if err != nil {
			s.logger.Debug("detail page fetch failed", "url", url, "err", err)
			continue
		}
		if res.status != http.StatusOK {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.body))
		if err != nil {
			continue
		}
		return doc, nil
	}
	return nil, fmt.Errorf("%w: instrument %s", ErrNoDetailPage, instrumentID)
}

func resolveText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			return util.RepairMojibake(text)
		}
	}
	return ""
}

func resolveDate(doc *goquery.Document, selectors []string) *time.Time {
	text := resolveText(doc, selectors)
	if text == "" {
		return nil
	}
	return parseDayFirst(text)
}

func (s *Scraper) resolveLink(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		href, ok := doc.Find(sel).First().Attr("href")
		if !ok {
			continue
		}
		href = strings.TrimSpace(href)
		if href == "" {
			continue
		}
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			return href
		}
		if !strings.HasPrefix(href, "/") {
			href = "/" + href
		}
		return s.baseURL + href
	}
	return ""
}

func parseDayFirst(text string) *time.Time {
	text = strings.TrimSpace(text)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}
