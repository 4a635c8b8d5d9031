package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"convwatch/pkg/storage"
)

// Scraper collects convention identifiers, metadata and document bodies from
// the Mediador registry. The registry has no stable contract, so every read
// goes through ordered fallback strategies.
type Scraper struct {
	baseURL        string
	apiURL         string
	delay          time.Duration
	userAgent      string
	client         *http.Client
	docs           storage.DocumentStore
	browserEnabled bool
	browserTimeout time.Duration
	logger         *slog.Logger
}

// Config wires the scraper's runtime settings.
type Config struct {
	BaseURL        string
	APIURL         string
	Delay          time.Duration
	UserAgent      string
	Documents      storage.DocumentStore
	BrowserEnabled bool
	BrowserTimeout time.Duration
}

// New constructs a scraper. APIURL falls back to BaseURL when empty.
func New(cfg Config, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = cfg.BaseURL
	}
	timeout := cfg.BrowserTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Scraper{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiURL:         strings.TrimRight(apiURL, "/"),
		delay:          cfg.Delay,
		userAgent:      cfg.UserAgent,
		client:         &http.Client{},
		docs:           cfg.Documents,
		browserEnabled: cfg.BrowserEnabled,
		browserTimeout: timeout,
		logger:         logger,
	}
}

// strategy is one way of finding instrument identifiers on the registry.
type strategy interface {
	name() string
	attempt(ctx context.Context) ([]string, error)
}

// DiscoverIDs runs the discovery strategies in priority order and returns the
// identifier set from the first strategy that yields anything. An empty result
// with nil error means the registry exposed nothing discoverable, which is a
// normal outcome, not a fault.
func (s *Scraper) DiscoverIDs(ctx context.Context) ([]string, error) {
	strategies := []strategy{
		&apiProbeStrategy{s: s},
		&browserStrategy{s: s},
		&staticStrategy{s: s},
	}
	for _, st := range strategies {
		ids, err := st.attempt(ctx)
		if err != nil {
			s.logger.Warn("discovery strategy failed", "strategy", st.name(), "err", err)
			continue
		}
		if len(ids) > 0 {
			s.logger.Info("discovered instrument ids", "strategy", st.name(), "count", len(ids))
			return ids, nil
		}
	}
	s.logger.Info("no instrument ids discovered")
	return nil, nil
}

// searchPaths are the candidate listing pages tried by the browser and static
// strategies.
func (s *Scraper) searchPages() []string {
	return []string{
		s.baseURL + "/busca",
		s.baseURL + "/pesquisa",
		s.baseURL + "/instrumentos",
		s.baseURL + "/convencoes",
	}
}

type fetchResult struct {
	status int
	header http.Header
	body   []byte
}

func (s *Scraper) fetch(ctx context.Context, url string, timeout time.Duration) (*fetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &fetchResult{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// sleep applies the politeness delay unless the context is cancelled first.
func (s *Scraper) sleep(ctx context.Context) {
	s.sleepFor(ctx, s.delay)
}

func (s *Scraper) sleepFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// idSet deduplicates identifiers while preserving discovery order.
type idSet struct {
	order []string
	seen  map[string]struct{}
}

func newIDSet() *idSet {
	return &idSet{seen: make(map[string]struct{})}
}

func (s *idSet) add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *idSet) len() int { return len(s.order) }

func (s *idSet) list() []string { return s.order }

var digitsOnly = regexp.MustCompile(`^\d+$`)

// idFromHref extracts the identifier from a detail-page link such as
// /instrumento/12345?x=1.
func idFromHref(href string) string {
	if href == "" {
		return ""
	}
	parts := strings.Split(href, "/")
	for i, part := range parts {
		if part != "instrumento" || i+1 >= len(parts) {
			continue
		}
		id := parts[i+1]
		id = strings.SplitN(id, "?", 2)[0]
		id = strings.SplitN(id, "#", 2)[0]
		return id
	}
	return ""
}
