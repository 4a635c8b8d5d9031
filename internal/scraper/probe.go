package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// apiPaths are undocumented JSON endpoints the registry has been observed to
// expose intermittently. Cheapest strategy, so it runs first.
var apiPaths = []string{
	"/api/instrumentos",
	"/api/convencoes",
	"/api/v1/instrumentos",
}

type apiProbeStrategy struct {
	s *Scraper
}

func (p *apiProbeStrategy) name() string { return "api_probe" }

func (p *apiProbeStrategy) attempt(ctx context.Context) ([]string, error) {
	for _, path := range apiPaths {
		res, err := p.s.fetch(ctx, p.s.apiURL+path, 10*time.Second)
		if err != nil {
			p.s.logger.Debug("api probe request failed", "path", path, "err", err)
			continue
		}
		if res.status != http.StatusOK {
			continue
		}
		set := newIDSet()
		dec := json.NewDecoder(bytes.NewReader(res.body))
		dec.UseNumber()
		var payload any
		if err := dec.Decode(&payload); err != nil {
			continue
		}
		collectIDs(payload, set)
		if set.len() > 0 {
			return set.list(), nil
		}
	}
	return nil, nil
}

// collectIDs walks the decoded payload accepting both bare lists of ids and
// envelope objects with a "results" list of {"id": ...} records.
func collectIDs(payload any, set *idSet) {
	switch v := payload.(type) {
	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case map[string]any:
				set.add(idFromValue(it["id"]))
			default:
				set.add(idFromValue(it))
			}
		}
	case map[string]any:
		if results, ok := v["results"].([]any); ok {
			collectIDs(results, set)
		}
	}
}

func idFromValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
