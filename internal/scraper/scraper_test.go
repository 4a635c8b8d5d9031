package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
)

type fakeDocStore struct {
	saved map[string][]byte
}

func (f *fakeDocStore) Save(_ context.Context, instrumentID, ext string, r io.Reader, _ int64) (string, error) {
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := instrumentID + ext
	f.saved[key] = body
	return "/store/" + key, nil
}

func newTestScraper(t *testing.T, baseURL string) *Scraper {
	t.Helper()
	return New(Config{
		BaseURL:   baseURL,
		UserAgent: "convwatch-test",
		Documents: &fakeDocStore{},
	}, nil)
}

func TestDiscoverIDsPrefersAPIProbe(t *testing.T) {
	var staticHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/instrumentos":
			fmt.Fprint(w, `[{"id": 101}, {"id": "102"}, {"id": 101}]`)
		default:
			staticHits.Add(1)
			fmt.Fprint(w, `<html><body><a href="/instrumento/999">doc</a></body></html>`)
		}
	}))
	defer srv.Close()

	s := newTestScraper(t, srv.URL)
	ids, err := s.DiscoverIDs(context.Background())
	if err != nil {
		t.Fatalf("DiscoverIDs: %v", err)
	}
	want := []string{"101", "102"}
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	if staticHits.Load() != 0 {
		t.Fatalf("static pages fetched despite API success")
	}
}

func TestDiscoverIDsAPIResultsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/instrumentos" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/api/convencoes" {
			fmt.Fprint(w, `{"results": [{"id": "55"}, {"id": 56}]}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := newTestScraper(t, srv.URL)
	ids, err := s.DiscoverIDs(context.Background())
	if err != nil {
		t.Fatalf("DiscoverIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "55" || ids[1] != "56" {
		t.Fatalf("ids = %v, want [55 56]", ids)
	}
}

func TestDiscoverIDsStaticFallback(t *testing.T) {
	page := `<html><body>
<a href="/login">Login</a>
<a href="/instrumento/201">Convenção A</a>
<a href="/instrumento/202?ref=busca">Convenção B</a>
<div data-id="203"></div>
<script>var instrumento_id = "204"; loadDetail("/instrumento/205");</script>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/busca" {
			fmt.Fprint(w, page)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := newTestScraper(t, srv.URL)
	ids, err := s.DiscoverIDs(context.Background())
	if err != nil {
		t.Fatalf("DiscoverIDs: %v", err)
	}
	want := []string{"201", "202", "203", "204", "205"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestDiscoverIDsNothingFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := newTestScraper(t, srv.URL)
	ids, err := s.DiscoverIDs(context.Background())
	if err != nil {
		t.Fatalf("DiscoverIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v, want empty", ids)
	}
}

func TestIDFromHref(t *testing.T) {
	cases := []struct {
		href string
		want string
	}{
		{"/instrumento/123", "123"},
		{"/instrumento/123?utm=x", "123"},
		{"/instrumento/123#topo", "123"},
		{"https://example.gov.br/instrumento/99", "99"},
		{"/convencao/123", ""},
		{"/instrumento/", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := idFromHref(c.href); got != c.want {
			t.Errorf("idFromHref(%q) = %q, want %q", c.href, got, c.want)
		}
	}
}

func TestDownloadDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html>texto</html>")
		case "/doc":
			w.Write([]byte("%PDF-1.4"))
		default:
			http.Error(w, "gone", http.StatusGone)
		}
	}))
	defer srv.Close()

	docs := &fakeDocStore{}
	s := New(Config{BaseURL: srv.URL, Documents: docs}, nil)

	path, local, ext, err := s.DownloadDocument(context.Background(), srv.URL+"/doc.html", "301")
	if err != nil {
		t.Fatalf("DownloadDocument html: %v", err)
	}
	defer os.Remove(local)
	if ext != ".html" || path != "/store/301.html" {
		t.Fatalf("got (%q, %q), want html stored", path, ext)
	}
	body, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read temp copy: %v", err)
	}
	if !bytes.Equal(body, docs.saved["301.html"]) {
		t.Fatalf("temp copy differs from stored body")
	}

	_, local, ext, err = s.DownloadDocument(context.Background(), srv.URL+"/doc", "302")
	if err != nil {
		t.Fatalf("DownloadDocument pdf: %v", err)
	}
	defer os.Remove(local)
	if ext != ".pdf" {
		t.Fatalf("ext = %q, want .pdf default", ext)
	}
	if !bytes.HasPrefix(docs.saved["302.pdf"], []byte("%PDF")) {
		t.Fatalf("stored body mismatch")
	}

	if _, _, _, err := s.DownloadDocument(context.Background(), srv.URL+"/missing", "303"); err == nil {
		t.Fatalf("expected error for 4xx response")
	}
}
