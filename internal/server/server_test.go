package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"convwatch/internal/alerts"
	"convwatch/internal/collector"
	"convwatch/internal/extract"
	"convwatch/internal/scraper"
	"convwatch/internal/util"
	"convwatch/pkg/domain"
	"convwatch/pkg/storage"
	"convwatch/pkg/store"
)

func newTestServer(t *testing.T, s *store.MemoryStore, lock *collector.RunLock) *httptest.Server {
	t.Helper()
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/instrumentos" {
			fmt.Fprint(w, `[]`)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(registry.Close)

	docs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	sc := scraper.New(scraper.Config{BaseURL: registry.URL, Documents: docs}, nil)
	ex := extract.NewExtractor(extract.Config{}, nil)
	pipeline := collector.NewPipeline(s, sc, ex, nil, nil, nil)
	sweeper := alerts.NewSweeper(s, nil, nil)

	srv := httptest.NewServer(New(pipeline, sweeper, lock, 0, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore(), nil)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCollectJobReturnsSummary(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore(), nil)

	resp, err := http.Post(srv.URL+"/jobs/collect", "application/json", strings.NewReader(`{"limit": 5}`))
	if err != nil {
		t.Fatalf("POST /jobs/collect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var sum collector.Summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Discovered != 0 {
		t.Fatalf("summary = %+v, want empty registry result", sum)
	}
}

func TestCollectJobRejectsNegativeLimit(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore(), nil)

	resp, err := http.Post(srv.URL+"/jobs/collect", "application/json", strings.NewReader(`{"limit": -1}`))
	if err != nil {
		t.Fatalf("POST /jobs/collect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCollectJobExplicitZeroLimitIsUnlimited(t *testing.T) {
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/instrumentos" {
			fmt.Fprint(w, `[{"id": 1}, {"id": 2}, {"id": 3}]`)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(registry.Close)

	docs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	sc := scraper.New(scraper.Config{BaseURL: registry.URL, Documents: docs}, nil)
	ex := extract.NewExtractor(extract.Config{}, nil)
	s := store.NewMemoryStore()
	pipeline := collector.NewPipeline(s, sc, ex, nil, nil, nil)
	sweeper := alerts.NewSweeper(s, nil, nil)

	srv := httptest.NewServer(New(pipeline, sweeper, nil, 1, nil).Handler())
	t.Cleanup(srv.Close)

	collect := func(body io.Reader) collector.Summary {
		t.Helper()
		resp, err := http.Post(srv.URL+"/jobs/collect", "application/json", body)
		if err != nil {
			t.Fatalf("POST /jobs/collect: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var sum collector.Summary
		if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		return sum
	}

	// An omitted limit falls back to the server default.
	if sum := collect(nil); sum.Discovered != 1 {
		t.Fatalf("summary without limit = %+v, want default cap of 1", sum)
	}
	// An explicit zero lifts the cap entirely.
	if sum := collect(strings.NewReader(`{"limit": 0}`)); sum.Discovered != 3 {
		t.Fatalf("summary with limit 0 = %+v, want all 3 discovered", sum)
	}
}

func TestCollectJobConflictsWhileLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	lock := collector.NewRunLock(client, time.Minute)

	srv := newTestServer(t, store.NewMemoryStore(), lock)

	release, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("pre-acquire lock: %v", err)
	}
	defer release()

	resp, err := http.Post(srv.URL+"/jobs/collect", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /jobs/collect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestSweepJob(t *testing.T) {
	s := store.NewMemoryStore()
	end := time.Now().AddDate(0, 0, 10)
	conv := domain.Convention{
		ID: "conv1", InstrumentID: "9001", Title: "CCT Teste",
		ValidityEnd: &end, Status: domain.StatusProcessed,
	}
	if err := s.CreateConvention(&conv); err != nil {
		t.Fatalf("seed convention: %v", err)
	}
	s.SeedCompany(domain.Company{ID: "c1", UserID: "u1"})
	if err := s.CreateLink(domain.ConventionCompanyLink{
		ID: util.NewID(), ConventionID: "conv1", CompanyID: "c1", Score: 100,
	}); err != nil {
		t.Fatalf("seed link: %v", err)
	}

	srv := newTestServer(t, s, nil)
	resp, err := http.Post(srv.URL+"/jobs/sweep", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /jobs/sweep: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["notificationsCreated"] != 1 {
		t.Fatalf("notificationsCreated = %d, want 1", body["notificationsCreated"])
	}
	notes, _ := s.ListNotificationsByUser("u1")
	if len(notes) != 1 || notes[0].Type != domain.AlertUrgent15 {
		t.Fatalf("notes = %v, want one URGENT_15", notes)
	}
}

func TestJobsRejectWrongMethod(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore(), nil)

	resp, err := http.Get(srv.URL + "/jobs/collect")
	if err != nil {
		t.Fatalf("GET /jobs/collect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
