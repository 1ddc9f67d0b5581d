package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/LJTian/HeadlineHub/internal/fetcher"
	"github.com/LJTian/HeadlineHub/internal/logger"
	"github.com/LJTian/HeadlineHub/internal/storage"
)

const testDate = "2025-09-19"

// newsServer 提供一个扁平新闻 feed；/broken.xml 永远 500
func newsServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		fmt.Fprintf(w, `<urlset>
<url><loc>http://%s/news/sports/article-1</loc><news:news><news:publication_date>%sT09:00:00+06:00</news:publication_date><news:title>Match report</news:title></news:news></url>
</urlset>`, r.Host, testDate)
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newSource(key, name, feedURL string) Source {
	cfg := collector.SiteConfig{
		Key:          key,
		Name:         name,
		FeedURL:      feedURL,
		Format:       collector.FormatNewsFeed,
		FallbackDays: 0,
		Enabled:      true,
	}
	client := fetcher.New(fetcher.Options{MaxRetries: 1, Timeout: 2 * time.Second, Logger: logger.Discard()})
	return Source{Key: key, Name: name, Adapter: collector.NewAdapter(cfg, client, logger.Discard())}
}

func newTestScheduler(t *testing.T, dir string, sources []Source, onlyMissing bool) *Scheduler {
	t.Helper()
	s, err := New(Options{
		Sources:     sources,
		Writer:      storage.NewHeadlineWriter(dir),
		Logger:      logger.Discard(),
		OnlyMissing: onlyMissing,
		Today:       func() string { return testDate },
		Now:         func() time.Time { return time.Date(2025, 9, 19, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func TestEnsureTodayWritesFilesAndReportsFailures(t *testing.T) {
	var hits int32
	srv := newsServer(t, &hits)
	dir := t.TempDir()

	s := newTestScheduler(t, dir, []Source{
		newSource("alpha", "Alpha News", srv.URL+"/feed.xml"),
		newSource("beta", "Beta Daily", srv.URL+"/broken.xml"),
	}, false)

	reports := s.EnsureToday(context.Background())
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}
	if reports[0].Err != nil || reports[0].Count != 1 {
		t.Fatalf("alpha report = %+v", reports[0])
	}
	if reports[1].Err == nil {
		t.Fatalf("beta report should carry the fetch error")
	}

	data, err := os.ReadFile(reports[0].Path)
	if err != nil {
		t.Fatalf("read alpha file: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "ALPHA NEWS HEADLINES\n") || !strings.Contains(text, "Category: sports") {
		t.Fatalf("unexpected alpha file:\n%s", text)
	}

	// 失败的站点不写文件，下次 ensure 会再试
	if s.opts.Writer.Exists("beta", testDate) {
		t.Fatalf("beta file should not exist after failure")
	}
}

func TestEnsureTodaySkipsWithoutRequests(t *testing.T) {
	var hits int32
	srv := newsServer(t, &hits)
	dir := t.TempDir()
	sources := []Source{
		newSource("alpha", "Alpha News", srv.URL+"/feed.xml"),
		newSource("gamma", "Gamma Times", srv.URL+"/feed.xml"),
	}
	s := newTestScheduler(t, dir, sources, false)

	first := s.EnsureToday(context.Background())
	for _, r := range first {
		if r.Err != nil || r.Skipped {
			t.Fatalf("first run report = %+v", r)
		}
	}
	before := atomic.LoadInt32(&hits)

	second := s.EnsureToday(context.Background())
	if got := atomic.LoadInt32(&hits); got != before {
		t.Fatalf("skip run issued %d requests", got-before)
	}
	for _, r := range second {
		if !r.Skipped {
			t.Fatalf("second run report = %+v, want skipped", r)
		}
	}
}

func TestEnsureOnlyMissing(t *testing.T) {
	var hits int32
	srv := newsServer(t, &hits)
	dir := t.TempDir()
	w := storage.NewHeadlineWriter(dir)
	if _, err := w.Write(storage.HeadlineFile{Key: "alpha", Source: "Alpha News", Date: testDate}); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	s := newTestScheduler(t, dir, []Source{
		newSource("alpha", "Alpha News", srv.URL+"/feed.xml"),
		newSource("gamma", "Gamma Times", srv.URL+"/feed.xml"),
	}, true)

	reports := s.EnsureToday(context.Background())
	if !reports[0].Skipped {
		t.Fatalf("alpha should be skipped: %+v", reports[0])
	}
	if reports[1].Skipped || reports[1].Count != 1 {
		t.Fatalf("gamma report = %+v", reports[1])
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}
}

func TestEnsureForceRescrapes(t *testing.T) {
	var hits int32
	srv := newsServer(t, &hits)
	dir := t.TempDir()
	s := newTestScheduler(t, dir, []Source{newSource("alpha", "Alpha News", srv.URL+"/feed.xml")}, false)

	s.EnsureToday(context.Background())
	reports := s.Ensure(context.Background(), testDate, true)
	if reports[0].Skipped || reports[0].Err != nil {
		t.Fatalf("forced report = %+v", reports[0])
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("hits = %d, want 2", got)
	}
}

func TestNewRejectsBadCronSpec(t *testing.T) {
	if _, err := New(Options{CronSpec: "not a cron", Writer: storage.NewHeadlineWriter(t.TempDir())}); err == nil {
		t.Fatalf("want error for invalid cron spec")
	}
}
