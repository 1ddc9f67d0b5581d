package collector

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/HeadlineHub/internal/logger"
)

// fakeGetter 按 URL 返回固定内容，未登记的 URL 视为抓取失败
type fakeGetter struct {
	mu     sync.Mutex
	pages  map[string]string
	calls  map[string]int
	warmed []string
}

func newFakeGetter(pages map[string]string) *fakeGetter {
	return &fakeGetter{pages: pages, calls: make(map[string]int)}
}

func (f *fakeGetter) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	page, ok := f.pages[url]
	if !ok {
		return "", errors.New("503 service unavailable")
	}
	return page, nil
}

func (f *fakeGetter) WarmUp(ctx context.Context, homeURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warmed = append(f.warmed, homeURL)
}

func newTestAdapter(cfg SiteConfig, g PageGetter) (*Adapter, *[]time.Duration) {
	a := NewAdapter(cfg, g, logger.Discard())
	var slept []time.Duration
	a.SetSleep(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})
	return a, &slept
}

const dailyStarFeed = `<urlset xmlns:news="http://www.google.com/schemas/sitemap-news/0.9">
<url><loc>https://www.thedailystar.net/news/bangladesh/politics/news-1</loc>
<news:news><news:publication_date>2025-09-18T20:00:00+06:00</news:publication_date><news:title>Polls roadmap</news:title></news:news></url>
<url><loc>https://www.thedailystar.net/sports/cricket/news-2</loc>
<news:news><news:publication_date>2025-09-18T21:00:00+06:00</news:publication_date><news:title>Tigers win</news:title></news:news></url>
<url><loc>https://www.thedailystar.net/business/economy/news-3</loc>
<news:news><news:publication_date>2025-09-17T21:00:00+06:00</news:publication_date><news:title>Older story</news:title></news:news></url>
</urlset>`

func dailyStarConfig() SiteConfig {
	cfg := DefaultSites()[0]
	cfg.HomeURL = "https://ds.test/"
	cfg.FeedURL = "https://ds.test/googlenews.xml"
	return cfg
}

func TestCollectHeadlinesFallsBackOneDay(t *testing.T) {
	g := newFakeGetter(map[string]string{"https://ds.test/googlenews.xml": dailyStarFeed})
	a, _ := newTestAdapter(dailyStarConfig(), g)

	got, err := a.CollectHeadlines(context.Background(), "2025-09-19")
	if err != nil {
		t.Fatalf("CollectHeadlines error: %v", err)
	}
	// 19 号没有条目，回溯到 18 号，且不混入 17 号
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	// 第二个路径段作为栏目，news 段顺延
	if got[0].Title != "Polls roadmap" || got[0].Category != "bangladesh" {
		t.Fatalf("headline[0] = %+v", got[0])
	}
	if got[1].Category != "cricket" {
		t.Fatalf("headline[1].Category = %q, want cricket", got[1].Category)
	}
	if g.calls["https://ds.test/googlenews.xml"] != 1 {
		t.Fatalf("feed fetched %d times, want 1", g.calls["https://ds.test/googlenews.xml"])
	}
	if len(g.warmed) != 1 || g.warmed[0] != "https://ds.test/" {
		t.Fatalf("warmed = %v", g.warmed)
	}
}

func TestCollectHeadlinesNoEntriesInWindow(t *testing.T) {
	g := newFakeGetter(map[string]string{"https://ds.test/googlenews.xml": dailyStarFeed})
	a, _ := newTestAdapter(dailyStarConfig(), g)

	got, err := a.CollectHeadlines(context.Background(), "2025-10-30")
	if err != nil {
		t.Fatalf("CollectHeadlines error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestCollectHeadlinesFeedUnavailable(t *testing.T) {
	g := newFakeGetter(nil)
	a, _ := newTestAdapter(dailyStarConfig(), g)

	if _, err := a.CollectHeadlines(context.Background(), "2025-09-19"); err == nil {
		t.Fatalf("want error when every feed fetch fails")
	}
}

func prothomConfig() SiteConfig {
	cfg := DefaultSites()[3]
	cfg.FeedURL = "https://pa.test/sitemap/sitemap-daily-{date}.xml"
	cfg.Sections = []string{"bangladesh", "sports"}
	cfg.PerSection = 1
	return cfg
}

func articlePage(title, body string) string {
	return `<html><head><title>` + title + ` | Site</title><meta property="og:title" content="` + title + `"></head>
<body><h1>` + title + `</h1><p>` + body + `</p></body></html>`
}

func TestCollectHeadlinesDailySitemapWithSections(t *testing.T) {
	sitemap := `<urlset>
<url><loc>https://pa.test/bangladesh/a1</loc></url>
<url><loc>https://pa.test/opinion/a2</loc></url>
<url><loc>https://pa.test/bangladesh/a3</loc></url>
<url><loc>https://pa.test/sports/a4</loc></url>
</urlset>`
	g := newFakeGetter(map[string]string{
		// 19 号的 sitemap 不可用，回溯到 18 号
		"https://pa.test/sitemap/sitemap-daily-2025-09-18.xml": sitemap,
		"https://pa.test/bangladesh/a1":                       articlePage("Dhaka traffic", "x"),
		"https://pa.test/sports/a4":                           articlePage("Cup final", "y"),
	})
	a, slept := newTestAdapter(prothomConfig(), g)

	got, err := a.CollectHeadlines(context.Background(), "2025-09-19")
	if err != nil {
		t.Fatalf("CollectHeadlines error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Title != "Dhaka traffic" || got[0].Category != "bangladesh" {
		t.Fatalf("headline[0] = %+v", got[0])
	}
	if got[1].Title != "Cup final" || got[1].Category != "sports" {
		t.Fatalf("headline[1] = %+v", got[1])
	}
	if g.calls["https://pa.test/bangladesh/a3"] != 0 {
		t.Fatalf("per-section cap not applied")
	}
	if len(*slept) != 1 || (*slept)[0] != 500*time.Millisecond {
		t.Fatalf("lookup delays = %v, want [500ms]", *slept)
	}
}

func TestCollectHeadlinesSectionFallbackUnfiltered(t *testing.T) {
	sitemap := `<urlset>
<url><loc>https://pa.test/%E0%A6%AC%E0%A6%BE%E0%A6%82%E0%A6%B2%E0%A6%BE%E0%A6%A6%E0%A7%87%E0%A6%B6/b1</loc></url>
<url><loc>https://pa.test/opinion/b2</loc></url>
<url><loc>https://pa.test/opinion/b3</loc></url>
</urlset>`
	g := newFakeGetter(map[string]string{
		"https://pa.test/sitemap/sitemap-daily-2025-09-19.xml": sitemap,
		"https://pa.test/opinion/b2":                          articlePage("View one", "x"),
	})
	cfg := prothomConfig()
	a, _ := newTestAdapter(cfg, g)

	got, err := a.CollectHeadlines(context.Background(), "2025-09-19")
	if err != nil {
		t.Fatalf("CollectHeadlines error: %v", err)
	}
	// 上限 = 每栏目 1 条 * 2 个栏目；第一条页面抓取失败被跳过
	if len(got) != 1 || got[0].Title != "View one" || got[0].Category != "opinion" {
		t.Fatalf("got %+v", got)
	}
	if g.calls["https://pa.test/opinion/b3"] != 0 {
		t.Fatalf("unfiltered cap not applied")
	}
}

func TestCollectHeadlinesDetailMeta(t *testing.T) {
	sitemap := `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9" xmlns:news="http://www.google.com/schemas/sitemap-news/0.9">
<url><loc>https://dt.test/bangladesh/politics/100</loc>
<news:news><news:publication_date>2025-09-19T02:00:00Z</news:publication_date><news:title>Feed title</news:title></news:news></url>
<url><loc>https://dt.test/api/internal</loc>
<news:news><news:publication_date>2025-09-19T03:00:00Z</news:publication_date><news:title>Blocked</news:title></news:news></url>
</urlset>`
	page := `<html><body><h1 class="title">Page title</h1><span class="name">Staff Correspondent</span>
<span class="published_time" content="2025-09-19T02:00:00Z"></span><div itemprop="articleBody"><p>Body.</p></div></body></html>`
	cfg := DefaultSites()[1]
	cfg.FeedURL = "https://dt.test/news-sitemap.xml"
	g := newFakeGetter(map[string]string{
		"https://dt.test/news-sitemap.xml":         sitemap,
		"https://dt.test/bangladesh/politics/100": page,
	})
	a, _ := newTestAdapter(cfg, g)

	got, err := a.CollectHeadlines(context.Background(), "2025-09-19")
	if err != nil {
		t.Fatalf("CollectHeadlines error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (disallowed path dropped): %+v", len(got), got)
	}
	h := got[0]
	if h.Title != "Feed title" {
		t.Fatalf("Title = %q, feed title should win", h.Title)
	}
	if h.Author != "Staff Correspondent" {
		t.Fatalf("Author = %q", h.Author)
	}
	if h.PublishedAt != "2025-09-19T08:00:00+06:00" {
		t.Fatalf("PublishedAt = %q, want Dhaka local time", h.PublishedAt)
	}
	if h.Category != "bangladesh" {
		t.Fatalf("Category = %q", h.Category)
	}
}

func TestScrapeFullDelayAndIsolation(t *testing.T) {
	long := strings.Repeat("Parliament passed the bill after a long debate. ", 6)
	cfg := dailyStarConfig()
	feedXML := strings.ReplaceAll(dailyStarFeed, "2025-09-17", "2025-09-18")
	feedXML = strings.ReplaceAll(feedXML, "https://www.thedailystar.net", "https://ds.test")
	g := newFakeGetter(map[string]string{
		cfg.FeedURL: feedXML,
		"https://ds.test/news/bangladesh/politics/news-1": `<html><head><script type="application/ld+json">{"@type":"NewsArticle","articleBody":"LD body","author":{"name":"Reporter"}}</script></head><body></body></html>`,
		// 第二篇没有任何正文
		"https://ds.test/sports/cricket/news-2":   `<html><body><div>nav only</div></body></html>`,
		"https://ds.test/business/economy/news-3": `<html><body><div class="story-body">` + long + `</div></body></html>`,
	})
	a, slept := newTestAdapter(cfg, g)

	got, err := a.ScrapeFull(context.Background(), "2025-09-18", 10, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("ScrapeFull error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Body != "LD body" || got[0].Author != "Reporter" || got[0].Title != "Polls roadmap" {
		t.Fatalf("article[0] = %+v", got[0])
	}
	if got[0].PublishedAt != "2025-09-18T20:00:00+06:00" {
		t.Fatalf("PublishedAt = %q, want feed date", got[0].PublishedAt)
	}
	if got[1].Author != Unknown || got[1].Category != "economy" {
		t.Fatalf("article[1] = %+v", got[1])
	}
	if got[1].Site != "The Daily Star" {
		t.Fatalf("Site = %q", got[1].Site)
	}
	// 三篇文章之间两次间隔，失败的文章同样计入
	if len(*slept) != 2 {
		t.Fatalf("delays = %v, want 2", *slept)
	}
	for _, d := range *slept {
		if d != 1500*time.Millisecond {
			t.Fatalf("delay = %s, want 1.5s", d)
		}
	}
}

func TestScrapeFullRespectsMaxArticles(t *testing.T) {
	g := newFakeGetter(map[string]string{"https://ds.test/googlenews.xml": dailyStarFeed})
	a, _ := newTestAdapter(dailyStarConfig(), g)

	if _, err := a.ScrapeFull(context.Background(), "2025-09-18", 1, 0); err != nil {
		t.Fatalf("ScrapeFull error: %v", err)
	}
	if g.calls["https://www.thedailystar.net/sports/cricket/news-2"] != 0 {
		t.Fatalf("fetched beyond maxArticles")
	}
	if g.calls["https://www.thedailystar.net/news/bangladesh/politics/news-1"] != 1 {
		t.Fatalf("first article not fetched")
	}
}
