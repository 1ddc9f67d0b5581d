package collector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/HeadlineHub/internal/category"
	"github.com/LJTian/HeadlineHub/internal/extract"
	"github.com/LJTian/HeadlineHub/internal/feed"
	"github.com/LJTian/HeadlineHub/internal/fetcher"
	"github.com/sirupsen/logrus"
)

// Adapter 由 SiteConfig 驱动的通用站点实现
type Adapter struct {
	cfg    SiteConfig
	getter PageGetter
	log    *logrus.Entry
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ SiteAdapter = (*Adapter)(nil)

func NewAdapter(cfg SiteConfig, getter PageGetter, log *logrus.Logger) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{
		cfg:    cfg,
		getter: getter,
		log:    log.WithField("source", cfg.Key),
		sleep:  fetcher.Sleep,
	}
}

// SetSleep 替换礼貌间隔的等待函数
func (a *Adapter) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	a.sleep = fn
}

func (a *Adapter) Name() string { return a.cfg.Key }

// Config 返回站点配置副本
func (a *Adapter) Config() SiteConfig { return a.cfg }

// located 回溯后选中的条目
type located struct {
	day     string
	entries []feed.Entry
	// sections[i] 为 entries[i] 命中的栏目，未按栏目筛选时为空串
	sections []string
}

// CollectHeadlines 取 date（或回溯窗口内最近一天）的标题列表。
// 每一天的索引都抓取失败时返回 error；索引正常但没有条目时返回空列表。
func (a *Adapter) CollectHeadlines(ctx context.Context, date string) ([]Headline, error) {
	if a.cfg.WarmUp {
		a.getter.WarmUp(ctx, a.cfg.HomeURL)
	}

	loc, err := a.locate(ctx, date)
	if err != nil {
		return nil, err
	}
	entries, sections := capEntries(loc.entries, loc.sections, a.cfg.MaxHeadlines)

	out := make([]Headline, 0, len(entries))
	looked := 0
	for i, e := range entries {
		h := Headline{
			URL:      e.URL,
			Title:    e.Title,
			Category: a.categoryOf(e.URL, sections[i]),
		}
		if a.cfg.HeadlineMeta {
			h.PublishedAt = e.RawPublished
		}

		if a.cfg.DetailLookup || h.Title == "" {
			if looked > 0 {
				if err := a.sleep(ctx, a.cfg.LookupDelay); err != nil {
					return out, err
				}
			}
			looked++
			a.lookup(ctx, &h)
		}
		if h.Title == "" {
			a.log.Debugf("skip %s: no title", e.URL)
			continue
		}
		if a.cfg.HeadlineMeta {
			h.Author = orUnknown(h.Author)
			h.PublishedAt = orUnknown(h.PublishedAt)
		}
		out = append(out, h)
	}

	a.log.Infof("collected %d headlines for %s (feed day %s)", len(out), date, loc.day)
	return out, nil
}

// lookup 抓取文章页补全标题与元信息，失败时保留已有字段
func (a *Adapter) lookup(ctx context.Context, h *Headline) {
	page, err := a.getter.Fetch(ctx, h.URL)
	if err != nil {
		a.log.Warnf("title lookup %s error: %v", h.URL, err)
		return
	}
	doc, err := extract.Parse(page)
	if err != nil {
		a.log.Warnf("parse %s error: %v", h.URL, err)
		return
	}
	if h.Title == "" {
		h.Title = a.pageTitle(doc)
	}
	if a.cfg.HeadlineMeta {
		if author := a.pageAuthor(doc); author != "" {
			h.Author = author
		}
		if pub := a.pagePublished(doc); pub != "" {
			h.PublishedAt = pub
		}
	}
}

// ScrapeFull 抓取最多 maxArticles 篇全文，相邻两次文章请求之间等待 delay。
// 单篇失败或正文为空只跳过该篇。
func (a *Adapter) ScrapeFull(ctx context.Context, date string, maxArticles int, delay time.Duration) ([]Article, error) {
	if a.cfg.WarmUp {
		a.getter.WarmUp(ctx, a.cfg.HomeURL)
	}

	loc, err := a.locate(ctx, date)
	if err != nil {
		return nil, err
	}
	entries, sections := capEntries(loc.entries, loc.sections, maxArticles)

	var out []Article
	for i, e := range entries {
		if i > 0 {
			if err := a.sleep(ctx, delay); err != nil {
				return out, err
			}
		}
		art, err := a.scrapeOne(ctx, e, sections[i])
		if err != nil {
			a.log.Warnf("scrape %s error: %v", e.URL, err)
			continue
		}
		out = append(out, art)
	}

	a.log.Infof("scraped %d/%d articles for %s", len(out), len(entries), date)
	return out, nil
}

func (a *Adapter) scrapeOne(ctx context.Context, e feed.Entry, section string) (Article, error) {
	page, err := a.getter.Fetch(ctx, e.URL)
	if err != nil {
		return Article{}, err
	}
	doc, err := extract.Parse(page)
	if err != nil {
		return Article{}, err
	}
	body, tier := doc.Body()
	if body == "" {
		return Article{}, extract.ErrNoBody
	}
	a.log.Debugf("%s body from %s", e.URL, tier)

	art := Article{
		URL:         e.URL,
		Site:        a.cfg.Name,
		Title:       e.Title,
		Author:      a.pageAuthor(doc),
		PublishedAt: a.pagePublished(doc),
		Body:        body,
		Category:    a.categoryOf(e.URL, section),
	}
	if art.Title == "" {
		art.Title = a.pageTitle(doc)
	}
	if art.PublishedAt == "" {
		art.PublishedAt = e.RawPublished
	}
	art.Author = orUnknown(art.Author)
	art.PublishedAt = orUnknown(art.PublishedAt)
	return art, nil
}

// locate 从 date 开始逐天回溯，返回第一天有条目的结果，不跨天合并。
// 同一个索引地址在一次回溯里只抓一次。
func (a *Adapter) locate(ctx context.Context, date string) (located, error) {
	type fetched struct {
		entries []feed.Entry
		err     error
	}
	memo := make(map[string]fetched)

	var lastErr error
	failed, tried := 0, 0
	for delta := 0; delta <= a.cfg.FallbackDays; delta++ {
		day, err := feed.DaysBack(date, delta)
		if err != nil {
			return located{}, fmt.Errorf("invalid date %q: %w", date, err)
		}
		feedURL := feed.ExpandURL(a.cfg.FeedURL, day)

		f, ok := memo[feedURL]
		if !ok {
			f.entries, f.err = a.readFeed(ctx, feedURL)
			memo[feedURL] = f
		}
		tried++
		if f.err != nil {
			if errors.Is(f.err, context.Canceled) || errors.Is(f.err, context.DeadlineExceeded) {
				return located{}, f.err
			}
			failed++
			lastErr = f.err
			continue
		}

		if loc, ok := a.selectDay(day, feedURL, f.entries); ok {
			return loc, nil
		}
	}

	if tried > 0 && failed == tried {
		return located{}, fmt.Errorf("%s feed unavailable: %w", a.cfg.Key, lastErr)
	}
	a.log.Infof("no entries for %s within %d days", date, a.cfg.FallbackDays)
	return located{}, nil
}

// selectDay 对某一天的索引做日期 / 路径 / 栏目筛选
func (a *Adapter) selectDay(day, feedURL string, entries []feed.Entry) (located, bool) {
	var kept []feed.Entry
	switch {
	case a.cfg.Format == FormatSitemap && feed.IsDayStamped(a.cfg.FeedURL):
		// 按天分文件的 sitemap 本身就代表当天
		for _, e := range entries {
			e.RawPublished = day
			kept = append(kept, e)
		}
	case a.cfg.Format == FormatSitemap:
		kept = entries
	default:
		kept = feed.FilterByDate(entries, day)
	}
	kept = a.allowed(kept)
	if len(kept) == 0 {
		return located{}, false
	}

	loc := located{day: day, entries: kept, sections: make([]string, len(kept))}
	if len(a.cfg.Sections) == 0 {
		return loc, true
	}

	bySection := feed.FilterSections(kept, a.cfg.Sections, a.cfg.PerSection)
	if len(bySection) > 0 {
		loc.entries = bySection
		loc.sections = make([]string, len(bySection))
		for i, e := range bySection {
			loc.sections[i] = feed.SectionOf(e.URL, a.cfg.Sections)
		}
		return loc, true
	}

	// 栏目 slug 一个都没命中（例如孟加拉语路径），退回不筛选并限制总数
	limit := a.cfg.PerSection * len(a.cfg.Sections)
	if limit < 1 {
		limit = 1
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	a.log.Debugf("%s: no section matched, use %d unfiltered entries", feedURL, len(kept))
	loc.entries = kept
	loc.sections = make([]string, len(kept))
	return loc, true
}

func (a *Adapter) readFeed(ctx context.Context, feedURL string) ([]feed.Entry, error) {
	content, err := a.getter.Fetch(ctx, feedURL)
	if err != nil {
		a.log.Warnf("fetch feed %s error: %v", feedURL, err)
		return nil, err
	}

	switch a.cfg.Format {
	case FormatNewsFeed:
		return feed.ParseNewsFeed(content), nil
	case FormatSitemap:
		return feed.ParseSitemap(content), nil
	case FormatNewsSitemap:
		entries, err := feed.ParseNewsSitemap(content)
		if err != nil {
			// 结构错误按空索引处理，不算抓取失败
			a.log.Warnf("%s: %v", feedURL, err)
			return nil, nil
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("unsupported feed format %s", a.cfg.Format)
	}
}

func (a *Adapter) allowed(entries []feed.Entry) []feed.Entry {
	if len(a.cfg.DisallowPaths) == 0 {
		return entries
	}
	var out []feed.Entry
	for _, e := range entries {
		u, err := url.Parse(e.URL)
		if err != nil {
			continue
		}
		blocked := false
		for _, p := range a.cfg.DisallowPaths {
			if strings.HasPrefix(u.Path, p) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, e)
		}
	}
	return out
}

func (a *Adapter) categoryOf(rawURL, section string) string {
	if section != "" {
		return section
	}
	return category.Infer(rawURL, a.cfg.CategoryOffset)
}

func (a *Adapter) pageTitle(doc *extract.Document) string {
	if t := doc.First(a.cfg.TitleRules); t != "" {
		return t
	}
	return doc.Title()
}

func (a *Adapter) pageAuthor(doc *extract.Document) string {
	if v := doc.First(a.cfg.AuthorRules); v != "" {
		return v
	}
	return doc.JSONLDAuthor()
}

func (a *Adapter) pagePublished(doc *extract.Document) string {
	v := doc.First(a.cfg.DateRules)
	if v == "" {
		v = doc.JSONLDPublished()
	}
	return localize(v, a.cfg.Location)
}

// localize 把 RFC3339 时间换算到站点时区，无法解析时原样返回
func localize(v string, loc *time.Location) string {
	if v == "" || loc == nil {
		return v
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return v
	}
	return t.In(loc).Format(time.RFC3339)
}

func capEntries(entries []feed.Entry, sections []string, limit int) ([]feed.Entry, []string) {
	if limit > 0 && len(entries) > limit {
		return entries[:limit], sections[:limit]
	}
	return entries, sections
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}
