package collector

import (
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/HeadlineHub/internal/config"
	"github.com/LJTian/HeadlineHub/internal/extract"
)

// FeedFormat 站点索引的格式
type FeedFormat int

const (
	// FormatNewsFeed 扁平新闻 feed，正则宽松解析
	FormatNewsFeed FeedFormat = iota
	// FormatSitemap 只有 URL 的普通 sitemap，通常按天分文件
	FormatSitemap
	// FormatNewsSitemap 带 news 命名空间的 sitemap
	FormatNewsSitemap
)

func (f FeedFormat) String() string {
	switch f {
	case FormatNewsFeed:
		return "news-feed"
	case FormatSitemap:
		return "sitemap"
	case FormatNewsSitemap:
		return "news-sitemap"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// SiteConfig 描述一个站点的全部差异，抓取流程本身对所有站点一致
type SiteConfig struct {
	// Key 用于文件名与命令行参数，例如 dailystar
	Key string
	// Name 展示名，标题文件首行使用其大写形式
	Name    string
	HomeURL string
	// FeedURL 可包含 {date} 占位符
	FeedURL string
	Format  FeedFormat
	WarmUp  bool

	CategoryOffset int
	Sections       []string
	PerSection     int
	MaxHeadlines   int
	FallbackDays   int

	// DetailLookup 为每条标题再抓一次文章页，补全标题 / 作者 / 发布时间
	DetailLookup bool
	LookupDelay  time.Duration
	// HeadlineMeta 标题文件中输出作者与发布时间
	HeadlineMeta bool

	TitleRules  []extract.Rule
	AuthorRules []extract.Rule
	DateRules   []extract.Rule
	// Location 非空时把页面上的 ISO 时间换算到该时区
	Location *time.Location

	DisallowPaths []string
	Enabled       bool
}

// FileKey 标题文件名前缀
func (c SiteConfig) FileKey() string {
	return c.Key
}

var dhaka = loadLocation("Asia/Dhaka", 6)

func loadLocation(name string, offsetHours int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, offsetHours*3600)
	}
	return loc
}

// DefaultSites 内置的四个站点，顺序即标题文件生成与展示顺序
func DefaultSites() []SiteConfig {
	return []SiteConfig{
		{
			Key:            "dailystar",
			Name:           "The Daily Star",
			HomeURL:        "https://www.thedailystar.net/",
			FeedURL:        "https://www.thedailystar.net/googlenews.xml",
			Format:         FormatNewsFeed,
			WarmUp:         true,
			CategoryOffset: 1,
			MaxHeadlines:   20,
			FallbackDays:   3,
			TitleRules:     []extract.Rule{{CSS: "h1"}},
			Enabled:        true,
		},
		{
			Key:            "dhaka_tribune",
			Name:           "Dhaka Tribune",
			HomeURL:        "https://www.dhakatribune.com/",
			FeedURL:        "https://www.dhakatribune.com/news-sitemap.xml",
			Format:         FormatNewsSitemap,
			CategoryOffset: 0,
			MaxHeadlines:   10,
			FallbackDays:   3,
			DetailLookup:   true,
			LookupDelay:    500 * time.Millisecond,
			HeadlineMeta:   true,
			TitleRules:     []extract.Rule{{CSS: "h1.title"}},
			AuthorRules:    []extract.Rule{{CSS: "span.name"}},
			DateRules:      []extract.Rule{{CSS: "span.published_time", Attr: "content"}},
			Location:       dhaka,
			DisallowPaths:  []string{"/cgi-bin/", "/cdn-cgi/", "/register/", "/login", "/api/"},
			Enabled:        true,
		},
		{
			Key:            "jugantor",
			Name:           "Jugantor",
			HomeURL:        "https://www.jugantor.com/",
			FeedURL:        "https://www.jugantor.com/news_sitemap.xml",
			Format:         FormatNewsSitemap,
			CategoryOffset: 0,
			MaxHeadlines:   20,
			FallbackDays:   3,
			TitleRules: []extract.Rule{
				{CSS: "h1.news-title"}, {CSS: "h1.headline"}, {CSS: "h1.title"},
				{CSS: ".article-title h1"}, {CSS: ".post-title h1"}, {CSS: "h1"}, {CSS: ".entry-title"},
			},
			Enabled: true,
		},
		{
			Key:            "prothomalo",
			Name:           "Prothom Alo",
			HomeURL:        "https://www.prothomalo.com/",
			FeedURL:        "https://www.prothomalo.com/sitemap/sitemap-daily-{date}.xml",
			Format:         FormatSitemap,
			CategoryOffset: 0,
			Sections:       []string{"bangladesh", "sports", "politics", "business", "entertainment", "lifestyle", "world"},
			PerSection:     2,
			FallbackDays:   3,
			DetailLookup:   true,
			LookupDelay:    500 * time.Millisecond,
			Enabled:        true,
		},
	}
}

// ApplyOverrides 用 YAML 中的站点项覆盖配置，未知站点名返回 ErrUnknownSource
func ApplyOverrides(sites []SiteConfig, sf *config.SourcesFile) ([]SiteConfig, error) {
	out := make([]SiteConfig, len(sites))
	copy(out, sites)
	if sf == nil {
		return out, nil
	}
	for _, o := range sf.Sources {
		idx := -1
		for i := range out {
			if strings.EqualFold(out[i].Key, o.Name) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", config.ErrUnknownSource, o.Name)
		}
		s := &out[idx]
		if o.Enabled != nil {
			s.Enabled = *o.Enabled
		}
		if o.FeedURL != "" {
			s.FeedURL = o.FeedURL
		}
		if o.MaxHeadlines > 0 {
			s.MaxHeadlines = o.MaxHeadlines
		}
		if o.FallbackDays != nil {
			s.FallbackDays = *o.FallbackDays
		}
		if len(o.Sections) > 0 {
			s.Sections = append([]string(nil), o.Sections...)
		}
	}
	return out, nil
}

// WithFallbackDays 覆盖所有站点的回溯天数
func WithFallbackDays(sites []SiteConfig, days int) []SiteConfig {
	out := make([]SiteConfig, len(sites))
	copy(out, sites)
	for i := range out {
		out[i].FallbackDays = days
	}
	return out
}

// Select 按 key 选出站点，keys 为空时返回全部已启用站点
func Select(sites []SiteConfig, keys []string) ([]SiteConfig, error) {
	if len(keys) == 0 {
		var out []SiteConfig
		for _, s := range sites {
			if s.Enabled {
				out = append(out, s)
			}
		}
		return out, nil
	}
	var out []SiteConfig
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		found := false
		for _, s := range sites {
			if strings.EqualFold(s.Key, k) {
				out = append(out, s)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", config.ErrUnknownSource, k)
		}
	}
	return out, nil
}
