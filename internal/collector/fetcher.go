package collector

import (
	"context"
	"time"

	"github.com/LJTian/HeadlineHub/internal/category"
)

// Unknown 缺失信息的统一占位值
const Unknown = category.Unknown

// Headline 标题级条目，写入每日标题文件
type Headline struct {
	URL      string
	Title    string
	Category string
	// 以下两项只有部分站点提供，空字符串表示未知
	Author      string
	PublishedAt string
}

// Article 全文条目；Body 为空的文章在返回前就被丢弃
type Article struct {
	URL         string
	Site        string
	Title       string
	Author      string
	PublishedAt string
	Body        string
	Category    string
}

// SiteAdapter 抽象每一个新闻站点
type SiteAdapter interface {
	Name() string
	CollectHeadlines(ctx context.Context, date string) ([]Headline, error)
	ScrapeFull(ctx context.Context, date string, maxArticles int, delay time.Duration) ([]Article, error)
}

// PageGetter 页面抓取；*fetcher.Client 满足该接口
type PageGetter interface {
	Fetch(ctx context.Context, url string) (string, error)
	WarmUp(ctx context.Context, homeURL string)
}
