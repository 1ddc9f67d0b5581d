// Package explainer 对任意文章 URL 做简化抓取：只取 <title> 与 <p> 段落，
// 结果以字符串返回，失败时以 "Error:" 开头。
package explainer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/HeadlineHub/internal/extract"
	"github.com/LJTian/HeadlineHub/internal/fetcher"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// ErrorPrefix 调用方只通过这个前缀判断失败
const ErrorPrefix = "Error:"

type Mode string

const (
	ModeText     Mode = "text"
	ModeRaw      Mode = "raw"
	ModeMarkdown Mode = "markdown"
)

// ParseMode 空串视为 text，不认识的取值返回 false
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return ModeText, true
	case "raw", "json":
		return ModeRaw, true
	case "markdown", "md":
		return ModeMarkdown, true
	}
	return "", false
}

// IsError 结果是否为错误字符串
func IsError(out string) bool {
	return strings.HasPrefix(out, ErrorPrefix)
}

// Article raw 模式输出的结构；author / published 这里不做提取，固定为 null
type Article struct {
	URL       string  `json:"url"`
	Site      string  `json:"site"`
	Title     string  `json:"title"`
	Author    *string `json:"author"`
	Published *string `json:"published"`
	Body      string  `json:"body"`
}

type Options struct {
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	UserAgent   string
	MaxBodyKB   int
	Logger      *logrus.Logger
}

// Extractor 基于 colly 的单 URL 抓取器
type Extractor struct {
	opts  Options
	log   *logrus.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

func New(opts Options) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = fetcher.DefaultUserAgent
	}
	if opts.MaxBodyKB <= 0 {
		opts.MaxBodyKB = 4096
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Extractor{opts: opts, log: log, sleep: fetcher.Sleep}
}

// SetSleep 替换退避等待函数
func (e *Extractor) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	e.sleep = fn
}

// Explain 抓取并按 mode 格式化；任何失败都返回 "Error: ..." 字符串
func (e *Extractor) Explain(ctx context.Context, rawURL string, mode Mode) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ErrorPrefix + " URL parameter is required"
	}

	art, err := e.Extract(ctx, rawURL)
	if err != nil {
		e.log.Warnf("explain %s error: %v", rawURL, err)
		return fmt.Sprintf("%s %v", ErrorPrefix, err)
	}

	switch mode {
	case ModeRaw:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(art); err != nil {
			return fmt.Sprintf("%s %v", ErrorPrefix, err)
		}
		return strings.TrimRight(buf.String(), "\n")
	case ModeMarkdown:
		return fmt.Sprintf("# %s\n\n%s", art.Title, art.Body)
	default:
		return FormatText(art)
	}
}

// FormatText 纯文本模式
func FormatText(a Article) string {
	return fmt.Sprintf("TITLE: %s\nURL: %s\nSITE: %s\n\nCONTENT:\n%s", a.Title, a.URL, a.Site, a.Body)
}

// Extract 抓取页面并做简化提取
func (e *Extractor) Extract(ctx context.Context, rawURL string) (Article, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Article{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Article{}, fmt.Errorf("unsupported URL %q", rawURL)
	}

	page, err := e.fetch(ctx, rawURL)
	if err != nil {
		return Article{}, err
	}
	title, body, err := parsePage(page)
	if err != nil {
		return Article{}, err
	}
	return Article{
		URL:   rawURL,
		Site:  u.Host,
		Title: title,
		Body:  body,
	}, nil
}

// fetch 每次尝试新建一个 collector，失败后按 base * 2^attempt 退避
func (e *Extractor) fetch(ctx context.Context, rawURL string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < e.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page, err := e.visit(rawURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		e.log.Debugf("explain fetch %s attempt %d/%d: %v", rawURL, attempt+1, e.opts.MaxRetries, err)

		if attempt == e.opts.MaxRetries-1 {
			break
		}
		wait := e.opts.BackoffBase * time.Duration(1<<uint(attempt))
		if err := e.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %v", fetcher.ErrExhausted, lastErr)
}

func (e *Extractor) visit(rawURL string) (string, error) {
	c := colly.NewCollector(
		colly.UserAgent(e.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(e.opts.MaxBodyKB*1024),
	)
	c.SetRequestTimeout(e.opts.Timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var page string
	var got bool
	c.OnResponse(func(r *colly.Response) {
		page = string(r.Body)
		got = true
	})

	if err := c.Visit(rawURL); err != nil {
		return "", err
	}
	if !got {
		return "", errors.New("empty response")
	}
	return unescapeIfEscaped(page), nil
}

// unescapeIfEscaped 有的站点把整页 HTML 转义后返回，开头 200 字符里没有 <html 时还原
func unescapeIfEscaped(page string) string {
	if !strings.Contains(page, "&lt;") || !strings.Contains(page, "&gt;") {
		return page
	}
	head := page
	if len(head) > 200 {
		head = head[:200]
	}
	if strings.Contains(strings.ToLower(head), "<html") {
		return page
	}
	return html.UnescapeString(page)
}

// parsePage 不做 JSON-LD 与容器启发式：标题只取 <title>，正文为所有非空 <p> 用空行拼接
func parsePage(page string) (string, string, error) {
	doc, err := extract.Parse(page)
	if err != nil {
		return "", "", err
	}
	return doc.TitleTag(), doc.Paragraphs("\n\n"), nil
}
