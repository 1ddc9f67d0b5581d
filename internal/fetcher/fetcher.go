// Package fetcher 提供带重试退避、浏览器请求头与会话 cookie 的 HTTP 抓取客户端。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

var (
	// ErrUnexpectedStatusCode 非 2xx 响应
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrExhausted 所有尝试均失败，具体原因包在错误链中
	ErrExhausted = errors.New("retries exhausted")
	// ErrDisallowed robots.txt 不允许抓取
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	defaultLanguage  = "en-US,en;q=0.9,bn;q=0.8"
	defaultReferer   = "https://www.google.com/"
	robotsAgent      = "HeadlineHub"
)

// Options 客户端配置；零值字段使用默认值
type Options struct {
	Timeout time.Duration
	// MaxRetries 为最多尝试次数（含第一次）
	MaxRetries    int
	BackoffBase   time.Duration
	MaxBodyKB     int
	UserAgent     string
	Referer       string
	RespectRobots bool
	Logger        *logrus.Logger
}

// Client 每个站点持有一个实例，cookie 在该实例内共享
type Client struct {
	http *http.Client
	opts Options
	log  *logrus.Logger

	// sleep 可在测试中替换，避免真实等待
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.MaxBodyKB <= 0 {
		opts.MaxBodyKB = 4096
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Referer == "" {
		opts.Referer = defaultReferer
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	jar, _ := cookiejar.New(nil)
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		},
		opts:   opts,
		log:    log,
		sleep:  sleepCtx,
		robots: make(map[string]*robotstxt.RobotsData),
	}
}

// SetSleep 替换退避等待函数
func (c *Client) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	c.sleep = fn
}

// Backoff 第 attempt 次（从 0 开始）失败后的等待时长：base * 2^attempt
func (c *Client) Backoff(attempt int) time.Duration {
	return c.opts.BackoffBase * time.Duration(1<<uint(attempt))
}

// Fetch 抓取页面文本，失败时按指数退避重试
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	if c.opts.RespectRobots && !c.allowed(ctx, rawURL) {
		return "", fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
	}

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		body, err := c.get(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		c.log.WithFields(logrus.Fields{
			"url":     rawURL,
			"attempt": attempt + 1,
			"max":     c.opts.MaxRetries,
		}).Warnf("fetch failed: %v", err)

		if attempt < c.opts.MaxRetries-1 {
			if err := c.sleep(ctx, c.Backoff(attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%w: %s: %w", ErrExhausted, rawURL, lastErr)
}

// WarmUp 预先访问首页拿 cookie，失败只记日志
func (c *Client) WarmUp(ctx context.Context, homeURL string) {
	if homeURL == "" {
		return
	}
	if _, err := c.get(ctx, homeURL); err != nil {
		c.log.Debugf("warm-up %s ignored: %v", homeURL, err)
	}
}

func (c *Client) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 读掉剩余内容以便连接复用
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	limit := int64(c.opts.MaxBodyKB) * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", defaultAccept)
	req.Header.Set("Accept-Language", defaultLanguage)
	req.Header.Set("Referer", c.opts.Referer)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// allowed 按 host 缓存 robots.txt；拿不到 robots.txt 时放行
func (c *Client) allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	c.mu.Lock()
	data, ok := c.robots[u.Host]
	c.mu.Unlock()

	if !ok {
		robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
		body, err := c.get(ctx, robotsURL)
		if err != nil {
			c.log.Debugf("robots.txt %s unavailable: %v", robotsURL, err)
		} else if parsed, perr := robotstxt.FromString(body); perr == nil {
			data = parsed
		}
		c.mu.Lock()
		c.robots[u.Host] = data
		c.mu.Unlock()
	}

	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, robotsAgent)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sleep 供调用方做礼貌间隔，支持 ctx 取消
func Sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}
