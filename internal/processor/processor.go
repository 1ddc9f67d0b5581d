package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/LJTian/HeadlineHub/internal/collector"
)

// ProcessedArticle 是写入归档库前的统一结构
type ProcessedArticle struct {
	ID          string
	URL         string
	Source      string
	Site        string
	Title       string
	Category    string
	Author      string
	PublishedAt string
	Body        string
	// ScrapeDate 请求的日期 YYYY-MM-DD
	ScrapeDate string
	RawData    map[string]any
}

// SimpleProcessor 做最基础的数据清洗与 ID 生成
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

// Headlines 清洗标题与栏目，丢弃没有 URL 或标题的条目；不做去重
func (p *SimpleProcessor) Headlines(items []collector.Headline) []collector.Headline {
	out := make([]collector.Headline, 0, len(items))
	for _, it := range items {
		it.URL = strings.TrimSpace(it.URL)
		it.Title = cleanLine(it.Title)
		if it.URL == "" || it.Title == "" {
			continue
		}
		it.Category = cleanLine(it.Category)
		if it.Category == "" {
			it.Category = collector.Unknown
		}
		it.Author = cleanLine(it.Author)
		it.PublishedAt = cleanLine(it.PublishedAt)
		out = append(out, it)
	}
	return out
}

// Articles 生成归档 ID，同一批内按 URL 只保留第一条
func (p *SimpleProcessor) Articles(source, date string, items []collector.Article) []ProcessedArticle {
	out := make([]ProcessedArticle, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		body := strings.TrimSpace(toValidUTF8(it.Body))
		if body == "" {
			continue
		}
		id := hashURL(it.URL)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		category := cleanLine(it.Category)
		if category == "" {
			category = collector.Unknown
		}
		out = append(out, ProcessedArticle{
			ID:          id,
			URL:         strings.TrimSpace(it.URL),
			Source:      source,
			Site:        it.Site,
			Title:       cleanLine(it.Title),
			Category:    category,
			Author:      cleanLine(it.Author),
			PublishedAt: cleanLine(it.PublishedAt),
			Body:        body,
			ScrapeDate:  date,
			RawData: map[string]any{
				"bodyRunes": len([]rune(body)),
			},
		})
	}

	return out
}

var spaceRe = regexp.MustCompile(`\s+`)

// cleanLine 标题类字段压成一行，避免破坏标题文件的行格式
func cleanLine(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(toValidUTF8(s), " "))
}

func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
