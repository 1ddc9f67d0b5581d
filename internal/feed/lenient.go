package feed

import (
	"html"
	"regexp"
	"strings"
)

var (
	urlBlockRe = regexp.MustCompile(`(?is)<url(?:\s[^>]*)?>(.*?)</url>`)
	locRe      = regexp.MustCompile(`(?is)<loc>(.*?)</loc>`)
	titleRe    = regexp.MustCompile(`(?is)<news:title>(.*?)</news:title>`)
	pubDateRe  = regexp.MustCompile(`(?is)<news:publication_date>(.*?)</news:publication_date>`)
	cdataRe    = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
)

// ParseNewsFeed 用正则宽松地解析扁平新闻 feed，不依赖文档整体合法。
// 缺少 loc / title / publication_date 任一字段的块直接跳过。
func ParseNewsFeed(content string) []Entry {
	blocks := urlBlockRe.FindAllStringSubmatch(content, -1)
	out := make([]Entry, 0, len(blocks))
	for _, b := range blocks {
		loc := firstGroup(locRe, b[1])
		title := firstGroup(titleRe, b[1])
		pub := firstGroup(pubDateRe, b[1])
		if loc == "" || title == "" || pub == "" {
			continue
		}
		out = append(out, Entry{URL: loc, Title: title, RawPublished: pub})
	}
	return out
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return cleanText(m[1])
}

// cleanText 去掉 CDATA 包裹并反转义实体
func cleanText(s string) string {
	s = cdataRe.ReplaceAllString(s, "$1")
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}
