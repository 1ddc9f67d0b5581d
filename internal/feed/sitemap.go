package feed

import (
	"net/url"
	"strings"
)

// ParseSitemap 轻量解析只有 URL 的 sitemap：按 <loc> 切分，不做 XML 校验
func ParseSitemap(content string) []Entry {
	parts := strings.Split(content, "<loc>")
	out := make([]Entry, 0, len(parts))
	for _, p := range parts[1:] {
		end := strings.Index(p, "</loc>")
		if end < 0 {
			continue
		}
		loc := cleanText(p[:end])
		if loc == "" {
			continue
		}
		out = append(out, Entry{URL: loc})
	}
	return out
}

// FilterSections 保留路径中含有某个栏目 slug 的 URL，每个栏目最多 perSection 条。
// 结果保持文档顺序；perSection <= 0 表示不限。
func FilterSections(entries []Entry, sections []string, perSection int) []Entry {
	if len(sections) == 0 {
		return entries
	}
	counts := make(map[string]int, len(sections))
	var out []Entry
	for _, e := range entries {
		sec := SectionOf(e.URL, sections)
		if sec == "" {
			continue
		}
		if perSection > 0 && counts[sec] >= perSection {
			continue
		}
		counts[sec]++
		out = append(out, e)
	}
	return out
}

// SectionOf 返回 URL 命中的第一个栏目 slug，未命中返回空串
func SectionOf(rawURL string, sections []string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for _, sec := range sections {
		for _, s := range segs {
			if strings.EqualFold(s, sec) {
				return sec
			}
		}
	}
	return ""
}
