// Package category 根据 URL 路径推断新闻栏目。
package category

import (
	"net/url"
	"strings"
)

// Unknown 无法推断时的占位值
const Unknown = "unknown"

// Infer 取路径中第 offset 个非空段作为栏目；该段恰为小写 "news" 时顺延一段。
// 段数不足返回 Unknown。
func Infer(rawURL string, offset int) string {
	segs := segments(rawURL)
	if offset < 0 || offset >= len(segs) {
		return Unknown
	}
	seg := segs[offset]
	if seg == "news" {
		if offset+1 >= len(segs) {
			return Unknown
		}
		seg = segs[offset+1]
	}
	return seg
}

func segments(rawURL string) []string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil
	}
	var out []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
