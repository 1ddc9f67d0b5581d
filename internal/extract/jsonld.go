package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// readJSONLD 读取所有 ld+json 块并展开数组与 @graph
func readJSONLD(doc *goquery.Document) []map[string]any {
	var out []map[string]any
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(typ), "application/ld+json") {
			return
		}
		v, ok := decodeJSONLD(s.Text())
		if !ok {
			return
		}
		flattenJSONLD(v, &out)
	})
	return out
}

var firstObjectRe = regexp.MustCompile(`(?s)\{.*?\}`)

// decodeJSONLD 解析失败时先取第一个 {...}（非贪婪，到第一个 } 为止），
// 仍失败再取第一个 { 到最后一个 }，兼容带嵌套对象的块
func decodeJSONLD(raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, true
	}
	if m := firstObjectRe.FindString(raw); m != "" {
		if err := json.Unmarshal([]byte(m), &v); err == nil {
			return v, true
		}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return nil, false
	}
	return v, true
}

func flattenJSONLD(v any, out *[]map[string]any) {
	switch t := v.(type) {
	case []any:
		for _, it := range t {
			flattenJSONLD(it, out)
		}
	case map[string]any:
		*out = append(*out, t)
		if g, ok := t["@graph"]; ok {
			flattenJSONLD(g, out)
		}
	}
}

func isArticle(m map[string]any) bool {
	switch t := m["@type"].(type) {
	case string:
		return t == "Article" || t == "NewsArticle"
	case []any:
		for _, it := range t {
			if s, ok := it.(string); ok && (s == "Article" || s == "NewsArticle") {
				return true
			}
		}
	}
	return false
}

func (d *Document) articles() []map[string]any {
	var out []map[string]any
	for _, m := range d.jsonLD {
		if isArticle(m) {
			out = append(out, m)
		}
	}
	return out
}

func (d *Document) jsonLDBody() string {
	for _, m := range d.articles() {
		body := joinStrings(m["articleBody"])
		if body = StripMarkup(body); body != "" {
			return body
		}
	}
	return ""
}

// jsonLDHeadline 优先 Article 类型，其次任意带 headline 的块
func (d *Document) jsonLDHeadline() string {
	for _, m := range append(d.articles(), d.jsonLD...) {
		if h, ok := m["headline"].(string); ok {
			if h = cleanSpaces(h); h != "" {
				return h
			}
		}
	}
	return ""
}

// JSONLDAuthor 作者可能是字符串、对象或列表，多个作者用 ", " 连接
func (d *Document) JSONLDAuthor() string {
	for _, m := range append(d.articles(), d.jsonLD...) {
		names := authorNames(m["author"])
		if len(names) > 0 {
			return strings.Join(names, ", ")
		}
	}
	return ""
}

// JSONLDPublished datePublished 优先，其次 dateCreated
func (d *Document) JSONLDPublished() string {
	for _, m := range append(d.articles(), d.jsonLD...) {
		for _, key := range []string{"datePublished", "dateCreated"} {
			if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func authorNames(v any) []string {
	switch t := v.(type) {
	case string:
		if s := cleanSpaces(t); s != "" {
			return []string{s}
		}
	case map[string]any:
		for _, key := range []string{"name", "givenName"} {
			if s, ok := t[key].(string); ok && cleanSpaces(s) != "" {
				return []string{cleanSpaces(s)}
			}
		}
	case []any:
		var out []string
		for _, it := range t {
			out = append(out, authorNames(it)...)
		}
		return out
	}
	return nil
}

// joinStrings 把字符串或（嵌套）字符串列表用换行拼接
func joinStrings(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var parts []string
		for _, it := range t {
			if s := joinStrings(it); strings.TrimSpace(s) != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}
