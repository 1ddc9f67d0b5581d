package feed

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

const (
	SitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
	NewsNS    = "http://www.google.com/schemas/sitemap-news/0.9"
)

// ParseNewsSitemap 按命名空间解析新闻 sitemap：
// url/loc 属于 sitemap 命名空间，news:news 下的 title / publication_date 属于新闻命名空间。
// 文档结构错误时返回 error，调用方按“无条目”处理。
func ParseNewsSitemap(content string) ([]Entry, error) {
	doc, err := xmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse news sitemap: %w", err)
	}

	var out []Entry
	walkElements(doc, func(n *xmlquery.Node) bool {
		if n.Data != "url" || !inNamespace(n, SitemapNS, "") {
			return true
		}
		if e, ok := urlEntry(n); ok {
			out = append(out, e)
		}
		return false
	})
	return out, nil
}

func urlEntry(n *xmlquery.Node) (Entry, bool) {
	var e Entry
	var lastmod string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch {
		case c.Data == "loc" && inNamespace(c, SitemapNS, ""):
			e.URL = strings.TrimSpace(c.InnerText())
		case c.Data == "lastmod" && inNamespace(c, SitemapNS, ""):
			lastmod = strings.TrimSpace(c.InnerText())
		case c.Data == "news" && inNamespace(c, NewsNS, "news"):
			for nc := c.FirstChild; nc != nil; nc = nc.NextSibling {
				if nc.Type != xmlquery.ElementNode || !inNamespace(nc, NewsNS, "news") {
					continue
				}
				switch nc.Data {
				case "title":
					e.Title = cleanText(nc.InnerText())
				case "publication_date":
					e.RawPublished = strings.TrimSpace(nc.InnerText())
				}
			}
		}
	}
	if e.RawPublished == "" {
		e.RawPublished = lastmod
	}
	return e, e.URL != ""
}

// inNamespace 优先比较命名空间 URI；文档未声明命名空间时退回比较前缀
func inNamespace(n *xmlquery.Node, uri, prefix string) bool {
	if n.NamespaceURI != "" {
		return n.NamespaceURI == uri
	}
	return n.Prefix == prefix
}

// walkElements 深度优先遍历元素节点，fn 返回 false 时不再进入其子节点
func walkElements(n *xmlquery.Node, fn func(*xmlquery.Node) bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		if fn(c) {
			walkElements(c, fn)
		}
	}
}
