// Package extract 从任意新闻页面 HTML 中抽取标题与正文。
//
// 正文按固定顺序尝试：JSON-LD articleBody、类名/ID 启发式容器、<p> 段落拼接，
// 第一个得到非空结果的策略胜出。
package extract

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrNoBody 所有策略都没有拿到正文
var ErrNoBody = errors.New("no article body found")

// MinContainerLen 启发式容器文本需超过该长度（按字符计）才被采用
const MinContainerLen = 200

// Tier 正文来自哪一层策略
type Tier int

const (
	TierNone Tier = iota
	TierJSONLD
	TierContainer
	TierParagraphs
)

func (t Tier) String() string {
	switch t {
	case TierJSONLD:
		return "json-ld"
	case TierContainer:
		return "container"
	case TierParagraphs:
		return "paragraphs"
	default:
		return "none"
	}
}

var containerRe = regexp.MustCompile(`(?i)(article|story|news|post).*(body|content|text|detail)|(^content$)|(^article$)`)

// Rule 站点自定义的作者 / 日期选择器；Attr 为空时取文本
type Rule struct {
	CSS  string `yaml:"css"`
	Attr string `yaml:"attr"`
}

// Document 解析后的页面
type Document struct {
	doc    *goquery.Document
	jsonLD []map[string]any
}

// Result 单页抽取结果
type Result struct {
	Title string
	Body  string
	Tier  Tier
}

// Parse 解析 HTML；JSON-LD 在去掉 script 之前先读出
func Parse(htmlText string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}
	d := &Document{doc: doc}
	d.jsonLD = readJSONLD(doc)
	doc.Find("script, style, noscript").Remove()
	return d, nil
}

// Extract 解析并抽取，正文为空时返回 ErrNoBody（标题仍然填充）
func Extract(htmlText string) (Result, error) {
	d, err := Parse(htmlText)
	if err != nil {
		return Result{}, err
	}
	res := Result{Title: d.Title()}
	res.Body, res.Tier = d.Body()
	if res.Body == "" {
		return res, ErrNoBody
	}
	return res, nil
}

// Title JSON-LD headline -> og:title -> <title> -> 第一个 <h1>
func (d *Document) Title() string {
	if t := d.jsonLDHeadline(); t != "" {
		return t
	}
	if t, ok := d.doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	if t := cleanSpaces(d.doc.Find("title").First().Text()); t != "" {
		return t
	}
	return cleanSpaces(d.doc.Find("h1").First().Text())
}

// TitleTag 只取 <title>
func (d *Document) TitleTag() string {
	return cleanSpaces(d.doc.Find("title").First().Text())
}

// Body 按层级顺序抽取正文
func (d *Document) Body() (string, Tier) {
	if b := d.jsonLDBody(); b != "" {
		return b, TierJSONLD
	}
	if b := d.containerBody(); b != "" {
		return b, TierContainer
	}
	if b := d.Paragraphs("\n"); b != "" {
		return b, TierParagraphs
	}
	return "", TierNone
}

// Paragraphs 所有 <p> 文本按文档顺序拼接，跳过空段
func (d *Document) Paragraphs(sep string) string {
	var parts []string
	d.doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := cleanSpaces(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, sep)
}

// First 依次尝试规则，返回第一个非空值
func (d *Document) First(rules []Rule) string {
	for _, r := range rules {
		sel := d.doc.Find(r.CSS).First()
		if sel.Length() == 0 {
			continue
		}
		var v string
		if r.Attr != "" {
			v, _ = sel.Attr(r.Attr)
		} else {
			v = sel.Text()
		}
		if v = cleanSpaces(v); v != "" {
			return v
		}
	}
	return ""
}

// containerBody 在 class / id 命中正则的元素里取文本最长的一个
func (d *Document) containerBody() string {
	best := ""
	bestLen := 0
	d.doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		if !matchesContainer(s) {
			return
		}
		text := blockText(s)
		if n := utf8.RuneCountInString(text); n > bestLen {
			best, bestLen = text, n
		}
	})
	if bestLen > MinContainerLen {
		return best
	}
	return ""
}

func matchesContainer(s *goquery.Selection) bool {
	// class 按空格拼成一个串再匹配，"story main-content" 这类跨类名的组合也算命中
	if class, ok := s.Attr("class"); ok {
		if joined := strings.Join(strings.Fields(class), " "); joined != "" && containerRe.MatchString(joined) {
			return true
		}
	}
	if id, ok := s.Attr("id"); ok {
		if id = strings.TrimSpace(id); id != "" && containerRe.MatchString(id) {
			return true
		}
	}
	return false
}

// blockText 按文本节点换行拼接，去掉空白节点
func blockText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, "\n")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := cleanSpaces(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

var blockEndRe = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|h[1-6])>`)

var spaceRe = regexp.MustCompile(`[ \t\r\n\f\x{00a0}]+`)

func cleanSpaces(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// StripMarkup 去掉文本中的 HTML 标签并反转义实体，保留换行
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	s = blockEndRe.ReplaceAllString(s, "$0\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	lines := strings.Split(doc.Text(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = cleanSpaces(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
