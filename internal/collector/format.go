package collector

import (
	"fmt"
	"strings"
	"time"
)

const separator = "================================================================================"

// FormatArticles 把全文结果排版成纯文本，供命令行输出与下游阅读
func FormatArticles(site, date string, articles []Article, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s NEWS SCRAPER\n", strings.ToUpper(site))
	fmt.Fprintf(&b, "Date: %s\n", date)
	fmt.Fprintf(&b, "Total Articles: %d\n", len(articles))
	fmt.Fprintf(&b, "Scraped at: %s\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString(separator + "\n\n")

	for i, a := range articles {
		fmt.Fprintf(&b, "ARTICLE %d\n", i+1)
		b.WriteString(strings.Repeat("-", 50) + "\n")
		fmt.Fprintf(&b, "HEADLINE: %s\n\n", orDefault(a.Title, "No Title Available"))
		fmt.Fprintf(&b, "URL: %s\n\n", orDefault(a.URL, "No URL Available"))
		fmt.Fprintf(&b, "Category: %s\n", orDefault(a.Category, "Unknown"))
		fmt.Fprintf(&b, "Date: %s\n", orDefault(a.PublishedAt, "Unknown Date"))
		fmt.Fprintf(&b, "Author(s): %s\n\n", orDefault(a.Author, "Unknown"))
		b.WriteString("NEWS CONTENT:\n")
		b.WriteString(strings.Repeat("-", 50) + "\n")
		b.WriteString(orDefault(a.Body, "No content available"))
		b.WriteString("\n\n")
	}
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
