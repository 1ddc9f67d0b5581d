package processor

import (
	"testing"

	"github.com/LJTian/HeadlineHub/internal/collector"
)

func TestHashURLDeterministicAndDistinct(t *testing.T) {
	url1 := "https://example.com/a"
	url2 := "https://example.com/b"

	h1a := hashURL(url1)
	h1b := hashURL(url1)
	h2 := hashURL(url2)

	if h1a != h1b {
		t.Fatalf("hashURL not deterministic: %q vs %q", h1a, h1b)
	}
	if h1a == h2 {
		t.Fatalf("hashURL should differ for different URLs: %q", h1a)
	}
}

func TestHeadlinesCleanAndKeepDuplicates(t *testing.T) {
	p := NewSimpleProcessor()
	items := []collector.Headline{
		{URL: " https://example.com/1 ", Title: "Title\n  one", Category: ""},
		{URL: "https://example.com/1", Title: "Title one again", Category: "sports"},
		{URL: "https://example.com/2", Title: "   "},
		{URL: "", Title: "no url"},
	}

	out := p.Headlines(items)
	// 同一 URL 不去重，空标题 / 空 URL 丢弃
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(out), out)
	}
	if out[0].URL != "https://example.com/1" || out[0].Title != "Title one" {
		t.Fatalf("out[0] = %+v", out[0])
	}
	if out[0].Category != collector.Unknown {
		t.Fatalf("empty category = %q, want %q", out[0].Category, collector.Unknown)
	}
}

func TestArticlesAssignIDsAndDropEmpty(t *testing.T) {
	p := NewSimpleProcessor()
	items := []collector.Article{
		{URL: "https://example.com/1", Title: "A", Body: "body a", Site: "Jugantor"},
		{URL: "https://example.com/1", Title: "A dup", Body: "body a2"},
		{URL: "https://example.com/2", Title: "B", Body: "  "},
		{URL: "https://example.com/3", Title: "C", Body: "body c", Category: "national"},
	}

	out := p.Articles("jugantor", "2025-09-19", items)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].ID != hashURL("https://example.com/1") || out[0].Source != "jugantor" || out[0].ScrapeDate != "2025-09-19" {
		t.Fatalf("out[0] = %+v", out[0])
	}
	if out[0].Category != collector.Unknown || out[1].Category != "national" {
		t.Fatalf("categories = %q, %q", out[0].Category, out[1].Category)
	}
}
