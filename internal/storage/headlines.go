package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
)

const headerRule = "================================================================================"

// HeadlineFile 一个站点一天的标题文件
type HeadlineFile struct {
	Key         string
	Source      string
	Date        string
	GeneratedAt time.Time
	Headlines   []collector.Headline
}

// HeadlineWriter 负责标题文件的路径约定与读写
type HeadlineWriter struct {
	Dir string
}

func NewHeadlineWriter(dir string) *HeadlineWriter {
	return &HeadlineWriter{Dir: dir}
}

// Path 例如 news/dailystar_headlines_2025-09-19.txt
func (w *HeadlineWriter) Path(key, date string) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%s_headlines_%s.txt", key, date))
}

// Exists 当天文件是否已存在
func (w *HeadlineWriter) Exists(key, date string) bool {
	st, err := os.Stat(w.Path(key, date))
	return err == nil && st.Mode().IsRegular()
}

// Missing 返回当天尚无文件的站点
func (w *HeadlineWriter) Missing(keys []string, date string) []string {
	var out []string
	for _, k := range keys {
		if !w.Exists(k, date) {
			out = append(out, k)
		}
	}
	return out
}

// AllExist 所有站点当天文件都已存在
func (w *HeadlineWriter) AllExist(keys []string, date string) bool {
	return len(keys) > 0 && len(w.Missing(keys, date)) == 0
}

// Write 覆盖写入；先写临时文件再 rename，失败时不会留下半个文件
func (w *HeadlineWriter) Write(f HeadlineFile) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create news dir: %w", err)
	}
	path := w.Path(f.Key, f.Date)

	tmp, err := os.CreateTemp(w.Dir, "."+f.Key+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(Render(f)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	// CreateTemp 建出的文件是 0600，改回普通文件权限
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return path, nil
}

// Render 标题文件的文本格式，字段标签保持稳定供下游解析
func Render(f HeadlineFile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s HEADLINES\n", strings.ToUpper(f.Source))
	fmt.Fprintf(&b, "Date: %s\n", f.Date)
	fmt.Fprintf(&b, "Total Headlines: %d\n", len(f.Headlines))
	fmt.Fprintf(&b, "Scraped at: %s\n", f.GeneratedAt.Format("2006-01-02 15:04:05"))
	b.WriteString(headerRule + "\n\n")

	for i, h := range f.Headlines {
		fmt.Fprintf(&b, "%3d. %s\n", i+1, h.Title)
		fmt.Fprintf(&b, "     URL: %s\n", h.URL)
		fmt.Fprintf(&b, "     Category: %s\n", h.Category)
		if h.Author != "" {
			fmt.Fprintf(&b, "     Author: %s\n", h.Author)
		}
		if h.PublishedAt != "" {
			fmt.Fprintf(&b, "     Published: %s\n", h.PublishedAt)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SourceText 读取到的某站点标题文件
type SourceText struct {
	Key    string `json:"key"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Text   string `json:"text,omitempty"`
}

// LoadHeadlineTexts 读取指定日期各站点的标题文件，缺失的文件标记 Exists=false
func (w *HeadlineWriter) LoadHeadlineTexts(keys []string, date string) ([]SourceText, error) {
	out := make([]SourceText, 0, len(keys))
	for _, k := range keys {
		st := SourceText{Key: k, Path: w.Path(k, date)}
		data, err := os.ReadFile(st.Path)
		switch {
		case err == nil:
			st.Exists = true
			st.Text = string(data)
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read %s: %w", st.Path, err)
		}
		out = append(out, st)
	}
	return out, nil
}
