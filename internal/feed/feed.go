// Package feed 解析三种站点索引格式：扁平新闻 feed、普通 sitemap 与带命名空间的新闻 sitemap。
package feed

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Entry 索引中的一条记录，RawPublished 保留原始时间字符串
type Entry struct {
	URL          string
	Title        string
	RawPublished string
}

// ExpandURL 把模板中的 {date} 替换为 YYYY-MM-DD
func ExpandURL(tmpl, date string) string {
	return strings.ReplaceAll(tmpl, "{date}", date)
}

// IsDayStamped 模板是否按天区分
func IsDayStamped(tmpl string) bool {
	return strings.Contains(tmpl, "{date}")
}

// DaysBack 返回 date 往前 n 天的日期
func DaysBack(date string, n int) (string, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -n).Format(dateLayout), nil
}
