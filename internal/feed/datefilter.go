package feed

import "strings"

// FilterByDate 保留发布时间字符串以 date 为前缀的条目。
// 只做字面前缀匹配，不做时区换算。
func FilterByDate(entries []Entry, date string) []Entry {
	var out []Entry
	for _, e := range entries {
		if strings.HasPrefix(strings.TrimSpace(e.RawPublished), date) {
			out = append(out, e)
		}
	}
	return out
}
