package scoring

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"resume-screener/internal/requirements"
)

var yearRangeRe = regexp.MustCompile(`(?i)\b((?:19|20)\d{2})\s*(?:-|\x{2013}|\x{2014}|to|until)\s*((?:19|20)\d{2}|present|current|now|today)\b`)

type yearSpan struct {
	start, end int
}

// ExperienceFromResume 估算简历中的工作年限：
// 先找 "N years of experience" 之类的直接陈述，找不到再合并简历中的年份区间。
// 区间重叠的部分只计算一次，结束于 present/current 的区间计到 now 所在年份。
func ExperienceFromResume(text string, now time.Time) (int, bool) {
	if years, ok := requirements.StatedYears(text); ok {
		return years, true
	}

	spans := yearSpans(text, now.Year())
	if len(spans) == 0 {
		return 0, false
	}
	total := mergedLength(spans)
	if total <= 0 {
		return 0, false
	}
	return total, true
}

func yearSpans(text string, currentYear int) []yearSpan {
	var spans []yearSpan
	for _, m := range yearRangeRe.FindAllStringSubmatch(text, -1) {
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		end := currentYear
		if n, err := strconv.Atoi(m[2]); err == nil {
			end = n
		} else if !isOngoing(m[2]) {
			continue
		}
		if end < start || start > currentYear {
			continue
		}
		if end > currentYear {
			end = currentYear
		}
		spans = append(spans, yearSpan{start: start, end: end})
	}
	return spans
}

func isOngoing(s string) bool {
	switch strings.ToLower(s) {
	case "present", "current", "now", "today":
		return true
	}
	return false
}

// mergedLength 合并重叠或相接的区间后求总长度
func mergedLength(spans []yearSpan) int {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	total := 0
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.start <= cur.end {
			if s.end > cur.end {
				cur.end = s.end
			}
			continue
		}
		total += cur.end - cur.start
		cur = s
	}
	return total + cur.end - cur.start
}
