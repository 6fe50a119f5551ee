package requirements

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"resume-screener/internal/types"
)

const (
	maxKeywords          = 20
	fallbackKeywords     = 10
	minKeywordOccurrence = 2
	minKeywordLength     = 3
)

var (
	// N+ years / N years (of) experience
	statedYearsRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:\+\s*(?:years?|yrs?)\b|(?:years?|yrs?)\b(?:\s+of)?\s+experience)`)

	degreeRe = regexp.MustCompile(`(?i)\b(?:bachelor|master|ph\.?\s?d|doctorate|degree|mba|b\.?\s?tech|m\.?\s?tech|b\.?\s?sc|m\.?\s?sc|diploma)`)

	phraseSplitRe = regexp.MustCompile(`[.!?;](?:\s+|$)|\n+`)

	tokenRe = regexp.MustCompile(`[a-z][a-z0-9+#]*`)

	skillPatterns = compileVocabulary(skillVocabulary, false)
	certPatterns  = compileVocabulary(certificationVocabulary, true)
	domainTerms   = lowerSet(skillVocabulary)
)

type vocabPattern struct {
	term string
	re   *regexp.Regexp
}

// compileVocabulary 为每个术语生成带边界的匹配，术语本身可以包含 + # . 等符号
func compileVocabulary(terms []string, ignoreCase bool) []vocabPattern {
	prefix := ""
	if ignoreCase {
		prefix = "(?i)"
	}
	out := make([]vocabPattern, 0, len(terms))
	for _, term := range terms {
		re := regexp.MustCompile(prefix + `(?:^|[^\w+#.])` + regexp.QuoteMeta(term) + `(?:$|[^\w+#])`)
		out = append(out, vocabPattern{term: term, re: re})
	}
	return out
}

func lowerSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[strings.ToLower(t)] = struct{}{}
	}
	return set
}

// ParseRules 纯规则解析JD，相同输入总是得到相同结果
func ParseRules(jobText string) *types.JobRequirements {
	reqs := &types.JobRequirements{
		Skills:         matchVocabulary(jobText, skillPatterns),
		Education:      ExtractEducation(jobText),
		Keywords:       ExtractKeywords(jobText),
		Certifications: matchVocabulary(jobText, certPatterns),
	}
	if years, ok := StatedYears(jobText); ok {
		reqs.ExperienceYears = &years
	}
	return reqs
}

// StatedYears 返回文本中第一处 "N+ years" 或 "N years of experience" 的 N
func StatedYears(text string) (int, bool) {
	m := statedYearsRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// matchVocabulary 返回出现在文本中的术语，按首次出现位置排序
func matchVocabulary(text string, patterns []vocabPattern) []string {
	type hit struct {
		term string
		pos  int
	}
	var hits []hit
	for _, p := range patterns {
		if loc := p.re.FindStringIndex(text); loc != nil {
			hits = append(hits, hit{term: p.term, pos: loc[0]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.term)
	}
	return out
}

// ExtractEducation 返回包含学位关键词的短句
func ExtractEducation(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, phrase := range phraseSplitRe.Split(text, -1) {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" || !degreeRe.MatchString(phrase) {
			continue
		}
		key := strings.ToLower(phrase)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, phrase)
	}
	return out
}

// ExtractKeywords 基于词频的关键词提取：
// 去掉停用词后，出现至少两次或属于技术词表的词被保留；都不满足时取频率最高的若干个
func ExtractKeywords(text string) []string {
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)

	counts := make(map[string]int)
	var order []string
	for _, tok := range tokens {
		if len(tok) < minKeywordLength {
			if _, domain := domainTerms[tok]; !domain {
				continue
			}
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	var keywords []string
	for _, tok := range order {
		_, domain := domainTerms[tok]
		if counts[tok] >= minKeywordOccurrence || domain {
			keywords = append(keywords, tok)
		}
	}

	if len(keywords) == 0 {
		ranked := append([]string(nil), order...)
		sort.SliceStable(ranked, func(i, j int) bool { return counts[ranked[i]] > counts[ranked[j]] })
		if len(ranked) > fallbackKeywords {
			ranked = ranked[:fallbackKeywords]
		}
		keywords = ranked
	}

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}
