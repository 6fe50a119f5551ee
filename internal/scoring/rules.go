package scoring

import (
	"fmt"
	"regexp"
	"strings"

	"resume-screener/internal/types"
)

const (
	educationOverlapRatio = 0.5
	strengthThreshold     = 70
	weaknessThreshold     = 50
)

var educationTermRe = regexp.MustCompile(`[a-z0-9]+`)

// 学历短句中不参与匹配的通用词
var educationFillers = map[string]struct{}{
	"and": {}, "or": {}, "in": {}, "of": {}, "the": {}, "a": {}, "an": {}, "with": {}, "from": {},
	"degree": {}, "required": {}, "preferred": {}, "equivalent": {}, "related": {}, "field": {},
	"must": {}, "have": {}, "plus": {}, "similar": {}, "any": {}, "is": {},
}

// ruleOutcome 规则评分的中间结果，用于生成说明
type ruleOutcome struct {
	breakdown      types.ScoringBreakdown
	matchedSkills  []string
	missingSkills  []string
	resumeYears    int
	yearsKnown     bool
	requiredYears  *int
	educationFound int
	educationTotal int
	keywordsFound  int
	keywordsTotal  int
}

func (e *Engine) scoreRules(reqs *types.JobRequirements, resumeText string) ruleOutcome {
	lower := strings.ToLower(resumeText)
	out := ruleOutcome{requiredYears: reqs.ExperienceYears}

	out.matchedSkills, out.missingSkills = partitionTerms(reqs.Skills, lower)
	out.breakdown.SkillsMatch = ratioScore(len(out.matchedSkills), len(reqs.Skills))

	out.resumeYears, out.yearsKnown = ExperienceFromResume(resumeText, e.now())
	out.breakdown.ExperienceMatch = experienceScore(reqs.ExperienceYears, out.resumeYears, out.yearsKnown)

	out.educationTotal = len(reqs.Education)
	for _, phrase := range reqs.Education {
		if educationPhraseFound(phrase, lower) {
			out.educationFound++
		}
	}
	out.breakdown.EducationMatch = ratioScore(out.educationFound, out.educationTotal)

	found, _ := partitionTerms(reqs.Keywords, lower)
	out.keywordsFound, out.keywordsTotal = len(found), len(reqs.Keywords)
	out.breakdown.KeywordsMatch = ratioScore(out.keywordsFound, out.keywordsTotal)

	out.breakdown.OverallScore = e.weights.Overall(out.breakdown)
	return out
}

// partitionTerms 大小写不敏感的子串匹配
func partitionTerms(terms []string, lowerText string) (found, missing []string) {
	for _, t := range terms {
		if strings.Contains(lowerText, strings.ToLower(t)) {
			found = append(found, t)
		} else {
			missing = append(missing, t)
		}
	}
	return found, missing
}

// ratioScore 没有要求时视为满分
func ratioScore(found, total int) float64 {
	if total == 0 {
		return 100
	}
	return round2(float64(found) / float64(total) * 100)
}

func experienceScore(required *int, years int, known bool) float64 {
	if required == nil || *required <= 0 {
		return 100
	}
	if !known || years <= 0 {
		return 0
	}
	if years >= *required {
		return 100
	}
	return round2(float64(years) / float64(*required) * 100)
}

// educationPhraseFound 短句中至少一半的有效词出现在简历中
func educationPhraseFound(phrase, lowerResume string) bool {
	var terms []string
	for _, t := range educationTermRe.FindAllString(strings.ToLower(phrase), -1) {
		if len(t) < 2 {
			continue
		}
		if _, filler := educationFillers[t]; filler {
			continue
		}
		terms = append(terms, t)
	}
	if len(terms) == 0 {
		return true
	}
	hits := 0
	for _, t := range terms {
		if strings.Contains(lowerResume, t) {
			hits++
		}
	}
	return float64(hits)/float64(len(terms)) >= educationOverlapRatio
}

// explain 根据规则评分结果生成确定性的说明文字
func explain(o ruleOutcome) *types.ScoringExplanation {
	b := o.breakdown
	ex := &types.ScoringExplanation{
		Strengths:  []string{},
		Weaknesses: []string{},
	}

	switch {
	case len(o.matchedSkills)+len(o.missingSkills) == 0:
		ex.Skills = "The job description lists no specific skills."
	default:
		ex.Skills = fmt.Sprintf("Matched %d of %d required skills.", len(o.matchedSkills), len(o.matchedSkills)+len(o.missingSkills))
		if len(o.missingSkills) > 0 {
			ex.Skills += " Missing: " + strings.Join(o.missingSkills, ", ") + "."
		}
	}

	switch {
	case o.requiredYears == nil || *o.requiredYears <= 0:
		ex.Experience = "No minimum experience is specified."
	case !o.yearsKnown:
		ex.Experience = fmt.Sprintf("Requires %d years; the resume states no measurable experience.", *o.requiredYears)
	default:
		ex.Experience = fmt.Sprintf("Requires %d years; the resume shows about %d years.", *o.requiredYears, o.resumeYears)
	}

	if o.educationTotal == 0 {
		ex.Education = "No education requirement is specified."
	} else {
		ex.Education = fmt.Sprintf("Meets %d of %d education requirements.", o.educationFound, o.educationTotal)
	}

	if o.keywordsTotal == 0 {
		ex.Keywords = "No keywords were extracted from the job description."
	} else {
		ex.Keywords = fmt.Sprintf("Found %d of %d job keywords.", o.keywordsFound, o.keywordsTotal)
	}

	ex.Overall = fmt.Sprintf("Overall match %.2f/100 (%s).", b.OverallScore, verdict(b.OverallScore))

	factors := []struct {
		name  string
		score float64
	}{
		{"Skills", b.SkillsMatch},
		{"Experience", b.ExperienceMatch},
		{"Education", b.EducationMatch},
		{"Keywords", b.KeywordsMatch},
	}
	for _, f := range factors {
		switch {
		case f.score >= strengthThreshold:
			ex.Strengths = append(ex.Strengths, fmt.Sprintf("%s match %.0f%%", f.name, f.score))
		case f.score < weaknessThreshold:
			ex.Weaknesses = append(ex.Weaknesses, fmt.Sprintf("%s match %.0f%%", f.name, f.score))
		}
	}
	if len(o.matchedSkills) > 0 {
		ex.Strengths = append(ex.Strengths, "Has "+strings.Join(o.matchedSkills, ", "))
	}
	if len(o.missingSkills) > 0 {
		ex.Weaknesses = append(ex.Weaknesses, "Lacks "+strings.Join(o.missingSkills, ", "))
	}
	return ex
}

func verdict(score float64) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 70:
		return "good"
	case score >= 50:
		return "partial"
	default:
		return "weak"
	}
}
