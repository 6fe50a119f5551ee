package types

import "time"

// JobRequirements 从JD中解析出的结构化需求，生成后只读
type JobRequirements struct {
	Skills          []string `json:"skills"`
	Education       []string `json:"education"`
	ExperienceYears *int     `json:"experience_years"` // nil 表示JD未提出年限要求
	Keywords        []string `json:"keywords"`
	Certifications  []string `json:"certifications"`
}

// IsEmpty 是否没有任何可用需求
func (r *JobRequirements) IsEmpty() bool {
	if r == nil {
		return true
	}
	return len(r.Skills) == 0 && len(r.Education) == 0 && r.ExperienceYears == nil &&
		len(r.Keywords) == 0 && len(r.Certifications) == 0
}

// ScoringBreakdown 四个维度得分及加权总分，均在 [0,100]
type ScoringBreakdown struct {
	SkillsMatch     float64 `json:"skills_match"`
	ExperienceMatch float64 `json:"experience_match"`
	EducationMatch  float64 `json:"education_match"`
	KeywordsMatch   float64 `json:"keywords_match"`
	OverallScore    float64 `json:"overall_score"`
}

// ScoringExplanation 各维度的文字说明
type ScoringExplanation struct {
	Skills     string   `json:"skills"`
	Experience string   `json:"experience"`
	Education  string   `json:"education"`
	Keywords   string   `json:"keywords"`
	Overall    string   `json:"overall"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// 评分模式
const (
	ModeRuleBased         = "rule_based"
	ModeAI                = "ai"
	ModeRuleBasedFallback = "rule_based_fallback"
)

// ScoreResult 一次评分的完整结果，返回后不可变
type ScoreResult struct {
	ScoringBreakdown
	Explanation *ScoringExplanation `json:"explanation,omitempty"`
	Mode        string              `json:"mode"`
}

// JobPosting 当前生效的JD
type JobPosting struct {
	Text         string           `json:"text"`
	Requirements *JobRequirements `json:"requirements"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ScoreDistribution 分数段分布
type ScoreDistribution map[string]int

// ScoreBuckets 分数段，按从高到低排列
var ScoreBuckets = []string{"90-100", "80-89", "70-79", "60-69", "0-59"}

// BucketFor 返回总分所在的分数段
func BucketFor(score float64) string {
	switch {
	case score >= 90:
		return "90-100"
	case score >= 80:
		return "80-89"
	case score >= 70:
		return "70-79"
	case score >= 60:
		return "60-69"
	default:
		return "0-59"
	}
}

// Statistics 候选人汇总统计
type Statistics struct {
	TotalCandidates int               `json:"total_candidates"`
	AverageScore    float64           `json:"average_score"`
	TopScore        float64           `json:"top_score"`
	LowestScore     float64           `json:"lowest_score"`
	JobSet          bool              `json:"jd_set"`
	ProcessedToday  int               `json:"processed_today"`
	Distribution    ScoreDistribution `json:"score_distribution"`
}
