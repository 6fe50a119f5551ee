package scoring

import (
	"fmt"
	"math"

	"resume-screener/internal/types"
)

// WeightTolerance 权重之和允许的误差
const WeightTolerance = 0.01

// Weights 四个维度的权重，构造引擎时校验
type Weights struct {
	Skills     float64 `json:"skills" yaml:"skills"`
	Experience float64 `json:"experience" yaml:"experience"`
	Education  float64 `json:"education" yaml:"education"`
	Keywords   float64 `json:"keywords" yaml:"keywords"`
}

// DefaultWeights 0.40/0.30/0.20/0.10
func DefaultWeights() Weights {
	return Weights{Skills: 0.40, Experience: 0.30, Education: 0.20, Keywords: 0.10}
}

// Sum 权重之和
func (w Weights) Sum() float64 {
	return w.Skills + w.Experience + w.Education + w.Keywords
}

// Validate 权重必须非负且和为 1 ± WeightTolerance
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"skills": w.Skills, "experience": w.Experience, "education": w.Education, "keywords": w.Keywords,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s 权重无效 (%v)", ErrInvalidWeights, name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("%w: 权重之和为 %.4f，应为 1.0", ErrInvalidWeights, sum)
	}
	return nil
}

// Overall 由四个子分数重新计算总分，保留两位小数
func (w Weights) Overall(b types.ScoringBreakdown) float64 {
	return round2(b.SkillsMatch*w.Skills +
		b.ExperienceMatch*w.Experience +
		b.EducationMatch*w.Education +
		b.KeywordsMatch*w.Keywords)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
