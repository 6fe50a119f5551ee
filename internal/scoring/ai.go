package scoring

import (
	"context"
	"fmt"

	"resume-screener/internal/llm"
	"resume-screener/internal/textclean"
	"resume-screener/internal/types"
)

const (
	maxPromptJobChars    = 2000
	maxPromptResumeChars = 3000

	noExplanation = "No explanation provided"

	scoringSystemPrompt = "You are an expert HR recruiter and resume analyst. Analyze resumes objectively and provide detailed, fair scoring."

	scoringPromptTemplate = `Analyze this candidate's resume against the job description and provide detailed scoring.

JOB DESCRIPTION:
%s

CANDIDATE RESUME:
%s

SCORING GUIDELINES:
- skills_match (0-100): How well technical skills match requirements. Weight: %s%%
- experience_match (0-100): Relevant work experience and years. Weight: %s%%
- education_match (0-100): Education level and field alignment. Weight: %s%%
- keywords_match (0-100): Important domain keywords and terminology. Weight: %s%%

Be strict but fair. A perfect match is rare (90-100). Good matches are 70-85. Partial matches 50-70.

Respond ONLY with valid JSON in this EXACT format:
{
    "skills_match": <number 0-100>,
    "experience_match": <number 0-100>,
    "education_match": <number 0-100>,
    "keywords_match": <number 0-100>,
    "explanation": {
        "skills": "<2-3 sentence explanation>",
        "experience": "<2-3 sentence explanation>",
        "education": "<2-3 sentence explanation>",
        "keywords": "<2-3 sentence explanation>",
        "overall": "<overall assessment in 2-3 sentences>",
        "strengths": ["<strength 1>", "<strength 2>", "<strength 3>"],
        "weaknesses": ["<weakness 1>", "<weakness 2>"]
    }
}

IMPORTANT: Return ONLY the JSON, no markdown, no code blocks, no explanations.`
)

// requiredScoreFields 模型响应中必须出现的四个维度
var requiredScoreFields = []string{"skills_match", "experience_match", "education_match", "keywords_match"}

// truncateRunes 超过 limit 个字符时截断并追加 "..."
func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

func weightPercent(w float64) string {
	return fmt.Sprintf("%g", round2(w*100))
}

// BuildPrompt 生成AI评分的 user prompt
func (e *Engine) BuildPrompt(jobText, resumeText string) string {
	return fmt.Sprintf(scoringPromptTemplate,
		truncateRunes(jobText, maxPromptJobChars),
		truncateRunes(resumeText, maxPromptResumeChars),
		weightPercent(e.weights.Skills),
		weightPercent(e.weights.Experience),
		weightPercent(e.weights.Education),
		weightPercent(e.weights.Keywords),
	)
}

// scoreAI 单次调用推理服务，不做重试
func (e *Engine) scoreAI(ctx context.Context, jobText, resumeText string) (*types.ScoreResult, error) {
	prompt := e.BuildPrompt(jobText, resumeText)

	resp, err := e.completer.Complete(ctx, scoringSystemPrompt, prompt, e.temperature, e.maxTokens)
	if err != nil {
		return nil, newCollaboratorError(err)
	}
	e.logger.Debug().Int("response_chars", len(resp)).Msg("收到模型评分响应")

	obj, err := llm.ExtractJSONObject(resp)
	if err != nil {
		return nil, newUnparsableError(textclean.Preview(resp, payloadPreviewLimit))
	}

	return e.validateScores(obj)
}

// validateScores 校验并裁剪四个子分数，总分在本地重新计算
func (e *Engine) validateScores(obj map[string]any) (*types.ScoreResult, error) {
	for _, field := range requiredScoreFields {
		if _, ok := obj[field]; !ok {
			return nil, newMissingFieldError(field)
		}
	}

	values := make(map[string]float64, len(requiredScoreFields))
	for _, field := range requiredScoreFields {
		v, ok := obj[field].(float64)
		if !ok {
			return nil, newInvalidFieldTypeError(field, obj[field])
		}
		values[field] = clamp(v)
	}

	breakdown := types.ScoringBreakdown{
		SkillsMatch:     values["skills_match"],
		ExperienceMatch: values["experience_match"],
		EducationMatch:  values["education_match"],
		KeywordsMatch:   values["keywords_match"],
	}
	breakdown.OverallScore = e.weights.Overall(breakdown)

	return &types.ScoreResult{
		ScoringBreakdown: breakdown,
		Explanation:      explanationFromJSON(obj["explanation"]),
		Mode:             types.ModeAI,
	}, nil
}

func placeholderExplanation() *types.ScoringExplanation {
	return &types.ScoringExplanation{
		Skills:     noExplanation,
		Experience: noExplanation,
		Education:  noExplanation,
		Keywords:   noExplanation,
		Overall:    noExplanation,
		Strengths:  []string{},
		Weaknesses: []string{},
	}
}

// explanationFromJSON 缺失或结构不对时使用占位说明
func explanationFromJSON(v any) *types.ScoringExplanation {
	m, ok := v.(map[string]any)
	if !ok {
		return placeholderExplanation()
	}
	text := func(key string) string {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
		return noExplanation
	}
	list := func(key string) []string {
		out := []string{}
		items, _ := m[key].([]any)
		for _, item := range items {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return &types.ScoringExplanation{
		Skills:     text("skills"),
		Experience: text("experience"),
		Education:  text("education"),
		Keywords:   text("keywords"),
		Overall:    text("overall"),
		Strengths:  list("strengths"),
		Weaknesses: list("weaknesses"),
	}
}
