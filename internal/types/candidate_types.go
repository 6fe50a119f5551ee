package types

import (
	"time"

	"resume-screener/internal/textclean"
)

// Candidate 一条已评分的候选人记录
type Candidate struct {
	ID              int64                 `json:"id"`
	UUID            string                `json:"uuid"`
	Name            string                `json:"name"`
	Email           string                `json:"email"`
	Phone           string                `json:"phone"`
	ExperienceYears string                `json:"experience_years,omitempty"`
	CurrentLocation string                `json:"current_location,omitempty"`
	NoticePeriod    string                `json:"notice_period,omitempty"`
	ExpectedCTC     string                `json:"expected_ctc,omitempty"`
	Source          string                `json:"source"`
	ResumeFilename  string                `json:"resume_filename"`
	ResumeObjectKey string                `json:"resume_object_key,omitempty"`
	FileMD5         string                `json:"file_md5,omitempty"`
	ResumeText      string                `json:"resume_text"`
	Contact         textclean.ContactInfo `json:"contact_info"`
	Scores          ScoringBreakdown      `json:"scores"`
	Explanation     *ScoringExplanation   `json:"explanation,omitempty"`
	ScoringMode     string                `json:"scoring_mode"`
	Status          string                `json:"status"`
	CreatedAt       time.Time             `json:"upload_date"`
}

// CandidateSummary 列表视图，不包含简历正文
type CandidateSummary struct {
	ID              int64     `json:"id"`
	Rank            int       `json:"rank"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	ExperienceYears string    `json:"experience_years,omitempty"`
	CurrentLocation string    `json:"current_location,omitempty"`
	NoticePeriod    string    `json:"notice_period,omitempty"`
	Source          string    `json:"source"`
	ResumeFilename  string    `json:"resume_filename"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"upload_date"`
	ScoringBreakdown
}

// Summary 生成列表视图，rank 由调用方填写
func (c *Candidate) Summary() CandidateSummary {
	return CandidateSummary{
		ID:               c.ID,
		Name:             c.Name,
		Email:            c.Email,
		Phone:            c.Phone,
		ExperienceYears:  c.ExperienceYears,
		CurrentLocation:  c.CurrentLocation,
		NoticePeriod:     c.NoticePeriod,
		Source:           c.Source,
		ResumeFilename:   c.ResumeFilename,
		Status:           c.Status,
		CreatedAt:        c.CreatedAt,
		ScoringBreakdown: c.Scores,
	}
}

// FailedCandidate 批量导入中处理失败的一行，供人工补录
type FailedCandidate struct {
	ID          int64     `json:"id"`
	BatchID     string    `json:"batch_id"`
	RowNumber   int       `json:"row_number"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Experience  string    `json:"experience"`
	ExpectedCTC string    `json:"expected_ctc"`
	ResumeLink  string    `json:"resume_link"`
	Stage       string    `json:"stage"`
	Error       string    `json:"error"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// SheetRow 表格中的一行候选人数据
type SheetRow struct {
	RowNumber   int    `json:"row_number"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Experience  string `json:"experience"`
	ExpectedCTC string `json:"expected_ctc"`
	ResumeLink  string `json:"resume_link"`
}
