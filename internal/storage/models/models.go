package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"resume-screener/internal/textclean"
	"resume-screener/internal/types"
)

// Candidate 候选人表
type Candidate struct {
	ID              int64          `gorm:"primaryKey;autoIncrement"`
	CandidateUUID   string         `gorm:"type:char(36);uniqueIndex:idx_candidates_uuid"`
	Name            string         `gorm:"type:varchar(255)"`
	Email           string         `gorm:"type:varchar(255);index:idx_candidates_email"`
	Phone           string         `gorm:"type:varchar(50)"`
	ExperienceYears string         `gorm:"type:varchar(50)"`
	CurrentLocation string         `gorm:"type:varchar(255)"`
	NoticePeriod    string         `gorm:"type:varchar(100)"`
	ExpectedCTC     string         `gorm:"type:varchar(100)"`
	Source          string         `gorm:"type:varchar(20);default:'upload'"`
	ResumeFilename  string         `gorm:"type:varchar(255)"`
	ResumeObjectKey string         `gorm:"type:varchar(1024)"`
	FileMD5         string         `gorm:"type:char(32);index:idx_candidates_file_md5"`
	ResumeText      string         `gorm:"type:longtext"`
	ContactJSON     datatypes.JSON `gorm:"type:json"`
	ExplanationJSON datatypes.JSON `gorm:"type:json"`
	SkillsMatch     float64
	ExperienceMatch float64
	EducationMatch  float64
	KeywordsMatch   float64
	OverallScore    float64   `gorm:"index:idx_candidates_overall_score"`
	ScoringMode     string    `gorm:"type:varchar(30)"`
	Status          string    `gorm:"type:varchar(30);default:'screened'"`
	CreatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_candidates_created_at"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// FailedCandidate 批量导入失败行
type FailedCandidate struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	BatchID     string    `gorm:"type:char(36);index:idx_failed_batch_id"`
	RowNumber   int       `gorm:"not null"`
	Name        string    `gorm:"type:varchar(255)"`
	Email       string    `gorm:"type:varchar(255)"`
	Phone       string    `gorm:"type:varchar(50)"`
	Experience  string    `gorm:"type:varchar(50)"`
	ExpectedCTC string    `gorm:"type:varchar(100)"`
	ResumeLink  string    `gorm:"type:varchar(1024)"`
	Stage       string    `gorm:"type:varchar(30)"`
	Error       string    `gorm:"type:text"`
	Status      string    `gorm:"type:varchar(30);default:'failed'"`
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (FailedCandidate) TableName() string {
	return "failed_candidates"
}

// FromCandidate 领域对象转表记录
func FromCandidate(c *types.Candidate) (*Candidate, error) {
	contact, err := json.Marshal(c.Contact)
	if err != nil {
		return nil, err
	}
	m := &Candidate{
		ID:              c.ID,
		CandidateUUID:   c.UUID,
		Name:            c.Name,
		Email:           c.Email,
		Phone:           c.Phone,
		ExperienceYears: c.ExperienceYears,
		CurrentLocation: c.CurrentLocation,
		NoticePeriod:    c.NoticePeriod,
		ExpectedCTC:     c.ExpectedCTC,
		Source:          c.Source,
		ResumeFilename:  c.ResumeFilename,
		ResumeObjectKey: c.ResumeObjectKey,
		FileMD5:         c.FileMD5,
		ResumeText:      c.ResumeText,
		ContactJSON:     datatypes.JSON(contact),
		SkillsMatch:     c.Scores.SkillsMatch,
		ExperienceMatch: c.Scores.ExperienceMatch,
		EducationMatch:  c.Scores.EducationMatch,
		KeywordsMatch:   c.Scores.KeywordsMatch,
		OverallScore:    c.Scores.OverallScore,
		ScoringMode:     c.ScoringMode,
		Status:          c.Status,
		CreatedAt:       c.CreatedAt,
	}
	if c.Explanation != nil {
		exp, err := json.Marshal(c.Explanation)
		if err != nil {
			return nil, err
		}
		m.ExplanationJSON = datatypes.JSON(exp)
	}
	return m, nil
}

// ToCandidate 表记录转领域对象，JSON 列损坏时忽略该列
func (m *Candidate) ToCandidate() *types.Candidate {
	c := &types.Candidate{
		ID:              m.ID,
		UUID:            m.CandidateUUID,
		Name:            m.Name,
		Email:           m.Email,
		Phone:           m.Phone,
		ExperienceYears: m.ExperienceYears,
		CurrentLocation: m.CurrentLocation,
		NoticePeriod:    m.NoticePeriod,
		ExpectedCTC:     m.ExpectedCTC,
		Source:          m.Source,
		ResumeFilename:  m.ResumeFilename,
		ResumeObjectKey: m.ResumeObjectKey,
		FileMD5:         m.FileMD5,
		ResumeText:      m.ResumeText,
		Scores: types.ScoringBreakdown{
			SkillsMatch:     m.SkillsMatch,
			ExperienceMatch: m.ExperienceMatch,
			EducationMatch:  m.EducationMatch,
			KeywordsMatch:   m.KeywordsMatch,
			OverallScore:    m.OverallScore,
		},
		ScoringMode: m.ScoringMode,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	}
	if len(m.ContactJSON) > 0 {
		var contact textclean.ContactInfo
		if json.Unmarshal(m.ContactJSON, &contact) == nil {
			c.Contact = contact
		}
	}
	if len(m.ExplanationJSON) > 0 {
		var exp types.ScoringExplanation
		if json.Unmarshal(m.ExplanationJSON, &exp) == nil {
			c.Explanation = &exp
		}
	}
	return c
}

// FromFailedCandidate 领域对象转表记录
func FromFailedCandidate(f *types.FailedCandidate) *FailedCandidate {
	return &FailedCandidate{
		ID:          f.ID,
		BatchID:     f.BatchID,
		RowNumber:   f.RowNumber,
		Name:        f.Name,
		Email:       f.Email,
		Phone:       f.Phone,
		Experience:  f.Experience,
		ExpectedCTC: f.ExpectedCTC,
		ResumeLink:  f.ResumeLink,
		Stage:       f.Stage,
		Error:       f.Error,
		Status:      f.Status,
		CreatedAt:   f.CreatedAt,
	}
}

func (m *FailedCandidate) ToFailedCandidate() *types.FailedCandidate {
	return &types.FailedCandidate{
		ID:          m.ID,
		BatchID:     m.BatchID,
		RowNumber:   m.RowNumber,
		Name:        m.Name,
		Email:       m.Email,
		Phone:       m.Phone,
		Experience:  m.Experience,
		ExpectedCTC: m.ExpectedCTC,
		ResumeLink:  m.ResumeLink,
		Stage:       m.Stage,
		Error:       m.Error,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	}
}
