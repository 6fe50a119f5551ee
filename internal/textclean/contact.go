package textclean

import "regexp"

// ContactInfo 从简历文本中识别出的联系方式，未找到的字段为空
type ContactInfo struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
}

var (
	emailRe    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	phoneRe    = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	linkedinRe = regexp.MustCompile(`(?i)(?:linkedin\.com/in/|linkedin\.com/pub/)[\w\-]+`)
	githubRe   = regexp.MustCompile(`(?i)github\.com/[\w\-]+`)
)

// ExtractContactInfo 每个字段取第一个匹配
func ExtractContactInfo(text string) ContactInfo {
	return ContactInfo{
		Email:    emailRe.FindString(text),
		Phone:    phoneRe.FindString(text),
		LinkedIn: linkedinRe.FindString(text),
		GitHub:   githubRe.FindString(text),
	}
}

// IsEmpty 是否未识别到任何联系方式
func (c ContactInfo) IsEmpty() bool {
	return c == ContactInfo{}
}
