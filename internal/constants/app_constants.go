package constants

// 候选人来源
const (
	SourceUpload = "upload"
	SourceSheet  = "sheet"
)

// 候选人状态
const (
	StatusScreened = "screened"
	StatusFailed   = "failed"
)

// ObjectKeyPrefix MinIO 中原始简历的对象前缀
const ObjectKeyPrefix = "resumes/"
