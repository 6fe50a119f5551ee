package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// JobModulePrefix 岗位模块
	JobModulePrefix = "job"
	// FileModulePrefix 文件模块
	FileModulePrefix = "file"

	// EntityCurrent 当前生效的实体
	EntityCurrent = "current"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"

	// KeyCurrentJob 当前JD及其解析出的需求 (STRING, JSON)
	// 格式: app:job:current
	KeyCurrentJob = AppPrefix + ":" + JobModulePrefix + ":" + EntityCurrent

	// KeyFileMD5Set 原始文件MD5集合，用于上传去重 (SET)
	// 格式: app:file:dedup_set
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet
)
