package requirements

// skillVocabulary 常见技术技能，按原样大小写在JD中匹配
var skillVocabulary = []string{
	// 语言
	"Python", "Java", "JavaScript", "TypeScript", "Golang", "Rust", "C++", "C#", "Ruby", "PHP",
	"Kotlin", "Swift", "Scala", "Perl", "Bash",
	// Web 与框架
	"FastAPI", "Django", "Flask", "Spring", "Spring Boot", "Node.js", "React", "Angular",
	"Vue", "Next.js", "HTML", "CSS", "REST", "GraphQL", "gRPC", ".NET",
	// 数据
	"SQL", "NoSQL", "MySQL", "PostgreSQL", "MongoDB", "Redis", "Elasticsearch", "Kafka", "RabbitMQ",
	"Spark", "Hadoop", "Airflow", "Pandas", "NumPy", "Tableau", "Power BI", "Excel",
	// 机器学习
	"Machine Learning", "Deep Learning", "TensorFlow", "PyTorch", "NLP", "Computer Vision", "LLM",
	"scikit-learn",
	// 云与运维
	"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Terraform", "Ansible", "Jenkins", "CI/CD",
	"Linux", "Git", "Microservices",
	// 方法
	"Agile", "Scrum", "Jira",
}

// certificationVocabulary 常见证书，大小写不敏感匹配，输出规范写法
var certificationVocabulary = []string{
	"PMP", "CISSP", "CISA", "CISM", "CCNA", "CCNP", "CKA", "CKAD", "OSCP", "ITIL", "Six Sigma",
	"AWS Certified", "Azure Certified", "Google Cloud Certified", "Certified Scrum Master", "CSM",
	"CompTIA Security+", "CPA", "CFA", "PRINCE2",
}

// stopWords 关键词提取时丢弃的常见词
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "and", "are", "as", "at", "be", "been", "but", "by", "can", "for", "from", "has",
		"have", "having", "in", "into", "is", "it", "its", "of", "on", "or", "our", "that", "the",
		"their", "this", "to", "we", "will", "with", "you", "your", "who", "what", "which", "about",
		"all", "also", "any", "more", "must", "not", "other", "should", "such", "than", "then",
		"there", "these", "they", "those", "well", "would", "able", "ability", "etc", "including",
		"looking", "need", "needs", "required", "requires", "require", "requirement", "requirements",
		"preferred", "plus", "strong", "good", "excellent", "skills", "skill", "years", "year",
		"candidate", "candidates", "role", "job", "position", "work", "working", "team", "join",
		"knowledge", "understanding", "using", "use", "new", "least", "minimum", "like", "based",
	} {
		stopWords[w] = struct{}{}
	}
}
