package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener/internal/constants"
	"resume-screener/internal/extractor"
	"resume-screener/internal/storage"
	"resume-screener/internal/types"
)

const testJD = "We are hiring a senior Go engineer with Kubernetes experience and 5+ years of backend development."

// mockExtractor 以 BAD 开头的内容视为无法提取，其余原样返回
type mockExtractor struct{}

func (mockExtractor) Extract(_ context.Context, data []byte, filename string) (string, error) {
	if strings.HasPrefix(string(data), "BAD") {
		return "", &extractor.ExtractionError{Filename: filename, Op: "pdf", Kind: extractor.ErrInsufficientText}
	}
	return string(data), nil
}

func (mockExtractor) OCREnabled() bool { return true }

type mockParser struct{}

func (mockParser) ParseJD(context.Context, string) (*types.JobRequirements, error) {
	return &types.JobRequirements{Skills: []string{"Go", "Kubernetes"}}, nil
}

// mockScorer 简历文本中包含 scores 的键时返回对应总分，否则 50
type mockScorer struct {
	scores map[string]float64
	err    error
}

func (m *mockScorer) Score(_ context.Context, _, resumeText string, _ *types.JobRequirements) (*types.ScoreResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	overall := 50.0
	for key, v := range m.scores {
		if strings.Contains(resumeText, key) {
			overall = v
		}
	}
	return &types.ScoreResult{
		ScoringBreakdown: types.ScoringBreakdown{OverallScore: overall, SkillsMatch: overall},
		Explanation:      &types.ScoringExplanation{Overall: "ok"},
		Mode:             types.ModeRuleBased,
	}, nil
}

func (m *mockScorer) Mode() string { return types.ModeRuleBased }

type mockArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *mockArchive) Archive(_ context.Context, key string, data []byte, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *mockArchive) PresignedURL(_ context.Context, key string) (string, error) {
	return "https://minio.local/" + key + "?sig=1", nil
}

func (m *mockArchive) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// failingCandidates 写入总是失败
type failingCandidates struct {
	storage.CandidateRepository
}

func (failingCandidates) Create(context.Context, *types.Candidate) error {
	return errors.New("mysql: connection refused")
}

type testEnv struct {
	svc     *Service
	store   *storage.Storage
	scorer  *mockScorer
	archive *mockArchive
}

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)

func newTestEnv(t *testing.T, mutate func(c *Components), opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   storage.NewMemoryStorage(),
		scorer:  &mockScorer{scores: map[string]float64{}},
		archive: &mockArchive{objects: map[string][]byte{}},
	}
	comps := Components{Extractor: mockExtractor{}, Parser: mockParser{}, Scorer: env.scorer}
	comps.UseStorage(env.store)
	comps.Archive = env.archive
	if mutate != nil {
		mutate(&comps)
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	svc, err := NewService(comps, opts...)
	require.NoError(t, err)
	env.svc = svc
	return env
}

func (e *testEnv) setJob(t *testing.T) {
	t.Helper()
	_, err := e.svc.SetJobDescription(context.Background(), testJD)
	require.NoError(t, err)
}

func uploadReq(filename, content string) UploadRequest {
	return UploadRequest{
		Name:     "Alice Zhang",
		Email:    "alice@example.com",
		Phone:    "555-123-4567",
		Filename: filename,
		Data:     []byte(content),
	}
}

func TestNewServiceRequiresComponents(t *testing.T) {
	_, err := NewService(Components{Parser: mockParser{}, Scorer: &mockScorer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extractor")
}

func TestSetJobDescription(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, WithJobLength(50, 200))

	_, err := env.svc.SetJobDescription(ctx, "too short")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, OpValidate, OpOf(err))

	_, err = env.svc.SetJobDescription(ctx, strings.Repeat("x", 201))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.CurrentJob(ctx)
	assert.ErrorIs(t, err, ErrJobNotSet)

	job, err := env.svc.SetJobDescription(ctx, "  "+testJD+"\n")
	require.NoError(t, err)
	assert.Equal(t, testJD, job.Text)
	assert.Equal(t, fixedNow, job.UpdatedAt)

	current, err := env.svc.CurrentJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, testJD, current.Text)
	assert.Equal(t, []string{"Go", "Kubernetes"}, current.Requirements.Skills)
}

func TestScreenUploadSuccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.setJob(t)
	env.scorer.scores["Kubernetes"] = 82

	res, err := env.svc.ScreenUpload(ctx, uploadReq("CV.PDF", "Go and Kubernetes engineer, reach me at alice.z@mail.com"))
	require.NoError(t, err)

	c := res.Candidate
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, 82.0, res.Score.OverallScore)
	assert.Equal(t, 82.0, c.Scores.OverallScore)
	assert.Equal(t, constants.SourceUpload, c.Source)
	assert.Equal(t, constants.StatusScreened, c.Status)
	assert.Equal(t, "alice@example.com", c.Email, "表单填写的邮箱优先")
	assert.Equal(t, "alice.z@mail.com", c.Contact.Email)
	assert.Equal(t, fixedNow, c.CreatedAt)

	id := uuid.FromStringOrNil(c.UUID)
	require.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, byte(uuid.V7), id.Version())

	assert.Equal(t, constants.ObjectKeyPrefix+c.UUID+".pdf", c.ResumeObjectKey)
	assert.Contains(t, env.archive.objects, c.ResumeObjectKey)

	url, err := env.svc.ResumeURL(ctx, c.ID)
	require.NoError(t, err)
	assert.Contains(t, url, c.ResumeObjectKey)

	stored, err := env.svc.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ResumeText, stored.ResumeText)
}

func TestScreenUploadRejections(t *testing.T) {
	tests := []struct {
		name    string
		noJob   bool
		opts    []Option
		req     UploadRequest
		wantErr error
	}{
		{name: "不支持的扩展名", req: uploadReq("cv.txt", "text"), wantErr: ErrUnsupportedFile},
		{name: "文件过大", opts: []Option{WithFileLimits(8, nil)}, req: uploadReq("cv.pdf", "0123456789"), wantErr: ErrFileTooLarge},
		{name: "空文件", req: uploadReq("cv.pdf", ""), wantErr: ErrValidation},
		{
			name:    "邮箱格式错误",
			req:     func() UploadRequest { r := uploadReq("cv.pdf", "text"); r.Email = "not-an-email"; return r }(),
			wantErr: ErrValidation,
		},
		{
			name:    "缺少姓名",
			req:     func() UploadRequest { r := uploadReq("cv.pdf", "text"); r.Name = ""; return r }(),
			wantErr: ErrValidation,
		},
		{name: "未设置JD", noJob: true, req: uploadReq("cv.pdf", "text"), wantErr: ErrJobNotSet},
		{name: "提取失败", req: uploadReq("cv.pdf", "BAD scan"), wantErr: ErrExtractFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, tt.opts...)
			if !tt.noJob {
				env.setJob(t)
			}
			_, err := env.svc.ScreenUpload(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			list, err := env.svc.ListRanked(context.Background())
			require.NoError(t, err)
			assert.Empty(t, list, "失败的上传不应写入候选人")
		})
	}
}

func TestScreenUploadExtractionErrorKeepsKind(t *testing.T) {
	env := newTestEnv(t, nil)
	env.setJob(t)

	_, err := env.svc.ScreenUpload(context.Background(), uploadReq("scan.png", "BAD"))
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrInsufficientText)
	assert.Equal(t, OpExtract, OpOf(err))
}

func TestScreenUploadScoringError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.setJob(t)
	env.scorer.err = errors.New("collaborator returned 500")

	_, err := env.svc.ScreenUpload(context.Background(), uploadReq("cv.docx", "resume"))
	assert.ErrorIs(t, err, ErrScoreFailed)
	assert.Equal(t, OpScore, OpOf(err))
}

func TestScreenUploadDuplicate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, WithDedupe(true))
	env.setJob(t)

	first, err := env.svc.ScreenUpload(ctx, uploadReq("cv.pdf", "same resume"))
	require.NoError(t, err)
	sum := md5.Sum([]byte("same resume"))
	assert.Equal(t, hex.EncodeToString(sum[:]), first.Candidate.FileMD5)

	_, err = env.svc.ScreenUpload(ctx, uploadReq("copy.pdf", "same resume"))
	assert.ErrorIs(t, err, ErrDuplicateUpload)

	require.NoError(t, env.svc.DeleteCandidate(ctx, first.Candidate.ID))
	_, err = env.svc.ScreenUpload(ctx, uploadReq("copy.pdf", "same resume"))
	assert.NoError(t, err, "删除后允许重新上传")
}

func TestScreenUploadFailureReleasesMD5(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, WithDedupe(true))
	env.setJob(t)

	for i := 0; i < 2; i++ {
		_, err := env.svc.ScreenUpload(ctx, uploadReq("cv.pdf", "BAD content"))
		assert.ErrorIs(t, err, ErrExtractFailed, "第 %d 次应报提取失败而不是重复", i+1)
	}
}

func TestScreenUploadArchiveFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.setJob(t)
	env.archive.err = errors.New("minio down")

	res, err := env.svc.ScreenUpload(ctx, uploadReq("cv.pdf", "resume"))
	require.NoError(t, err)
	assert.Empty(t, res.Candidate.ResumeObjectKey)

	_, err = env.svc.ResumeURL(ctx, res.Candidate.ID)
	assert.ErrorIs(t, err, ErrResumeNotArchived)
}

func TestScreenUploadStoreFailureRemovesArchive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(c *Components) {
		c.Candidates = failingCandidates{CandidateRepository: c.Candidates}
	})
	env.setJob(t)

	_, err := env.svc.ScreenUpload(ctx, uploadReq("cv.pdf", "resume"))
	assert.ErrorIs(t, err, ErrStoreFailed)
	assert.Empty(t, env.archive.objects, "保存失败后不应留下归档对象")
}

func TestListRankedOrdersByScoreThenID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.setJob(t)
	env.scorer.scores = map[string]float64{"first": 70, "second": 90, "third": 70}

	for _, body := range []string{"first", "second", "third"} {
		_, err := env.svc.ScreenUpload(ctx, uploadReq(body+".pdf", body))
		require.NoError(t, err)
	}

	list, err := env.svc.ListRanked(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{2, 1, 3}, []int64{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, []int{1, 2, 3}, []int{list[0].Rank, list[1].Rank, list[2].Rank})
	assert.Equal(t, 90.0, list[0].OverallScore)
}

func TestCandidateLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, WithDedupe(true))
	env.setJob(t)

	_, err := env.svc.GetCandidate(ctx, 42)
	assert.ErrorIs(t, err, ErrCandidateNotFound)
	assert.ErrorIs(t, env.svc.DeleteCandidate(ctx, 42), ErrCandidateNotFound)

	_, err = env.svc.ScreenUpload(ctx, uploadReq("a.pdf", "a"))
	require.NoError(t, err)
	_, err = env.svc.ScreenUpload(ctx, uploadReq("b.pdf", "b"))
	require.NoError(t, err)

	n, err := env.svc.ClearCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	res, err := env.svc.ScreenUpload(ctx, uploadReq("a.pdf", "a"))
	require.NoError(t, err, "清空后去重集合也应重置")
	assert.Equal(t, int64(3), res.Candidate.ID, "ID 不复用")
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	empty, err := env.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalCandidates)
	assert.False(t, empty.JobSet)
	assert.Empty(t, empty.Distribution)

	env.setJob(t)
	add := func(score float64, at time.Time) {
		require.NoError(t, env.store.Candidates.Create(ctx, &types.Candidate{
			Name:      "c",
			Scores:    types.ScoringBreakdown{OverallScore: score},
			CreatedAt: at,
		}))
	}
	add(95, fixedNow.Add(-time.Hour))
	add(85, fixedNow)
	add(40, fixedNow.AddDate(0, 0, -1))

	stats, err := env.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalCandidates)
	assert.True(t, stats.JobSet)
	assert.Equal(t, 73.33, stats.AverageScore)
	assert.Equal(t, 95.0, stats.TopScore)
	assert.Equal(t, 40.0, stats.LowestScore)
	assert.Equal(t, 2, stats.ProcessedToday)
	assert.Equal(t, types.ScoreDistribution{
		"90-100": 1, "80-89": 1, "70-79": 0, "60-69": 0, "0-59": 1,
	}, stats.Distribution)
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(c *Components) {
		c.Pinger = func(context.Context) map[string]string {
			return map[string]string{"mysql": "", "redis": "dial tcp: connection refused"}
		}
	}, WithCollaborator(true))

	h := env.svc.Health(ctx)
	assert.Equal(t, "degraded", h.Status)
	assert.True(t, h.CollaboratorConfigured)
	assert.True(t, h.OCREnabled)
	assert.Equal(t, types.ModeRuleBased, h.ScoringMode)
	assert.False(t, h.JobSet)

	env.setJob(t)
	assert.True(t, env.svc.Health(ctx).JobSet)
}

func TestScreeningErrorFormat(t *testing.T) {
	cause := errors.New("EOF")
	err := NewDownloadError("row 3", cause)

	assert.Equal(t, "下载简历失败 (操作:download, 对象:row 3): EOF", err.Error())
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, OpDownload, OpOf(err))
	assert.Equal(t, "", OpOf(cause))
}
