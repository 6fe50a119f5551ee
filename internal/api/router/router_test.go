package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener/internal/api/handler"
	"resume-screener/internal/processor"
	"resume-screener/internal/requirements"
	"resume-screener/internal/scoring"
	"resume-screener/internal/storage"
)

const testJD = "Senior Backend Engineer. Required skills: Go, Docker, Kubernetes, PostgreSQL. " +
	"5+ years of experience building distributed systems. Bachelor's degree in Computer Science."

const testResume = "Jane Doe, jane@example.com, 555-123-4567. Backend engineer with Go, Docker and Kubernetes. " +
	"Experience: 2016 - present at Acme building distributed systems. Bachelor of Computer Science."

// plainExtractor 原样返回文件内容；以 BAD 开头时报提取失败
type plainExtractor struct{}

func (plainExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	if strings.HasPrefix(string(data), "BAD") {
		return "", assert.AnError
	}
	return string(data), nil
}

func (plainExtractor) OCREnabled() bool { return false }

func newTestEngine(t *testing.T, apiKeys []string) *route.Engine {
	t.Helper()
	scorer, err := scoring.NewEngine(scoring.DefaultWeights())
	require.NoError(t, err)

	comps := processor.Components{
		Extractor: plainExtractor{},
		Parser:    requirements.NewParser(),
		Scorer:    scorer,
	}
	comps.UseStorage(storage.NewMemoryStorage())
	svc, err := processor.NewService(comps)
	require.NoError(t, err)

	engine := route.NewEngine(config.NewOptions([]config.Option{}))
	RegisterRoutes(engine, handler.NewScreeningHandler(svc, zerolog.Nop()), apiKeys)
	return engine
}

func multipartBody(t *testing.T, fileField, filename string, content []byte, fields map[string]string) (*ut.Body, ut.Header) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	fw, err := w.CreateFormFile(fileField, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &ut.Body{Body: buf, Len: buf.Len()}, ut.Header{Key: "Content-Type", Value: w.FormDataContentType()}
}

func decode(t *testing.T, w *ut.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "响应应为JSON: %s", w.Body.String())
	return out
}

func setJob(t *testing.T, engine *route.Engine, headers ...ut.Header) {
	t.Helper()
	payload := `{"jd_text":"` + testJD + `"}`
	headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	w := ut.PerformRequest(engine, consts.MethodPost, "/api/v1/jd",
		&ut.Body{Body: strings.NewReader(payload), Len: len(payload)}, headers...)
	require.Equal(t, consts.StatusOK, w.Code, w.Body.String())
}

func candidateFields() map[string]string {
	return map[string]string{"name": "Jane Doe", "email": "jane@example.com", "phone": "555-123-4567"}
}

func TestAPIKeyAuth(t *testing.T) {
	engine := newTestEngine(t, []string{"secret"})

	w := ut.PerformRequest(engine, consts.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, consts.StatusOK, w.Code, "健康检查无需鉴权")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/candidates", nil)
	assert.Equal(t, consts.StatusUnauthorized, w.Code)

	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/candidates", nil,
		ut.Header{Key: APIKeyHeader, Value: "wrong"})
	assert.Equal(t, consts.StatusUnauthorized, w.Code)

	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/candidates", nil,
		ut.Header{Key: APIKeyHeader, Value: "secret"},
		ut.Header{Key: RequestIDHeader, Value: "req-1"})
	assert.Equal(t, consts.StatusOK, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}

func TestJobEndpoints(t *testing.T) {
	engine := newTestEngine(t, nil)

	w := ut.PerformRequest(engine, consts.MethodGet, "/api/v1/jd", nil)
	assert.Equal(t, consts.StatusBadRequest, w.Code, "未设置JD")

	form := "jd_text=too+short"
	w = ut.PerformRequest(engine, consts.MethodPost, "/api/v1/jd",
		&ut.Body{Body: strings.NewReader(form), Len: len(form)},
		ut.Header{Key: "Content-Type", Value: "application/x-www-form-urlencoded"})
	assert.Equal(t, consts.StatusBadRequest, w.Code)
	assert.Equal(t, processor.OpValidate, decode(t, w)["stage"])

	setJob(t, engine)

	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/jd", nil)
	require.Equal(t, consts.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, testJD, body["text"])
	reqs := body["requirements"].(map[string]any)
	assert.Contains(t, reqs["skills"], "Kubernetes")
}

func TestCandidateFlow(t *testing.T) {
	engine := newTestEngine(t, nil)

	b, h := multipartBody(t, "resume", "jane.pdf", []byte(testResume), candidateFields())
	w := ut.PerformRequest(engine, consts.MethodPost, "/api/v1/candidates/upload", b, h)
	assert.Equal(t, consts.StatusBadRequest, w.Code, "未设置JD时拒绝上传")

	setJob(t, engine)

	b, h = multipartBody(t, "resume", "jane.pdf", []byte(testResume), candidateFields())
	w = ut.PerformRequest(engine, consts.MethodPost, "/api/v1/candidates/upload", b, h)
	require.Equal(t, consts.StatusOK, w.Code, w.Body.String())
	up := decode(t, w)
	assert.Equal(t, float64(1), up["candidate_id"])
	scores := up["scores"].(map[string]any)
	assert.Greater(t, scores["overall_score"].(float64), 0.0)

	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/candidates", nil)
	require.Equal(t, consts.StatusOK, w.Code)
	list := decode(t, w)
	assert.Equal(t, float64(1), list["total"])
	first := list["candidates"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(1), first["rank"])
	assert.NotContains(t, first, "resume_text")

	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/candidates/1", nil)
	require.Equal(t, consts.StatusOK, w.Code)
	assert.Equal(t, testResume, decode(t, w)["resume_text"])

	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/candidates/1/resume", nil)
	assert.Equal(t, consts.StatusNotFound, w.Code, "未配置归档")

	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, consts.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, float64(1), stats["total_candidates"])
	assert.Equal(t, true, stats["jd_set"])

	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/candidates/abc", nil)
	assert.Equal(t, consts.StatusBadRequest, w.Code)

	w = ut.PerformRequest(engine, consts.MethodDelete, "/api/v1/candidates/1", nil)
	assert.Equal(t, consts.StatusOK, w.Code)
	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/candidates/1", nil)
	assert.Equal(t, consts.StatusNotFound, w.Code)

	w = ut.PerformRequest(engine, consts.MethodDelete, "/api/v1/candidates", nil)
	require.Equal(t, consts.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["deleted"])
}

func TestUploadErrors(t *testing.T) {
	engine := newTestEngine(t, nil)
	setJob(t, engine)

	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		want     int
	}{
		{name: "不支持的类型", filename: "cv.txt", content: testResume, fields: candidateFields(), want: consts.StatusBadRequest},
		{name: "提取失败", filename: "cv.pdf", content: "BAD scan", fields: candidateFields(), want: consts.StatusUnprocessableEntity},
		{name: "缺少邮箱", filename: "cv.pdf", content: testResume, fields: map[string]string{"name": "x", "phone": "1"}, want: consts.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, h := multipartBody(t, "resume", tt.filename, []byte(tt.content), tt.fields)
			w := ut.PerformRequest(engine, consts.MethodPost, "/api/v1/candidates/upload", b, h)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	form := "name=x"
	w := ut.PerformRequest(engine, consts.MethodPost, "/api/v1/candidates/upload",
		&ut.Body{Body: strings.NewReader(form), Len: len(form)},
		ut.Header{Key: "Content-Type", Value: "application/x-www-form-urlencoded"})
	assert.Equal(t, consts.StatusBadRequest, w.Code, "缺少文件")
}

func TestSheetEndpoints(t *testing.T) {
	engine := newTestEngine(t, nil)
	setJob(t, engine)

	b, h := multipartBody(t, "sheet", "c.csv", []byte("Name,Resume Link\nA,abc\n"), nil)
	w := ut.PerformRequest(engine, consts.MethodPost, "/api/v1/sheets/upload", b, h)
	assert.Equal(t, consts.StatusServiceUnavailable, w.Code, "未配置 Drive")

	body := `{"sheet_url":"https://docs.google.com/spreadsheets/d/sheet42/edit"}`
	w = ut.PerformRequest(engine, consts.MethodPost, "/api/v1/sheets/import",
		&ut.Body{Body: strings.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	assert.Equal(t, consts.StatusServiceUnavailable, w.Code, "未配置 Sheets")

	empty := `{"range":"Sheet1"}`
	w = ut.PerformRequest(engine, consts.MethodPost, "/api/v1/sheets/import",
		&ut.Body{Body: strings.NewReader(empty), Len: len(empty)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	assert.Equal(t, consts.StatusBadRequest, w.Code, "缺少表格链接")

	w = ut.PerformRequest(engine, consts.MethodGet, "/api/v1/sheets/failed", nil)
	require.Equal(t, consts.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["total"])

	w = ut.PerformRequest(engine, consts.MethodDelete, "/api/v1/sheets/failed", nil)
	assert.Equal(t, consts.StatusOK, w.Code)
}
