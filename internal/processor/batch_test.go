package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener/internal/constants"
	"resume-screener/internal/source"
	"resume-screener/internal/storage"
	"resume-screener/internal/types"
)

// mockDownloader 按链接返回内容；transient 中的链接先失败指定次数
type mockDownloader struct {
	mu        sync.Mutex
	files     map[string]string
	permanent map[string]error
	transient map[string]int
	calls     map[string]int
}

func newMockDownloader() *mockDownloader {
	return &mockDownloader{
		files:     map[string]string{},
		permanent: map[string]error{},
		transient: map[string]int{},
		calls:     map[string]int{},
	}
}

func (m *mockDownloader) Download(_ context.Context, link string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[link]++
	if err, ok := m.permanent[link]; ok {
		return nil, "", err
	}
	if m.transient[link] > 0 {
		m.transient[link]--
		return nil, "", errors.New("read: connection reset by peer")
	}
	body, ok := m.files[link]
	if !ok {
		return nil, "", errors.New("404 file not found")
	}
	return []byte(body), link + ".pdf", nil
}

type mockQueue struct {
	mu         sync.Mutex
	published  []*storage.BatchItemMessage
	publishErr error
	handler    func(ctx context.Context, msg *storage.BatchItemMessage) bool
	consumers  int
}

func (q *mockQueue) PublishBatchItem(_ context.Context, msg *storage.BatchItemMessage) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, msg)
	return nil
}

func (q *mockQueue) ConsumeBatchItems(handler func(ctx context.Context, msg *storage.BatchItemMessage) bool) (chan<- struct{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
	q.consumers++
	return make(chan struct{}), nil
}

type mockSheets struct {
	rows []types.SheetRow
	err  error
	link string
	rng  string
}

func (m *mockSheets) ReadRows(_ context.Context, link, rangeName string) ([]types.SheetRow, error) {
	m.link, m.rng = link, rangeName
	return m.rows, m.err
}

const sheetCSV = "Candidate Name,Email Address,Phone No.,Experience,Expected CTC,Resume Link\n" +
	"Alice,alice@example.com,555-111-2222,5 years,30L,alice\n" +
	"Bob,bob@example.com,,3,20L,\n" +
	"Carol,carol@example.com,555-333-4444,2,10L,missing\n" +
	"Dave,,555-555-6666,7,40L,dave\n"

func fastBatch() []Option {
	return []Option{WithBatchPolicy(2, 2, time.Millisecond), WithDriveQPM(60000)}
}

func TestProcessSheetInline(t *testing.T) {
	ctx := context.Background()
	dl := newMockDownloader()
	dl.files["alice"] = "Alice resume Kubernetes"
	dl.files["dave"] = "Dave resume, contact dave@mail.io"
	dl.transient["dave"] = 1

	env := newTestEnv(t, func(c *Components) { c.Downloader = dl }, fastBatch()...)
	env.setJob(t)
	env.scorer.scores["Kubernetes"] = 88

	res, err := env.svc.ProcessSheet(ctx, "candidates.csv", []byte(sheetCSV))
	require.NoError(t, err)
	assert.Equal(t, BatchCompleted, res.Status)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 4, res.TotalRows)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 2, res.FailCount)

	require.Len(t, res.Failed, 2)
	assert.Equal(t, 3, res.Failed[0].RowNumber)
	assert.Equal(t, OpValidate, res.Failed[0].Stage)
	assert.Equal(t, 4, res.Failed[1].RowNumber)
	assert.Equal(t, OpDownload, res.Failed[1].Stage)
	assert.Equal(t, "missing", res.Failed[1].ResumeLink)
	assert.Equal(t, 1, dl.calls["missing"], "永久错误不重试")
	assert.Equal(t, 2, dl.calls["dave"], "临时错误重试一次后成功")

	failed, err := env.svc.FailedCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, res.BatchID, failed[0].BatchID)
	assert.Equal(t, constants.StatusFailed, failed[0].Status)

	list, err := env.svc.ListRanked(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alice", list[0].Name)
	assert.Equal(t, 88.0, list[0].OverallScore)
	assert.Equal(t, constants.SourceSheet, list[0].Source)

	dave, err := env.svc.GetCandidate(ctx, list[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "dave@mail.io", dave.Email, "表格邮箱为空时使用简历中的邮箱")
	assert.Equal(t, "40L", dave.ExpectedCTC)
	assert.Equal(t, "dave.pdf", dave.ResumeFilename)

	n, err := env.svc.ClearFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestProcessSheetExtractionErrorIsNotRetried(t *testing.T) {
	dl := newMockDownloader()
	dl.files["scan"] = "BAD image"
	env := newTestEnv(t, func(c *Components) { c.Downloader = dl }, fastBatch()...)
	env.setJob(t)

	csv := "Name,Resume\nEve,scan\n"
	res, err := env.svc.ProcessSheet(context.Background(), "s.csv", []byte(csv))
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, OpExtract, res.Failed[0].Stage)
	assert.Equal(t, 1, dl.calls["scan"])
}

func TestProcessSheetPreconditions(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t, func(c *Components) { c.Downloader = newMockDownloader() })
	_, err := env.svc.ProcessSheet(ctx, "s.csv", []byte(sheetCSV))
	assert.ErrorIs(t, err, ErrJobNotSet)

	env.setJob(t)
	_, err = env.svc.ProcessSheet(ctx, "s.ods", []byte(sheetCSV))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.ProcessSheet(ctx, "s.csv", []byte("Name,Email\nA,a@b.co\n"))
	assert.ErrorIs(t, err, ErrValidation)

	noDrive := newTestEnv(t, nil)
	noDrive.setJob(t)
	_, err = noDrive.svc.ProcessSheet(ctx, "s.csv", []byte(sheetCSV))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestProcessSheetQueued(t *testing.T) {
	ctx := context.Background()
	dl := newMockDownloader()
	dl.files["alice"] = "Alice resume"
	dl.files["dave"] = "Dave resume"
	queue := &mockQueue{}

	env := newTestEnv(t, func(c *Components) {
		c.Downloader = dl
		c.Queue = queue
	}, fastBatch()...)
	env.setJob(t)

	res, err := env.svc.ProcessSheet(ctx, "candidates.csv", []byte(sheetCSV))
	require.NoError(t, err)
	assert.Equal(t, BatchQueued, res.Status)
	assert.Equal(t, 4, res.TotalRows)
	assert.Equal(t, 3, res.QueuedRows)
	assert.Equal(t, 1, res.FailCount)
	require.Len(t, queue.published, 3)
	assert.Equal(t, res.BatchID, queue.published[0].BatchID)
	assert.Equal(t, "candidates.csv", queue.published[0].SourceFile)

	list, err := env.svc.ListRanked(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "入队后尚未处理")

	stop, err := env.svc.StartBatchConsumer(ctx, 2)
	require.NoError(t, err)
	defer stop()
	assert.Equal(t, 2, queue.consumers)
	require.NotNil(t, queue.handler)

	for _, msg := range queue.published {
		assert.True(t, queue.handler(ctx, msg), "处理失败的行也应确认")
	}

	list, err = env.svc.ListRanked(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	failed, err := env.svc.FailedCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, OpDownload, failed[1].Stage)
}

func TestProcessSheetEnqueueFailure(t *testing.T) {
	queue := &mockQueue{publishErr: errors.New("channel closed")}
	env := newTestEnv(t, func(c *Components) {
		c.Downloader = newMockDownloader()
		c.Queue = queue
	})
	env.setJob(t)

	res, err := env.svc.ProcessSheet(context.Background(), "c.csv", []byte(sheetCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, res.QueuedRows)
	assert.Equal(t, 4, res.FailCount)
	assert.Equal(t, OpEnqueue, res.Failed[1].Stage)
}

func TestHandleBatchItemStopsOnCancel(t *testing.T) {
	dl := newMockDownloader()
	dl.transient["slow"] = 100
	env := newTestEnv(t, func(c *Components) { c.Downloader = dl },
		WithBatchPolicy(1, 5, 50*time.Millisecond), WithDriveQPM(60000))
	env.setJob(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	msg := &storage.BatchItemMessage{BatchID: "b1", Row: rowWithLink(2, "slow")}
	assert.False(t, env.svc.HandleBatchItem(ctx, nil, msg), "中断时消息应重新投递")

	failed, err := env.svc.FailedCandidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestStartBatchConsumerRequiresQueue(t *testing.T) {
	env := newTestEnv(t, func(c *Components) { c.Downloader = newMockDownloader() })
	_, err := env.svc.StartBatchConsumer(context.Background(), 1)
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}

func TestRetryableRowError(t *testing.T) {
	assert.True(t, retryableRowError(NewDownloadError("row 2", errors.New("i/o timeout"))))
	assert.False(t, retryableRowError(NewDownloadError("row 2", errors.New("403 forbidden"))))
	assert.False(t, retryableRowError(NewExtractError("row 2", errors.New("timeout while rendering"))))
}

func rowWithLink(n int, link string) types.SheetRow {
	return types.SheetRow{RowNumber: n, Name: "Row", ResumeLink: link}
}

func TestProcessSheetURL(t *testing.T) {
	ctx := context.Background()
	dl := newMockDownloader()
	dl.files["frank"] = "Frank resume Kubernetes"
	sheets := &mockSheets{rows: []types.SheetRow{
		{RowNumber: 2, Name: "Frank", Email: "frank@example.com", ResumeLink: "frank"},
		{RowNumber: 3, Name: "Grace"},
	}}

	env := newTestEnv(t, func(c *Components) {
		c.Downloader = dl
		c.Sheets = sheets
	}, fastBatch()...)
	env.setJob(t)

	link := "https://docs.google.com/spreadsheets/d/sheet42/edit"
	res, err := env.svc.ProcessSheetURL(ctx, link, "Candidates")
	require.NoError(t, err)
	assert.Equal(t, link, sheets.link)
	assert.Equal(t, "Candidates", sheets.rng)
	assert.Equal(t, BatchCompleted, res.Status)
	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 3, res.Failed[0].RowNumber)
	assert.Equal(t, OpValidate, res.Failed[0].Stage)

	list, err := env.svc.ListRanked(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Frank", list[0].Name)
	assert.Equal(t, constants.SourceSheet, list[0].Source)
}

func TestProcessSheetURLErrors(t *testing.T) {
	ctx := context.Background()

	noSheets := newTestEnv(t, func(c *Components) { c.Downloader = newMockDownloader() })
	noSheets.setJob(t)
	_, err := noSheets.svc.ProcessSheetURL(ctx, "sheet42", "")
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	sheets := &mockSheets{err: source.ErrInvalidSheetURL}
	env := newTestEnv(t, func(c *Components) {
		c.Downloader = newMockDownloader()
		c.Sheets = sheets
	})
	env.setJob(t)
	_, err = env.svc.ProcessSheetURL(ctx, "https://example.com", "")
	assert.ErrorIs(t, err, ErrValidation)

	sheets.err = errors.New("googleapi: Error 403: The caller does not have permission")
	_, err = env.svc.ProcessSheetURL(ctx, "sheet42", "")
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.Equal(t, OpDownload, OpOf(err))
}
