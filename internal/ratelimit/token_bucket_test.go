package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllow(t *testing.T) {
	tb := NewTokenBucket(60, 2)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "容量耗尽后应拒绝")
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryWithBackoffRetriesTransientErrors(t *testing.T) {
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 3)

	attempts := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("API 请求失败，状态 429 Too Many Requests")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoffStopsOnPermanentError(t *testing.T) {
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 3)

	attempts := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		attempts++
		return errors.New("缺少必填字段")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "不可重试的错误不应重试")
}

func TestRetryWithBackoffGivesUpAfterMaxRetries(t *testing.T) {
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 2)

	attempts := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		attempts++
		return errors.New("i/o timeout")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithCustomPredicate(t *testing.T) {
	sentinel := errors.New("下载失败")
	tb := NewTokenBucket(6000, 10).WithRetryPolicy(time.Millisecond, 1).
		WithRetryable(func(err error) bool { return errors.Is(err, sentinel) })

	attempts := 0
	_ = tb.RetryWithBackoff(context.Background(), func() error {
		attempts++
		return sentinel
	})
	assert.Equal(t, 2, attempts)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.True(t, IsRetryableError(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryableError(errors.New("unexpected EOF")))
	assert.False(t, IsRetryableError(errors.New("invalid api key")))
}

type countingModel struct {
	calls int
}

func (m *countingModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	m.calls++
	return schema.AssistantMessage("ok", nil), nil
}

func (m *countingModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestRateLimitedChatModelDoesNotRetry(t *testing.T) {
	inner := &countingModel{}
	limited := NewRateLimitedChatModel(inner, 600)

	msg, err := limited.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	assert.Equal(t, 1, inner.calls)

	_, err = limited.Stream(context.Background(), nil)
	assert.Error(t, err)
}
