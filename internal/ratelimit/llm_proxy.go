package ratelimit

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedChatModel 调用前等待令牌的模型代理，不做重试
type RateLimitedChatModel struct {
	original    model.BaseChatModel
	rateLimiter *TokenBucket
}

// NewRateLimitedChatModel 创建限流代理，容量为QPM的一半
func NewRateLimitedChatModel(original model.BaseChatModel, qpm int) *RateLimitedChatModel {
	return &RateLimitedChatModel{
		original:    original,
		rateLimiter: NewTokenBucket(qpm, qpm/2),
	}
}

// Generate 等待令牌后调用原模型
func (rl *RateLimitedChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	if err := rl.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.Generate(ctx, messages, options...)
}

// Stream 等待令牌后调用原模型
func (rl *RateLimitedChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := rl.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.Stream(ctx, messages, options...)
}

var _ model.BaseChatModel = (*RateLimitedChatModel)(nil)
