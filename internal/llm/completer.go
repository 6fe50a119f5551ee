// Package llm 封装外部推理服务：OpenAI 兼容的模型客户端、Completer 抽象以及响应中的 JSON 提取
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrCollaboratorUnavailable 推理服务调用失败的唯一错误类型
var ErrCollaboratorUnavailable = errors.New("推理服务不可用")

// Completer 评分和需求解析所依赖的唯一能力
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

// ChatCompleter 把任意 eino 聊天模型适配为 Completer
type ChatCompleter struct {
	model model.BaseChatModel
}

// NewChatCompleter 创建适配器
func NewChatCompleter(m model.BaseChatModel) *ChatCompleter {
	return &ChatCompleter{model: m}
}

// Complete 发送 system + user 两条消息，返回模型输出文本
func (c *ChatCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	opts := []model.Option{model.WithTemperature(float32(temperature))}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}

	resp, err := c.model.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCollaboratorUnavailable, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: 模型返回空响应", ErrCollaboratorUnavailable)
	}
	return resp.Content, nil
}

// CompleterFunc 便于测试的函数适配
type CompleterFunc func(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)

// Complete 调用函数本身
func (f CompleterFunc) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	return f(ctx, systemPrompt, userPrompt, temperature, maxTokens)
}
