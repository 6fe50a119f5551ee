package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"resume-screener/internal/textclean"
)

const (
	// DefaultAPIURL Groq 的 OpenAI 兼容接口
	DefaultAPIURL = "https://api.groq.com/openai/v1/chat/completions"
	// DefaultModelName 默认模型
	DefaultModelName = "llama-3.1-70b-versatile"

	errorBodyPreview = 200
)

// OpenAIChatModel 通过 OpenAI 兼容的 chat/completions 接口实现 model.BaseChatModel
type OpenAIChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ChatModelOption 模型配置选项
type ChatModelOption func(*OpenAIChatModel)

// WithHTTPClient 替换HTTP客户端
func WithHTTPClient(c *http.Client) ChatModelOption {
	return func(m *OpenAIChatModel) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) ChatModelOption {
	return func(m *OpenAIChatModel) {
		if d > 0 {
			m.httpClient.Timeout = d
		}
	}
}

// WithModelLogger 设置日志
func WithModelLogger(logger zerolog.Logger) ChatModelOption {
	return func(m *OpenAIChatModel) {
		m.logger = logger
	}
}

// NewOpenAIChatModel 创建模型客户端
func NewOpenAIChatModel(apiKey, modelName, apiURL string, opts ...ChatModelOption) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultModelName
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultAPIURL
	}

	m := &OpenAIChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float32      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate 实现 model.BaseChatModel 接口，读取 choices[0].message.content
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	opts := model.GetCommonOptions(&model.Options{Model: &m.modelName}, options...)

	payload := chatCompletionRequest{
		Model:       m.modelName,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		TopP:        opts.TopP,
		Stop:        opts.Stop,
	}
	if opts.Model != nil && *opts.Model != "" {
		payload.Model = *opts.Model
	}
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		payload.Messages = append(payload.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", resp.Status, textclean.Preview(string(respBody), errorBodyPreview))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("API 响应中没有 choices")
	}

	m.logger.Debug().
		Str("model", payload.Model).
		Int("prompt_tokens", parsed.Usage.PromptTokens).
		Int("completion_tokens", parsed.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("模型调用完成")

	choice := parsed.Choices[0].Message
	role := schema.RoleType(choice.Role)
	if role == "" {
		role = schema.Assistant
	}
	return &schema.Message{Role: role, Content: choice.Content}, nil
}

// Stream 不支持流式输出
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("OpenAIChatModel 不支持 Stream")
}

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)
