package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIChatModelGenerate(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":10,"completion_tokens":3}}`))
	}))
	defer srv.Close()

	m, err := NewOpenAIChatModel("gsk-test", "llama-test", srv.URL)
	require.NoError(t, err)

	resp, err := m.Generate(context.Background(),
		[]*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("hi")},
		model.WithTemperature(0.3), model.WithMaxTokens(1500))
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, schema.Assistant, resp.Role)
	assert.Equal(t, "llama-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, float64(*got.Temperature), 1e-6)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 1500, *got.MaxTokens)
}

func TestOpenAIChatModelNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	m, err := NewOpenAIChatModel("k", "", srv.URL)
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestNewOpenAIChatModelRequiresKey(t *testing.T) {
	_, err := NewOpenAIChatModel("  ", "", "")
	assert.Error(t, err)
}

type stubModel struct {
	content string
	err     error
	opts    *model.Options
}

func (s *stubModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.opts = model.GetCommonOptions(&model.Options{}, opts...)
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.content, nil), nil
}

func (s *stubModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestChatCompleter(t *testing.T) {
	stub := &stubModel{content: "hello"}
	c := NewChatCompleter(stub)

	out, err := c.Complete(context.Background(), "sys", "user", 0.2, 1000)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	require.NotNil(t, stub.opts.MaxTokens)
	assert.Equal(t, 1000, *stub.opts.MaxTokens)

	stub.err = errors.New("connection refused")
	_, err = c.Complete(context.Background(), "sys", "user", 0.2, 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)

	stub.err = nil
	stub.content = "   "
	_, err = c.Complete(context.Background(), "sys", "user", 0.2, 1000)
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable, "空响应也视为服务不可用")
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
	}{
		{name: "纯JSON", input: `{"skills_match": 80}`, key: "skills_match"},
		{name: "代码块", input: "Here you go:\n```json\n{\"skills_match\": 80}\n```\nThanks", key: "skills_match"},
		{name: "无语言标记的代码块", input: "```\n{\"a\": 1}\n```", key: "a"},
		{name: "夹在文本中", input: `Result: {"a": {"b": "x}y"}} end`, key: "a"},
		{name: "BOM", input: "\ufeff{\"a\": 1}", key: "a"},
		{name: "未转义引号", input: `prefix {"reason": "he said "great" work", "a": 1}`, key: "reason"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ExtractJSONObject(tt.input)
			require.NoError(t, err)
			assert.Contains(t, obj, tt.key)
		})
	}

	_, err := ExtractJSONObject("no json here")
	assert.ErrorIs(t, err, ErrNoJSONObject)

	_, err = ExtractJSONObject(`[1, 2, 3]`)
	assert.ErrorIs(t, err, ErrNoJSONObject, "数组不是对象")
}

func TestSanitizeJSON(t *testing.T) {
	in := `{"msg": "say "hi" now"}`
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(sanitizeJSON(in)), &v))
	assert.Equal(t, `say "hi" now`, v["msg"])
}
