package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/wolfitem/ai-news-radar/internal/domain/service"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
)

const defaultMaxTokens = 2048

// OpenAIClient OpenAI兼容接口的客户端，实现service.AIClient接口
//
// 每次Generate只发一次请求，重试和故障转移由引擎负责。
type OpenAIClient struct {
	name      string
	model     string
	maxTokens int
	client    *openai.Client
}

// NewOpenAIClient 创建新的OpenAI兼容客户端
//
// baseURL 形如 https://api.deepseek.com/v1，带 /chat/completions 后缀的完整地址也可以。
func NewOpenAIClient(name, baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *OpenAIClient {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL = normalizeBaseURL(baseURL); baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 60 * time.Second,
			TLSHandshakeTimeout:   15 * time.Second,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	return &OpenAIClient{
		name:      name,
		model:     model,
		maxTokens: maxTokens,
		client:    openai.NewClientWithConfig(config),
	}
}

func normalizeBaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	return strings.TrimSuffix(raw, "/chat/completions")
}

// Name 提供方标识
func (c *OpenAIClient) Name() string {
	return c.name
}

// Generate 调用 chat/completions 接口
func (c *OpenAIClient) Generate(ctx context.Context, req service.GenerateRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		kind, status := classifyOpenAIError(err)
		return "", service.NewProviderError(c.name, kind, status, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", service.NewProviderError(c.name, service.KindBadResponse, http.StatusOK, errors.New("响应不包含有效内容"))
	}

	logger.Debug("API调用成功", "provider", c.name, "prompt_tokens", resp.Usage.PromptTokens, "total_tokens", resp.Usage.TotalTokens)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyOpenAIError 根据SDK返回的错误类型分类，返回错误类型和HTTP状态码
func classifyOpenAIError(err error) (service.ErrorKind, int) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode), apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode), reqErr.HTTPStatusCode
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return service.KindBadResponse, http.StatusOK
	}
	// 连接失败、超时等传输层错误
	return service.KindNetwork, 0
}

// classifyStatus 把HTTP状态码映射为错误类型
func classifyStatus(status int) service.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return service.KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return service.KindAuth
	case status >= 500:
		return service.KindNetwork
	default:
		return service.KindBadRequest
	}
}
