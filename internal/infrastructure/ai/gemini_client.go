package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wolfitem/ai-news-radar/internal/domain/service"
)

const defaultGeminiModel = "gemini-2.5-flash-lite"

// GeminiClient 基于 generative-ai-go 的Gemini客户端，实现service.AIClient接口
type GeminiClient struct {
	name      string
	model     string
	maxTokens int
	client    *genai.Client
}

// NewGeminiClient 创建Gemini客户端，连接在第一次请求时建立
func NewGeminiClient(ctx context.Context, name, apiKey, model string, maxTokens int, opts ...option.ClientOption) (*GeminiClient, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建Gemini客户端失败: %w", err)
	}
	return &GeminiClient{name: name, model: model, maxTokens: maxTokens, client: client}, nil
}

// Name 提供方标识
func (c *GeminiClient) Name() string {
	return c.name
}

// Close 关闭底层连接
func (c *GeminiClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Generate 调用 GenerateContent
func (c *GeminiClient) Generate(ctx context.Context, req service.GenerateRequest) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(float32(req.Temperature))
	if c.maxTokens > 0 {
		model.SetMaxOutputTokens(int32(c.maxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", service.NewProviderError(c.name, classifyGeminiError(err), httpCode(err), err)
	}

	text := responseText(resp)
	if text == "" {
		return "", service.NewProviderError(c.name, service.KindBadResponse, 0, errors.New("Gemini未返回文本"))
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

// classifyGeminiError 按HTTP状态或gRPC状态码分类
func classifyGeminiError(err error) service.ErrorKind {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return service.KindBadResponse
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return service.KindNetwork
	}

	if code := httpCode(err); code > 0 {
		return classifyStatus(code)
	}

	switch grpcCode(err) {
	case codes.ResourceExhausted:
		return service.KindRateLimited
	case codes.Unauthenticated, codes.PermissionDenied:
		return service.KindAuth
	case codes.Unavailable, codes.DeadlineExceeded, codes.Internal:
		return service.KindNetwork
	case codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound:
		return service.KindBadRequest
	}

	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return service.KindRateLimited
	}
	return service.KindNetwork
}

func httpCode(err error) int {
	if ae, ok := apierror.FromError(err); ok && ae.HTTPCode() > 0 {
		return ae.HTTPCode()
	}
	return 0
}

func grpcCode(err error) codes.Code {
	if ae, ok := apierror.FromError(err); ok && ae.GRPCStatus() != nil {
		return ae.GRPCStatus().Code()
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Unknown
}

var (
	_ service.AIClient = (*GeminiClient)(nil)
	_ service.AIClient = (*OpenAIClient)(nil)
)
