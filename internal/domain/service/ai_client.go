package service

import (
	"context"
	"errors"
	"fmt"
)

// AIClient 定义大模型提供方接口，每个实例对应一个密钥
type AIClient interface {
	// Name 返回用于日志的提供方标识
	Name() string
	// Generate 根据提示词生成文本
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest 一次生成请求
type GenerateRequest struct {
	Prompt      string
	Temperature float64
}

// ErrorKind 提供方错误分类
type ErrorKind int

const (
	// KindRateLimited 限流或配额耗尽，触发故障转移
	KindRateLimited ErrorKind = iota + 1
	// KindAuth 认证失败
	KindAuth
	// KindNetwork 网络错误或超时
	KindNetwork
	// KindBadRequest 请求被拒绝
	KindBadRequest
	// KindBadResponse 响应结构不符合预期
	KindBadResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindBadRequest:
		return "bad_request"
	case KindBadResponse:
		return "bad_response"
	default:
		return "unknown"
	}
}

// ProviderError 提供方边界上的类型化错误
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError 构造提供方错误
func NewProviderError(provider string, kind ErrorKind, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, StatusCode: status, Err: err}
}

// IsRateLimited 判断错误是否为限流
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindRateLimited
}

var (
	// ErrProvidersExhausted 所有提供方都已限流
	ErrProvidersExhausted = errors.New("all llm providers exhausted")
	// ErrCallBudgetExceeded 本次运行的调用预算已用完
	ErrCallBudgetExceeded = errors.New("llm call budget exceeded")
)

// IsExhausted 判断错误是否意味着本次运行已无法再调用模型
func IsExhausted(err error) bool {
	return errors.Is(err, ErrProvidersExhausted) || errors.Is(err, ErrCallBudgetExceeded)
}
