package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
	"github.com/wolfitem/ai-news-radar/internal/middleware"
)

// SleepFunc 可取消的等待，测试中替换为立即返回
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep 默认的等待实现
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EngineOptions 故障转移引擎的可选配置
type EngineOptions struct {
	Backoff     time.Duration                // 限流后的退避基数，按尝试次数线性增长
	CallTimeout time.Duration                // 单次调用超时，0表示不额外限制
	Budget      *middleware.RateLimiter      // 单次运行的调用预算
	Metrics     *middleware.MetricsCollector // 可选的指标收集器
	Sleep       SleepFunc                    // 等待实现
}

// Engine 按配置顺序依次尝试提供方
//
// 游标只向前移动：某个提供方返回限流后，本次运行内不会再使用它。
// 游标越过最后一个提供方后引擎即视为耗尽，之后的调用直接返回
// ErrProvidersExhausted，不会回绕。
type Engine struct {
	providers []AIClient
	cursor    int
	opts      EngineOptions
	log       *logger.ContextLogger
}

// NewEngine 创建引擎，每次运行创建一个新实例
func NewEngine(providers []AIClient, opts EngineOptions) *Engine {
	if opts.Sleep == nil {
		opts.Sleep = ContextSleep
	}
	return &Engine{
		providers: providers,
		opts:      opts,
		log:       logger.WithContext("engine"),
	}
}

// Exhausted 引擎是否已确定无法再调用任何提供方
func (e *Engine) Exhausted() bool {
	return e.cursor >= len(e.providers) || e.opts.Budget.Exhausted()
}

// Cursor 当前提供方的下标
func (e *Engine) Cursor() int {
	return e.cursor
}

// Generate 发送一次逻辑请求
//
// 成功时返回文本；所有提供方限流时返回 ErrProvidersExhausted；
// 其他错误立即中止本次调用并原样返回，不再尝试后续提供方。
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	attempt := 0
	for e.cursor < len(e.providers) {
		if !e.opts.Budget.Check() {
			status := e.opts.Budget.GetStatus()
			e.log.Warn("模型调用预算已用完", "used", status.Used, "limit", status.Limit)
			return "", fmt.Errorf("%w: %w", ErrCallBudgetExceeded, &middleware.RateLimitError{Status: status})
		}

		provider := e.providers[e.cursor]
		attempt++

		text, err := e.call(ctx, provider, req)
		if err == nil {
			return text, nil
		}

		if !IsRateLimited(err) {
			e.log.Error("模型调用失败，中止本次请求", "provider", provider.Name(), "error", err)
			return "", err
		}

		e.cursor++
		e.log.Warn("提供方限流，切换到下一个", "provider", provider.Name(), "next_index", e.cursor, "total", len(e.providers))
		if e.cursor >= len(e.providers) {
			break
		}

		if err := e.opts.Sleep(ctx, time.Duration(attempt)*e.opts.Backoff); err != nil {
			return "", err
		}
	}

	e.log.Error("所有模型提供方均已耗尽", "providers", len(e.providers))
	return "", ErrProvidersExhausted
}

func (e *Engine) call(ctx context.Context, provider AIClient, req GenerateRequest) (string, error) {
	if e.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := provider.Generate(ctx, req)
	if err != nil && ctx.Err() != nil && !IsRateLimited(err) {
		var pe *ProviderError
		if !errors.As(err, &pe) {
			err = NewProviderError(provider.Name(), KindNetwork, 0, err)
		}
	}
	e.opts.Metrics.RecordAPICall(time.Since(start), err == nil, IsRateLimited(err))
	return text, err
}
