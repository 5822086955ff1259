package middleware

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter 限制窗口期内的调用次数，用于保护免费配额
type RateLimiter struct {
	mu            sync.Mutex
	requestsCount int64
	lastReset     time.Time
	window        time.Duration
	maxRequests   int64
	now           func() time.Time
}

// NewRateLimiter 创建新的速率限制器，maxRequests<=0 表示不限制
func NewRateLimiter(maxRequests int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		lastReset:   time.Now(),
		now:         time.Now,
	}
}

// NewRunBudget 创建只在单次运行内生效的调用预算
func NewRunBudget(maxCalls int) *RateLimiter {
	return NewRateLimiter(int64(maxCalls), 24*time.Hour)
}

// Check 检查是否超过限额，未超过时占用一次额度
func (rl *RateLimiter) Check() bool {
	if rl == nil || rl.maxRequests <= 0 {
		return true
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// 重置窗口周期
	if now.Sub(rl.lastReset) >= rl.window {
		rl.requestsCount = 0
		rl.lastReset = now
	}

	if rl.requestsCount < rl.maxRequests {
		rl.requestsCount++
		return true
	}

	return false
}

// Exhausted 额度是否已用完（不占用额度）
func (rl *RateLimiter) Exhausted() bool {
	if rl == nil || rl.maxRequests <= 0 {
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.now().Sub(rl.lastReset) >= rl.window {
		return false
	}
	return rl.requestsCount >= rl.maxRequests
}

// GetStatus 获取当前状态
func (rl *RateLimiter) GetStatus() Status {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	remaining := rl.maxRequests - rl.requestsCount
	if remaining < 0 {
		remaining = 0
	}

	var percentUsed float64
	if rl.maxRequests > 0 {
		percentUsed = float64(rl.requestsCount) / float64(rl.maxRequests) * 100
	}

	return Status{
		Limit:       rl.maxRequests,
		Used:        rl.requestsCount,
		Remaining:   remaining,
		PercentUsed: percentUsed,
		ResetIn:     rl.window - now.Sub(rl.lastReset),
	}
}

// Status 速率限制状态
type Status struct {
	Limit       int64
	Used        int64
	Remaining   int64
	PercentUsed float64
	ResetIn     time.Duration
}

// RateLimitError 限流错误
type RateLimitError struct {
	Status Status
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d/%d used, reset in %v",
		e.Status.Used, e.Status.Limit, e.Status.ResetIn.Round(time.Second))
}
