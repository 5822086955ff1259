package service

import (
	"context"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

// Notifier 消息推送通道
type Notifier interface {
	// Send 推送一条文章报告，sourceURL 为空时不附带原文链接和反馈按钮
	Send(ctx context.Context, message, sourceURL string) bool
	// SendSummary 推送一条综合汇总
	SendSummary(ctx context.Context, message string) bool
}

// FeedbackPoller 拉取用户在消息平台上的反馈操作
type FeedbackPoller interface {
	// PollFeedback 返回 offset 之后的反馈和下一次拉取应使用的 offset
	PollFeedback(ctx context.Context, offset int) ([]model.FeedbackEvent, int, error)
}
