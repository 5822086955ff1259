package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/domain/service"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
)

// UpdateOffsetKey app_state 中保存Telegram更新偏移量的键
const UpdateOffsetKey = "telegram_update_offset"

// SentLookup 根据截断哈希查找推送记录
type SentLookup interface {
	FindByHashPrefix(prefix string) (*model.DeliveryRecord, error)
}

// FeedbackSink 保存反馈
type FeedbackSink interface {
	Save(record model.FeedbackRecord) error
}

// FeedbackService 把消息平台上的反馈同步到本地存储
type FeedbackService struct {
	poller   service.FeedbackPoller
	sent     SentLookup
	feedback FeedbackSink
	state    service.StateStore
}

// NewFeedbackService 创建反馈同步服务
func NewFeedbackService(poller service.FeedbackPoller, sent SentLookup, feedback FeedbackSink, state service.StateStore) *FeedbackService {
	return &FeedbackService{poller: poller, sent: sent, feedback: feedback, state: state}
}

// Sync 拉取新的反馈并保存，返回保存的条数
//
// 找不到对应推送记录的反馈被跳过。处理中途出错时偏移量停在出错的那条
// 更新上，已保存的反馈不会在下次同步时被重复拉取。
func (s *FeedbackService) Sync(ctx context.Context) (int, error) {
	offset := 0
	if raw, ok, err := s.state.GetState(UpdateOffsetKey); err != nil {
		return 0, err
	} else if ok {
		if n, err := strconv.Atoi(raw); err == nil {
			offset = n
		}
	}

	events, next, err := s.poller.PollFeedback(ctx, offset)
	if err != nil {
		return 0, fmt.Errorf("拉取反馈失败: %w", err)
	}

	saved := 0
	for _, e := range events {
		ok, err := s.store(e)
		if err != nil {
			if e.UpdateID > offset {
				if serr := s.state.SetState(UpdateOffsetKey, strconv.Itoa(e.UpdateID)); serr != nil {
					logger.Warn("保存更新偏移量失败", "error", serr)
				}
			}
			return saved, err
		}
		if ok {
			saved++
		}
	}

	if next != offset {
		if err := s.state.SetState(UpdateOffsetKey, strconv.Itoa(next)); err != nil {
			return saved, err
		}
	}
	logger.Info("反馈同步完成", "events", len(events), "saved", saved, "offset", next)
	return saved, nil
}

// store 保存一条反馈，对应文章已被清理时跳过并返回false
func (s *FeedbackService) store(e model.FeedbackEvent) (bool, error) {
	rec, err := s.sent.FindByHashPrefix(e.LinkID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		logger.Warn("反馈对应的文章不存在，可能已被清理", "link_id", e.LinkID)
		return false, nil
	}
	err = s.feedback.Save(model.FeedbackRecord{
		LinkHash:  rec.LinkHash,
		Title:     rec.Title,
		Tag:       e.Tag,
		CreatedAt: e.At,
	})
	return err == nil, err
}
