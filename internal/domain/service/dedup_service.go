package service

import (
	"time"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
)

// DeliveryStore 持久化的推送记录
type DeliveryStore interface {
	Exists(linkHash string) (bool, error)
	Insert(record model.DeliveryRecord) error
	DeleteBefore(cutoff time.Time) (int64, error)
}

// DeliveryTracker 基于推送记录的去重服务
//
// 存储出错时不会中断流水线：查询失败视为未推送（可能重复推送），
// 写入失败只记录日志。
type DeliveryTracker struct {
	store      DeliveryStore
	normalizer LinkNormalizer
	now        func() time.Time
	log        *logger.ContextLogger
}

// NewDeliveryTracker 创建去重服务，normalizer 需与获取文章时使用的规则一致
func NewDeliveryTracker(store DeliveryStore, normalizer LinkNormalizer) *DeliveryTracker {
	return &DeliveryTracker{
		store:      store,
		normalizer: normalizer,
		now:        time.Now,
		log:        logger.WithContext("dedup"),
	}
}

// IsAlreadySent 链接是否已推送过，原始链接和规范化链接都可以
func (t *DeliveryTracker) IsAlreadySent(link string) bool {
	link = t.normalizer.Normalize(link)
	sent, err := t.store.Exists(LinkHash(link))
	if err != nil {
		t.log.Warn("去重查询失败，按未推送处理（降级运行）", "link", link, "error", err)
		return false
	}
	return sent
}

// FilterUnsent 去掉已推送过的文章
func (t *DeliveryTracker) FilterUnsent(articles []*model.Article) []*model.Article {
	fresh := make([]*model.Article, 0, len(articles))
	for _, a := range articles {
		if t.IsAlreadySent(a.Link) {
			continue
		}
		fresh = append(fresh, a)
	}
	return fresh
}

// Add 记录一次成功推送，重复记录被忽略
func (t *DeliveryTracker) Add(a *model.Article) {
	link := t.normalizer.Normalize(a.Link)
	record := model.DeliveryRecord{
		LinkHash: LinkHash(link),
		Link:     link,
		Title:    a.Title,
		Source:   a.Source,
		Score:    a.Score(),
		SentAt:   t.now(),
	}
	if err := t.store.Insert(record); err != nil {
		t.log.Error("保存推送记录失败", "link", a.Link, "error", err)
	}
}

// Prune 删除超过保留期的记录，返回删除条数
func (t *DeliveryTracker) Prune(retention time.Duration) int64 {
	cutoff := t.now().Add(-retention)
	n, err := t.store.DeleteBefore(cutoff)
	if err != nil {
		t.log.Error("清理推送记录失败", "error", err)
		return 0
	}
	t.log.Info("推送记录清理完成", "deleted", n, "retention", retention.String())
	return n
}
