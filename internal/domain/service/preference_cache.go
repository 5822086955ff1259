package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

// PreferenceStateKey app_state 表中偏好摘要的键
const PreferenceStateKey = "user_preference"

// StateStore 键值形式的单例状态存储
type StateStore interface {
	GetState(key string) (value string, ok bool, err error)
	SetState(key, value string) error
}

// FeedbackSource 提供最近的用户反馈
type FeedbackSource interface {
	RecentByTag(tag model.FeedbackTag, limit int) ([]model.FeedbackRecord, error)
}

// PreferenceCache 缓存学习到的偏好摘要
//
// 摘要和反馈样本的哈希一起保存，样本未变化且未过期时直接复用，
// 避免每次运行都消耗一次模型调用。
type PreferenceCache struct {
	store StateStore
	ttl   time.Duration
	now   func() time.Time
}

// NewPreferenceCache 创建偏好缓存，ttl<=0 时只要样本不变就一直有效
func NewPreferenceCache(store StateStore, ttl time.Duration) *PreferenceCache {
	return &PreferenceCache{store: store, ttl: ttl, now: time.Now}
}

// Load 读取缓存的偏好，不存在或无法解析时返回nil
func (c *PreferenceCache) Load() (*model.UserPreference, error) {
	if c == nil || c.store == nil {
		return nil, nil
	}

	raw, ok, err := c.store.GetState(PreferenceStateKey)
	if err != nil {
		return nil, fmt.Errorf("读取偏好缓存失败: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var pref model.UserPreference
	if err := json.Unmarshal([]byte(raw), &pref); err != nil {
		return nil, fmt.Errorf("解析偏好缓存失败: %w", err)
	}
	return &pref, nil
}

// Fresh 判断缓存是否仍可用于给定样本
func (c *PreferenceCache) Fresh(pref *model.UserPreference, sampleHash string) bool {
	if pref == nil || pref.SampleHash != sampleHash {
		return false
	}
	if c.ttl <= 0 {
		return true
	}
	return c.now().Sub(pref.UpdatedAt) < c.ttl
}

// Save 保存偏好摘要
func (c *PreferenceCache) Save(pref model.UserPreference) error {
	if c == nil || c.store == nil {
		return nil
	}
	if pref.UpdatedAt.IsZero() {
		pref.UpdatedAt = c.now()
	}
	data, err := json.Marshal(pref)
	if err != nil {
		return fmt.Errorf("序列化偏好失败: %w", err)
	}
	if err := c.store.SetState(PreferenceStateKey, string(data)); err != nil {
		return fmt.Errorf("保存偏好缓存失败: %w", err)
	}
	return nil
}

// SampleHash 基于反馈样本生成哈希，样本内容或顺序变化时哈希随之变化
func SampleHash(records ...[]model.FeedbackRecord) string {
	hasher := sha256.New()
	for _, group := range records {
		for _, r := range group {
			fmt.Fprintf(hasher, "%s|%s|%d\n", r.Tag, r.LinkHash, r.CreatedAt.Unix())
		}
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
