package database

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
)

// FeedbackRepository 用户反馈存储库
type FeedbackRepository interface {
	// Save 保存一条反馈
	Save(record model.FeedbackRecord) error
	// RecentByTag 按时间倒序返回最近的反馈
	RecentByTag(tag model.FeedbackTag, limit int) ([]model.FeedbackRecord, error)
}

// SQLiteFeedbackRepository 实现FeedbackRepository接口的SQLite存储库
type SQLiteFeedbackRepository struct {
	db Database
}

// NewSQLiteFeedbackRepository 创建一个新的SQLite反馈存储库
func NewSQLiteFeedbackRepository(db Database) *SQLiteFeedbackRepository {
	return &SQLiteFeedbackRepository{db: db}
}

// Save 保存反馈
func (r *SQLiteFeedbackRepository) Save(record model.FeedbackRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	query, args, err := sq.Insert("feedback").
		Columns("link_hash", "title", "tag", "created_at").
		Values(record.LinkHash, record.Title, string(record.Tag), record.CreatedAt.Unix()).
		ToSql()
	if err != nil {
		return fmt.Errorf("构建插入语句失败: %w", err)
	}
	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("保存反馈失败: %w", err)
	}
	return nil
}

// RecentByTag 返回最近的某类反馈
func (r *SQLiteFeedbackRepository) RecentByTag(tag model.FeedbackTag, limit int) ([]model.FeedbackRecord, error) {
	query, args, err := sq.Select("link_hash", "title", "tag", "created_at").
		From("feedback").
		Where(sq.Eq{"tag": string(tag)}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建查询失败: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询反馈失败: %w", err)
	}
	defer rows.Close()

	var records []model.FeedbackRecord
	for rows.Next() {
		var (
			rec       model.FeedbackRecord
			tagText   string
			createdAt int64
		)
		if err := rows.Scan(&rec.LinkHash, &rec.Title, &tagText, &createdAt); err != nil {
			return nil, fmt.Errorf("读取反馈失败: %w", err)
		}
		rec.Tag = model.FeedbackTag(tagText)
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}
