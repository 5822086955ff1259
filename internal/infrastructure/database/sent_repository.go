package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/wolfitem/ai-news-radar/internal/domain/model"
	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
)

const sentTable = "sent_articles"

// SentRepository 已推送文章的存储库
type SentRepository interface {
	// Exists 检查链接哈希是否已记录
	Exists(linkHash string) (bool, error)
	// Insert 插入记录，已存在时忽略
	Insert(record model.DeliveryRecord) error
	// DeleteBefore 删除 sent_at 不晚于 cutoff 的记录
	DeleteBefore(cutoff time.Time) (int64, error)
	// FindByHashPrefix 根据截断的哈希查找记录
	FindByHashPrefix(prefix string) (*model.DeliveryRecord, error)
	// Count 记录总数
	Count() (int64, error)
}

// SQLiteSentRepository 实现SentRepository接口的SQLite存储库
type SQLiteSentRepository struct {
	db Database
}

// NewSQLiteSentRepository 创建一个新的SQLite已推送存储库
func NewSQLiteSentRepository(db Database) *SQLiteSentRepository {
	return &SQLiteSentRepository{db: db}
}

// Exists 检查文章是否已推送过
func (r *SQLiteSentRepository) Exists(linkHash string) (bool, error) {
	query, args, err := sq.Select("1").From(sentTable).Where(sq.Eq{"link_hash": linkHash}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("构建查询失败: %w", err)
	}

	var one int
	err = r.db.QueryRow(query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("查询推送记录失败: %w", err)
	}
	return true, nil
}

// Insert 保存推送记录，同一链接只保留第一次推送
func (r *SQLiteSentRepository) Insert(record model.DeliveryRecord) error {
	query, args, err := sq.Insert(sentTable).
		Columns("link_hash", "link", "title", "source", "score", "sent_at").
		Values(record.LinkHash, record.Link, record.Title, record.Source, record.Score, record.SentAt.Unix()).
		Suffix("ON CONFLICT(link_hash) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("构建插入语句失败: %w", err)
	}

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("保存推送记录失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.Debug("推送记录已存在，跳过保存", "link", record.Link)
	}
	return nil
}

// DeleteBefore 清理过期的推送记录
func (r *SQLiteSentRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	query, args, err := sq.Delete(sentTable).Where(sq.LtOrEq{"sent_at": cutoff.Unix()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("构建删除语句失败: %w", err)
	}

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("清理推送记录失败: %w", err)
	}
	return res.RowsAffected()
}

// FindByHashPrefix 根据反馈按钮中的截断哈希查找推送记录，不存在时返回nil
func (r *SQLiteSentRepository) FindByHashPrefix(prefix string) (*model.DeliveryRecord, error) {
	query, args, err := sq.Select("link_hash", "link", "title", "source", "score", "sent_at").
		From(sentTable).
		Where(sq.Like{"link_hash": prefix + "%"}).
		OrderBy("sent_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建查询失败: %w", err)
	}

	var (
		rec    model.DeliveryRecord
		sentAt int64
	)
	err = r.db.QueryRow(query, args...).Scan(&rec.LinkHash, &rec.Link, &rec.Title, &rec.Source, &rec.Score, &sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询推送记录失败: %w", err)
	}
	rec.SentAt = time.Unix(sentAt, 0)
	return &rec, nil
}

// Count 返回推送记录总数
func (r *SQLiteSentRepository) Count() (int64, error) {
	query, args, err := sq.Select("COUNT(*)").From(sentTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("构建查询失败: %w", err)
	}

	var count int64
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("统计推送记录失败: %w", err)
	}
	return count, nil
}
