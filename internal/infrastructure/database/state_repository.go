package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// SQLiteStateRepository 基于 app_state 表的键值单例存储
type SQLiteStateRepository struct {
	db  Database
	now func() time.Time
}

// NewSQLiteStateRepository 创建状态存储库
func NewSQLiteStateRepository(db Database) *SQLiteStateRepository {
	return &SQLiteStateRepository{db: db, now: time.Now}
}

// GetState 读取状态值
func (r *SQLiteStateRepository) GetState(key string) (string, bool, error) {
	query, args, err := sq.Select("value").From("app_state").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("构建查询失败: %w", err)
	}

	var value string
	err = r.db.QueryRow(query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("读取状态失败: %w", err)
	}
	return value, true, nil
}

// SetState 写入或覆盖状态值
func (r *SQLiteStateRepository) SetState(key, value string) error {
	query, args, err := sq.Insert("app_state").
		Columns("key", "value", "updated_at").
		Values(key, value, r.now().Unix()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("构建写入语句失败: %w", err)
	}
	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("写入状态失败: %w", err)
	}
	return nil
}
