package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wolfitem/ai-news-radar/internal/infrastructure/logger"
)

// Database 定义数据库接口
type Database interface {
	// Init 初始化数据库
	Init() error
	// Close 关闭数据库连接
	Close() error
	// Exec 执行SQL语句
	Exec(query string, args ...interface{}) (sql.Result, error)
	// Query 查询数据
	Query(query string, args ...interface{}) (*sql.Rows, error)
	// QueryRow 查询单行数据
	QueryRow(query string, args ...interface{}) *sql.Row
}

// SQLiteDatabase 实现Database接口的SQLite数据库
type SQLiteDatabase struct {
	db         *sql.DB
	dbFilePath string
}

// NewSQLiteDatabase 创建一个新的SQLite数据库实例
func NewSQLiteDatabase(dbFilePath string) Database {
	return &SQLiteDatabase{
		dbFilePath: dbFilePath,
	}
}

// Open 创建并初始化数据库
func Open(dbFilePath string) (Database, error) {
	db := NewSQLiteDatabase(dbFilePath)
	if err := db.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Init 初始化SQLite数据库
func (s *SQLiteDatabase) Init() error {
	logger.Info("初始化SQLite数据库", "db_path", s.dbFilePath)

	// 确保数据库文件所在目录存在
	dbDir := filepath.Dir(s.dbFilePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("创建数据库目录失败", "error", err)
		return fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite3", s.dbFilePath+"?_busy_timeout=5000")
	if err != nil {
		logger.Error("打开数据库连接失败", "error", err)
		return fmt.Errorf("打开数据库连接失败: %w", err)
	}
	// 单写入者，串行化所有访问
	db.SetMaxOpenConns(1)
	s.db = db

	if err := db.Ping(); err != nil {
		logger.Error("数据库连接测试失败", "error", err)
		return fmt.Errorf("数据库连接测试失败: %w", err)
	}

	if err := s.createTables(); err != nil {
		logger.Error("创建数据库表失败", "error", err)
		return fmt.Errorf("创建数据库表失败: %w", err)
	}

	logger.Info("SQLite数据库初始化成功")
	return nil
}

// createTables 创建必要的数据库表，时间统一存为unix秒
func (s *SQLiteDatabase) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sent_articles (
		link_hash TEXT PRIMARY KEY,
		link TEXT NOT NULL,
		title TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		sent_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sent_articles_sent_at ON sent_articles(sent_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link_hash TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		tag TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_tag_created ON feedback(tag, created_at);

	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("执行建表语句失败: %w", err)
	}

	logger.Debug("数据库表创建成功")
	return nil
}

// Close 关闭数据库连接
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		logger.Info("关闭数据库连接")
		return s.db.Close()
	}
	return nil
}

// Exec 执行SQL语句
func (s *SQLiteDatabase) Exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(query, args...)
}

// Query 查询数据
func (s *SQLiteDatabase) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(query, args...)
}

// QueryRow 查询单行数据
func (s *SQLiteDatabase) QueryRow(query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(query, args...)
}
