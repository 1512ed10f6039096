package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"TradeScout/pkg/config"
	"TradeScout/pkg/model"
)

// DB 数据库连接
type DB struct {
	db *gorm.DB
}

// NewPostgres 创建新的Postgres连接并迁移表结构
func NewPostgres(cfg *config.Config) (*DB, error) {
	pgCfg := cfg.Database.Postgres

	// 构建连接字符串
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pgCfg.Host, pgCfg.Port, pgCfg.User, pgCfg.Password, pgCfg.DBName, pgCfg.SSLMode,
	)

	// 连接数据库
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层连接失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("测试数据库连接失败: %w", err)
	}

	// 迁移表结构
	if err := db.AutoMigrate(
		&model.Message{},
		&model.TradingAction{},
		&model.DedupKeyRecord{},
	); err != nil {
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}

	return &DB{db: db}, nil
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Messages 消息存储
func (d *DB) Messages() *MessageDB {
	return &MessageDB{db: d.db}
}

// Actions 交易动作存储
func (d *DB) Actions() *ActionDB {
	return &ActionDB{db: d.db}
}
