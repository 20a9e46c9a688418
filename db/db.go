package db

import (
	"errors"
	"fmt"
	"log"
	"road-editor/config"
	"road-editor/model"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

var DB *gorm.DB

// DSN 由配置拼出 PostgreSQL 连接串
func DSN(cfg config.Config) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)
}

// InitDB 连接数据库并迁移表结构
func InitDB(cfg config.Config) error {
	// 带重试的数据库连接 (Docker 启动时数据库可能还没准备好)
	var err error
	maxRetries := 30
	for i := 0; i < maxRetries; i++ {
		DB, err = Open(DSN(cfg))
		if err == nil {
			break
		}
		log.Printf("等待数据库就绪... (%d/%d): %v", i+1, maxRetries, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("无法连接数据库: %w", err)
	}

	if err := Migrate(DB); err != nil {
		return err
	}
	log.Println("数据库连接并初始化成功！")
	return nil
}

// Open 打开一个连接, 唯一键冲突翻译为 gorm.ErrDuplicatedKey
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

// Migrate 自动迁移模式 (自动创建表结构)
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.StoredAxis{}, &model.RoadDocument{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}
