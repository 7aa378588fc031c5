package db

import (
	"fmt"
	"time"

	"alumninet/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect 按驱动建立连接；postgres 带简单重试以等待容器就绪，sqlite 用于本地与测试。
func Connect(driver, dsn string) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true}
	switch driver {
	case "sqlite":
		return openSQLite(dsn, gcfg)
	case "postgres", "":
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}

	var gdb *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		gdb, err = gorm.Open(postgres.Open(dsn), gcfg)
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetMaxOpenConns(20)
				sqlDB.SetConnMaxLifetime(time.Hour)
				return gdb, nil
			}
			err = err2
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	return nil, err
}

// openSQLite 只保留一个连接：事务与普通查询共享同一写者，避免 SQLITE_BUSY。
func openSQLite(dsn string, gcfg *gorm.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}
	return gdb, nil
}

// Migrate 自动迁移消息子系统涉及的全部表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.Student{}, &models.Alumnus{}, &models.Link{}, &models.Message{})
}
