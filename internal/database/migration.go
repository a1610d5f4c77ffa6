package database

import (
	"fmt"

	"github.com/wfunc/casino-bot/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models 需要迁移的模型
func Models() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.GameRecord{},
		&models.LedgerEntry{},
		&models.PromoCode{},
		&models.PromoRedemption{},
	}
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 文件数据库加迁移锁，避免多个进程同时迁移
	if dbPath := sqliteFilePath(db); dbPath != "" {
		CleanupStaleLocks(dbPath, log)
		lockFile, err := acquireMigrationLock(dbPath, log)
		if err != nil {
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile, log)
	}

	log.Info("开始数据库迁移...")
	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			log.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		log.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	if err := createIndexes(db); err != nil {
		return err
	}

	log.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建额外索引
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// 排行榜：余额倒序，创建顺序打破平局
		"CREATE INDEX IF NOT EXISTS idx_accounts_leaderboard ON accounts (balance DESC, id ASC)",
		"CREATE INDEX IF NOT EXISTS idx_game_records_user_created ON game_records (user_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_created ON ledger_entries (user_id, created_at)",
	}

	// MySQL 不支持 IF NOT EXISTS 建索引
	if db.Dialector.Name() == "mysql" {
		return nil
	}

	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("创建索引失败: %w", err)
		}
	}
	return nil
}

// sqliteFilePath 返回 SQLite 数据库文件路径，内存库或其他驱动返回空
func sqliteFilePath(db *gorm.DB) string {
	if db.Dialector.Name() != "sqlite" {
		return ""
	}
	var rows []struct {
		Seq  int
		Name string
		File string
	}
	if err := db.Raw("PRAGMA database_list").Scan(&rows).Error; err != nil {
		return ""
	}
	for _, r := range rows {
		if r.Name == "main" {
			return r.File
		}
	}
	return ""
}
