package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"
)

// Snapshot 生成数据库的时间点快照
// SQLite 使用 VACUUM INTO，在读事务中完成，不阻塞其他连接的写入
func Snapshot(ctx context.Context, db *gorm.DB, dest string) error {
	if db.Dialector.Name() != "sqlite" {
		return fmt.Errorf("驱动 %s 不支持在线快照，请使用数据库自带的备份工具", db.Dialector.Name())
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("创建备份目录失败: %w", err)
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("备份文件已存在: %s", dest)
	}

	if err := db.WithContext(ctx).Exec("VACUUM INTO ?", dest).Error; err != nil {
		return fmt.Errorf("生成快照失败: %w", err)
	}
	return nil
}
