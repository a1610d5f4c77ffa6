package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	lockSuffix      = ".migration.lock"
	lockStaleAfter  = 5 * time.Minute
	lockMaxAttempts = 30
)

// acquireMigrationLock 获取迁移锁（独占创建锁文件）
func acquireMigrationLock(dbPath string, log *zap.Logger) (*os.File, error) {
	lockPath := dbPath + lockSuffix

	for i := 0; i < lockMaxAttempts; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			log.Debug("获取迁移锁成功", zap.String("lock", lockPath))
			return lockFile, nil
		}

		// 锁文件过旧说明持有者已退出
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			log.Warn("迁移锁文件过期，尝试删除", zap.String("lock", lockPath))
			os.Remove(lockPath)
			continue
		}

		log.Debug("等待迁移锁...", zap.Int("attempt", i+1))
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("无法获取迁移锁，可能有其他进程正在执行迁移")
}

// releaseMigrationLock 释放迁移锁
func releaseMigrationLock(lockFile *os.File, log *zap.Logger) {
	if lockFile == nil {
		return
	}

	lockPath := lockFile.Name()
	lockFile.Close()
	os.Remove(lockPath)
	log.Debug("释放迁移锁", zap.String("lock", lockPath))
}

// CleanupStaleLocks 清理数据库目录下过期的锁文件
func CleanupStaleLocks(dbPath string, log *zap.Logger) {
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(dbPath), "*"+lockSuffix))
	for _, lockFile := range matches {
		if info, err := os.Stat(lockFile); err == nil && time.Since(info.ModTime()) > 2*lockStaleAfter {
			log.Info("清理过期锁文件", zap.String("file", lockFile))
			os.Remove(lockFile)
		}
	}
}
