// Package backup 定时生成账本数据库快照，按数量保留，可选上传到对象存储
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/casino-bot/internal/config"
	"github.com/wfunc/casino-bot/internal/database"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
)

const (
	filePrefix = "casino_backup_"
	fileSuffix = ".db"
	timeLayout = "20060102_150405"
)

// FileName 按时间生成备份文件名
func FileName(t time.Time) string {
	return filePrefix + t.UTC().Format(timeLayout) + fileSuffix
}

// Info 一个本地备份文件
type Info struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Result 一次备份的结果
type Result struct {
	Info
	Path      string `json:"path"`
	RemoteKey string `json:"remote_key,omitempty"`
	Removed   int    `json:"removed"`
}

// Manager 备份管理器
type Manager struct {
	db       *gorm.DB
	cfg      config.BackupConfig
	uploader Uploader
	clock    clockwork.Clock
	log      *zap.Logger

	mu sync.Mutex
}

// NewManager 创建备份管理器，uploader 可以为 nil
func NewManager(db *gorm.DB, cfg config.BackupConfig, uploader Uploader, clock clockwork.Clock, log *zap.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{db: db, cfg: cfg, uploader: uploader, clock: clock, log: log}
}

// Run 生成一份快照
// 上传失败不影响本地备份，只记录日志
func (m *Manager) Run(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	name := FileName(now)
	dest := filepath.Join(m.cfg.Path, name)

	if err := database.Snapshot(ctx, m.db, dest); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrBackup, name)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrBackup, name)
	}
	result := &Result{
		Info: Info{Name: name, Size: info.Size(), CreatedAt: now},
		Path: dest,
	}

	if m.uploader != nil {
		key, err := m.uploader.Upload(ctx, name, dest)
		if err != nil {
			m.log.Error("上传备份失败", zap.String("file", name), zap.Error(err))
		} else {
			result.RemoteKey = key
		}
	}

	removed, err := m.prune()
	if err != nil {
		m.log.Warn("清理旧备份失败", zap.Error(err))
	}
	result.Removed = removed

	m.log.Info("数据库备份完成",
		zap.String("file", name),
		zap.Int64("size", result.Size),
		zap.String("remote", result.RemoteKey),
		zap.Int("removed", removed))
	return result, nil
}

// List 本地备份，新的在前
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.cfg.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取备份目录失败: %w", err)
	}

	var list []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		created, err := time.Parse(timeLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		list = append(list, Info{Name: name, Size: fi.Size(), CreatedAt: created})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// prune 只保留最新的 Keep 份
func (m *Manager) prune() (int, error) {
	if m.cfg.Keep <= 0 {
		return 0, nil
	}
	list, err := m.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := m.cfg.Keep; i < len(list); i++ {
		if err := os.Remove(filepath.Join(m.cfg.Path, list[i].Name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
