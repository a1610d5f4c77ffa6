package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/config"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/models"
	"github.com/wfunc/casino-bot/internal/repository"
)

type fakeUploader struct {
	keys []string
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, name, localPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	f.keys = append(f.keys, "remote/"+name)
	return "remote/" + name, nil
}

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 10, 18, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "casino_backup_20261018_090503.db", FileName(ts))
}

func TestManager_RunAndRetention(t *testing.T) {
	db := repository.SetupTestDB()
	defer repository.CleanupTestDB(db)
	require.NoError(t, db.Create(&models.Account{UserID: 1, Balance: 1000}).Error)

	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	uploader := &fakeUploader{}
	m := NewManager(db, config.BackupConfig{Path: dir, Keep: 2}, uploader, clock, zap.NewNop())

	var names []string
	for i := 0; i < 3; i++ {
		result, err := m.Run(context.Background())
		require.NoError(t, err)
		assert.Greater(t, result.Size, int64(0))
		assert.Equal(t, "remote/"+result.Name, result.RemoteKey)
		names = append(names, result.Name)
		clock.Advance(time.Hour)
	}

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, names[2], list[0].Name)
	assert.Equal(t, names[1], list[1].Name)

	_, err = os.Stat(filepath.Join(dir, names[0]))
	assert.True(t, os.IsNotExist(err))
	assert.Len(t, uploader.keys, 3)
}

func TestManager_SameSecondFails(t *testing.T) {
	db := repository.SetupTestDB()
	defer repository.CleanupTestDB(db)

	clock := clockwork.NewFakeClock()
	m := NewManager(db, config.BackupConfig{Path: t.TempDir()}, nil, clock, zap.NewNop())

	_, err := m.Run(context.Background())
	require.NoError(t, err)

	_, err = m.Run(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrBackup))
}

func TestManager_UploadFailureKeepsLocalCopy(t *testing.T) {
	db := repository.SetupTestDB()
	defer repository.CleanupTestDB(db)

	dir := t.TempDir()
	m := NewManager(db, config.BackupConfig{Path: dir}, &fakeUploader{err: errors.New("offline")},
		clockwork.NewFakeClock(), zap.NewNop())

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.RemoteKey)

	_, err = os.Stat(result.Path)
	assert.NoError(t, err)
}

func TestManager_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "casino_backup_garbage.db"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "casino_backup_20260101_000000.db"), []byte("x"), 0644))

	m := NewManager(nil, config.BackupConfig{Path: dir}, nil, nil, zap.NewNop())
	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2026, list[0].CreatedAt.Year())

	missing := NewManager(nil, config.BackupConfig{Path: filepath.Join(dir, "none")}, nil, nil, zap.NewNop())
	list, err = missing.List()
	assert.NoError(t, err)
	assert.Empty(t, list)
}

func TestS3Uploader_Key(t *testing.T) {
	u := &S3Uploader{prefix: "casino-backups"}
	assert.Equal(t, "casino-backups/casino_backup_20260101_000000.db", u.Key("casino_backup_20260101_000000.db"))

	u = &S3Uploader{}
	assert.Equal(t, "a.db", u.Key("a.db"))

	_, err := NewS3Uploader(context.Background(), config.S3Config{})
	assert.Error(t, err)
}
