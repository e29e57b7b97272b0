package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", c.Server.Address)
	assert.Equal(t, 9, c.Clock.UTCOffsetHours)
	assert.Equal(t, time.Minute, c.Jobs.TickInterval)
	assert.Equal(t, "18:40", c.Jobs.BackupTime)
	assert.Equal(t, "18:50", c.Jobs.ArchiveTime)
	assert.Equal(t, 60, c.Backup.KeepDays)
	assert.Equal(t, int64(8<<20), c.Backup.UploadLimitBytes)
	assert.Equal(t, 120*time.Second, c.Images.WaitTimeout)
	assert.Equal(t, 7*24*time.Hour, c.Auth.TokenTTL)
	assert.False(t, c.S3.Enabled)
	assert.False(t, c.IsProduction())
}

func TestFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
environment: production
server:
  address: ":9000"
backup:
  keep_days: 30
s3:
  enabled: true
  bucket: backups
`), 0o600))

	t.Setenv("INVENTORYBOT_BACKUP_KEEP_DAYS", "45")
	t.Setenv("INVENTORYBOT_JOBS_BACKUP_TIME", "03:00")

	c, err := Load(New(), file)
	require.NoError(t, err)

	assert.True(t, c.IsProduction())
	assert.Equal(t, ":9000", c.Server.Address)
	assert.Equal(t, 45, c.Backup.KeepDays, "environment wins over the file")
	assert.Equal(t, "03:00", c.Jobs.BackupTime)
	assert.Equal(t, "backups", c.S3.Bucket)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	cases := map[string]string{
		"INVENTORYBOT_JOBS_ARCHIVE_TIME":      "noon",
		"INVENTORYBOT_BACKUP_KEEP_DAYS":       "0",
		"INVENTORYBOT_S3_ENABLED":             "true",
		"INVENTORYBOT_LOG_FORMAT":             "xml",
		"INVENTORYBOT_CLOCK_UTC_OFFSET_HOURS": "20",
	}
	for env, value := range cases {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, value)
			_, err := Load(New(), "")
			assert.Error(t, err)
		})
	}
}
