package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aeranixia/Inventory-Bot/internal/backup"
	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/notify"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// dailyBackup snapshots the database once per day after the backup time.
func (e *Engine) dailyBackup(ctx context.Context, now clock.Snapshot, guilds []int64) (string, error) {
	today := now.Date()
	if !now.Reached(e.backupHour, e.backupMinute) || e.backups.ReadMarker(backup.DailyMarker) == today {
		return outcomeSkipped, nil
	}

	if _, err := e.backupNow(ctx, now, guilds, "Database backup"); err != nil {
		return "", err
	}
	if err := e.backups.WriteMarker(backup.DailyMarker, today); err != nil {
		return "", err
	}
	return outcomeDone, nil
}

// ForceBackup takes a snapshot immediately and notifies every guild. It
// does not touch the daily marker.
func (e *Engine) ForceBackup(ctx context.Context) (*backup.Result, error) {
	guilds, err := store.ListGuilds(ctx, e.db)
	if err != nil {
		return nil, err
	}
	return e.backupNow(ctx, e.clock.Now(), guilds, "Database backup (manual)")
}

func (e *Engine) backupNow(ctx context.Context, now clock.Snapshot, guilds []int64, title string) (*backup.Result, error) {
	today := now.Date()
	res, err := e.backups.Daily(ctx, today, now.Time)
	if err != nil {
		for _, g := range guilds {
			e.recordSystemEvent(ctx, g, model.ActionBackup, "daily backup "+today, err.Error(), now)
		}
		return nil, fmt.Errorf("backing up: %w", err)
	}
	if len(res.Removed) > 0 {
		slog.Info("pruned old backups", "count", len(res.Removed))
	}

	e.offsite(ctx, res.ZipPath)

	text := fmt.Sprintf("%s (%s)", title, today)
	e.broadcast(ctx, guilds, text, res.ZipPath, res.ZipSize)
	for _, g := range guilds {
		e.recordSystemEvent(ctx, g, model.ActionBackup,
			fmt.Sprintf("daily backup %s (%d bytes)", filepath.Base(res.DBPath), res.DBSize), "", now)
	}
	return res, nil
}

// monthlyArchive bundles last month's snapshots on the 1st after the
// archive time. An empty month still writes the marker; a failed zip does
// not.
func (e *Engine) monthlyArchive(ctx context.Context, now clock.Snapshot, guilds []int64) (string, error) {
	if now.Time.Day() != 1 || !now.Reached(e.archiveHour, e.archiveMinute) {
		return outcomeSkipped, nil
	}
	ym := now.PreviousMonth().Format("2006-01")
	if e.backups.ReadMarker(backup.ArchiveMarker) == ym {
		return outcomeSkipped, nil
	}

	path, n, err := e.backups.Archive(ym)
	if err != nil {
		e.broadcast(ctx, guilds, fmt.Sprintf("Monthly backup archive failed (%s)", ym), "", 0)
		return "", err
	}

	if n == 0 {
		e.broadcast(ctx, guilds, fmt.Sprintf("Monthly backup archive (%s): no daily backups found, skipped", ym), "", 0)
	} else {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("stat archive: %w", err)
		}
		e.offsite(ctx, path)
		e.broadcast(ctx, guilds, fmt.Sprintf("Monthly backup archive (%s, %d files)", ym, n), path, info.Size())
	}

	if err := e.backups.WriteMarker(backup.ArchiveMarker, ym); err != nil {
		return "", err
	}
	return outcomeDone, nil
}

// offsite copies a file to object storage when an uploader is configured.
func (e *Engine) offsite(ctx context.Context, path string) {
	if e.uploader == nil || path == "" {
		return
	}
	if err := e.uploader.UploadFile(ctx, filepath.Base(path), path); err != nil {
		e.metrics.DeliveryFailure("upload")
		slog.Warn("offsite upload failed", "file", filepath.Base(path), "error", err)
	}
}

// broadcast sends text to every guild's alert channel, attaching the file
// when it fits under the upload limit.
func (e *Engine) broadcast(ctx context.Context, guilds []int64, text, path string, size int64) {
	var attachment *notify.Attachment
	if path != "" {
		if size <= e.uploadLimit {
			data, err := os.ReadFile(path)
			if err != nil {
				slog.Warn("reading backup for upload", "file", path, "error", err)
			} else {
				attachment = &notify.Attachment{Name: filepath.Base(path), ContentType: "application/zip", Data: data}
			}
		}
		if attachment == nil {
			text += fmt.Sprintf("\nFile %s (%.2fMB) is over the upload limit and was kept on the server.",
				filepath.Base(path), float64(size)/(1<<20))
		}
	}

	for _, g := range guilds {
		_, channel, err := e.destination(ctx, g, alertChannel)
		if err != nil {
			slog.Warn("loading alert channel", "guild", g, "error", err)
			continue
		}
		if channel == 0 {
			continue
		}
		msg := notify.Message{GuildID: g, ChannelID: channel, Text: text}
		if attachment != nil {
			msg.Attachments = []notify.Attachment{*attachment}
		}
		e.announce(ctx, msg)
	}
}
