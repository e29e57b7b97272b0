package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aeranixia/Inventory-Bot/internal/backup"
	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/jobs"
	"github.com/aeranixia/Inventory-Bot/internal/ledger"
	"github.com/aeranixia/Inventory-Bot/internal/metrics"
	"github.com/aeranixia/Inventory-Bot/internal/notify"
	"github.com/aeranixia/Inventory-Bot/internal/storage"
)

// services are the collaborators shared by serve, report and backup.
type services struct {
	clock    *clock.Clock
	ledger   *ledger.Ledger
	notifier notify.Notifier
	backups  *backup.Manager
	engine   *jobs.Engine
}

func (a *app) buildServices(ctx context.Context, database *sql.DB, m *metrics.Metrics) (*services, error) {
	clk := a.clock()
	s := &services{
		clock:   clk,
		ledger:  ledger.New(database, clk, m),
		backups: backup.New(database, a.cfg.Backup.Dir, a.cfg.Backup.KeepDays),
	}

	if url := a.cfg.Notify.WebhookURL; url != "" {
		s.notifier = notify.NewWebhook(url, a.cfg.Notify.Timeout, a.cfg.Notify.RatePerSec)
		slog.Info("notifications via webhook")
	} else {
		s.notifier = notify.LogNotifier{}
		slog.Warn("no notify.webhook_url configured, notifications are only logged")
	}

	jc := jobs.Config{
		DB:          database,
		Clock:       clk,
		Ledger:      s.ledger,
		Notifier:    s.notifier,
		Backups:     s.backups,
		Metrics:     m,
		BackupTime:  a.cfg.Jobs.BackupTime,
		ArchiveTime: a.cfg.Jobs.ArchiveTime,
		UploadLimit: a.cfg.Backup.UploadLimitBytes,
	}
	if a.cfg.S3.Enabled {
		up, err := storage.NewS3(ctx, storage.Config{
			Endpoint:  a.cfg.S3.Endpoint,
			Region:    a.cfg.S3.Region,
			Bucket:    a.cfg.S3.Bucket,
			AccessKey: a.cfg.S3.AccessKey,
			SecretKey: a.cfg.S3.SecretKey,
			Prefix:    a.cfg.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("setting up s3: %w", err)
		}
		jc.Uploader = up
		slog.Info("offsite backups enabled", "bucket", a.cfg.S3.Bucket)
	}

	engine, err := jobs.New(jc)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}
