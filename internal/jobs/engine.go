// Package jobs runs the scheduled work: daily and monthly reports, quarterly
// ledger cleanup, daily backups and monthly backup archives.
//
// Every job pairs a time gate with a persisted completion marker instead of
// exact scheduling, so a job missed while the process was down still runs
// once when the next tick falls inside its window.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aeranixia/Inventory-Bot/internal/backup"
	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/ledger"
	"github.com/aeranixia/Inventory-Bot/internal/metrics"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/notify"
	"github.com/aeranixia/Inventory-Bot/internal/storage"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// Job names used in logs and metrics.
const (
	JobDailyReport      = "daily_report"
	JobMonthlyReport    = "monthly_report"
	JobQuarterlyCleanup = "quarterly_cleanup"
	JobDailyBackup      = "daily_backup"
	JobMonthlyArchive   = "monthly_archive"
)

const (
	outcomeDone    = "done"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// CleanupWindowDays is how many days into a quarter the cleanup may run.
const CleanupWindowDays = 7

// DefaultUploadLimit is the largest attachment sent with a notification.
const DefaultUploadLimit = notify.MaxAttachmentBytes

// ErrNoChannel is returned by on-demand reports when the guild has no
// report or alert channel.
var ErrNoChannel = errors.New("no report channel configured")

// Config wires an Engine.
type Config struct {
	DB       *sql.DB
	Clock    *clock.Clock
	Ledger   *ledger.Ledger
	Notifier notify.Notifier
	Backups  *backup.Manager
	Uploader storage.Uploader
	Metrics  *metrics.Metrics

	// BackupTime and ArchiveTime are "HH:MM" in the civil zone.
	BackupTime  string
	ArchiveTime string
	// UploadLimit caps attachments; larger files get a text notice.
	UploadLimit int64
}

// Engine runs the scheduled jobs.
type Engine struct {
	db       *sql.DB
	clock    *clock.Clock
	ledger   *ledger.Ledger
	notifier notify.Notifier
	backups  *backup.Manager
	uploader storage.Uploader
	metrics  *metrics.Metrics

	backupHour, backupMinute   int
	archiveHour, archiveMinute int
	uploadLimit                int64

	running atomic.Bool
}

// New validates cfg and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.DB == nil || cfg.Clock == nil || cfg.Ledger == nil || cfg.Backups == nil {
		return nil, errors.New("jobs: db, clock, ledger and backups are required")
	}
	if cfg.BackupTime == "" {
		cfg.BackupTime = "18:40"
	}
	if cfg.ArchiveTime == "" {
		cfg.ArchiveTime = "18:50"
	}
	if cfg.UploadLimit <= 0 {
		cfg.UploadLimit = DefaultUploadLimit
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.LogNotifier{}
	}

	e := &Engine{
		db:          cfg.DB,
		clock:       cfg.Clock,
		ledger:      cfg.Ledger,
		notifier:    cfg.Notifier,
		backups:     cfg.Backups,
		uploader:    cfg.Uploader,
		metrics:     cfg.Metrics,
		uploadLimit: cfg.UploadLimit,
	}

	var err error
	if e.backupHour, e.backupMinute, err = clock.ParseTimeOfDay(cfg.BackupTime); err != nil {
		return nil, fmt.Errorf("backup time: %w", err)
	}
	if e.archiveHour, e.archiveMinute, err = clock.ParseTimeOfDay(cfg.ArchiveTime); err != nil {
		return nil, fmt.Errorf("archive time: %w", err)
	}
	return e, nil
}

// RunTick runs every guild's jobs and then the process-wide backup jobs.
// A tick that starts while another is still running is skipped.
func (e *Engine) RunTick(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		slog.Warn("previous tick still running, skipping")
		return
	}
	defer e.running.Store(false)

	now := e.clock.Now()

	guilds, err := store.ListGuilds(ctx, e.db)
	if err != nil {
		slog.Error("listing guilds for tick", "error", err)
		return
	}

	for _, g := range guilds {
		if ctx.Err() != nil {
			return
		}
		e.runGuild(ctx, g, now)
	}

	e.run(JobDailyBackup, 0, func() (string, error) { return e.dailyBackup(ctx, now, guilds) })
	e.run(JobMonthlyArchive, 0, func() (string, error) { return e.monthlyArchive(ctx, now, guilds) })
}

// RunScheduledTick runs one guild's daily report, monthly report and
// quarterly cleanup against a fresh clock reading. The daily backup and the
// monthly archive are not included: they snapshot the single database file
// shared by every guild, so they run once per RunTick instead of once per
// guild.
func (e *Engine) RunScheduledTick(ctx context.Context, guildID int64) {
	e.runGuild(ctx, guildID, e.clock.Now())
}

func (e *Engine) runGuild(ctx context.Context, guildID int64, now clock.Snapshot) {
	e.run(JobDailyReport, guildID, func() (string, error) { return e.dailyReport(ctx, guildID, now) })
	e.run(JobMonthlyReport, guildID, func() (string, error) { return e.monthlyReport(ctx, guildID, now) })
	e.run(JobQuarterlyCleanup, guildID, func() (string, error) { return e.quarterlyCleanup(ctx, guildID, now) })
}

// run executes one job, recovering panics so one guild or job can never
// stop the rest of the tick.
func (e *Engine) run(job string, guildID int64, fn func() (string, error)) {
	start := time.Now()
	outcome := outcomeFailed
	defer func() {
		if p := recover(); p != nil {
			slog.Error("job panicked", "job", job, "guild", guildID, "error", fmt.Sprint(p))
			outcome = outcomeFailed
		}
		e.metrics.JobRun(job, outcome, time.Since(start))
	}()

	var err error
	outcome, err = fn()
	if err != nil {
		outcome = outcomeFailed
		slog.Error("job failed", "job", job, "guild", guildID, "error", err)
		return
	}
	if outcome == outcomeDone {
		slog.Info("job done", "job", job, "guild", guildID, "duration", time.Since(start))
	}
}

// deliver sends a required message. Failures are returned so the caller
// leaves its marker unset.
func (e *Engine) deliver(ctx context.Context, msg notify.Message) error {
	if err := e.notifier.Deliver(ctx, msg); err != nil {
		e.metrics.DeliveryFailure("notify")
		return fmt.Errorf("delivering to channel %d: %w", msg.ChannelID, err)
	}
	return nil
}

// announce sends an informational message and only logs failures.
func (e *Engine) announce(ctx context.Context, msg notify.Message) {
	if !notify.Best(ctx, e.notifier, msg) {
		e.metrics.DeliveryFailure("notify")
	}
}

// destination loads a guild's settings and picks a channel. A zero channel
// means none is configured.
func (e *Engine) destination(ctx context.Context, guildID int64, pick func(*model.Settings) *int64) (*model.Settings, int64, error) {
	s, err := store.GetSettings(ctx, e.db, guildID)
	if err != nil {
		return nil, 0, err
	}
	if s == nil {
		return nil, 0, nil
	}
	if ch := pick(s); ch != nil {
		return s, *ch, nil
	}
	return s, 0, nil
}

func reportChannel(s *model.Settings) *int64 { return s.ReportDestination() }
func alertChannel(s *model.Settings) *int64 { return s.AlertDestination() }

func (e *Engine) recordSystemEvent(ctx context.Context, guildID int64, action model.Action, reason, failure string, now clock.Snapshot) {
	if _, err := e.ledger.RecordEvent(ctx, ledger.EventRequest{
		GuildID: guildID,
		Action:  action,
		Reason:  reason,
		Actor:   model.SystemActor,
		At:      &now,
		Error:   failure,
	}); err != nil {
		slog.Warn("recording system event", "guild", guildID, "action", action, "error", err)
	}
}
