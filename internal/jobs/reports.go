package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/notify"
	"github.com/aeranixia/Inventory-Bot/internal/report"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

// dailyReport sends today's inventory and movement log once the report
// time has passed.
func (e *Engine) dailyReport(ctx context.Context, guildID int64, now clock.Snapshot) (string, error) {
	s, channel, err := e.destination(ctx, guildID, reportChannel)
	if err != nil {
		return "", err
	}
	if s == nil {
		return outcomeSkipped, nil
	}
	today := now.Date()
	if !now.Reached(s.ReportHour, s.ReportMinute) || s.LastDailyReportDate == today {
		return outcomeSkipped, nil
	}
	if channel == 0 {
		// No marker: configuring a channel later today still gets a report.
		return outcomeSkipped, nil
	}

	if err := e.sendDaily(ctx, guildID, channel, now, "Daily report"); err != nil {
		return "", err
	}
	if err := store.SetDailyReportMarker(ctx, e.db, guildID, today); err != nil {
		return "", err
	}
	return outcomeDone, nil
}

// monthlyReport catches up the previous month's log on the 1st, after
// that day's daily report went out. It has its own marker so a failed
// delivery is retried on later ticks of the same day.
func (e *Engine) monthlyReport(ctx context.Context, guildID int64, now clock.Snapshot) (string, error) {
	if now.Time.Day() != 1 {
		return outcomeSkipped, nil
	}
	s, channel, err := e.destination(ctx, guildID, reportChannel)
	if err != nil {
		return "", err
	}
	if s == nil || channel == 0 {
		return outcomeSkipped, nil
	}
	ym := now.PreviousMonth().Format("2006-01")
	if !now.Reached(s.ReportHour, s.ReportMinute) || s.LastDailyReportDate != now.Date() || s.LastMonthlyReportYM == ym {
		return outcomeSkipped, nil
	}

	if err := e.sendMonthly(ctx, guildID, channel, now, "Monthly log"); err != nil {
		return "", err
	}
	if err := store.SetMonthlyReportMarker(ctx, e.db, guildID, ym); err != nil {
		return "", err
	}
	return outcomeDone, nil
}

func (e *Engine) sendDaily(ctx context.Context, guildID, channel int64, now clock.Snapshot, title string) error {
	items, err := store.ListItemsForReport(ctx, e.db, guildID)
	if err != nil {
		return err
	}
	start, end := now.DayRange()
	rows, err := store.ListMovementsInRange(ctx, e.db, guildID, start, end)
	if err != nil {
		return err
	}

	inventory, err := report.InventoryWorkbook(items)
	if err != nil {
		return fmt.Errorf("building inventory workbook: %w", err)
	}
	log, err := report.DailyLogWorkbook(rows)
	if err != nil {
		return fmt.Errorf("building log workbook: %w", err)
	}

	date := now.Date()
	err = e.deliver(ctx, notify.Message{
		GuildID:   guildID,
		ChannelID: channel,
		Text:      fmt.Sprintf("%s (%s)", title, now.Time.Format("2006/01/02")),
		Attachments: []notify.Attachment{
			{Name: report.InventoryFileName(date), ContentType: report.ContentType, Data: inventory},
			{Name: report.DailyLogFileName(date), ContentType: report.ContentType, Data: log},
		},
	})
	if err != nil {
		return err
	}
	e.recordSystemEvent(ctx, guildID, model.ActionReport, "daily report "+date, "", now)
	return nil
}

func (e *Engine) sendMonthly(ctx context.Context, guildID, channel int64, now clock.Snapshot, title string) error {
	prev := now.PreviousMonth()
	ym := prev.Format("2006-01")
	start, end := clock.MonthRange(prev)
	rows, err := store.ListMovementsInRange(ctx, e.db, guildID, start, end)
	if err != nil {
		return err
	}

	data, err := report.MonthlyLogWorkbook(rows)
	if err != nil {
		return fmt.Errorf("building monthly workbook: %w", err)
	}

	err = e.deliver(ctx, notify.Message{
		GuildID:   guildID,
		ChannelID: channel,
		Text:      fmt.Sprintf("%s (%s)", title, ym),
		Attachments: []notify.Attachment{
			{Name: report.MonthlyLogFileName(ym), ContentType: report.ContentType, Data: data},
		},
	})
	if err != nil {
		return err
	}
	e.recordSystemEvent(ctx, guildID, model.ActionReport, "monthly report "+ym, "", now)
	return nil
}

// ForceDailyReport sends today's report now. With markDone the scheduled
// report for today is suppressed.
func (e *Engine) ForceDailyReport(ctx context.Context, guildID int64, markDone bool) error {
	now := e.clock.Now()
	_, channel, err := e.destination(ctx, guildID, reportChannel)
	if err != nil {
		return err
	}
	if channel == 0 {
		return ErrNoChannel
	}

	start := time.Now()
	if err := e.sendDaily(ctx, guildID, channel, now, "Daily report (manual)"); err != nil {
		e.metrics.JobRun(JobDailyReport, outcomeFailed, time.Since(start))
		return err
	}
	e.metrics.JobRun(JobDailyReport, outcomeDone, time.Since(start))
	if markDone {
		return store.SetDailyReportMarker(ctx, e.db, guildID, now.Date())
	}
	slog.Info("manual daily report sent", "guild", guildID)
	return nil
}

// ForceMonthlyReport sends the previous month's log now. With markDone the
// catch-up on the 1st is suppressed for that month.
func (e *Engine) ForceMonthlyReport(ctx context.Context, guildID int64, markDone bool) error {
	now := e.clock.Now()
	_, channel, err := e.destination(ctx, guildID, reportChannel)
	if err != nil {
		return err
	}
	if channel == 0 {
		return ErrNoChannel
	}

	start := time.Now()
	if err := e.sendMonthly(ctx, guildID, channel, now, "Monthly log (manual)"); err != nil {
		e.metrics.JobRun(JobMonthlyReport, outcomeFailed, time.Since(start))
		return err
	}
	e.metrics.JobRun(JobMonthlyReport, outcomeDone, time.Since(start))
	if markDone {
		return store.SetMonthlyReportMarker(ctx, e.db, guildID, now.PreviousMonth().Format("2006-01"))
	}
	return nil
}
