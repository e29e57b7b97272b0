package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/model"
)

// GetSettings returns a guild's settings, or nil if the guild is unknown.
func GetSettings(ctx context.Context, q db.DBTX, guildID int64) (*model.Settings, error) {
	s := &model.Settings{}
	err := q.QueryRowContext(ctx,
		`SELECT guild_id, dashboard_channel_id, dashboard_message_id, alert_channel_id, report_channel_id,
		        admin_role_id, report_hour, report_minute, last_daily_report_date,
		        last_monthly_report_ym, last_quarter_cleanup, updated_at
		 FROM settings WHERE guild_id = ?`, guildID,
	).Scan(&s.GuildID, &s.DashboardChannelID, &s.DashboardMessageID, &s.AlertChannelID, &s.ReportChannelID,
		&s.AdminRoleID, &s.ReportHour, &s.ReportMinute, &s.LastDailyReportDate,
		&s.LastMonthlyReportYM, &s.LastQuarterCleanup, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting settings: %w", err)
	}
	return s, nil
}

// ValidateSettingsPatch checks the admin-editable fields. Report minutes are
// limited to the top and bottom of the hour.
func ValidateSettingsPatch(p model.SettingsPatch) error {
	if p.ReportHour != nil && (*p.ReportHour < 0 || *p.ReportHour > 23) {
		return fmt.Errorf("%w: report hour must be between 0 and 23", ErrInvalidInput)
	}
	if p.ReportMinute != nil && *p.ReportMinute != 0 && *p.ReportMinute != 30 {
		return fmt.Errorf("%w: report minute must be 0 or 30", ErrInvalidInput)
	}
	return nil
}

// UpdateSettings applies a patch and returns a human-readable summary of the
// changed fields for the audit row.
func UpdateSettings(ctx context.Context, q db.DBTX, guildID int64, p model.SettingsPatch, now clock.Snapshot) (string, error) {
	if err := ValidateSettingsPatch(p); err != nil {
		return "", err
	}
	if p.Empty() {
		return "", fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	var sets []string
	var args []any
	var changes []string
	add := func(column string, value any, shown string) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
		changes = append(changes, column+"="+shown)
	}

	if p.DashboardChannelID != nil {
		add("dashboard_channel_id", nullableID(*p.DashboardChannelID), fmt.Sprint(*p.DashboardChannelID))
	}
	if p.DashboardMessageID != nil {
		add("dashboard_message_id", nullableID(*p.DashboardMessageID), fmt.Sprint(*p.DashboardMessageID))
	}
	if p.AlertChannelID != nil {
		add("alert_channel_id", nullableID(*p.AlertChannelID), fmt.Sprint(*p.AlertChannelID))
	}
	if p.ReportChannelID != nil {
		add("report_channel_id", nullableID(*p.ReportChannelID), fmt.Sprint(*p.ReportChannelID))
	}
	if p.AdminRoleID != nil {
		add("admin_role_id", nullableID(*p.AdminRoleID), fmt.Sprint(*p.AdminRoleID))
	}
	if p.ReportHour != nil {
		add("report_hour", *p.ReportHour, fmt.Sprint(*p.ReportHour))
	}
	if p.ReportMinute != nil {
		add("report_minute", *p.ReportMinute, fmt.Sprintf("%02d", *p.ReportMinute))
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, now.Text, guildID)

	result, err := q.ExecContext(ctx,
		`UPDATE settings SET `+strings.Join(sets, ", ")+` WHERE guild_id = ?`, args...)
	if err != nil {
		return "", fmt.Errorf("updating settings: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}
	return strings.Join(changes, ", "), nil
}

// nullableID maps 0 to NULL so a channel can be cleared.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// SetDailyReportMarker records the date of the last delivered daily report.
func SetDailyReportMarker(ctx context.Context, q db.DBTX, guildID int64, date string) error {
	return setMarker(ctx, q, guildID, "last_daily_report_date", date)
}

// SetMonthlyReportMarker records the year-month of the last monthly report.
func SetMonthlyReportMarker(ctx context.Context, q db.DBTX, guildID int64, ym string) error {
	return setMarker(ctx, q, guildID, "last_monthly_report_ym", ym)
}

// SetQuarterCleanupMarker records the quarter key of the last cleanup.
func SetQuarterCleanupMarker(ctx context.Context, q db.DBTX, guildID int64, quarter string) error {
	return setMarker(ctx, q, guildID, "last_quarter_cleanup", quarter)
}

func setMarker(ctx context.Context, q db.DBTX, guildID int64, column, value string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE settings SET `+column+` = ? WHERE guild_id = ?`, value, guildID)
	if err != nil {
		return fmt.Errorf("setting %s: %w", column, err)
	}
	return nil
}
