package model

// Settings is the per-guild configuration and job markers.
type Settings struct {
	GuildID             int64  `json:"guild_id"`
	DashboardChannelID  *int64 `json:"dashboard_channel_id,omitempty"`
	DashboardMessageID  *int64 `json:"dashboard_message_id,omitempty"`
	AlertChannelID      *int64 `json:"alert_channel_id,omitempty"`
	ReportChannelID     *int64 `json:"report_channel_id,omitempty"`
	AdminRoleID         *int64 `json:"admin_role_id,omitempty"`
	ReportHour          int    `json:"report_hour"`
	ReportMinute        int    `json:"report_minute"`
	LastDailyReportDate string `json:"last_daily_report_date"`
	LastMonthlyReportYM string `json:"last_monthly_report_ym"`
	LastQuarterCleanup  string `json:"last_quarter_cleanup"`
	UpdatedAt           string `json:"updated_at"`
}

// Default report time.
const (
	DefaultReportHour   = 18
	DefaultReportMinute = 30
)

// ReportDestination is the channel reports go to: the report channel,
// falling back to the alert channel.
func (s *Settings) ReportDestination() *int64 {
	if s.ReportChannelID != nil {
		return s.ReportChannelID
	}
	return s.AlertChannelID
}

// AlertDestination is the channel alerts go to: the alert channel, falling
// back to the report channel.
func (s *Settings) AlertDestination() *int64 {
	if s.AlertChannelID != nil {
		return s.AlertChannelID
	}
	return s.ReportChannelID
}

// SettingsPatch holds admin-editable settings. Nil fields are left unchanged.
type SettingsPatch struct {
	DashboardChannelID *int64
	DashboardMessageID *int64
	AlertChannelID     *int64
	ReportChannelID    *int64
	AdminRoleID        *int64
	ReportHour         *int
	ReportMinute       *int
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.DashboardChannelID == nil && p.DashboardMessageID == nil &&
		p.AlertChannelID == nil && p.ReportChannelID == nil &&
		p.AdminRoleID == nil && p.ReportHour == nil && p.ReportMinute == nil
}
