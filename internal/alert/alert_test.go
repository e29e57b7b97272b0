package alert

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aeranixia/Inventory-Bot/internal/clock"
	"github.com/aeranixia/Inventory-Bot/internal/db"
	"github.com/aeranixia/Inventory-Bot/internal/model"
	"github.com/aeranixia/Inventory-Bot/internal/notify"
	"github.com/aeranixia/Inventory-Bot/internal/store"
)

const guild int64 = 3

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Deliver(ctx context.Context, msg notify.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func newTracker(t *testing.T, n notify.Notifier) *Tracker {
	t.Helper()
	database := db.NewTestDB(t)
	clk := clock.New(clockwork.NewFakeClockAt(time.Date(2026, 2, 2, 3, 0, 0, 0, time.UTC)), nil)
	_, err := store.EnsureGuild(context.Background(), database, guild, clk.Now())
	require.NoError(t, err)
	return NewTracker(database, clk, n, nil)
}

func TestShouldAlertOncePerEpisode(t *testing.T) {
	tr := newTracker(t, nil)
	ctx := context.Background()
	const threshold = 5

	steps := []struct {
		qty  int
		want bool
	}{
		{10, false},
		{4, true},
		{3, false},
		{6, false},
		{4, true},
		{5, false},
	}
	for _, s := range steps {
		got, err := tr.ShouldAlert(ctx, guild, 1, IsBelow(s.qty, threshold))
		require.NoError(t, err)
		assert.Equal(t, s.want, got, "qty %d", s.qty)
	}
}

func TestShouldAlertPersistsFirstSight(t *testing.T) {
	tr := newTracker(t, nil)
	ctx := context.Background()

	got, err := tr.ShouldAlert(ctx, guild, 9, false)
	require.NoError(t, err)
	assert.False(t, got)

	alerting, err := store.GetAlertState(ctx, tr.db, guild, 9)
	require.NoError(t, err)
	assert.False(t, alerting)

	var n int
	require.NoError(t, tr.db.QueryRow(`SELECT COUNT(*) FROM alert_state WHERE guild_id = ? AND item_id = 9`, guild).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestIsBelowIncludesThreshold(t *testing.T) {
	assert.True(t, IsBelow(5, 5))
	assert.True(t, IsBelow(0, 0))
	assert.False(t, IsBelow(6, 5))
}

func TestEvaluateNotifiesAlertChannel(t *testing.T) {
	n := &mockNotifier{}
	tr := newTracker(t, n)
	ctx := context.Background()

	report := int64(4444)
	_, err := store.UpdateSettings(ctx, tr.db, guild, model.SettingsPatch{ReportChannelID: &report}, tr.clock.Now())
	require.NoError(t, err)

	n.On("Deliver", mock.Anything, mock.MatchedBy(func(m notify.Message) bool {
		return m.GuildID == guild && m.ChannelID == report
	})).Return(nil).Once()

	res := &model.MovementResult{ItemID: 1, ItemName: "Gauze", After: 2, WarnBelow: 5, CategoryName: "Other"}
	assert.True(t, tr.Evaluate(ctx, guild, res))
	assert.False(t, tr.Evaluate(ctx, guild, res), "second low reading must not notify again")

	n.AssertExpectations(t)
}

func TestEvaluateWithoutChannelStillTracks(t *testing.T) {
	n := &mockNotifier{}
	tr := newTracker(t, n)
	ctx := context.Background()

	res := &model.MovementResult{ItemID: 1, ItemName: "Gauze", After: 0, WarnBelow: 1}
	assert.True(t, tr.Evaluate(ctx, guild, res))
	n.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)

	alerting, err := store.GetAlertState(ctx, tr.db, guild, 1)
	require.NoError(t, err)
	assert.True(t, alerting)
}

func TestMessage(t *testing.T) {
	msg := Message(&model.MovementResult{ItemName: "Gauze", ItemCode: "G-1", CategoryName: "Other", After: 2, WarnBelow: 5, CreatedAtText: "2026/02/02 12:00:00"})
	assert.Contains(t, msg, "Gauze (G-1)")
	assert.Contains(t, msg, "at 2")
}
