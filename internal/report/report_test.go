package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aeranixia/Inventory-Bot/internal/model"
)

func intp(n int) *int { return &n }

func sampleRows() []model.Movement {
	return []model.Movement{
		{Action: model.ActionIn, QtyChange: 10, BeforeQty: intp(0), AfterQty: intp(10), ItemNameSnapshot: "Gauze", ItemCodeSnapshot: "G", CreatedAtText: "2026/05/01 09:00:00", ActorName: "alice"},
		{Action: model.ActionOut, QtyChange: -3, BeforeQty: intp(10), AfterQty: intp(7), ItemNameSnapshot: "Gauze", ItemCodeSnapshot: "G"},
		{Action: model.ActionAdjust, QtyChange: -2, BeforeQty: intp(7), AfterQty: intp(5), ItemNameSnapshot: "Gauze", ItemCodeSnapshot: "G", Reason: "count"},
		{Action: model.ActionAdjust, QtyChange: 4, BeforeQty: intp(0), AfterQty: intp(4), ItemNameSnapshot: "Tape"},
		{Action: model.ActionItemImageSet, ItemNameSnapshot: "Tape"},
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(sampleRows())
	assert.Equal(t, Totals{In: 10, Out: 3, AdjustPlus: 4, AdjustMinus: 2, Rows: 5}, got)
	assert.Equal(t, "Summary: total in 10 | total out 3 | adjust +4/-2 | 5 rows", got.String())
}

func TestChangeText(t *testing.T) {
	rows := sampleRows()
	assert.Equal(t, "10", ChangeText(rows[0]))
	assert.Equal(t, "3", ChangeText(rows[1]))
	assert.Equal(t, "-2", ChangeText(rows[2]))
	assert.Equal(t, "+4", ChangeText(rows[3]))
	assert.Equal(t, "+0", ChangeText(model.Movement{Action: model.ActionAdjust}))
}

func TestSummarizeByItem(t *testing.T) {
	got := SummarizeByItem(sampleRows())
	require.Len(t, got, 2)
	assert.Equal(t, ItemTotals{Name: "Gauze", Code: "G", In: 10, Out: 3, Adjust: -2}, got[0])
	assert.Equal(t, ItemTotals{Name: "Tape", Adjust: 4}, got[1])
}

func TestInventoryWorkbook(t *testing.T) {
	data, err := InventoryWorkbook([]model.Item{
		{Name: "Gauze", CategoryName: "Other", Quantity: 3, WarnBelow: 5, Active: true},
		{Name: "Old", Active: false},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(inventorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Category", rows[0][0])
	assert.Equal(t, []string{"Other", "Gauze", "", "3", "5", "", "", "Active"}, rows[1])
	assert.Equal(t, model.FallbackCategoryName, rows[2][0])
	assert.Equal(t, "Inactive", rows[2][7])
}

func TestMonthlyLogWorkbook(t *testing.T) {
	data, err := MonthlyLogWorkbook(sampleRows())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	log, err := f.GetRows(monthlySheet)
	require.NoError(t, err)
	require.Len(t, log, 7)
	assert.Contains(t, log[0][0], "total in 10")
	assert.Equal(t, "Time", log[1][0])
	assert.Equal(t, "Out", log[3][1])
	assert.Equal(t, "3", log[3][5])

	summary, err := f.GetRows(itemSheet)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"Gauze", "G", "10", "3", "-2"}, summary[1])
}

func TestDailyLogWorkbookEmpty(t *testing.T) {
	data, err := DailyLogWorkbook(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(logSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0][0], "0 rows")
}
