package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/aeranixia/Inventory-Bot/internal/model"
)

const (
	inventorySheet = "Inventory"
	logSheet       = "Log"
	monthlySheet   = "Monthly log"
	itemSheet      = "Summary"
	columnWidth    = 18
)

var (
	inventoryHeader = []any{"Category", "Item", "Code", "Quantity", "Warn below", "Location", "Note", "Status"}
	logHeader       = []any{"Time", "Action", "Category", "Item", "Code", "Change", "Before", "After", "Reason", "Actor"}
	itemHeader      = []any{"Item", "Code", "Total in", "Total out", "Adjust total"}
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// InventoryFileName names the inventory attachment for a date.
func InventoryFileName(date string) string { return "inventory_report_" + date + ".xlsx" }

// DailyLogFileName names the daily log attachment for a date.
func DailyLogFileName(date string) string { return "daily_log_" + date + ".xlsx" }

// MonthlyLogFileName names the monthly log attachment for a year-month.
func MonthlyLogFileName(ym string) string { return "monthly_log_" + ym + ".xlsx" }

// InventoryWorkbook lists every item with its current stock.
func InventoryWorkbook(items []model.Item) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", inventorySheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	rows := make([][]any, 0, len(items)+1)
	rows = append(rows, inventoryHeader)
	for _, it := range items {
		category := it.CategoryName
		if category == "" {
			category = model.FallbackCategoryName
		}
		status := "Active"
		if !it.Active {
			status = "Inactive"
		}
		rows = append(rows, []any{category, it.Name, it.Code, it.Quantity, it.WarnBelow, it.StorageLocation, it.Note, status})
	}
	if err := writeTable(f, inventorySheet, 1, rows); err != nil {
		return nil, err
	}
	return save(f)
}

// DailyLogWorkbook is the movement log for one day with a summary line.
func DailyLogWorkbook(rows []model.Movement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", logSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if err := writeLog(f, logSheet, rows); err != nil {
		return nil, err
	}
	return save(f)
}

// MonthlyLogWorkbook is the month's movement log plus a per-item sheet.
func MonthlyLogWorkbook(rows []model.Movement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", monthlySheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if err := writeLog(f, monthlySheet, rows); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(itemSheet); err != nil {
		return nil, fmt.Errorf("adding summary sheet: %w", err)
	}
	table := [][]any{itemHeader}
	for _, s := range SummarizeByItem(rows) {
		table = append(table, []any{s.Name, s.Code, s.In, s.Out, s.Adjust})
	}
	if err := writeTable(f, itemSheet, 1, table); err != nil {
		return nil, err
	}
	return save(f)
}

// writeLog puts the merged summary line in row 1 and the table from row 2.
func writeLog(f *excelize.File, sheet string, rows []model.Movement) error {
	if err := f.SetCellValue(sheet, "A1", Summarize(rows).String()); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	if err := f.MergeCell(sheet, "A1", "J1"); err != nil {
		return fmt.Errorf("merging summary: %w", err)
	}
	bold, err := boldStyle(f)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", bold); err != nil {
		return fmt.Errorf("styling summary: %w", err)
	}

	table := make([][]any, 0, len(rows)+1)
	table = append(table, logHeader)
	for _, m := range rows {
		table = append(table, []any{
			m.CreatedAtText,
			ActionLabel(m.Action),
			m.CategoryNameSnapshot,
			m.ItemNameSnapshot,
			m.ItemCodeSnapshot,
			ChangeText(m),
			optional(m.BeforeQty),
			optional(m.AfterQty),
			m.Reason,
			m.ActorName,
		})
	}
	return writeTable(f, sheet, 2, table)
}

// writeTable writes rows starting at headerRow, bolds the header and freezes
// the panes below it.
func writeTable(f *excelize.File, sheet string, headerRow int, rows [][]any) error {
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, headerRow+i)
		if err != nil {
			return err
		}
		row := r
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", headerRow+i, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	cols := len(rows[0])
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(cols, headerRow)
	bold, err := boldStyle(f)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, first, last, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(cols)
	if err := f.SetColWidth(sheet, "A", lastCol, columnWidth); err != nil {
		return fmt.Errorf("setting widths: %w", err)
	}

	topLeft, _ := excelize.CoordinatesToCellName(1, headerRow+1)
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: topLeft,
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}
	return nil
}

func boldStyle(f *excelize.File) (int, error) {
	id, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Vertical: "center"},
	})
	if err != nil {
		return 0, fmt.Errorf("creating style: %w", err)
	}
	return id, nil
}

func optional(n *int) any {
	if n == nil {
		return ""
	}
	return *n
}

func save(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
