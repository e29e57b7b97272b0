// Package report builds the xlsx workbooks attached to daily and monthly
// reports.
package report

import (
	"fmt"
	"strconv"

	"github.com/aeranixia/Inventory-Bot/internal/model"
)

// Totals aggregates stock movements. Out and the adjustment parts are
// magnitudes.
type Totals struct {
	In          int `json:"in"`
	Out         int `json:"out"`
	AdjustPlus  int `json:"adjust_plus"`
	AdjustMinus int `json:"adjust_minus"`
	Rows        int `json:"rows"`
}

// Summarize totals the stock rows. Rows counts every row, events included.
func Summarize(rows []model.Movement) Totals {
	t := Totals{Rows: len(rows)}
	for _, r := range rows {
		switch r.Action {
		case model.ActionIn:
			t.In += r.QtyChange
		case model.ActionOut:
			t.Out += abs(r.QtyChange)
		case model.ActionAdjust:
			if r.QtyChange >= 0 {
				t.AdjustPlus += r.QtyChange
			} else {
				t.AdjustMinus += -r.QtyChange
			}
		}
	}
	return t
}

// String renders the one-line summary placed above the log table.
func (t Totals) String() string {
	return fmt.Sprintf("Summary: total in %d | total out %d | adjust +%d/-%d | %d rows",
		t.In, t.Out, t.AdjustPlus, t.AdjustMinus, t.Rows)
}

// ChangeText formats a row's quantity change. Adjustments are signed, every
// other action shows the magnitude.
func ChangeText(m model.Movement) string {
	if m.Action == model.ActionAdjust {
		if m.QtyChange >= 0 {
			return "+" + strconv.Itoa(m.QtyChange)
		}
		return strconv.Itoa(m.QtyChange)
	}
	return strconv.Itoa(abs(m.QtyChange))
}

// ActionLabel is the human label for an action.
func ActionLabel(a model.Action) string {
	switch a {
	case model.ActionIn:
		return "In"
	case model.ActionOut:
		return "Out"
	case model.ActionAdjust:
		return "Adjust"
	}
	return string(a)
}

// ItemTotals is one line of the monthly per-item sheet.
type ItemTotals struct {
	Name   string
	Code   string
	In     int
	Out    int
	Adjust int
}

// SummarizeByItem groups stock rows by item name and code, in order of first
// appearance. Out is a magnitude, Adjust is a signed sum.
func SummarizeByItem(rows []model.Movement) []ItemTotals {
	type key struct{ name, code string }
	index := map[key]int{}
	var out []ItemTotals
	for _, r := range rows {
		if !r.Action.IsStock() {
			continue
		}
		k := key{r.ItemNameSnapshot, r.ItemCodeSnapshot}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, ItemTotals{Name: k.name, Code: k.code})
		}
		switch r.Action {
		case model.ActionIn:
			out[i].In += r.QtyChange
		case model.ActionOut:
			out[i].Out += abs(r.QtyChange)
		case model.ActionAdjust:
			out[i].Adjust += r.QtyChange
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
