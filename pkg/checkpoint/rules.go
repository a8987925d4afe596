package checkpoint

import (
	"fmt"

	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/workbook"
)

// TrendRules returns the three rules that color column col, rows
// fromRow..toRow, by comparing each cell with its left neighbour.
func TrendRules(col, fromRow, toRow int) []workbook.ConditionalFormatRule {
	toRow = max(toRow, fromRow)
	prev := workbook.CellName(col-1, fromRow)
	cur := workbook.CellName(col, fromRow)
	ranges := []workbook.Range{workbook.Column(col, fromRow, toRow)}

	return []workbook.ConditionalFormatRule{
		{
			Formula:    fmt.Sprintf("%s>%s", prev, cur),
			Background: defaults.ColorImproved,
			Ranges:     ranges,
		},
		{
			Formula:    fmt.Sprintf("%s<%s", prev, cur),
			Background: defaults.ColorRegressed,
			Ranges:     ranges,
		},
		{
			Formula: fmt.Sprintf("AND(ISNUMBER(%[1]s),ISNUMBER(%[2]s),%[1]s=0,%[2]s=0)",
				prev, cur),
			Background: defaults.ColorCleared,
			Ranges:     ranges,
		},
	}
}
