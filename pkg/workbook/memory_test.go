package workbook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange_String(t *testing.T) {
	tests := []struct {
		r    Range
		want string
	}{
		{Range{Row: 1, Col: 1, Rows: 1, Cols: 1}, "A1"},
		{Range{Row: 3, Col: 3, Rows: 38, Cols: 1}, "C3:C40"},
		{Range{Row: 1, Col: 26, Rows: 2, Cols: 2}, "Z1:AA2"},
		{Column(5, 3, 10), "E3:E10"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.r.String())
	}
	assert.False(t, Range{}.Valid())
	assert.True(t, Column(2, 1, 4).Contains(4, 2))
	assert.False(t, Column(2, 1, 4).Contains(5, 2))
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "A", ColumnName(1))
	assert.Equal(t, "Z", ColumnName(26))
	assert.Equal(t, "AA", ColumnName(27))
	assert.Equal(t, "", ColumnName(0))
}

func TestMemory_InsertSheetClampsIndex(t *testing.T) {
	m := NewMemory("A", "B")

	s, err := m.InsertSheet(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", s.Name(), "B"}, m.SheetNames())

	tail, err := m.InsertSheet(99)
	require.NoError(t, err)
	names := m.SheetNames()
	assert.Equal(t, tail.Name(), names[len(names)-1])
	assert.NotEqual(t, s.Name(), tail.Name())
}

func TestMemory_SheetNotFound(t *testing.T) {
	m := NewMemory("A")
	_, err := m.Sheet("missing")
	assert.True(t, errors.Is(err, ErrSheetNotFound))
}

func TestMemory_RenameCollision(t *testing.T) {
	m := NewMemory("A", "B")
	s, err := m.Sheet("B")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Rename("A"), ErrSheetExists)
	assert.ErrorIs(t, s.Rename(""), ErrBackend)
	require.NoError(t, s.Rename("B"))
	require.NoError(t, s.Rename("C"))
	assert.Equal(t, []string{"A", "C"}, m.SheetNames())
}

func TestMemory_WriteAndReadBack(t *testing.T) {
	m := NewMemory("S")
	s, _ := m.Sheet("S")
	grid := [][]string{
		{"IP", "DNS", "QID"},
		{"10.0.0.1", "", "38173"},
		{"10.0.0.2", "host", ""},
	}
	require.NoError(t, s.WriteRange(1, 1, grid))

	got, err := s.DataRange()
	require.NoError(t, err)
	assert.Equal(t, grid, got)

	lr, _ := s.LastRow()
	lc, _ := s.LastColumn()
	assert.Equal(t, 3, lr)
	assert.Equal(t, 3, lc)

	assert.ErrorIs(t, s.WriteRange(0, 1, grid), ErrOutOfRange)
}

func TestMemory_EmptySheetExtent(t *testing.T) {
	s := NewMemory().AddSheet("E", nil)
	lr, _ := s.LastRow()
	lc, _ := s.LastColumn()
	assert.Zero(t, lr)
	assert.Zero(t, lc)
	got, err := s.DataRange()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemory_DeleteRowShiftsHeightsAndFilter(t *testing.T) {
	s := NewMemory().AddSheet("S", [][]string{{"junk"}, {"IP"}, {"1.1.1.1"}})
	require.NoError(t, s.SetRowHeights(1, 3, 21))
	require.NoError(t, s.CreateFilter(Range{Row: 2, Col: 1, Rows: 2, Cols: 1}))

	require.NoError(t, s.DeleteRow(1))

	assert.Equal(t, "IP", s.Value(1, 1))
	assert.Equal(t, 21.0, s.RowHeight(1))
	assert.Equal(t, 21.0, s.RowHeight(2))
	assert.Zero(t, s.RowHeight(3))
	f, ok := s.Filter()
	require.True(t, ok)
	assert.Equal(t, 1, f.Row)
}

func TestMemory_InsertColumnShiftsState(t *testing.T) {
	s := NewMemory().AddSheet("S", [][]string{
		{"a", "b", "c"},
		{"1", "2", "3"},
	})
	require.NoError(t, s.HideColumn(2))
	require.NoError(t, s.SetConditionalFormatRules([]ConditionalFormatRule{
		{Formula: "B1>C1", Background: "#FFFFFF", Ranges: []Range{Column(3, 1, 2)}},
	}))

	require.NoError(t, s.InsertColumnBefore(2))

	got, _ := s.DataRange()
	assert.Equal(t, [][]string{{"a", "", "b", "c"}, {"1", "", "2", "3"}}, got)
	assert.Equal(t, []int{3}, s.HiddenColumns())
	rules, _ := s.ConditionalFormatRules()
	require.Len(t, rules, 1)
	assert.Equal(t, 4, rules[0].Ranges[0].Col)
}

func TestMemory_CopyValues(t *testing.T) {
	s := NewMemory().AddSheet("S", [][]string{
		{"", "x"},
		{"", "7"},
		{"", "=SUM(A1:A2)"},
	})
	require.NoError(t, s.CopyValues(Column(2, 1, 3), 1, 1))
	assert.Equal(t, "x", s.Value(1, 1))
	assert.Equal(t, "7", s.Value(2, 1))
	assert.Equal(t, "=SUM(A1:A2)", s.Value(3, 1))

	assert.ErrorIs(t, s.CopyValues(Range{}, 1, 1), ErrOutOfRange)
}

func TestMemory_RulesAreCopied(t *testing.T) {
	s := NewMemory().AddSheet("S", nil)
	in := []ConditionalFormatRule{{Formula: "A1>B1", Ranges: []Range{Column(2, 1, 1)}}}
	require.NoError(t, s.SetConditionalFormatRules(in))
	in[0].Ranges[0].Col = 9

	out, _ := s.ConditionalFormatRules()
	assert.Equal(t, 2, out[0].Ranges[0].Col)

	require.NoError(t, s.ClearConditionalFormatRules())
	out, _ = s.ConditionalFormatRules()
	assert.Empty(t, out)

	bad := []ConditionalFormatRule{{Formula: "x", Ranges: []Range{{}}}}
	assert.ErrorIs(t, s.SetConditionalFormatRules(bad), ErrOutOfRange)
}

func TestMemory_SaveError(t *testing.T) {
	m := NewMemory("A")
	require.NoError(t, m.Save())
	assert.Equal(t, 1, m.Saves())

	m.SaveErr = errors.New("disk full")
	err := m.Save()
	assert.ErrorIs(t, err, ErrBackend)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, m.Saves())
}
