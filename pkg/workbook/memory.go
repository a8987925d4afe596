package workbook

import (
	"fmt"
	"slices"
	"sync"
)

// Memory is an in-process Workbook. It backs tests and dry runs and keeps
// enough state (hidden columns, row heights, filter, rules) to inspect what
// the pipeline did.
type Memory struct {
	mu     sync.Mutex
	sheets []*MemorySheet
	seq    int

	// SaveErr, when set, is returned by Save.
	SaveErr error
	saves   int
}

// NewMemory returns a workbook holding empty sheets with the given names.
func NewMemory(names ...string) *Memory {
	m := &Memory{}
	for _, n := range names {
		m.sheets = append(m.sheets, newMemorySheet(m, n))
	}
	return m
}

func newMemorySheet(m *Memory, name string) *MemorySheet {
	return &MemorySheet{
		wb:      m,
		name:    name,
		hidden:  map[int]bool{},
		heights: map[int]float64{},
	}
}

// AddSheet appends a sheet pre-filled with grid and returns it.
func (m *Memory) AddSheet(name string, grid [][]string) *MemorySheet {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := newMemorySheet(m, name)
	for i, row := range grid {
		for j, v := range row {
			s.set(i+1, j+1, v)
		}
	}
	m.sheets = append(m.sheets, s)
	return s
}

func (m *Memory) Sheet(name string) (Sheet, error) {
	s, err := m.MemorySheet(name)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// MemorySheet is Sheet with the concrete type, for inspection in tests.
func (m *Memory) MemorySheet(name string) (*MemorySheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.find(name); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}

func (m *Memory) find(name string) *MemorySheet {
	for _, s := range m.sheets {
		if s.name == name {
			return s
		}
	}
	return nil
}

func (m *Memory) SheetNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.sheets))
	for i, s := range m.sheets {
		names[i] = s.name
	}
	return names
}

func (m *Memory) InsertSheet(index int) (Sheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var name string
	for {
		m.seq++
		name = fmt.Sprintf("Sheet%d", len(m.sheets)+m.seq)
		if m.find(name) == nil {
			break
		}
	}
	index = max(0, min(index, len(m.sheets)))
	s := newMemorySheet(m, name)
	m.sheets = slices.Insert(m.sheets, index, s)
	return s, nil
}

func (m *Memory) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return fmt.Errorf("%w: %w", ErrBackend, m.SaveErr)
	}
	m.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }

// MemorySheet is a sparse grid of string cells.
type MemorySheet struct {
	wb      *Memory
	name    string
	cells   [][]string
	hidden  map[int]bool
	heights map[int]float64
	filter  *Range
	rules   []ConditionalFormatRule
}

func (s *MemorySheet) Name() string {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	return s.name
}

func (s *MemorySheet) Rename(name string) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	if name == "" {
		return fmt.Errorf("%w: empty sheet name", ErrBackend)
	}
	if other := s.wb.find(name); other != nil && other != s {
		return fmt.Errorf("%w: %q", ErrSheetExists, name)
	}
	s.name = name
	return nil
}

func (s *MemorySheet) set(row, col int, v string) {
	for len(s.cells) < row {
		s.cells = append(s.cells, nil)
	}
	r := s.cells[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = v
	s.cells[row-1] = r
}

func (s *MemorySheet) get(row, col int) string {
	if row < 1 || row > len(s.cells) || col < 1 || col > len(s.cells[row-1]) {
		return ""
	}
	return s.cells[row-1][col-1]
}

func (s *MemorySheet) lastRow() int {
	for i := len(s.cells); i > 0; i-- {
		for _, v := range s.cells[i-1] {
			if v != "" {
				return i
			}
		}
	}
	return 0
}

func (s *MemorySheet) lastColumn() int {
	last := 0
	for _, r := range s.cells {
		for j := len(r); j > last; j-- {
			if r[j-1] != "" {
				last = j
				break
			}
		}
	}
	return last
}

func (s *MemorySheet) LastRow() (int, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	return s.lastRow(), nil
}

func (s *MemorySheet) LastColumn() (int, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	return s.lastColumn(), nil
}

func (s *MemorySheet) DataRange() ([][]string, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	return pad(s.cells, s.lastRow(), s.lastColumn()), nil
}

func (s *MemorySheet) WriteRange(row, col int, values [][]string) error {
	if err := checkCell(row, col); err != nil {
		return err
	}
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	for i, r := range values {
		for j, v := range r {
			s.set(row+i, col+j, v)
		}
	}
	return nil
}

func (s *MemorySheet) SetValue(row, col int, value string) error {
	if err := checkCell(row, col); err != nil {
		return err
	}
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	s.set(row, col, value)
	return nil
}

// Value returns the cell at (row, col), "" when unset.
func (s *MemorySheet) Value(row, col int) string {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	return s.get(row, col)
}

func (s *MemorySheet) DeleteRow(row int) error {
	if err := checkCell(row, 1); err != nil {
		return err
	}
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	if row <= len(s.cells) {
		s.cells = slices.Delete(s.cells, row-1, row)
	}
	heights := make(map[int]float64, len(s.heights))
	for r, h := range s.heights {
		switch {
		case r < row:
			heights[r] = h
		case r > row:
			heights[r-1] = h
		}
	}
	s.heights = heights
	if s.filter != nil && s.filter.Row > row {
		s.filter.Row--
	}
	return nil
}

func (s *MemorySheet) CreateFilter(r Range) error {
	if !r.Valid() {
		return fmt.Errorf("%w: filter %s", ErrOutOfRange, r)
	}
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	s.filter = &r
	return nil
}

// Filter returns the installed auto-filter range.
func (s *MemorySheet) Filter() (Range, bool) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	if s.filter == nil {
		return Range{}, false
	}
	return *s.filter, true
}

func (s *MemorySheet) SetRowHeights(startRow, count int, height float64) error {
	if err := checkCell(startRow, 1); err != nil {
		return err
	}
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	for r := startRow; r < startRow+count; r++ {
		s.heights[r] = height
	}
	return nil
}

// RowHeight returns the explicit height of row, 0 when never set.
func (s *MemorySheet) RowHeight(row int) float64 {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	return s.heights[row]
}

func (s *MemorySheet) InsertColumnBefore(col int) error {
	if err := checkCell(1, col); err != nil {
		return err
	}
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	for i, r := range s.cells {
		if len(r) >= col {
			s.cells[i] = slices.Insert(r, col-1, "")
		}
	}
	hidden := make(map[int]bool, len(s.hidden))
	for c, h := range s.hidden {
		if c >= col {
			c++
		}
		hidden[c] = h
	}
	s.hidden = hidden
	for i := range s.rules {
		for j := range s.rules[i].Ranges {
			if s.rules[i].Ranges[j].Col >= col {
				s.rules[i].Ranges[j].Col++
			}
		}
	}
	if s.filter != nil && s.filter.Col >= col {
		s.filter.Col++
	}
	return nil
}

// CopyValues copies the stored text. Memory does not evaluate formulas, so
// fixtures that need a frozen result should hold the value itself.
func (s *MemorySheet) CopyValues(src Range, dstRow, dstCol int) error {
	if !src.Valid() {
		return fmt.Errorf("%w: source %s", ErrOutOfRange, src)
	}
	if err := checkCell(dstRow, dstCol); err != nil {
		return err
	}
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	buf := make([][]string, src.Rows)
	for i := range buf {
		buf[i] = make([]string, src.Cols)
		for j := range buf[i] {
			buf[i][j] = s.get(src.Row+i, src.Col+j)
		}
	}
	for i, r := range buf {
		for j, v := range r {
			s.set(dstRow+i, dstCol+j, v)
		}
	}
	return nil
}

func (s *MemorySheet) ConditionalFormatRules() ([]ConditionalFormatRule, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	return cloneRules(s.rules), nil
}

func (s *MemorySheet) SetConditionalFormatRules(rules []ConditionalFormatRule) error {
	for _, rule := range rules {
		for _, r := range rule.Ranges {
			if !r.Valid() {
				return fmt.Errorf("%w: rule range %s", ErrOutOfRange, r)
			}
		}
	}
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	s.rules = cloneRules(rules)
	return nil
}

func (s *MemorySheet) ClearConditionalFormatRules() error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	s.rules = nil
	return nil
}

func (s *MemorySheet) HideColumn(col int) error {
	if err := checkCell(1, col); err != nil {
		return err
	}
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	s.hidden[col] = true
	return nil
}

// HiddenColumns returns hidden column numbers in ascending order.
func (s *MemorySheet) HiddenColumns() []int {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()
	var cols []int
	for c, h := range s.hidden {
		if h {
			cols = append(cols, c)
		}
	}
	slices.Sort(cols)
	return cols
}

func cloneRules(rules []ConditionalFormatRule) []ConditionalFormatRule {
	if rules == nil {
		return nil
	}
	out := make([]ConditionalFormatRule, len(rules))
	for i, r := range rules {
		out[i] = r
		out[i].Ranges = slices.Clone(r.Ranges)
	}
	return out
}
