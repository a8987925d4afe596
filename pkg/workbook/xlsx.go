package workbook

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the sheet name limit imposed by the xlsx format.
const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(
	"/", "-", `\`, "-", "?", "-", "*", "-",
	"[", "-", "]", "-", ":", "-",
)

// SheetName maps a logical sheet title to a legal xlsx sheet name. Titles
// carrying dates such as "Vulnerability Details (3/4/26)" contain '/',
// which the format forbids. A trailing parenthesised qualifier is kept whole
// when the name is too long; the text before it is shortened instead.
func SheetName(title string) string {
	name := sheetNameReplacer.Replace(title)
	name = strings.Trim(name, "'")
	if utf8.RuneCountInString(name) <= maxSheetName {
		return name
	}
	if i := strings.LastIndex(name, " ("); i > 0 && strings.HasSuffix(name, ")") {
		prefix, suffix := []rune(name[:i]), []rune(name[i:])
		if keep := maxSheetName - len(suffix); keep > 0 {
			return strings.TrimRight(string(prefix[:min(keep, len(prefix))]), " ") + string(suffix)
		}
	}
	return string([]rune(name)[:maxSheetName])
}

// XLSX is a Workbook stored in an .xlsx file.
type XLSX struct {
	f    *excelize.File
	path string
}

// OpenXLSX opens an existing workbook file.
func OpenXLSX(path string) (*XLSX, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: workbook %s does not exist", ErrBackend, path)
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrBackend, path, err)
	}
	return &XLSX{f: f, path: path}, nil
}

// CreateXLSX starts a new workbook holding the given sheets. It is written
// to path on Save.
func CreateXLSX(path string, sheets ...string) (*XLSX, error) {
	f := excelize.NewFile()
	x := &XLSX{f: f, path: path}
	if len(sheets) == 0 {
		return x, nil
	}
	first := f.GetSheetName(0)
	if err := f.SetSheetName(first, SheetName(sheets[0])); err != nil {
		return nil, x.wrap("create", err)
	}
	for _, s := range sheets[1:] {
		if _, err := f.NewSheet(SheetName(s)); err != nil {
			return nil, x.wrap("create", err)
		}
	}
	return x, nil
}

// File exposes the underlying excelize document.
func (x *XLSX) File() *excelize.File { return x.f }

func (x *XLSX) wrap(op string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrBackend, op, x.path, err)
}

func (x *XLSX) Sheet(name string) (Sheet, error) {
	n := SheetName(name)
	idx, err := x.f.GetSheetIndex(n)
	if err != nil {
		return nil, x.wrap("sheet", err)
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return &xlsxSheet{wb: x, name: n}, nil
}

func (x *XLSX) SheetNames() []string {
	return x.f.GetSheetList()
}

func (x *XLSX) InsertSheet(index int) (Sheet, error) {
	list := x.f.GetSheetList()
	var name string
	for i := len(list) + 1; ; i++ {
		name = fmt.Sprintf("Sheet%d", i)
		if idx, _ := x.f.GetSheetIndex(name); idx < 0 {
			break
		}
	}
	if _, err := x.f.NewSheet(name); err != nil {
		return nil, x.wrap("insert sheet", err)
	}
	index = max(0, index)
	if index < len(list) {
		if err := x.f.MoveSheet(name, list[index]); err != nil {
			return nil, x.wrap("move sheet", err)
		}
	}
	return &xlsxSheet{wb: x, name: name}, nil
}

func (x *XLSX) Save() error {
	if err := x.f.SaveAs(x.path); err != nil {
		return x.wrap("save", err)
	}
	return nil
}

func (x *XLSX) Close() error {
	if err := x.f.Close(); err != nil {
		return x.wrap("close", err)
	}
	return nil
}

type xlsxSheet struct {
	wb   *XLSX
	name string
}

func (s *xlsxSheet) file() *excelize.File { return s.wb.f }

func (s *xlsxSheet) Name() string { return s.name }

func (s *xlsxSheet) Rename(name string) error {
	n := SheetName(name)
	if n == "" {
		return fmt.Errorf("%w: empty sheet name", ErrBackend)
	}
	if n == s.name {
		return nil
	}
	idx, err := s.file().GetSheetIndex(n)
	if err != nil {
		return s.wb.wrap("rename", err)
	}
	if idx >= 0 {
		return fmt.Errorf("%w: %q", ErrSheetExists, name)
	}
	if err := s.file().SetSheetName(s.name, n); err != nil {
		return s.wb.wrap("rename", err)
	}
	s.name = n
	return nil
}

func (s *xlsxSheet) rows() ([][]string, error) {
	rows, err := s.file().GetRows(s.name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, s.wb.wrap("read "+s.name, err)
	}
	return rows, nil
}

func extent(rows [][]string) (lastRow, lastCol int) {
	for i, r := range rows {
		for j := len(r); j > 0; j-- {
			if r[j-1] != "" {
				lastRow = i + 1
				lastCol = max(lastCol, j)
				break
			}
		}
	}
	return lastRow, lastCol
}

func (s *xlsxSheet) LastRow() (int, error) {
	rows, err := s.rows()
	if err != nil {
		return 0, err
	}
	r, _ := extent(rows)
	return r, nil
}

func (s *xlsxSheet) LastColumn() (int, error) {
	rows, err := s.rows()
	if err != nil {
		return 0, err
	}
	_, c := extent(rows)
	return c, nil
}

func (s *xlsxSheet) DataRange() ([][]string, error) {
	rows, err := s.rows()
	if err != nil {
		return nil, err
	}
	r, c := extent(rows)
	return pad(rows, r, c), nil
}

func (s *xlsxSheet) value(cell string) (string, error) {
	v, err := s.file().GetCellValue(s.name, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", s.wb.wrap("read "+cell, err)
	}
	return v, nil
}

func (s *xlsxSheet) WriteRange(row, col int, values [][]string) error {
	if err := checkCell(row, col); err != nil {
		return err
	}
	for i, r := range values {
		for j, v := range r {
			cell := CellName(col+j, row+i)
			if v == "" {
				// Leave absent cells absent so the sheet extent stays tight.
				cur, err := s.value(cell)
				if err != nil {
					return err
				}
				if cur == "" {
					continue
				}
			}
			if err := s.file().SetCellStr(s.name, cell, v); err != nil {
				return s.wb.wrap("write "+cell, err)
			}
		}
	}
	return nil
}

func (s *xlsxSheet) SetValue(row, col int, value string) error {
	if err := checkCell(row, col); err != nil {
		return err
	}
	cell := CellName(col, row)
	if err := s.file().SetCellStr(s.name, cell, value); err != nil {
		return s.wb.wrap("write "+cell, err)
	}
	return nil
}

func (s *xlsxSheet) DeleteRow(row int) error {
	if err := checkCell(row, 1); err != nil {
		return err
	}
	if err := s.file().RemoveRow(s.name, row); err != nil {
		return s.wb.wrap("delete row", err)
	}
	return nil
}

func (s *xlsxSheet) CreateFilter(r Range) error {
	if !r.Valid() {
		return fmt.Errorf("%w: filter %s", ErrOutOfRange, r)
	}
	if err := s.file().AutoFilter(s.name, r.String(), []excelize.AutoFilterOptions{}); err != nil {
		return s.wb.wrap("filter", err)
	}
	return nil
}

func (s *xlsxSheet) SetRowHeights(startRow, count int, height float64) error {
	if err := checkCell(startRow, 1); err != nil {
		return err
	}
	for r := startRow; r < startRow+count; r++ {
		if err := s.file().SetRowHeight(s.name, r, height); err != nil {
			return s.wb.wrap("row height", err)
		}
	}
	return nil
}

func (s *xlsxSheet) InsertColumnBefore(col int) error {
	if err := checkCell(1, col); err != nil {
		return err
	}
	if err := s.file().InsertCols(s.name, ColumnName(col), 1); err != nil {
		return s.wb.wrap("insert column", err)
	}
	return nil
}

// CopyValues keeps numbers numeric and booleans boolean so formulas and
// conditional rules that read the snapshot still compare correctly. Formula
// cells are evaluated; the cached result is used only when evaluation fails,
// since formulas written by excelize carry no cache.
func (s *xlsxSheet) CopyValues(src Range, dstRow, dstCol int) error {
	if !src.Valid() {
		return fmt.Errorf("%w: source %s", ErrOutOfRange, src)
	}
	if err := checkCell(dstRow, dstCol); err != nil {
		return err
	}
	f := s.file()
	for i := 0; i < src.Rows; i++ {
		for j := 0; j < src.Cols; j++ {
			from := CellName(src.Col+j, src.Row+i)
			to := CellName(dstCol+j, dstRow+i)
			v, err := s.value(from)
			if err != nil {
				return err
			}
			typ, err := f.GetCellType(s.name, from)
			if err != nil {
				return s.wb.wrap("read "+from, err)
			}
			formula, err := f.GetCellFormula(s.name, from)
			if err != nil {
				return s.wb.wrap("read "+from, err)
			}
			if formula != "" {
				if calc, err := f.CalcCellValue(s.name, from, excelize.Options{RawCellValue: true}); err == nil {
					v = calc
				}
				typ = excelize.CellTypeUnset
			}
			if err := s.setTyped(to, typ, v); err != nil {
				return s.wb.wrap("write "+to, err)
			}
		}
	}
	return nil
}

func (s *xlsxSheet) setTyped(cell string, typ excelize.CellType, v string) error {
	f := s.file()
	switch typ {
	case excelize.CellTypeBool:
		return f.SetCellBool(s.name, cell, v == "1" || strings.EqualFold(v, "true"))
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return f.SetCellStr(s.name, cell, v)
	}
	if v == "" {
		return f.SetCellStr(s.name, cell, "")
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return f.SetCellFloat(s.name, cell, n, -1, 64)
	}
	return f.SetCellStr(s.name, cell, v)
}

func (s *xlsxSheet) ConditionalFormatRules() ([]ConditionalFormatRule, error) {
	formats, err := s.file().GetConditionalFormats(s.name)
	if err != nil {
		return nil, s.wb.wrap("conditional formats", err)
	}
	refs := make([]string, 0, len(formats))
	for ref := range formats {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	var rules []ConditionalFormatRule
	for _, ref := range refs {
		opts := formats[ref]
		ranges, err := parseSqref(ref)
		if err != nil {
			return nil, s.wb.wrap("conditional formats", err)
		}
		for _, o := range opts {
			if o.Type != "formula" {
				continue
			}
			rules = append(rules, ConditionalFormatRule{
				Formula: strings.TrimPrefix(o.Criteria, "="),
				Ranges:  ranges,
				styleID: o.Format,
			})
		}
	}
	return rules, nil
}

// SetConditionalFormatRules groups rules by range so each sqref is written
// once; excelize keys read-back by sqref.
func (s *xlsxSheet) SetConditionalFormatRules(rules []ConditionalFormatRule) error {
	if err := s.ClearConditionalFormatRules(); err != nil {
		return err
	}
	f := s.file()
	var refs []string
	byRef := map[string][]excelize.ConditionalFormatOptions{}
	for _, rule := range rules {
		style := rule.styleID
		if rule.Background != "" || style == nil {
			st := &excelize.Style{}
			if rule.Background != "" {
				st.Fill = excelize.Fill{Type: "pattern", Color: []string{rule.Background}, Pattern: 1}
			}
			id, err := f.NewConditionalStyle(st)
			if err != nil {
				return s.wb.wrap("conditional style", err)
			}
			style = &id
		}
		for _, r := range rule.Ranges {
			if !r.Valid() {
				return fmt.Errorf("%w: rule range %s", ErrOutOfRange, r)
			}
			ref := r.String()
			if _, ok := byRef[ref]; !ok {
				refs = append(refs, ref)
			}
			byRef[ref] = append(byRef[ref], excelize.ConditionalFormatOptions{
				Type:     "formula",
				Criteria: rule.Formula,
				Format:   style,
			})
		}
	}
	for _, ref := range refs {
		if err := f.SetConditionalFormat(s.name, ref, byRef[ref]); err != nil {
			return s.wb.wrap("conditional format", err)
		}
	}
	return nil
}

func (s *xlsxSheet) ClearConditionalFormatRules() error {
	formats, err := s.file().GetConditionalFormats(s.name)
	if err != nil {
		return s.wb.wrap("conditional formats", err)
	}
	for ref := range formats {
		if err := s.file().UnsetConditionalFormat(s.name, ref); err != nil {
			return s.wb.wrap("unset conditional format", err)
		}
	}
	return nil
}

func (s *xlsxSheet) HideColumn(col int) error {
	if err := checkCell(1, col); err != nil {
		return err
	}
	if err := s.file().SetColVisible(s.name, ColumnName(col), false); err != nil {
		return s.wb.wrap("hide column", err)
	}
	return nil
}

// parseSqref splits a space separated list of A1 references.
func parseSqref(sqref string) ([]Range, error) {
	var out []Range
	for _, ref := range strings.Fields(sqref) {
		from, to, _ := strings.Cut(ref, ":")
		if to == "" {
			to = from
		}
		c1, r1, err := excelize.CellNameToCoordinates(from)
		if err != nil {
			return nil, err
		}
		c2, r2, err := excelize.CellNameToCoordinates(to)
		if err != nil {
			return nil, err
		}
		out = append(out, Range{Row: r1, Col: c1, Rows: r2 - r1 + 1, Cols: c2 - c1 + 1})
	}
	return out, nil
}
