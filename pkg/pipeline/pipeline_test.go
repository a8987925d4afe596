package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waftester/vulntracker/pkg/checkpoint"
	"github.com/waftester/vulntracker/pkg/publish"
	"github.com/waftester/vulntracker/pkg/qualys"
	"github.com/waftester/vulntracker/pkg/testutil"
	"github.com/waftester/vulntracker/pkg/tracing"
	"github.com/waftester/vulntracker/pkg/workbook"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	reportTitle = "Weekly Linux/Windows Vulns"
	label       = "10/15/26"
	detail      = "Vulnerability Details (10/15/26)"
)

const reportCSV = "\"Scan Results\"\n" +
	"\"Acme Corp\",\"Weekly\"\n" +
	"\n" +
	"\"IP\",\"DNS\",\"QID\",\"Severity\"\n" +
	"\"10.0.0.1\",\"web01\",\"38173\",\"3\"\n" +
	"\"10.0.0.2\",\"db01\",\"105943\",\"5\"\n"

var overviewNames = []string{"Linux Overview", "Windows Overview", "Remediated"}

type recorder struct {
	rows      int
	rotations map[string]error
}

func (r *recorder) ObserveReport(rows int) { r.rows = rows }

func (r *recorder) ObserveRotation(sheet string, err error) {
	if r.rotations == nil {
		r.rotations = map[string]error{}
	}
	r.rotations[sheet] = err
}

func newWorkbook() *workbook.Memory {
	wb := workbook.NewMemory()
	for _, name := range overviewNames {
		wb.AddSheet(name, [][]string{
			{"Vulnerability Details (10/8/26)", "", "", "", "", "", ""},
			{"Severity", "9/24/26", "10/1/26", "10/8/26", "Target", "Owner", "Notes"},
			{"5", "4", "3", "2", "0", "ops", "n"},
		})
	}
	wb.AddSheet("Vulnerability Details (10/8/26)", [][]string{{"IP"}})
	return wb
}

type fixture struct {
	fake *testutil.FakeQualys
	wb   *workbook.Memory
	rec  *recorder
	opts Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := testutil.NewFakeQualys(t,
		testutil.FakeReport{ID: "1234567", Title: "Other report", CSV: "IP\n1.1.1.1\n"},
		testutil.FakeReport{ID: "7654321", Title: reportTitle, CSV: reportCSV},
	)
	rec := &recorder{}
	return &fixture{
		fake: fake,
		wb:   newWorkbook(),
		rec:  rec,
		opts: Options{
			ReportTitle:    reportTitle,
			Label:          label,
			OverviewSheets: overviewNames,
			Metrics:        rec,
		},
	}
}

func (f *fixture) client(t *testing.T, password string) *qualys.Client {
	t.Helper()
	c, err := qualys.New(qualys.Options{
		BaseURL:  f.fake.URL,
		Username: f.fake.Username,
		Password: password,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) run(t *testing.T) (*Summary, error) {
	t.Helper()
	r, err := NewRunner(f.client(t, f.fake.Password), f.wb, f.opts)
	require.NoError(t, err)
	return r.Run(context.Background())
}

func TestRun_HappyPath(t *testing.T) {
	f := newFixture(t)
	before := f.wb.SheetNames()

	sum, err := f.run(t)
	require.NoError(t, err)

	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, "7654321", sum.ReportID)
	assert.Equal(t, detail, sum.DetailSheet)
	// csv skips the blank line in the preamble
	assert.Equal(t, 5, sum.Rows)
	assert.Equal(t, 4, sum.Cols)
	assert.Equal(t, 2, sum.PreambleRows)
	assert.True(t, sum.LoggedOut)
	assert.True(t, sum.Saved)
	assert.False(t, sum.Partial())
	assert.Len(t, sum.Rotations, 3)

	assert.Equal(t, []string{"login", "list", "fetch", "logout"}, f.fake.Actions())
	assert.Equal(t, 1, f.wb.Saves())

	names := f.wb.SheetNames()
	require.Len(t, names, len(before)+1)
	assert.Equal(t, detail, names[3])

	s, err := f.wb.MemorySheet(detail)
	require.NoError(t, err)
	data, _ := s.DataRange()
	assert.Equal(t, []string{"IP", "DNS", "QID", "Severity"}, data[0])
	assert.Len(t, data, 3)

	for _, name := range overviewNames {
		o, err := f.wb.MemorySheet(name)
		require.NoError(t, err)
		lc, _ := o.LastColumn()
		assert.Equal(t, 8, lc, name)
		assert.Equal(t, label, o.Value(2, 5), name)
		assert.Equal(t, "10/8/26", o.Value(2, 4), name)
		assert.Equal(t, detail, o.Value(1, 1), name)
		assert.Equal(t, []int{2}, o.HiddenColumns(), name)
	}

	assert.Equal(t, 5, f.rec.rows)
	assert.Len(t, f.rec.rotations, 3)
}

func TestRun_ZeroPublishOptionsUseStandardLayout(t *testing.T) {
	f := newFixture(t)
	f.opts.Publish = publish.Options{}

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, detail, f.wb.SheetNames()[3])
}

func TestRun_ExplicitFirstTab(t *testing.T) {
	f := newFixture(t)
	f.opts.Publish = publish.DefaultOptions()
	f.opts.Publish.SheetIndex = 0

	_, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, detail, f.wb.SheetNames()[0])
}

func TestRun_AuthFailureLeavesWorkbookUntouched(t *testing.T) {
	f := newFixture(t)
	before := f.wb.SheetNames()

	r, err := NewRunner(f.client(t, "wrong"), f.wb, f.opts)
	require.NoError(t, err)
	sum, err := r.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, qualys.ErrAuth)
	assert.Equal(t, KindAuth, ErrorKind(err))
	assert.Equal(t, before, f.wb.SheetNames())
	assert.Zero(t, f.wb.Saves())
	assert.False(t, sum.Saved)
	assert.Equal(t, []string{"login"}, f.fake.Actions())
}

func TestRun_LogoutFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t)
	f.fake.LogoutStatus = 500

	sum, err := f.run(t)
	require.NoError(t, err)
	assert.False(t, sum.LoggedOut)
	assert.True(t, sum.Saved)
	assert.Len(t, sum.Rotations, 3)
}

func TestRun_MissingOverviewSheetIsPartial(t *testing.T) {
	f := newFixture(t)
	f.opts.OverviewSheets = []string{"Linux Overview", "Missing Overview", "Remediated"}

	sum, err := f.run(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartial)
	assert.ErrorIs(t, err, workbook.ErrSheetNotFound)
	assert.Equal(t, KindPartial, ErrorKind(err))

	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "Missing Overview", sum.Failures[0].Sheet)
	require.Len(t, sum.Rotations, 2)
	assert.Equal(t, "Linux Overview", sum.Rotations[0].Sheet)
	assert.Equal(t, "Remediated", sum.Rotations[1].Sheet)
	assert.True(t, sum.Saved)
	assert.Error(t, f.rec.rotations["Missing Overview"])
	assert.NoError(t, f.rec.rotations["Remediated"])
}

func TestRun_NarrowOverviewDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	f.wb.AddSheet("Tiny", [][]string{{"a", "b"}})
	f.opts.OverviewSheets = []string{"Tiny", "Linux Overview"}

	sum, err := f.run(t)
	assert.ErrorIs(t, err, checkpoint.ErrSheetTooNarrow)
	assert.ErrorIs(t, err, ErrPartial)
	assert.Len(t, sum.Rotations, 1)
}

func TestRun_ReportNotFound(t *testing.T) {
	f := newFixture(t)
	f.opts.ReportTitle = "No such report"
	before := f.wb.SheetNames()

	sum, err := f.run(t)
	assert.ErrorIs(t, err, qualys.ErrReportNotFound)
	assert.Equal(t, KindNotFound, ErrorKind(err))
	assert.True(t, sum.LoggedOut)
	assert.Equal(t, before, f.wb.SheetNames())
	assert.Zero(t, f.wb.Saves())
}

func TestRun_SameDateTwice(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t)
	require.NoError(t, err)
	snapshot := f.wb.SheetNames()

	sum, err := f.run(t)
	assert.ErrorIs(t, err, workbook.ErrSheetExists)
	assert.Equal(t, KindBackend, ErrorKind(err))
	assert.Equal(t, snapshot, f.wb.SheetNames())
	assert.Equal(t, 1, f.wb.Saves())
	assert.True(t, sum.LoggedOut)
	assert.Empty(t, sum.Rotations)
}

func TestRun_MissingHeaderSavesImportAndSkipsRotation(t *testing.T) {
	f := newFixture(t)
	f.fake.Reports[1].CSV = "\"Scan Results\"\n\"host\",\"qid\"\n\"1.1.1.1\",\"1\"\n"

	sum, err := f.run(t)
	assert.ErrorIs(t, err, publish.ErrHeaderNotFound)
	assert.Equal(t, KindParse, ErrorKind(err))
	assert.True(t, sum.Saved)
	assert.Empty(t, sum.Rotations)
	assert.Contains(t, f.wb.SheetNames(), detail)

	o, _ := f.wb.MemorySheet("Linux Overview")
	lc, _ := o.LastColumn()
	assert.Equal(t, 7, lc)
}

func TestRun_SaveFailure(t *testing.T) {
	f := newFixture(t)
	f.wb.SaveErr = testutil.ErrFault

	sum, err := f.run(t)
	assert.ErrorIs(t, err, workbook.ErrBackend)
	assert.ErrorIs(t, err, testutil.ErrFault)
	assert.Equal(t, KindBackend, ErrorKind(err))
	assert.False(t, sum.Saved)
}

func TestRun_EmitsStepSpans(t *testing.T) {
	f := newFixture(t)
	exp := tracetest.NewInMemoryExporter()
	p := tracing.NewWithExporter(exp, tracing.Options{})
	f.opts.Tracer = p.Tracer()

	_, err := f.run(t)
	require.NoError(t, err)
	require.NoError(t, p.Flush(context.Background()))

	var names []string
	for _, s := range exp.GetSpans() {
		names = append(names, s.Name)
	}
	for _, want := range []string{"vulntracker.run", "login", "locate", "fetch", "import", "logout", "format", "rotate", "save"} {
		assert.True(t, slices.Contains(names, want), "missing span %q in %v", want, names)
	}
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewRunner_Validation(t *testing.T) {
	f := newFixture(t)
	c := f.client(t, "x")

	_, err := NewRunner(nil, f.wb, f.opts)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewRunner(c, f.wb, Options{Label: label})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewRunner(c, f.wb, Options{ReportTitle: reportTitle})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&qualys.APIError{Action: "login", StatusCode: 401, Err: qualys.ErrAuth}, KindAuth},
		{fmt.Errorf("x: %w", qualys.ErrReportNotFound), KindNotFound},
		{qualys.ErrParse, KindParse},
		{publish.ErrEmptyReport, KindParse},
		{fmt.Errorf("%w: disk", workbook.ErrBackend), KindBackend},
		{&qualys.APIError{Action: "fetch", StatusCode: 409, Err: qualys.ErrAPI}, KindNetwork},
		{fmt.Errorf("%w: %w", qualys.ErrNetwork, context.DeadlineExceeded), KindNetwork},
		{fmt.Errorf("%w: %w", ErrPartial, workbook.ErrSheetNotFound), KindPartial},
		{errors.New("mystery"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "%v", tt.err)
	}
}
