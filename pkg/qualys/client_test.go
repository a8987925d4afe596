package qualys

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/vulntracker/pkg/testutil"
)

const serverCSV = "\"Scan Results\"\n\"Server Top Vulns\"\nIP,DNS,QID,Severity\n10.0.0.1,web01,38173,3\n"

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	codes []int
}

func (o *recordingObserver) ObserveAPICall(action string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, action)
	o.codes = append(o.codes, status)
}

func newTestClient(t *testing.T, fake *testutil.FakeQualys, obs Observer) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:    fake.URL,
		Username:   fake.Username,
		Password:   fake.Password,
		HTTPClient: fake.Client(),
		Observer:   obs,
	})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestSessionToken_Redacted(t *testing.T) {
	tok := SessionToken("abc")
	assert.Equal(t, "<redacted>", tok.String())
	assert.Equal(t, "QualysSession=abc", tok.Cookie())
	assert.Equal(t, "<none>", SessionToken("").String())
}

func TestFullSessionLifecycle(t *testing.T) {
	fake := testutil.NewFakeQualys(t,
		testutil.FakeReport{ID: "1111111", Title: "Workstations", CSV: "IP\n"},
		testutil.FakeReport{ID: "22222222", Title: "Server Top Vulns", CSV: serverCSV},
	)
	obs := &recordingObserver{}
	c := newTestClient(t, fake, obs)
	ctx := context.Background()

	token, err := c.StartSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, SessionToken(fake.Token), token)

	report, err := c.LocateReport(ctx, token, "Server Top Vulns")
	require.NoError(t, err)
	assert.Equal(t, "22222222", report.ID)

	body, err := c.FetchReport(ctx, token, report.ID)
	require.NoError(t, err)
	assert.Equal(t, serverCSV, string(body))

	require.NoError(t, c.KillSession(ctx, token))
	assert.True(t, fake.LoggedOut())

	assert.Equal(t, []string{"login", "list", "fetch", "logout"}, fake.Actions())
	assert.Equal(t, []string{"login", "list", "fetch", "logout"}, obs.calls)
	assert.Equal(t, []int{200, 200, 200, 200}, obs.codes)
}

func TestStartSession_BadCredentials(t *testing.T) {
	fake := testutil.NewFakeQualys(t)
	c, err := New(Options{
		BaseURL:    fake.URL,
		Username:   fake.Username,
		Password:   "wrong",
		HTTPClient: fake.Client(),
	})
	require.NoError(t, err)

	token, err := c.StartSession(context.Background())
	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, errors.Is(err, ErrAuth))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "2000", apiErr.Code)
	assert.Equal(t, "Bad Login/Password", apiErr.Text)
}

func TestStartSession_MissingCookie(t *testing.T) {
	fake := testutil.NewFakeQualys(t)
	fake.OmitCookie = true
	c := newTestClient(t, fake, nil)

	_, err := c.StartSession(context.Background())
	assert.True(t, errors.Is(err, ErrAuth))
	assert.Contains(t, err.Error(), "no QualysSession cookie")
}

func TestListReports_InvalidSession(t *testing.T) {
	fake := testutil.NewFakeQualys(t)
	c := newTestClient(t, fake, nil)

	_, err := c.ListReports(context.Background(), "bogus")
	assert.True(t, errors.Is(err, ErrAuth), "401 from the API is an auth failure: %v", err)
}

func TestLocateReport_NotFound(t *testing.T) {
	fake := testutil.NewFakeQualys(t, testutil.FakeReport{ID: "1111111", Title: "Workstations"})
	c := newTestClient(t, fake, nil)
	ctx := context.Background()

	token, err := c.StartSession(ctx)
	require.NoError(t, err)

	_, err = c.LocateReport(ctx, token, "Server Top Vulns")
	assert.True(t, errors.Is(err, ErrReportNotFound))
}

func TestListReports_MalformedListing(t *testing.T) {
	fake := testutil.NewFakeQualys(t)
	fake.ListBody = `<REPORT_LIST><ID>1234567</ID></REPORT_LIST>`
	c := newTestClient(t, fake, nil)
	ctx := context.Background()

	token, err := c.StartSession(ctx)
	require.NoError(t, err)

	_, err = c.ListReports(ctx, token)
	assert.True(t, errors.Is(err, ErrParse))
}

func TestFetchReport_UnknownID(t *testing.T) {
	fake := testutil.NewFakeQualys(t)
	c := newTestClient(t, fake, nil)
	ctx := context.Background()

	token, err := c.StartSession(ctx)
	require.NoError(t, err)

	_, err = c.FetchReport(ctx, token, "7777777")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAPI))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "2003", apiErr.Code)
}

func TestFetchReport_EmptyID(t *testing.T) {
	fake := testutil.NewFakeQualys(t)
	c := newTestClient(t, fake, nil)

	_, err := c.FetchReport(context.Background(), "tok", "")
	assert.True(t, errors.Is(err, ErrReportNotFound))
	assert.Empty(t, fake.Actions(), "no request should be sent without an id")
}

func TestFetchReport_XMLBodyIsNotCSV(t *testing.T) {
	fake := testutil.NewFakeQualys(t, testutil.FakeReport{
		ID:    "1234567",
		Title: "Saved as XML",
		CSV:   `<?xml version="1.0"?><ASSET_DATA_REPORT></ASSET_DATA_REPORT>`,
	})
	c := newTestClient(t, fake, nil)
	ctx := context.Background()

	token, err := c.StartSession(ctx)
	require.NoError(t, err)

	_, err = c.FetchReport(ctx, token, "1234567")
	assert.True(t, errors.Is(err, ErrParse))
}

func TestFetchReport_TooLarge(t *testing.T) {
	fake := testutil.NewFakeQualys(t, testutil.FakeReport{ID: "1234567", Title: "Big", CSV: serverCSV})
	c, err := New(Options{
		BaseURL:       fake.URL,
		Username:      fake.Username,
		Password:      fake.Password,
		HTTPClient:    fake.Client(),
		MaxReportSize: 16,
	})
	require.NoError(t, err)
	ctx := context.Background()

	token, err := c.StartSession(ctx)
	require.NoError(t, err)

	_, err = c.FetchReport(ctx, token, "1234567")
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestKillSession_Failure(t *testing.T) {
	fake := testutil.NewFakeQualys(t)
	fake.LogoutStatus = http.StatusInternalServerError
	c := newTestClient(t, fake, nil)
	ctx := context.Background()

	token, err := c.StartSession(ctx)
	require.NoError(t, err)

	err = c.KillSession(ctx, token)
	assert.True(t, errors.Is(err, ErrAPI))
}

func TestNetworkError(t *testing.T) {
	fake := testutil.NewFakeQualys(t)
	url := fake.URL
	fake.Close()

	c, err := New(Options{BaseURL: url})
	require.NoError(t, err)

	_, err = c.StartSession(context.Background())
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestRequestPacing(t *testing.T) {
	fake := testutil.NewFakeQualys(t)
	c, err := New(Options{
		BaseURL:           fake.URL,
		Username:          fake.Username,
		Password:          fake.Password,
		HTTPClient:        fake.Client(),
		RequestsPerMinute: 1,
	})
	require.NoError(t, err)

	_, err = c.StartSession(context.Background())
	require.NoError(t, err)

	// The second call has to wait a full minute; a short deadline must cut it off.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ListReports(ctx, "tok")
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, []string{"login"}, fake.Actions())
}
