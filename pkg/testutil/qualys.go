package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeReport is a saved report served by FakeQualys.
type FakeReport struct {
	ID    string
	Title string
	CSV   string
}

// FakeQualys is an httptest server speaking the subset of the Qualys
// v2.0 fo API that vulntracker uses (session login/logout, report list/fetch).
type FakeQualys struct {
	*httptest.Server

	Username string
	Password string
	Token    string
	Reports  []FakeReport

	// LoginStatus overrides the login status code when non-zero.
	LoginStatus int
	// OmitCookie makes a successful login answer without Set-Cookie.
	OmitCookie bool
	// LogoutStatus overrides the logout status code when non-zero.
	LogoutStatus int
	// ListBody overrides the generated listing when non-empty.
	ListBody string

	mu        sync.Mutex
	actions   []string
	loggedOut bool
}

// NewFakeQualys starts a fake server with one set of credentials and
// registers its shutdown with t.Cleanup.
func NewFakeQualys(t testing.TB, reports ...FakeReport) *FakeQualys {
	t.Helper()
	f := &FakeQualys{
		Username: "apiuser",
		Password: "s3cret",
		Token:    "d5e4f3a2b1c0",
		Reports:  reports,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// Actions returns the form actions received, in order.
func (f *FakeQualys) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

// LoggedOut reports whether a valid logout was received since the last login.
func (f *FakeQualys) LoggedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedOut
}

func (f *FakeQualys) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeSimpleReturn(w, http.StatusMethodNotAllowed, "1901", "Unrecognized request method")
		return
	}
	if r.Header.Get("X-Requested-With") == "" {
		writeSimpleReturn(w, http.StatusBadRequest, "1960", "This API requires the X-Requested-With header.")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeSimpleReturn(w, http.StatusBadRequest, "1905", "Malformed form body")
		return
	}

	action := r.PostForm.Get("action")
	f.mu.Lock()
	f.actions = append(f.actions, action)
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/api/2.0/fo/session/" && action == "login":
		f.login(w, r)
	case r.URL.Path == "/api/2.0/fo/session/" && action == "logout":
		f.logout(w, r)
	case r.URL.Path == "/api/2.0/fo/report/" && action == "list":
		if !f.authorized(w, r) {
			return
		}
		body := f.ListBody
		if body == "" {
			body = ReportListXML(f.Reports...)
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, body)
	case r.URL.Path == "/api/2.0/fo/report/" && action == "fetch":
		if !f.authorized(w, r) {
			return
		}
		f.fetch(w, r.PostForm.Get("id"))
	default:
		writeSimpleReturn(w, http.StatusBadRequest, "1903", "Unrecognized parameter(s): action")
	}
}

func (f *FakeQualys) login(w http.ResponseWriter, r *http.Request) {
	if f.LoginStatus != 0 && f.LoginStatus != http.StatusOK {
		writeSimpleReturn(w, f.LoginStatus, "2000", "Bad Login/Password")
		return
	}
	if r.PostForm.Get("username") != f.Username || r.PostForm.Get("password") != f.Password {
		writeSimpleReturn(w, http.StatusUnauthorized, "2000", "Bad Login/Password")
		return
	}
	f.mu.Lock()
	f.loggedOut = false
	f.mu.Unlock()
	if !f.OmitCookie {
		w.Header().Add("Set-Cookie", "DWRSESSIONID=abc; path=/")
		w.Header().Add("Set-Cookie", "QualysSession="+f.Token+"; path=/api; secure")
	}
	writeSimpleReturn(w, http.StatusOK, "", "Logged in")
}

func (f *FakeQualys) logout(w http.ResponseWriter, r *http.Request) {
	if f.LogoutStatus != 0 && f.LogoutStatus != http.StatusOK {
		writeSimpleReturn(w, f.LogoutStatus, "999", "Internal error")
		return
	}
	if !f.authorized(w, r) {
		return
	}
	f.mu.Lock()
	f.loggedOut = true
	f.mu.Unlock()
	writeSimpleReturn(w, http.StatusOK, "", "Logged out")
}

func (f *FakeQualys) fetch(w http.ResponseWriter, id string) {
	for _, rep := range f.Reports {
		if rep.ID == id {
			w.Header().Set("Content-Type", "text/csv")
			fmt.Fprint(w, rep.CSV)
			return
		}
	}
	writeSimpleReturn(w, http.StatusBadRequest, "2003", "Report ID "+id+" not found")
}

func (f *FakeQualys) authorized(w http.ResponseWriter, r *http.Request) bool {
	c, err := r.Cookie("QualysSession")
	if err != nil || c.Value != f.Token {
		writeSimpleReturn(w, http.StatusUnauthorized, "2001", "Session not found or expired")
		return false
	}
	f.mu.Lock()
	out := f.loggedOut
	f.mu.Unlock()
	if out {
		writeSimpleReturn(w, http.StatusUnauthorized, "2001", "Session not found or expired")
		return false
	}
	return true
}

// ReportListXML renders a report listing the way the API does: each REPORT
// element carries its ID before its TITLE.
func ReportListXML(reports ...FakeReport) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" ?>` + "\n")
	b.WriteString(`<!DOCTYPE REPORT_LIST_OUTPUT SYSTEM "https://qualysapi.qg2.apps.qualys.eu/api/2.0/fo/report/report_list_output.dtd">` + "\n")
	b.WriteString("<REPORT_LIST_OUTPUT>\n  <RESPONSE>\n    <DATETIME>2026-10-15T08:00:00Z</DATETIME>\n    <REPORT_LIST>\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "      <REPORT>\n        <ID>%s</ID>\n        <TITLE><![CDATA[%s]]></TITLE>\n", r.ID, r.Title)
		b.WriteString("        <TYPE>Scan</TYPE>\n        <USER_LOGIN>apiuser</USER_LOGIN>\n")
		b.WriteString("        <OUTPUT_FORMAT>CSV</OUTPUT_FORMAT>\n        <STATUS>\n          <STATE>Finished</STATE>\n        </STATUS>\n")
		b.WriteString("      </REPORT>\n")
	}
	b.WriteString("    </REPORT_LIST>\n  </RESPONSE>\n</REPORT_LIST_OUTPUT>\n")
	return b.String()
}

func writeSimpleReturn(w http.ResponseWriter, status int, code, text string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8" ?>`+"\n<SIMPLE_RETURN>\n  <RESPONSE>\n    <DATETIME>2026-10-15T08:00:00Z</DATETIME>\n")
	if code != "" {
		fmt.Fprintf(w, "    <CODE>%s</CODE>\n", code)
	}
	fmt.Fprintf(w, "    <TEXT>%s</TEXT>\n  </RESPONSE>\n</SIMPLE_RETURN>\n", html.EscapeString(text))
}
