package qualys

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/waftester/vulntracker/pkg/defaults"
)

var (
	titlePattern = regexp.MustCompile(`<TITLE><!\[CDATA\[(.*?)\]\]></TITLE>`)
	idPattern    = regexp.MustCompile(`<ID>(\d{7,9})</ID>`)

	codePattern = regexp.MustCompile(`<CODE>\s*(.*?)\s*</CODE>`)
	textPattern = regexp.MustCompile(`(?s)<TEXT>\s*(.*?)\s*</TEXT>`)
)

// Report is one entry of the report listing.
type Report struct {
	Title string
	ID    string
}

// ParseReportList extracts (title, id) pairs from a report listing body.
//
// Titles and ids are matched independently and paired by position: the
// Nth title belongs to the Nth id in document order. A listing where the
// counts differ cannot be paired safely and is rejected with ErrParse.
func ParseReportList(body string) ([]Report, error) {
	titles := titlePattern.FindAllStringSubmatch(body, -1)
	ids := idPattern.FindAllStringSubmatch(body, -1)

	if len(titles) != len(ids) {
		return nil, fmt.Errorf("%w: report listing has %d titles and %d ids",
			ErrParse, len(titles), len(ids))
	}

	reports := make([]Report, len(titles))
	for i := range titles {
		reports[i] = Report{Title: titles[i][1], ID: ids[i][1]}
	}
	return reports, nil
}

// FindReport returns the first report whose title equals title exactly.
func FindReport(reports []Report, title string) (Report, error) {
	for _, r := range reports {
		if r.Title == title {
			return r, nil
		}
	}
	return Report{}, fmt.Errorf("%w: no report titled %q among %d", ErrReportNotFound, title, len(reports))
}

// ExtractSessionToken finds the session cookie among Set-Cookie values and
// returns the text between its first '=' and the following ';'.
func ExtractSessionToken(setCookies []string) (string, bool) {
	marker := defaults.SessionCookie + "="
	for _, cookie := range setCookies {
		if !strings.Contains(cookie, marker) {
			continue
		}
		value := cookie[strings.Index(cookie, "=")+1:]
		if end := strings.IndexByte(value, ';'); end >= 0 {
			value = value[:end]
		}
		if value == "" {
			continue
		}
		return value, true
	}
	return "", false
}

// SimpleReturn is the vendor's generic status body.
type SimpleReturn struct {
	Code string
	Text string
}

// ParseSimpleReturn reads the CODE and TEXT of a SIMPLE_RETURN body.
// ok is false when body is not a SIMPLE_RETURN document.
func ParseSimpleReturn(body string) (SimpleReturn, bool) {
	if !strings.Contains(body, "<SIMPLE_RETURN>") {
		return SimpleReturn{}, false
	}
	var ret SimpleReturn
	if m := codePattern.FindStringSubmatch(body); m != nil {
		ret.Code = m[1]
	}
	if m := textPattern.FindStringSubmatch(body); m != nil {
		ret.Text = m[1]
	}
	return ret, true
}

// looksLikeXML reports whether a body that should be CSV is an XML document.
func looksLikeXML(body []byte) bool {
	s := strings.TrimLeft(strings.TrimPrefix(string(body), "\ufeff"), " \t\r\n")
	return strings.HasPrefix(s, "<?xml") || strings.HasPrefix(s, "<SIMPLE_RETURN")
}
