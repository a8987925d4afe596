package qualys

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dustin/go-humanize"

	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/iohelper"
)

// ListReports returns every saved report in the listing, in document order.
func (c *Client) ListReports(ctx context.Context, token SessionToken) ([]Report, error) {
	resp, err := c.post(ctx, defaults.ReportPath, "list", nil, token)
	if err != nil {
		return nil, err
	}
	defer iohelper.DrainAndClose(resp.Body)

	body, err := iohelper.ReadBodyStrict(resp.Body, iohelper.DefaultMaxBodySize)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("list", resp.StatusCode, body, ErrAPI)
	}
	if _, ok := ParseSimpleReturn(string(body)); ok {
		return nil, newAPIError("list", resp.StatusCode, body, ErrAPI)
	}

	reports, err := ParseReportList(string(body))
	if err != nil {
		return nil, err
	}
	c.logger.Info("listed reports", slog.Int("count", len(reports)))
	return reports, nil
}

// LocateReport lists reports and returns the one titled title.
func (c *Client) LocateReport(ctx context.Context, token SessionToken, title string) (Report, error) {
	reports, err := c.ListReports(ctx, token)
	if err != nil {
		return Report{}, err
	}
	report, err := FindReport(reports, title)
	if err != nil {
		return Report{}, err
	}
	c.logger.Info("located report", slog.String("title", report.Title), slog.String("id", report.ID))
	return report, nil
}

// FetchReport downloads the report body. The report must have been saved
// in CSV format; an XML body is returned as an error, never as data.
func (c *Client) FetchReport(ctx context.Context, token SessionToken, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty report id", ErrReportNotFound)
	}

	form := url.Values{}
	form.Set("id", id)

	resp, err := c.post(ctx, defaults.ReportPath, "fetch", form, token)
	if err != nil {
		return nil, err
	}
	defer iohelper.DrainAndClose(resp.Body)

	body, err := iohelper.ReadBodyStrict(resp.Body, c.maxReportSize)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: fetch %s timed out: %w", ErrNetwork, id, err)
		}
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrNetwork, id, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("fetch", resp.StatusCode, body, ErrAPI)
	}
	if looksLikeXML(body) {
		if _, ok := ParseSimpleReturn(string(body)); ok {
			return nil, newAPIError("fetch", resp.StatusCode, body, ErrAPI)
		}
		return nil, fmt.Errorf("%w: report %s is XML, expected CSV", ErrParse, id)
	}

	c.logger.Info("fetched report",
		slog.String("id", id),
		slog.String("size", humanize.Bytes(uint64(len(body)))),
	)
	return body, nil
}
