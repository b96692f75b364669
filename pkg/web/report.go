package web

import (
	"html/template"
	"io"
	"slices"
	"strings"
	"time"

	pio "github.com/eupendra/simple-price-alert/pkg/io"
	"github.com/eupendra/simple-price-alert/pkg/scraper"
)

var reportTemplate = template.Must(template.ParseFS(templatesFs, "templates/report.html.tpl"))

type ReportRow struct {
	AlertRow
	Alert bool
}

// ReportContext is a static page listing every observation of a run.
type ReportContext struct {
	Title       string
	LastUpdated time.Time
	Rows        []ReportRow
}

func (c ReportContext) FormattedLastUpdated() string {
	if c.LastUpdated.IsZero() {
		return "never"
	}
	return c.LastUpdated.Format(timestampLayout + " MST")
}

func (c ReportContext) AlertCount() int {
	n := 0
	for _, r := range c.Rows {
		if r.Alert {
			n++
		}
	}
	return n
}

// NewReportContext lists triggered observations first, then by product name.
func NewReportContext(title string, snaps []pio.SnapshotWithPath) ReportContext {
	c := ReportContext{Title: title, Rows: make([]ReportRow, 0, len(snaps))}
	for _, s := range snaps {
		if s.Timestamp.After(c.LastUpdated) {
			c.LastUpdated = s.Timestamp
		}
		row := ReportRow{
			AlertRow: AlertRow{
				Product:    s.Product,
				URL:        s.URL,
				AlertPrice: scraper.FormatAmount(s.AlertPrice),
				Timestamp:  s.Timestamp.Format(timestampLayout),
			},
			Alert: s.Alert,
		}
		if s.Price != nil {
			row.Price = scraper.FormatAmount(*s.Price)
		}
		c.Rows = append(c.Rows, row)
	}

	slices.SortStableFunc(c.Rows, func(a, b ReportRow) int {
		if a.Alert != b.Alert {
			if a.Alert {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Product, b.Product)
	})
	return c
}

func RenderReport(w io.Writer, c ReportContext) error {
	return reportTemplate.Execute(w, c)
}
