package io

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/eupendra/simple-price-alert/pkg/scraper"
)

// TimestampLayout is how observation times are written to the history file.
const TimestampLayout = "2006-01-02 15:04:05"

type historyRow struct {
	Product    string `csv:"product"`
	URL        string `csv:"url"`
	AlertPrice string `csv:"alert_price"`
	Price      string `csv:"price"`
	Timestamp  string `csv:"timestamp"`
	Alert      string `csv:"alert"`
}

// HistoryFile is the append-only CSV log of observations. The header is
// written once, when the file is first created; earlier rows are never read
// or rewritten.
type HistoryFile struct {
	path string
}

func NewHistoryFile(path string) *HistoryFile {
	return &HistoryFile{path: path}
}

func (h *HistoryFile) Path() string {
	return h.path
}

func (h *HistoryFile) Append(ctx context.Context, set scraper.ObservationSet) error {
	if set.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := make([]historyRow, 0, set.Len())
	for _, o := range set.Items() {
		rows = append(rows, historyRow{
			Product:    o.Product.Name,
			URL:        o.Product.URL,
			AlertPrice: o.Product.AlertPrice.String(),
			Price:      o.Price.String(),
			Timestamp:  o.Timestamp.Format(TimestampLayout),
			Alert:      strconv.FormatBool(o.AlertTriggered),
		})
	}

	f, err := os.OpenFile(h.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat history: %w", err)
	}

	if info.Size() == 0 {
		if err := gocsv.Marshal(rows, f); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
		return f.Sync()
	}

	// a run that died mid-row leaves no trailing newline
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("read history tail: %w", err)
	}
	if last[0] != '\n' {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}

	if err := gocsv.MarshalWithoutHeaders(rows, f); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return f.Sync()
}
