package io

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/eupendra/simple-price-alert/pkg/scraper"
)

type productRow struct {
	Product    string `csv:"product"`
	URL        string `csv:"url"`
	AlertPrice string `csv:"alert_price"`
}

// LoadProducts reads the tracked product list (product,url,alert_price).
// A missing file is an error; an empty file yields an empty list.
func LoadProducts(path string) ([]scraper.TrackedProduct, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProducts(data)
}

func ParseProducts(data []byte) ([]scraper.TrackedProduct, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var rows []productRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("parse products: %w", err)
	}

	seen := make(map[string]int, len(rows))
	products := make([]scraper.TrackedProduct, 0, len(rows))
	for i, r := range rows {
		line := i + 2 // header is line 1

		url := strings.TrimSpace(r.URL)
		if url == "" {
			return nil, fmt.Errorf("products line %d: url is empty", line)
		}
		if prev, ok := seen[url]; ok {
			return nil, fmt.Errorf("products line %d: url %q already listed on line %d", line, url, prev)
		}
		seen[url] = line

		alert, err := decimal.NewFromString(strings.TrimSpace(r.AlertPrice))
		if err != nil {
			return nil, fmt.Errorf("products line %d: alert_price %q: %w", line, r.AlertPrice, err)
		}
		if alert.IsNegative() {
			return nil, fmt.Errorf("products line %d: alert_price %s is negative", line, alert)
		}

		products = append(products, scraper.TrackedProduct{
			URL:        url,
			Name:       strings.TrimSpace(r.Product),
			AlertPrice: alert,
		})
	}
	return products, nil
}
