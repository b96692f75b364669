package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0"
	DefaultFetchTimeout = 20 * time.Second
)

var ErrFetch = errors.New("fetch failed")

// Fetcher returns the text of the page at url. Any transport error or
// non-success status is reported as ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type CollyFetcher struct {
	colly *colly.Collector
}

func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	options := []colly.CollectorOption{
		colly.UserAgent(userAgent),
		// every run visits the same pages again
		colly.AllowURLRevisit(),
	}

	c := colly.NewCollector(options...)
	c.SetRequestTimeout(timeout)
	// product pages set tracking cookies we never need to send back
	c.DisableCookies()

	return &CollyFetcher{colly: c}
}

func (f *CollyFetcher) Fetch(ctx context.Context, url string) (string, error) {
	// a clone shares the transport but gets its own callbacks
	c := f.colly.Clone()
	c.Context = ctx

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	// colly treats any status >= 203 as an error unless told otherwise
	if err := c.Visit(url); err != nil {
		return "", fmt.Errorf("%s: %v: %w", url, err, ErrFetch)
	}
	if body == nil {
		return "", fmt.Errorf("%s: empty response: %w", url, ErrFetch)
	}
	return string(body), nil
}
