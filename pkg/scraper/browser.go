package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in headless Chrome, for shops that only fill
// in the price from JavaScript.
type BrowserFetcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
}

func NewBrowserFetcher(userAgent string, timeout time.Duration) *BrowserFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &BrowserFetcher{allocCtx: allocCtx, cancel: cancel, timeout: timeout}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var resp *network.Response
	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", url, err, ErrFetch)
	}
	if resp != nil && resp.Status >= 400 {
		return "", fmt.Errorf("%s: status %d: %w", url, resp.Status, ErrFetch)
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%s: read document: %v: %w", url, err, ErrFetch)
	}
	return html, nil
}

// Close shuts the browser down.
func (f *BrowserFetcher) Close() {
	f.cancel()
}
