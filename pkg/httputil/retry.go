package httputil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type Backoff struct {
	Attempts int
	First    time.Duration
	Max      time.Duration
}

var DefaultBackoff = Backoff{
	Attempts: 3,
	First:    time.Second,
	Max:      5 * time.Second,
}

func (b Backoff) next(d time.Duration) time.Duration {
	d *= 2
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Do sends the request built by newReq, retrying transport errors and 5xx
// responses with a doubling delay. newReq runs once per attempt so bodies are
// never reused. Responses below 500 are returned as they are.
func Do(ctx context.Context, client *http.Client, b Backoff, logger *slog.Logger, newReq func(context.Context) (*http.Request, error)) (*http.Response, error) {
	if b.Attempts <= 0 {
		b.Attempts = DefaultBackoff.Attempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	delay := b.First
	for attempt := 1; ; attempt++ {
		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("%s: %s", resp.Status, snippet)
		}

		if attempt == b.Attempts {
			return nil, fmt.Errorf("%d attempts: %w", b.Attempts, lastErr)
		}
		logger.Warn("request failed, retrying", "url", req.URL.Redacted(), "attempt", attempt, "of", b.Attempts, "wait", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = b.next(delay)
	}
}
