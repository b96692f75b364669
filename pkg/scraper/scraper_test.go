package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type testPage struct {
	Name  string
	Price string // empty means the page has no price element
}

func TestPipelineRecordsEveryFetchedProduct(t *testing.T) {
	ts := newTestServer(map[string]testPage{
		"/catalogue/widget": {Name: "Widget", Price: "£95.00"},
		"/catalogue/gadget": {Name: "Gadget", Price: "£120.50"},
		"/catalogue/gone":   {Name: "Gone"},
	})
	defer ts.Close()

	products := []TrackedProduct{
		makeProduct(ts, "Widget", "/catalogue/widget", 100),
		makeProduct(ts, "Missing", "/catalogue/missing", 100),
		makeProduct(ts, "Gadget", "/catalogue/gadget", 100),
		makeProduct(ts, "Gone", "/catalogue/gone", 100),
	}

	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p := newTestPipeline(t, NewCollyFetcher("", time.Second), WithClock(func() time.Time { return fixed }))

	set, n := p.Process(context.Background(), products)
	if n != 3 || set.Len() != 3 {
		t.Fatalf("wrong number of observations: got %d (count %d) expected 3", set.Len(), n)
	}

	got := set.Items()
	wantNames := []string{"Widget", "Gadget", "Gone"}
	for i, o := range got {
		if o.Product.Name != wantNames[i] {
			t.Errorf("observation %d: got %q expected %q", i, o.Product.Name, wantNames[i])
		}
		if !o.Timestamp.Equal(fixed) {
			t.Errorf("observation %d: timestamp %v", i, o.Timestamp)
		}
		if o.RunID != p.RunID() {
			t.Errorf("observation %d: run id %v expected %v", i, o.RunID, p.RunID())
		}
	}

	if !got[0].Price.Valid || !got[0].Price.Amount.Equal(decimal.RequireFromString("95.00")) || !got[0].AlertTriggered {
		t.Errorf("widget: %+v", got[0])
	}
	if !got[1].Price.Valid || got[1].AlertTriggered {
		t.Errorf("gadget should have a price and no alert: %+v", got[1])
	}
	if got[2].Price.Valid || got[2].AlertTriggered {
		t.Errorf("page without price should be recorded with no price and no alert: %+v", got[2])
	}
}

func TestPipelineSkipsFailedFetches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	products := []TrackedProduct{
		makeProduct(ts, "Broken", "/error", 100),
		{Name: "Unreachable", URL: "http://127.0.0.1:1/nothing", AlertPrice: decimal.NewFromInt(100)},
	}

	p := newTestPipeline(t, NewCollyFetcher("", time.Second))
	set, n := p.Process(context.Background(), products)
	if n != 0 || set.Len() != 0 {
		t.Fatalf("expected no observations, got %d", set.Len())
	}
	if set.AnyTriggered() {
		t.Fatal("empty set cannot trigger")
	}
}

func TestPipelineFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		fmt.Fprint(w, productPage(testPage{Name: "Slow", Price: "£1.00"}))
	}))
	defer ts.Close()
	defer close(release)

	p := newTestPipeline(t, NewCollyFetcher("", 10*time.Second), WithFetchTimeout(200*time.Millisecond))

	start := time.Now()
	set, _ := p.Process(context.Background(), []TrackedProduct{makeProduct(ts, "Slow", "/", 10)})
	if set.Len() != 0 {
		t.Fatalf("timed out fetch should be skipped, got %d observations", set.Len())
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("fetch was not bounded by the pipeline timeout: %v", elapsed)
	}
}

func TestPipelineStopsWhenCancelled(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{"a": productPage(testPage{Name: "A", Price: "£1"})}}
	p := newTestPipeline(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	set, _ := p.Process(ctx, []TrackedProduct{{Name: "A", URL: "a", AlertPrice: decimal.NewFromInt(5)}})
	if set.Len() != 0 {
		t.Fatalf("cancelled run should not process products, got %d", set.Len())
	}
	if f.calls != 0 {
		t.Fatalf("fetcher called %d times", f.calls)
	}
}

func TestCollyFetcherReportsStatusErrors(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := NewCollyFetcher("", time.Second).Fetch(context.Background(), ts.URL+"/nope")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestCollyFetcherSendsUserAgent(t *testing.T) {
	var ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		fmt.Fprint(w, "<html></html>")
	}))
	defer ts.Close()

	f := NewCollyFetcher("price-alert-test/1.0", time.Second)
	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), ts.URL); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if ua != "price-alert-test/1.0" {
		t.Fatalf("user agent: got %q", ua)
	}
}

func TestAlertInvariant(t *testing.T) {
	p := TrackedProduct{Name: "x", URL: "u", AlertPrice: decimal.NewFromInt(100)}
	cases := []struct {
		price Price
		want  bool
	}{
		{PriceOf(decimal.RequireFromString("99.99")), true},
		{PriceOf(decimal.NewFromInt(100)), false},
		{PriceOf(decimal.NewFromInt(101)), false},
		{PriceOf(decimal.Zero), true},
		{Price{}, false},
	}
	for _, c := range cases {
		o := NewObservation(p, c.price, time.Now(), uuid.Nil)
		if o.AlertTriggered != c.want {
			t.Errorf("price %v (valid %v): got alert %v expected %v", c.price.Amount, c.price.Valid, o.AlertTriggered, c.want)
		}
	}
}

func TestObservationSetIsNotShared(t *testing.T) {
	p := TrackedProduct{Name: "x", URL: "u", AlertPrice: decimal.NewFromInt(10)}
	set := NewObservationSet(NewObservation(p, PriceOf(decimal.NewFromInt(5)), time.Now(), uuid.Nil))

	items := set.Items()
	items[0].AlertTriggered = false
	if !set.Items()[0].AlertTriggered {
		t.Fatal("mutating Items() result changed the set")
	}
}

type stubFetcher struct {
	pages map[string]string
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls++
	page, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("%s: %w", url, ErrFetch)
	}
	return page, nil
}

func newTestPipeline(t *testing.T, f Fetcher, opts ...PipelineOption) *Pipeline {
	t.Helper()
	e, err := NewExtractor(DefaultPriceSelector)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(f, e, append([]PipelineOption{WithLogger(logger)}, opts...)...)
}

func makeProduct(ts *httptest.Server, name, path string, alert int64) TrackedProduct {
	return TrackedProduct{Name: name, URL: ts.URL + path, AlertPrice: decimal.NewFromInt(alert)}
}

func newTestServer(pages map[string]testPage) *httptest.Server {
	mux := http.NewServeMux()
	for path, page := range pages {
		page := page
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, productPage(page))
		})
	}
	return httptest.NewServer(mux)
}

func productPage(p testPage) string {
	price := ""
	if p.Price != "" {
		price = fmt.Sprintf(`<p class="price_color">%s</p>`, p.Price)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en-us">
	<body>
		<div class="col-sm-6 product_main">
			<h1>%s</h1>
			%s
			<p class="instock availability"><i class="icon-ok"></i> In stock (22 available)</p>
		</div>
	</body>
</html>
`, p.Name, price)
}
