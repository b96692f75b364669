package web

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eupendra/simple-price-alert/pkg/scraper"
)

var checkedAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func observe(name string, alert int64, price string) scraper.Observation {
	p := scraper.TrackedProduct{Name: name, URL: "https://shop.example/" + strings.ToLower(name), AlertPrice: decimal.NewFromInt(alert)}
	pr := scraper.Price{}
	if price != "" {
		pr = scraper.PriceOf(decimal.RequireFromString(price))
	}
	return scraper.NewObservation(p, pr, checkedAt, uuid.Nil)
}

func defaultNotifier(t *testing.T) *Notifier {
	t.Helper()
	n, err := LoadNotifier("")
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestBuildTriggered(t *testing.T) {
	set := scraper.NewObservationSet(observe("Widget", 100, "95.00"))

	msg, err := defaultNotifier(t).Build(set)
	if err != nil {
		t.Fatal(err)
	}
	if msg == nil {
		t.Fatal("expected a notification")
	}
	if msg.Subject != "[ALERT] Products Available" {
		t.Fatalf("subject: %q", msg.Subject)
	}
	for _, want := range []string{"Widget", "95.00", "100.00", "2024-03-01 09:30:00", "https://shop.example/widget"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("html body should contain %q", want)
		}
		if !strings.Contains(msg.Text, want) {
			t.Errorf("text body should contain %q", want)
		}
	}
	if msg.Summary != "1 product(s) below alert price: Widget 95.00 < 100.00" {
		t.Errorf("summary: %q", msg.Summary)
	}
	if strings.Contains(msg.HTML, DataMarker) {
		t.Error("marker left in body")
	}
}

func TestBuildNothingTriggered(t *testing.T) {
	sets := map[string]scraper.ObservationSet{
		"empty":        {},
		"absent price": scraper.NewObservationSet(observe("Widget", 100, "")),
		"above alert":  scraper.NewObservationSet(observe("Widget", 100, "150")),
		"equal alert":  scraper.NewObservationSet(observe("Widget", 100, "100")),
	}
	for name, set := range sets {
		msg, err := defaultNotifier(t).Build(set)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if msg != nil {
			t.Errorf("%s: expected no notification", name)
		}
	}
}

func TestBuildOnlyTriggeredRows(t *testing.T) {
	set := scraper.NewObservationSet(
		observe("Cheap", 100, "20"),
		observe("Pricey", 100, "250"),
	)
	msg, err := defaultNotifier(t).Build(set)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.HTML, "Cheap") {
		t.Fatal("triggered row missing")
	}
	if strings.Contains(msg.HTML, "Pricey") || strings.Contains(msg.Text, "Pricey") {
		t.Fatal("non-triggered row rendered")
	}
	if got := strings.Count(msg.HTML, "<tr>"); got != 1 {
		t.Fatalf("expected 1 body row, got %d", got)
	}
}

func TestBuildEscapesProductNames(t *testing.T) {
	set := scraper.NewObservationSet(observe("<b>Bold</b>", 100, "1"))
	msg, err := defaultNotifier(t).Build(set)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(msg.HTML, "<b>Bold</b>") {
		t.Fatal("product name not escaped")
	}
}

func TestCustomTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mail.html")
	if err := os.WriteFile(path, []byte("<h1>Deals</h1>{data}<footer/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := LoadNotifier(path)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := n.Build(scraper.NewObservationSet(observe("Widget", 100, "95")))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(msg.HTML, "<h1>Deals</h1><table") || !strings.HasSuffix(msg.HTML, "<footer/>") {
		t.Fatalf("template not applied:\n%s", msg.HTML)
	}
}

func TestTemplateWithoutMarker(t *testing.T) {
	if _, err := NewNotifier("<p>no marker here</p>"); !errors.Is(err, ErrMissingDataMarker) {
		t.Fatalf("expected ErrMissingDataMarker, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "mail.html")
	if err := os.WriteFile(path, []byte("<p>{date}</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadNotifier(path); !errors.Is(err, ErrMissingDataMarker) {
		t.Fatalf("expected ErrMissingDataMarker, got %v", err)
	}
}

func TestBuildKeepsExactPrice(t *testing.T) {
	o := scraper.NewObservation(
		scraper.TrackedProduct{Name: "Widget", URL: "https://shop.example/widget", AlertPrice: decimal.NewFromInt(1)},
		scraper.PriceOf(decimal.RequireFromString("0.999")), checkedAt, uuid.Nil)

	msg, err := defaultNotifier(t).Build(scraper.NewObservationSet(o))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.HTML, "<td>0.999</td>") || !strings.Contains(msg.HTML, "<td>1.00</td>") {
		t.Fatalf("table should show the exact price:\n%s", msg.HTML)
	}
	if strings.Contains(msg.Summary, "1.00 < 1.00") {
		t.Fatalf("summary rounded the price: %q", msg.Summary)
	}
}
