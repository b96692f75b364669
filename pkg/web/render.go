package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"strings"
	texttemplate "text/template"

	"github.com/eupendra/simple-price-alert/pkg/scraper"
)

const (
	AlertSubject = "[ALERT] Products Available"
	DataMarker   = "{data}"

	timestampLayout = "2006-01-02 15:04:05"
)

var ErrMissingDataMarker = errors.New("mail template has no " + DataMarker + " marker")

//go:embed templates
var templatesFs embed.FS

var (
	tableTemplate = template.Must(template.ParseFS(templatesFs, "templates/alert_table.html.tpl"))
	textTemplate  = texttemplate.Must(texttemplate.ParseFS(templatesFs, "templates/alert.txt.tpl"))
)

type Notification struct {
	Subject string
	HTML    string
	Text    string
	// Summary is a single line for chat channels.
	Summary string
}

type AlertRow struct {
	Product    string
	URL        string
	Price      string
	AlertPrice string
	Timestamp  string
}

type AlertContext struct {
	Rows []AlertRow
}

// Notifier turns an observation set into the alert mail.
type Notifier struct {
	mailTemplate string
}

func NewNotifier(mailTemplate string) (*Notifier, error) {
	if !strings.Contains(mailTemplate, DataMarker) {
		return nil, ErrMissingDataMarker
	}
	return &Notifier{mailTemplate: mailTemplate}, nil
}

// LoadNotifier reads the mail template from path, or uses the built-in one
// when path is empty.
func LoadNotifier(path string) (*Notifier, error) {
	if path == "" {
		return NewNotifier(DefaultMailTemplate())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n, err := NewNotifier(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func DefaultMailTemplate() string {
	data, err := templatesFs.ReadFile("templates/mail.html")
	if err != nil {
		// embedded at build time
		panic(err)
	}
	return string(data)
}

// Build returns nil when no observation triggered an alert. Otherwise the
// mail lists only the triggered observations.
func (n *Notifier) Build(set scraper.ObservationSet) (*Notification, error) {
	triggered := set.Triggered()
	if len(triggered) == 0 {
		return nil, nil
	}

	c := AlertContext{Rows: make([]AlertRow, 0, len(triggered))}
	items := make([]string, 0, len(triggered))
	for _, o := range triggered {
		items = append(items, fmt.Sprintf("%s %s < %s", o.Product.Name, o.Price, scraper.FormatAmount(o.Product.AlertPrice)))
		c.Rows = append(c.Rows, AlertRow{
			Product:    o.Product.Name,
			URL:        o.Product.URL,
			Price:      o.Price.String(),
			AlertPrice: scraper.FormatAmount(o.Product.AlertPrice),
			Timestamp:  o.Timestamp.Format(timestampLayout),
		})
	}

	table, err := RenderAlertTable(c)
	if err != nil {
		return nil, err
	}

	var text bytes.Buffer
	if err := textTemplate.Execute(&text, c); err != nil {
		return nil, err
	}

	return &Notification{
		Subject: AlertSubject,
		HTML:    strings.ReplaceAll(n.mailTemplate, DataMarker, table),
		Text:    text.String(),
		Summary: fmt.Sprintf("%d product(s) below alert price: %s", len(items), strings.Join(items, ", ")),
	}, nil
}

func RenderAlertTable(c AlertContext) (string, error) {
	var buf bytes.Buffer
	if err := tableTemplate.Execute(&buf, c); err != nil {
		return "", err
	}
	return buf.String(), nil
}
