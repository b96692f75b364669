// Package tracker runs one price check: load the tracked products, check
// every page, persist the observations and send the alert mail.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	pio "github.com/eupendra/simple-price-alert/pkg/io"
	"github.com/eupendra/simple-price-alert/pkg/scraper"
	"github.com/eupendra/simple-price-alert/pkg/web"
)

var ErrEmptyInput = errors.New("no tracked products")

type Stage int

const (
	Idle Stage = iota
	Loading
	Processing
	Persisting
	Notifying
)

func (s Stage) String() string {
	switch s {
	case Loading:
		return "loading"
	case Processing:
		return "processing"
	case Persisting:
		return "persisting"
	case Notifying:
		return "notifying"
	default:
		return "idle"
	}
}

// Options switch the two side effects of a run.
type Options struct {
	Persist bool
	Notify  bool
}

// Sender delivers a built notification.
type Sender interface {
	Send(ctx context.Context, n *web.Notification) error
}

type Runner struct {
	// Products loads the tracked product list.
	Products func() ([]scraper.TrackedProduct, error)
	Pipeline *scraper.Pipeline
	Store    pio.Store
	Notifier *web.Notifier
	// Mailer is the primary channel. Its failures end up in the Report.
	Mailer Sender
	// Channels are best effort; failures are only logged.
	Channels []Sender
	Options  Options
	Logger   *slog.Logger
}

// Report summarizes a finished run for the operator.
type Report struct {
	RunID        uuid.UUID
	Stages       []Stage
	Tracked      int
	Processed    int
	Triggered    int
	Persisted    bool
	Notification *web.Notification
	Sent         bool
	// Failures are the non-fatal errors of the persisting and notifying
	// stages.
	Failures []error
}

func (r *Report) enter(l *slog.Logger, s Stage) {
	r.Stages = append(r.Stages, s)
	l.Debug("stage", "stage", s.String(), "run", r.RunID)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Run returns an error only for failures that stop the run before any page
// is checked: an unreadable product list or ErrEmptyInput.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	log := r.logger()
	report := &Report{RunID: r.Pipeline.RunID()}
	defer report.enter(log, Idle)

	report.enter(log, Loading)
	products, err := r.load()
	if err != nil {
		return report, err
	}
	report.Tracked = len(products)

	report.enter(log, Processing)
	set, processed := r.Pipeline.Process(ctx, products)
	report.Processed = processed
	report.Triggered = len(set.Triggered())

	// what was observed before a cancel is still worth keeping
	report.enter(log, Persisting)
	if r.Options.Persist && r.Store != nil {
		if err := r.Store.Append(context.WithoutCancel(ctx), set); err != nil {
			log.Error("could not persist observations", "error", err)
			report.Failures = append(report.Failures, fmt.Errorf("persist: %w", err))
		} else {
			report.Persisted = true
		}
	}

	report.enter(log, Notifying)
	if !r.Options.Notify {
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		log.Warn("run cancelled, not notifying", "error", err)
		report.Failures = append(report.Failures, fmt.Errorf("notify: %w", err))
		return report, nil
	}
	r.notify(ctx, set, report)
	return report, nil
}

func (r *Runner) notify(ctx context.Context, set scraper.ObservationSet, report *Report) {
	log := r.logger()

	msg, err := r.Notifier.Build(set)
	if err != nil {
		log.Error("could not build notification", "error", err)
		report.Failures = append(report.Failures, fmt.Errorf("notify: %w", err))
		return
	}
	if msg == nil {
		log.Info("no product below its alert price")
		return
	}
	report.Notification = msg

	if r.Mailer != nil {
		if err := r.Mailer.Send(ctx, msg); err != nil {
			log.Error("could not send mail", "error", err)
			report.Failures = append(report.Failures, fmt.Errorf("notify: %w", err))
		} else {
			report.Sent = true
		}
	}

	for _, ch := range r.Channels {
		if err := ch.Send(ctx, msg); err != nil {
			log.Warn("notification channel failed", "channel", fmt.Sprintf("%T", ch), "error", err)
		}
	}
}

// Preview checks the pages and builds the notification without persisting
// or sending anything. The notification is nil when nothing triggered.
func (r *Runner) Preview(ctx context.Context) (*web.Notification, scraper.ObservationSet, error) {
	products, err := r.load()
	if err != nil {
		return nil, scraper.ObservationSet{}, err
	}
	set, _ := r.Pipeline.Process(ctx, products)
	msg, err := r.Notifier.Build(set)
	return msg, set, err
}

func (r *Runner) load() ([]scraper.TrackedProduct, error) {
	products, err := r.Products()
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	if len(products) == 0 {
		return nil, ErrEmptyInput
	}
	return products, nil
}
