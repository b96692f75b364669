package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/jawher/mow.cli"

	"github.com/eupendra/simple-price-alert/pkg/config"
	"github.com/eupendra/simple-price-alert/pkg/obs"
	"github.com/eupendra/simple-price-alert/pkg/runlock"
	"github.com/eupendra/simple-price-alert/pkg/scraper"
	"github.com/eupendra/simple-price-alert/pkg/tracker"
)

const (
	exitOK         = 0
	exitSetup      = 1
	exitEmptyInput = 3
	exitLockHeld   = 4
)

func main() {
	app := cli.App("tracker", "Check product pages and mail an alert when a price drops below its threshold")

	runCmd(app.Cmd)
	app.Command("run", "check every tracked product once (default)", runCmd)
	app.Command("preview", "print the alert for the current prices without saving or sending it", previewCmd)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type fileFlags struct {
	products *string
	history  *string
}

func addFileFlags(cmd *cli.Cmd) fileFlags {
	return fileFlags{
		products: cmd.StringOpt("products", "", "tracked products csv (overrides PRODUCTS_FILE)"),
		history:  cmd.StringOpt("history", "", "price history csv (overrides HISTORY_FILE)"),
	}
}

func (f fileFlags) apply(cfg *config.Config) {
	if *f.products != "" {
		cfg.ProductsFile = *f.products
	}
	if *f.history != "" {
		cfg.HistoryFile = *f.history
	}
}

func runCmd(cmd *cli.Cmd) {
	files := addFileFlags(cmd)
	noPersist := cmd.BoolOpt("no-persist", false, "do not write the observations anywhere")
	noNotify := cmd.BoolOpt("no-notify", false, "do not send the alert")

	cmd.Action = func() {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal(err)
		}
		files.apply(cfg)
		if *noPersist {
			cfg.Persist = false
		}
		if *noNotify {
			cfg.Notify = false
		}
		cli.Exit(run(cfg))
	}
}

func previewCmd(cmd *cli.Cmd) {
	files := addFileFlags(cmd)
	html := cmd.BoolOpt("html", false, "print the HTML body instead of the text one")

	cmd.Action = func() {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal(err)
		}
		files.apply(cfg)
		cli.Exit(preview(cfg, *html))
	}
}

func run(cfg *config.Config) int {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSetup
	}

	logger, closeLog, err := obs.InitLogger(cfg.LogFile, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSetup
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddr != "" {
		release, err := acquireLock(ctx, cfg)
		if errors.Is(err, runlock.ErrLockHeld) {
			fmt.Println("Another run is in progress, exiting")
			return exitLockHeld
		}
		if err != nil {
			logger.Error("could not take the run lock", "error", err)
			return exitSetup
		}
		defer release()
	}

	runner, cleanup, err := newRunner(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup failed", "error", err)
		return exitSetup
	}
	defer cleanup()

	report, err := runner.Run(ctx)
	switch {
	case errors.Is(err, tracker.ErrEmptyInput):
		fmt.Printf("No products to track in %s\n", cfg.ProductsFile)
		return exitEmptyInput
	case err != nil:
		logger.Error("run failed", "error", err)
		return exitSetup
	}

	printReport(os.Stdout, report, cfg)
	return exitOK
}

func preview(cfg *config.Config, html bool) int {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSetup
	}
	logger, err := obs.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSetup
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Persist = false
	runner, cleanup, err := newRunner(ctx, cfg, logger)
	if err != nil {
		logger.Error("setup failed", "error", err)
		return exitSetup
	}
	defer cleanup()

	msg, set, err := runner.Preview(ctx)
	switch {
	case errors.Is(err, tracker.ErrEmptyInput):
		fmt.Printf("No products to track in %s\n", cfg.ProductsFile)
		return exitEmptyInput
	case err != nil:
		logger.Error("preview failed", "error", err)
		return exitSetup
	}

	for _, o := range set.Items() {
		fmt.Fprintf(os.Stderr, "%-40s %10s  alert below %s\n", o.Product.Name, o.Price, scraper.FormatAmount(o.Product.AlertPrice))
	}
	if msg == nil {
		fmt.Println("No mail to send")
		return exitOK
	}
	fmt.Printf("Subject: %s\n\n", msg.Subject)
	if html {
		fmt.Println(msg.HTML)
	} else {
		fmt.Println(msg.Text)
	}
	return exitOK
}

func printReport(w io.Writer, r *tracker.Report, cfg *config.Config) {
	fmt.Fprintf(w, "Checked %d of %d products, %d below their alert price\n", r.Processed, r.Tracked, r.Triggered)
	if r.Persisted && r.Processed > 0 {
		fmt.Fprintf(w, "Saved to %v\n", cfg.Stores)
	}
	switch {
	case !cfg.Notify:
	case r.Sent:
		fmt.Fprintln(w, "Mail Sent!")
	case r.Notification == nil:
		fmt.Fprintln(w, "No mail to send")
	}
	for _, err := range r.Failures {
		fmt.Fprintf(w, "WARNING: %v\n", err)
		if errors.Is(err, config.ErrMisconfiguredCredentials) {
			fmt.Fprintln(w, "Set MAIL_USER, MAIL_PASS and MAIL_TO or add them to "+cfg.ConfigFile)
		}
	}
}
