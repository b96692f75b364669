package main

import (
	"errors"
	"flag"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	dataio "github.com/eupendra/simple-price-alert/pkg/io"
	"github.com/eupendra/simple-price-alert/pkg/web"
)

func main() {
	dataDirNameArg := flag.String("data-dir", "./data", "directory that contains snapshot runs")
	runDirArg := flag.String("run", "", "render this run directory instead of the latest one")
	outputDirArg := flag.String("output-dir", "docs", "directory to write rendered HTML content to")
	titleArg := flag.String("title", "Tracked Prices", "page title")

	flag.Parse()

	if err := os.MkdirAll(*outputDirArg, os.ModeDir|0775); err != nil {
		log.Fatal(err)
	}

	runDir := *runDirArg
	if runDir == "" {
		var err error
		runDir, err = dataio.LatestSnapshotDir(*dataDirNameArg)
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("WARNING: no snapshot runs in %q, rendering an empty page...\n", *dataDirNameArg)
		} else if err != nil {
			log.Fatal(err)
		}
	}

	var snaps []dataio.SnapshotWithPath
	if runDir != "" {
		var err error
		snaps, err = dataio.LoadSnapshots(runDir)
		if err != nil {
			log.Fatal(err)
		}
	}

	err := renderToFile(*outputDirArg, "index.html", func(w io.Writer) error {
		return web.RenderReport(w, web.NewReportContext(*titleArg, snaps))
	})
	if err != nil {
		log.Fatal(err)
	}
}

func renderToFile(dir string, filename string, renderFunc func(w io.Writer) error) error {
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	return renderFunc(f)
}
