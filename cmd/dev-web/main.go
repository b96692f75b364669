package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"

	"github.com/eupendra/simple-price-alert/pkg/io"
	"github.com/eupendra/simple-price-alert/pkg/web"
)

func main() {
	dataDirArg := flag.String("data-dir", "./data", "directory that contains snapshot runs")
	addrArg := flag.String("addr", ":8080", "listen address")

	flag.Parse()

	http.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		var snaps []io.SnapshotWithPath
		dir, err := io.LatestSnapshotDir(*dataDirArg)
		if err == nil {
			snaps, err = io.LoadSnapshots(dir)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Println(err)
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}

		if err := web.RenderReport(rw, web.NewReportContext("Tracked Prices", snaps)); err != nil {
			log.Println(err)
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
	})

	log.Printf("serving %s on %s", *dataDirArg, *addrArg)
	log.Fatal(http.ListenAndServe(*addrArg, nil))
}
