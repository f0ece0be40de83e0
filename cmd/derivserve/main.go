// derivserve is a read-only HTTP browser over a local derivatives tree.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/carbocation/bidsderiv/compileinfo"
	"github.com/carbocation/bidsderiv/ledger"
)

var global *Global

func main() {
	errors := make(chan error, 1)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig,
		os.Interrupt,
		syscall.SIGTERM,
	)

	root := flag.String("deriv", "", "Root of a local derivatives tree")
	ledgerPath := flag.String("ledger", "", "(Optional) SQLite ledger written by derivsort. If set, session listings include provenance.")
	port := flag.Int("port", 9019, "Port for HTTP server")
	flag.Parse()

	if *root == "" {
		flag.PrintDefaults()
		return
	}

	if st, err := os.Stat(*root); err != nil {
		log.Fatalln(err)
	} else if !st.IsDir() {
		log.Fatalln(*root, "is not a directory")
	}

	global = &Global{
		Site: "derivserve",
		Root: *root,
		log:  log.New(os.Stderr, log.Prefix(), log.Ldate|log.Ltime),
	}

	if *ledgerPath != "" {
		db, err := ledger.OpenSQLite(*ledgerPath)
		if err != nil {
			log.Fatalln(err)
		}
		defer db.Close()
		global.ledger = db
	}

	compileinfo.Log(global.log)
	global.log.Println("Launching", global.Site, "over", global.Root)

	go func() {
		global.log.Println("Starting HTTP server on port", *port)
		if err := http.ListenAndServe(fmt.Sprintf(`:%d`, *port), router(global)); err != nil {
			errors <- err
			return
		}
	}()

	select {
	case sigl := <-sig:
		global.log.Printf("\nExit: %s\n", sigl.String())
	case err := <-errors:
		global.log.Println("Exiting due to error", err)
		os.Exit(1)
	}
}
