package main

import (
	"github.com/carbocation/bidsderiv/ledger"
)

type Global struct {
	log logger

	Site string

	// Root is the local derivatives tree being browsed
	Root string

	// ledger is optional
	ledger *ledger.SQLite
}

type logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}
