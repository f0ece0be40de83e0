package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/interpose/middleware"
	"github.com/justinas/alice"
)

const filesPrefix = "/files/"

func router(config *Global) http.Handler {
	router := mux.NewRouter()
	GET := router.Methods("GET", "HEAD").Subrouter()

	h := handler{Global: config, router: router}

	GET.HandleFunc("/", h.Subjects).Name("subjects")
	GET.HandleFunc("/sub-{subject}", h.Sessions).Name("sessions")
	GET.HandleFunc("/sub-{subject}/ses-{session}", h.Session).Name("session")

	// Derivative files themselves
	GET.PathPrefix(filesPrefix).Handler(
		middleware.MaxAgeHandler(60*60,
			http.StripPrefix(filesPrefix, http.FileServer(http.Dir(config.Root)))))

	standard := alice.New(
		// Log all requests to STDOUT
		middleware.GorillaLog(),
	)

	return standard.Then(router)
}
