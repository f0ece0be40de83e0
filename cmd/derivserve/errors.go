package main

import (
	"encoding/json"
	"net/http"
)

func JSONError(h *handler, w http.ResponseWriter, r *http.Request, err error, code ...int) {
	status := http.StatusInternalServerError
	for _, c := range code {
		status = c
		break // Take the first, if any is given
	}

	h.Global.log.Println(r.Method, r.URL.Path, status, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(struct {
		Success bool
		Message string
	}{
		false,
		err.Error(),
	})
}

func writeJSON(h *handler, w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		h.Global.log.Println(r.URL.Path, err)
	}
}
