package main

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/bidsderiv/ledger"
	"github.com/gorilla/mux"
)

// handler provides global values that must be safe for concurrent use from
// multiple goroutines to each handler method.
type handler struct {
	*Global

	router *mux.Router
}

type listing struct {
	Root  string
	Path  string
	Items []string
}

// TypeDir is one data type folder of a session.
type TypeDir struct {
	DataType string
	Files    []string
}

type sessionListing struct {
	Subject    string
	Session    string
	DataTypes  []TypeDir
	Provenance []ledger.Entry `json:",omitempty"`
}

func (h *handler) Subjects(w http.ResponseWriter, r *http.Request) {
	items, err := prefixedDirs(h.Global.Root, "sub-")
	if err != nil {
		JSONError(h, w, r, err)
		return
	}

	writeJSON(h, w, r, listing{Root: h.Global.Root, Path: "/", Items: items})
}

func (h *handler) Sessions(w http.ResponseWriter, r *http.Request) {
	subject := mux.Vars(r)["subject"]

	dir := filepath.Join(h.Global.Root, "sub-"+subject)
	items, err := prefixedDirs(dir, "ses-")
	if os.IsNotExist(err) {
		JSONError(h, w, r, fmt.Errorf("no subject %q", subject), http.StatusNotFound)
		return
	} else if err != nil {
		JSONError(h, w, r, err)
		return
	}

	writeJSON(h, w, r, listing{Root: h.Global.Root, Path: "/sub-" + subject, Items: items})
}

func (h *handler) Session(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	subject, session := vars["subject"], vars["session"]

	dir := filepath.Join(h.Global.Root, "sub-"+subject, "ses-"+session)
	types, err := typeDirs(dir)
	if os.IsNotExist(err) {
		JSONError(h, w, r, fmt.Errorf("no session %q for subject %q", session, subject), http.StatusNotFound)
		return
	} else if err != nil {
		JSONError(h, w, r, err)
		return
	}

	out := sessionListing{Subject: subject, Session: session, DataTypes: types}

	if h.Global.ledger != nil {
		out.Provenance, err = h.Global.ledger.ForSession(r.Context(), subject, session)
		if err != nil {
			JSONError(h, w, r, err)
			return
		}
	}

	writeJSON(h, w, r, out)
}

// prefixedDirs lists the names of dir's subdirectories that start with
// prefix, with the prefix removed.
func prefixedDirs(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := []string{}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			out = append(out, strings.TrimPrefix(e.Name(), prefix))
		}
	}
	sort.Strings(out)

	return out, nil
}

// typeDirs lists every data type folder of a session with the files under it,
// as slash separated paths relative to the folder. Hidden staging entries are
// left out.
func typeDirs(dir string) ([]TypeDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := []TypeDir{}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		td := TypeDir{DataType: e.Name(), Files: []string{}}
		base := filepath.Join(dir, e.Name())
		err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if strings.HasPrefix(d.Name(), ".") && p != base {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(base, p)
			if err != nil {
				return err
			}
			td.Files = append(td.Files, path.Clean(filepath.ToSlash(rel)))
			return nil
		})
		if err != nil {
			return nil, err
		}

		out = append(out, td)
	}

	return out, nil
}
