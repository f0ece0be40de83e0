package bidsderiv

import (
	"path"
	"strings"
)

// Long entity names for the BIDS short keys that show up in our filenames.
// Keys that are not listed here are kept verbatim.
var entityKeys = map[string]string{
	"sub":   "subject",
	"ses":   "session",
	"task":  "task",
	"acq":   "acquisition",
	"ce":    "ceagent",
	"rec":   "reconstruction",
	"dir":   "direction",
	"run":   "run",
	"echo":  "echo",
	"part":  "part",
	"space": "space",
	"desc":  "desc",
	"res":   "resolution",
	"den":   "density",
	"label": "label",
	"mod":   "modality",
	"inv":   "inversion",
	"flip":  "flip",
	"mt":    "mt",
}

// Entities are the tokens parsed from a source image filename that are used to
// template the names of its derivatives.
type Entities struct {
	Subject   string
	Session   string
	Suffix    string
	Extension string

	// Values holds every key-value segment, keyed by its long entity name,
	// including subject and session.
	Values map[string]string

	stem string
}

// Stem is the source basename with its extension removed.
func (e Entities) Stem() string {
	return e.stem
}

// Get returns the value of an entity by its long or short name.
func (e Entities) Get(key string) (string, bool) {
	if long, ok := entityKeys[key]; ok {
		key = long
	}
	v, ok := e.Values[key]
	return v, ok
}

// ParseEntities tokenizes the basename of filename, which may be a local path
// or a gs:// URL. The subject and session entities are required; if either is
// absent a *MissingEntityError is returned.
func ParseEntities(filename string) (Entities, error) {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))

	stem, ext := SplitExtension(base)

	out := Entities{
		Extension: ext,
		Values:    make(map[string]string),
		stem:      stem,
	}

	segments := strings.Split(stem, "_")
	out.Suffix = segments[len(segments)-1]

	for _, seg := range segments[:len(segments)-1] {
		key, value, found := strings.Cut(seg, "-")
		if !found {
			// Not a key-value pair; nothing to record
			continue
		}
		if long, ok := entityKeys[key]; ok {
			key = long
		}

		// Last occurrence wins
		out.Values[key] = value
	}

	out.Subject = out.Values["subject"]
	out.Session = out.Values["session"]

	if out.Subject == "" {
		return out, &MissingEntityError{Filename: filename, Entity: "subject"}
	}
	if out.Session == "" {
		return out, &MissingEntityError{Filename: filename, Entity: "session"}
	}

	return out, nil
}

// SplitExtension separates a basename into its stem and extension. At most the
// last two dot components form the extension, and the second-to-last only
// counts when it looks like a format token (e.g. the "nii" of ".nii.gz").
func SplitExtension(base string) (stem, ext string) {
	last := strings.LastIndex(base, ".")
	if last <= 0 {
		return base, ""
	}

	stem, ext = base[:last], base[last:]

	prev := strings.LastIndex(stem, ".")
	if prev <= 0 {
		return stem, ext
	}

	if isFormatToken(stem[prev+1:]) {
		return stem[:prev], stem[prev:] + ext
	}

	return stem, ext
}

func isFormatToken(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}

	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}

	return true
}
