package bidsderiv

import (
	"path"
	"path/filepath"
	"strings"
)

// Path is the computed destination of one job.
type Path struct {
	// Dir is the subject/session/data type folder.
	Dir string

	// Full is the destination file, or the destination folder for Folder
	// rules.
	Full string

	// SuffixApplied is false when the rule has a new suffix but the source
	// suffix could not be found in the stem, so the stem was left unchanged.
	SuffixApplied bool
}

// SessionDir is <root>/sub-<subject>/ses-<session>.
func SessionDir(root string, e Entities) string {
	return joinRoot(root, "sub-"+e.Subject, "ses-"+e.Session)
}

// DestinationPath computes where an artifact goes. It touches nothing on disk
// and returns the same answer for the same inputs.
//
// Renamed outputs always take their stem from the source image, so every
// derivative of one run shares the source's naming. Rules with an empty new
// suffix keep the artifact's own basename.
func DestinationPath(root string, e Entities, a Artifact, r SortRule) Path {
	dir := joinRoot(root, "sub-"+e.Subject, "ses-"+e.Session, r.DataType)

	if r.NewSuffix == "" {
		return Path{Dir: dir, Full: joinRoot(dir, baseName(a.Path)), SuffixApplied: true}
	}

	if r.Kind == Folder {
		return Path{Dir: dir, Full: joinRoot(dir, r.NewSuffix), SuffixApplied: true}
	}

	stem, applied := replaceSuffix(e.Stem(), e.Suffix, r.NewSuffix)

	var ext string
	switch r.Kind {
	case Text:
		ext = ".txt"
	case CSV:
		ext = ".csv"
	case Image:
		ext = e.Extension
	}

	return Path{Dir: dir, Full: joinRoot(dir, stem+ext), SuffixApplied: applied}
}

// replaceSuffix swaps the last occurrence of old in stem for repl.
func replaceSuffix(stem, old, repl string) (string, bool) {
	if old == "" {
		return stem, false
	}

	i := strings.LastIndex(stem, old)
	if i < 0 {
		return stem, false
	}

	return stem[:i] + repl + stem[i+len(old):], true
}

func isGCS(root string) bool {
	return strings.HasPrefix(root, "gs://")
}

// joinRoot joins with slashes under gs:// and with the OS separator
// otherwise.
func joinRoot(root string, elem ...string) string {
	if isGCS(root) {
		rest := path.Join(append([]string{strings.TrimPrefix(root, "gs://")}, elem...)...)
		return "gs://" + rest
	}

	return filepath.Join(append([]string{root}, elem...)...)
}

func baseName(p string) string {
	if isGCS(p) {
		return path.Base(p)
	}
	return filepath.Base(p)
}
