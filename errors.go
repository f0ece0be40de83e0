package bidsderiv

import "fmt"

// MissingEntityError is returned when a source filename lacks a required
// entity. Sorting for that source must not proceed, otherwise its outputs
// would land in some other subject's or session's folder.
type MissingEntityError struct {
	Filename string
	Entity   string
}

func (e *MissingEntityError) Error() string {
	return fmt.Sprintf("source file %q has no %s entity", e.Filename, e.Entity)
}

// ArityMismatchError is returned when an artifact list and its rule list
// differ in length. It is always detected before any filesystem writes.
type ArityMismatchError struct {
	Group     string
	Artifacts int
	Rules     int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("%s: %d artifacts supplied for %d sort rules", e.Group, e.Artifacts, e.Rules)
}

// KindMismatchError is returned when a folder artifact is paired with a
// non-folder rule, or the reverse.
type KindMismatchError struct {
	Index    int
	Rule     string
	Artifact string
	Folder   bool
}

func (e *KindMismatchError) Error() string {
	if e.Folder {
		return fmt.Sprintf("job %d: folder artifact %q paired with non-folder rule %q", e.Index, e.Artifact, e.Rule)
	}
	return fmt.Sprintf("job %d: file artifact %q paired with folder rule %q", e.Index, e.Artifact, e.Rule)
}

// RuleError describes an invalid sort rule.
type RuleError struct {
	Rule   string
	Reason string
}

func (e *RuleError) Error() string {
	if e.Rule == "" {
		return "invalid sort rule: " + e.Reason
	}
	return fmt.Sprintf("invalid sort rule %q: %s", e.Rule, e.Reason)
}

// CopyError is returned when an artifact could not be materialized. It
// unwraps to the underlying I/O error.
type CopyError struct {
	Index int
	Rule  string
	Src   string
	Dst   string
	Err   error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("job %d (rule %q): copying %s to %s: %v", e.Index, e.Rule, e.Src, e.Dst, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// CollisionError is returned when two jobs would write to the same
// destination, e.g. two verbatim copies sharing a basename.
type CollisionError struct {
	First  int
	Second int
	Path   string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("jobs %d and %d both write %s", e.First, e.Second, e.Path)
}
