package materialize

import (
	"path"
	"strings"
)

// Ignore is a set of glob patterns (path.Match syntax) matched against the
// base name of each entry in a copied tree.
type Ignore []string

// DefaultIgnore matches the bookkeeping files nipype leaves in its node
// working directories.
var DefaultIgnore = Ignore{
	"_report",
	"*.pklz",
	"_0x*.json",
	"_inputs.pklz",
	"_node.pklz",
	"result_*.pklz",
}

// ParseIgnore splits a comma separated pattern list. Empty items are dropped.
func ParseIgnore(s string) (Ignore, error) {
	var out Ignore
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		// Surface malformed patterns now rather than on every match
		if _, err := path.Match(p, ""); err != nil {
			return nil, err
		}

		out = append(out, p)
	}
	return out, nil
}

// Match reports whether name (a base name) matches any pattern.
func (ig Ignore) Match(name string) bool {
	for _, p := range ig {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// MatchPath reports whether any slash separated element of rel matches.
func (ig Ignore) MatchPath(rel string) bool {
	for _, elem := range strings.Split(rel, "/") {
		if elem != "" && ig.Match(elem) {
			return true
		}
	}
	return false
}
