package bidsderiv

import (
	"fmt"
	"strings"
)

// FileKind controls which extension a destination receives.
type FileKind int

const (
	Image FileKind = iota
	Text
	CSV
	Folder
)

var fileKindNames = [...]string{
	Image:  "image",
	Text:   "text",
	CSV:    "csv",
	Folder: "folder",
}

func (k FileKind) String() string {
	if k < 0 || int(k) >= len(fileKindNames) {
		return fmt.Sprintf("FileKind(%d)", int(k))
	}
	return fileKindNames[k]
}

// ParseFileKind accepts the names printed by FileKind.String, case
// insensitively.
func ParseFileKind(s string) (FileKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range fileKindNames {
		if s == name {
			return FileKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown file kind %q (want one of %s)", s, strings.Join(fileKindNames[:], ", "))
}

// SortRule maps one pipeline output to its derivatives folder, its
// replacement suffix and its file kind. An empty NewSuffix means the artifact
// is copied under its own basename without renaming.
type SortRule struct {
	Name      string
	DataType  string
	NewSuffix string
	Kind      FileKind
}

// NewSortRule validates and returns a rule.
func NewSortRule(name, dataType, newSuffix string, kind FileKind) (SortRule, error) {
	r := SortRule{Name: name, DataType: dataType, NewSuffix: newSuffix, Kind: kind}
	return r, r.Validate()
}

func mustRule(name, dataType, newSuffix string, kind FileKind) SortRule {
	r, err := NewSortRule(name, dataType, newSuffix, kind)
	if err != nil {
		panic(err)
	}
	return r
}

// Validate reports whether the rule can produce a well-formed destination.
func (r SortRule) Validate() error {
	switch {
	case r.DataType == "":
		return &RuleError{Rule: r.Name, Reason: "data type is empty"}
	case strings.ContainsAny(r.DataType, `/\`) || r.DataType == "." || r.DataType == "..":
		return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("data type %q must be a single folder name", r.DataType)}
	case strings.ContainsAny(r.NewSuffix, `/\`) || r.NewSuffix == "." || r.NewSuffix == "..":
		return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("new suffix %q must not contain a path separator", r.NewSuffix)}
	case r.Kind < Image || r.Kind > Folder:
		return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("unknown file kind %d", int(r.Kind))}
	case r.Kind == Folder && r.NewSuffix == "":
		return &RuleError{Rule: r.Name, Reason: "folder rules need a new suffix to name the destination folder"}
	}

	return nil
}

func (r SortRule) label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.DataType + "/" + r.NewSuffix
}

// RuleTable is an ordered, immutable list of sort rules. Position i of the
// table pairs with position i of the artifact list it is used with.
type RuleTable struct {
	rules []SortRule
}

// NewRuleTable validates the rules and returns them as a table. Two rules that
// would write to the same destination are rejected.
func NewRuleTable(rules ...SortRule) (RuleTable, error) {
	type destKey struct {
		dataType, suffix string
		kind             FileKind
	}
	seen := make(map[destKey]int)

	out := make([]SortRule, 0, len(rules))
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return RuleTable{}, fmt.Errorf("rule %d: %w", i, err)
		}

		// Verbatim copies are named by their artifact, not by the rule
		if r.NewSuffix != "" {
			k := destKey{r.DataType, r.NewSuffix, r.Kind}
			if j, exists := seen[k]; exists {
				return RuleTable{}, &RuleError{Rule: r.label(), Reason: fmt.Sprintf("rules %d and %d share destination %s/%s", j, i, r.DataType, r.NewSuffix)}
			}
			seen[k] = i
		}

		out = append(out, r)
	}

	return RuleTable{rules: out}, nil
}

func (t RuleTable) Len() int {
	return len(t.rules)
}

func (t RuleTable) At(i int) SortRule {
	return t.rules[i]
}

// Rules returns a copy of the table's rules.
func (t RuleTable) Rules() []SortRule {
	out := make([]SortRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Index returns the position of the named rule, or -1.
func (t RuleTable) Index(name string) int {
	for i, r := range t.rules {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// RuleSet holds the file and folder tables used by one pipeline.
type RuleSet struct {
	Files   RuleTable
	Folders RuleTable
}

// DefaultRuleSet is the slabpreproc output table.
func DefaultRuleSet() RuleSet {
	files, err := NewRuleTable(
		// Template space preprocessed series
		mustRule("bold_mag_preproc", "preproc", "part-mag_recon-preproc_bold", Image),
		mustRule("bold_phs_preproc", "preproc", "part-phase_recon-preproc_bold", Image),
		mustRule("epi_ref_preproc", "preproc", "recon-preproc_seepi", Image),
		mustRule("topup_b0_rads", "preproc", "recon-topup_b0rads", Image),

		// QC
		mustRule("bold_tmean", "qc", "recon-tmean_bold", Image),
		mustRule("bold_tsd", "qc", "recon-tsd_bold", Image),
		mustRule("bold_tsfnr", "qc", "recon-tsfnr_bold", Image),
		mustRule("bold_tsfnr_roistats", "qc", "recon-tsfnr_roistats", CSV),
		mustRule("dropout", "qc", "recon-dropout_map", Image),
		mustRule("motion_csv", "qc", "recon-motion_pars", CSV),
		mustRule("moco_pars", "qc", "recon-moco_pars", Text),

		// Atlas images and templates are copied verbatim
		mustRule("tpl_t1w_head", "atlas", "", Image),
		mustRule("tpl_t2w_head", "atlas", "", Image),
		mustRule("tpl_t1w_brain", "atlas", "", Image),
		mustRule("tpl_t2w_brain", "atlas", "", Image),
		mustRule("tpl_pseg", "atlas", "", Image),
		mustRule("tpl_dseg", "atlas", "", Image),
		mustRule("tpl_bmask", "atlas", "", Image),
	)
	if err != nil {
		panic(err)
	}

	folders, err := NewRuleTable(
		mustRule("melodic", "melodic", "melodic.ica", Folder),
	)
	if err != nil {
		panic(err)
	}

	return RuleSet{Files: files, Folders: folders}
}
