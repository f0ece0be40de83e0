package bidsderiv

import (
	"fmt"
	"io"
	"os"

	"github.com/carbocation/pfx"
	"gopkg.in/yaml.v3"
)

type yamlRule struct {
	Name      string `yaml:"name"`
	DataType  string `yaml:"data_type"`
	NewSuffix string `yaml:"new_suffix"`
	Kind      string `yaml:"kind"`
}

type yamlRuleSet struct {
	Files   []yamlRule `yaml:"files"`
	Folders []yamlRule `yaml:"folders"`
}

// LoadRuleSet reads a YAML rule set from path.
func LoadRuleSet(path string) (RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return RuleSet{}, pfx.Err(err)
	}
	defer f.Close()

	rs, err := ParseRuleSet(f)
	if err != nil {
		return RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}

	return rs, nil
}

// ParseRuleSet decodes a YAML document with "files" and "folders" lists. Every
// entry under "folders" must have kind folder, and no entry under "files" may.
func ParseRuleSet(r io.Reader) (RuleSet, error) {
	var doc yamlRuleSet

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return RuleSet{}, err
	}

	files, err := buildTable("files", doc.Files, false)
	if err != nil {
		return RuleSet{}, err
	}

	folders, err := buildTable("folders", doc.Folders, true)
	if err != nil {
		return RuleSet{}, err
	}

	return RuleSet{Files: files, Folders: folders}, nil
}

func buildTable(group string, entries []yamlRule, folders bool) (RuleTable, error) {
	rules := make([]SortRule, 0, len(entries))

	for i, e := range entries {
		kind := Folder
		if e.Kind != "" || !folders {
			var err error
			kind, err = ParseFileKind(e.Kind)
			if err != nil {
				return RuleTable{}, fmt.Errorf("%s[%d]: %w", group, i, err)
			}
		}

		if (kind == Folder) != folders {
			return RuleTable{}, fmt.Errorf("%s[%d]: %w", group, i, &RuleError{Rule: e.Name, Reason: fmt.Sprintf("kind %s does not belong in %s", kind, group)})
		}

		r, err := NewSortRule(e.Name, e.DataType, e.NewSuffix, kind)
		if err != nil {
			return RuleTable{}, fmt.Errorf("%s[%d]: %w", group, i, err)
		}

		rules = append(rules, r)
	}

	t, err := NewRuleTable(rules...)
	if err != nil {
		return RuleTable{}, fmt.Errorf("%s: %w", group, err)
	}

	return t, nil
}
