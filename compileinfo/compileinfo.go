// Package compileinfo identifies the build of the sorter that placed an
// output, from the module and VCS stamps the Go linker embeds.
package compileinfo

import (
	"fmt"
	"runtime/debug"
)

type CompileInfo struct {
	Package    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	mod := ""
	if c.Modified {
		mod = " Files in the repo were modified after that commit."
	}

	return fmt.Sprintf("This %s binary was built with %s at commit %v at time %v.%s", c.Package, c.GoVersion, c.Commit, c.CommitTime, mod)
}

// Short is the abbreviated commit, suffixed with "+dirty" for modified
// trees, or "devel" when the binary carries no VCS stamp (as under go test).
func (c CompileInfo) Short() string {
	if c.Commit == "" {
		return "devel"
	}

	out := c.Commit
	if len(out) > 12 {
		out = out[:12]
	}
	if c.Modified {
		out += "+dirty"
	}
	return out
}

func Get() CompileInfo {
	out := CompileInfo{}

	z, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = z.GoVersion
	out.Package = z.Path
	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

type logger interface {
	Println(v ...interface{})
}

// Log writes the build description to l.
func Log(l logger) {
	l.Println(Get())
}
