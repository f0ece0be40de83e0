// Package report writes a per-run summary of what the sorter placed into the
// derivatives tree, alongside the outputs, in sub-X/ses-Y/report.
package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbocation/bidsderiv"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// Options controls the optional parts of a report.
type Options struct {
	// InspectImages reads the NIfTI header of every Image output.
	InspectImages bool

	// MotionRule names the rule whose output is the motion table. Empty
	// disables the motion summary.
	MotionRule string

	FDThreshold float64
}

func DefaultOptions() Options {
	return Options{
		InspectImages: true,
		MotionRule:    "motion_csv",
		FDThreshold:   DefaultFDThreshold,
	}
}

// Output is one row of the outputs table. Path is relative to the session
// folder when the output lies inside it.
type Output struct {
	Index    int    `csv:"index"`
	Rule     string `csv:"rule"`
	DataType string `csv:"data_type"`
	Kind     string `csv:"kind"`
	Path     string `csv:"path"`
	Files    int    `csv:"files"`
	Bytes    int64  `csv:"bytes"`
	Geometry string `csv:"geometry"`
}

// Files names the files a report consists of. FDPlot is empty when there
// was no motion table to plot.
type Files struct {
	Summary string
	Outputs string
	FDPlot  string
}

// Dir is the report folder for one subject and session.
func Dir(root string, e bidsderiv.Entities) string {
	return filepath.Join(bidsderiv.SessionDir(root, e), "report")
}

// Write produces <stem>_summary.txt and <stem>_outputs.csv under the
// session's report folder, plus <stem>_fd.png when a motion table was sorted.
// Existing files are replaced.
func Write(root, sourceFile string, dests []bidsderiv.Destination, opts Options) (Files, error) {
	e, err := bidsderiv.ParseEntities(sourceFile)
	if err != nil {
		return Files{}, err
	}

	dir := Dir(root, e)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, pfx.Err(err)
	}

	files := Files{
		Summary: filepath.Join(dir, e.Stem()+"_summary.txt"),
		Outputs: filepath.Join(dir, e.Stem()+"_outputs.csv"),
	}

	session := bidsderiv.SessionDir(root, e)

	rows := make([]*Output, 0, len(dests))
	var motion *MotionSummary
	var motionRows []MotionRow
	var notes []string

	for _, d := range dests {
		row := &Output{
			Index:    d.Job.Index,
			Rule:     d.Job.Rule.Name,
			DataType: d.Job.Rule.DataType,
			Kind:     d.Job.Rule.Kind.String(),
			Path:     relOrAbs(session, d.Path),
			Files:    d.Files,
			Bytes:    d.Bytes,
		}

		if opts.InspectImages && d.Job.Rule.Kind == bidsderiv.Image && isNifti(d.Path) {
			if info, err := ReadImageInfo(d.Path); err != nil {
				notes = append(notes, fmt.Sprintf("could not read image header of %s: %v", row.Path, err))
			} else {
				row.Geometry = info.String()
			}
		}

		if opts.MotionRule != "" && d.Job.Rule.Name == opts.MotionRule {
			mr, m, err := motionSummary(d.Path, opts.FDThreshold)
			if err != nil {
				notes = append(notes, fmt.Sprintf("could not summarize motion in %s: %v", row.Path, err))
			} else {
				motion, motionRows = &m, mr
			}
		}

		rows = append(rows, row)
	}

	if err := writeAtomically(files.Outputs, func(w *bufio.Writer) error {
		return gocsv.Marshal(rows, w)
	}); err != nil {
		return files, err
	}

	if len(motionRows) > 1 {
		plot := filepath.Join(dir, e.Stem()+"_fd.png")
		if err := PlotFD(plot, motionRows, opts.FDThreshold); err != nil {
			notes = append(notes, fmt.Sprintf("could not plot motion: %v", err))
		} else {
			files.FDPlot = plot
		}
	}

	if err := writeAtomically(files.Summary, func(w *bufio.Writer) error {
		return writeSummary(w, sourceFile, e, rows, motion, notes)
	}); err != nil {
		return files, err
	}

	return files, nil
}

func motionSummary(filename string, threshold float64) ([]MotionRow, MotionSummary, error) {
	rows, err := ReadMotion(filename)
	if err != nil {
		return nil, MotionSummary{}, err
	}
	s, err := SummarizeMotion(rows, threshold)
	return rows, s, err
}

func writeSummary(w *bufio.Writer, sourceFile string, e bidsderiv.Entities, rows []*Output, motion *MotionSummary, notes []string) error {
	fmt.Fprintf(w, "Source    : %s\n", sourceFile)
	fmt.Fprintf(w, "Subject   : %s\n", e.Subject)
	fmt.Fprintf(w, "Session   : %s\n", e.Session)
	if date, ok := SessionDate(e.Session); ok {
		fmt.Fprintf(w, "Date      : %s\n", date.Format("2006-01-02"))
	}
	if task, ok := e.Get("task"); ok {
		fmt.Fprintf(w, "Task      : %s\n", task)
	}
	fmt.Fprintf(w, "Outputs   : %d\n", len(rows))

	var total int64
	for _, r := range rows {
		total += r.Bytes
	}
	fmt.Fprintf(w, "Bytes     : %d\n", total)

	fmt.Fprintln(w)
	for _, r := range rows {
		fmt.Fprintf(w, "[%d] %-8s %-7s %s", r.Index, r.DataType, r.Kind, r.Path)
		if r.Geometry != "" {
			fmt.Fprintf(w, "  (%s)", r.Geometry)
		}
		fmt.Fprintln(w)
	}

	if motion != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Framewise displacement (mm)")
		fmt.Fprintf(w, "  frames : %d\n", motion.Frames)
		fmt.Fprintf(w, "  mean   : %.4f\n", motion.MeanFD)
		fmt.Fprintf(w, "  median : %.4f\n", motion.MedianFD)
		fmt.Fprintf(w, "  p95    : %.4f\n", motion.P95FD)
		fmt.Fprintf(w, "  max    : %.4f\n", motion.MaxFD)
		fmt.Fprintf(w, "  > %.2f : %d\n", motion.Threshold, motion.Over)
	}

	if len(notes) > 0 {
		fmt.Fprintln(w)
		for _, n := range notes {
			fmt.Fprintf(w, "note: %s\n", n)
		}
	}

	return nil
}

func writeAtomically(dst string, fill func(*bufio.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return pfx.Err(err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		tmp.Close()
		return pfx.Err(err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return pfx.Err(err)
	}
	if err := tmp.Close(); err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(os.Rename(tmp.Name(), dst))
}

func isNifti(p string) bool {
	return strings.HasSuffix(p, ".nii") || strings.HasSuffix(p, ".nii.gz")
}

func relOrAbs(root, p string) string {
	if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return p
}
