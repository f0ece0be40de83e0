package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/bidsderiv"
	"github.com/gocarina/gocsv"
)

func TestWrite(t *testing.T) {
	root := t.TempDir()
	source := "sub-01_ses-20220101_task-rest_bold.nii.gz"

	qc := filepath.Join(root, "sub-01", "ses-20220101", "qc")
	if err := os.MkdirAll(qc, 0o755); err != nil {
		t.Fatal(err)
	}
	motion := filepath.Join(qc, "sub-01_ses-20220101_task-rest_recon-motion_pars.csv")
	if err := os.WriteFile(motion, []byte(motionCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	dests := []bidsderiv.Destination{
		{
			Job: bidsderiv.Job{
				Index: 0,
				Rule:  bidsderiv.SortRule{Name: "bold_tmean", DataType: "qc", NewSuffix: "recon-tmean_bold", Kind: bidsderiv.Image},
			},
			Path:  filepath.Join(qc, "sub-01_ses-20220101_task-rest_recon-tmean_bold.nii.gz"),
			Files: 1,
			Bytes: 10,
		},
		{
			Job: bidsderiv.Job{
				Index: 1,
				Rule:  bidsderiv.SortRule{Name: "motion_csv", DataType: "qc", NewSuffix: "recon-motion_pars", Kind: bidsderiv.CSV},
			},
			Path:  motion,
			Files: 1,
			Bytes: int64(len(motionCSV)),
		},
	}

	opts := DefaultOptions()
	opts.InspectImages = false

	files, err := Write(root, source, dests, opts)
	if err != nil {
		t.Fatal(err)
	}

	wantDir := filepath.Join(root, "sub-01", "ses-20220101", "report")
	if files.Summary != filepath.Join(wantDir, "sub-01_ses-20220101_task-rest_bold_summary.txt") {
		t.Fatalf("got summary path %s", files.Summary)
	}

	summary, err := os.ReadFile(files.Summary)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Subject   : 01",
		"Session   : 20220101",
		"Date      : 2022-01-01",
		"Task      : rest",
		"Outputs   : 2",
		"qc/sub-01_ses-20220101_task-rest_recon-tmean_bold.nii.gz",
		"Framewise displacement",
		"frames : 5",
		"> 0.50 : 2",
	} {
		if !strings.Contains(string(summary), want) {
			t.Fatalf("summary is missing %q:\n%s", want, summary)
		}
	}

	f, err := os.Open(files.Outputs)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var rows []*Output
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1].Rule != "motion_csv" || rows[1].Kind != "csv" || rows[0].Path != "qc/sub-01_ses-20220101_task-rest_recon-tmean_bold.nii.gz" || rows[1].Path != "qc/sub-01_ses-20220101_task-rest_recon-motion_pars.csv" {
		t.Fatalf("got rows %+v %+v", rows[0], rows[1])
	}

	png, err := os.ReadFile(files.FDPlot)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(png), "\x89PNG") {
		t.Fatalf("%s is not a PNG", files.FDPlot)
	}

	// Only the three report files, no temporaries
	entries, err := os.ReadDir(wantDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries in the report folder", len(entries))
	}
}

func TestRelOrAbs(t *testing.T) {
	session := filepath.Join("/deriv", "sub-01", "ses-1")

	for _, c := range []struct {
		in, want string
	}{
		{filepath.Join(session, "qc", "a.nii.gz"), "qc/a.nii.gz"},
		{filepath.Join(session, "melodic", "x.ica"), "melodic/x.ica"},
		{filepath.Join("/deriv", "sub-02", "ses-1", "qc", "b.txt"), filepath.Join("/deriv", "sub-02", "ses-1", "qc", "b.txt")},
	} {
		if got := relOrAbs(session, c.in); got != c.want {
			t.Fatalf("%s: got %s, want %s", c.in, got, c.want)
		}
	}
}

func TestWriteBadMotion(t *testing.T) {
	root := t.TempDir()

	dests := []bidsderiv.Destination{{
		Job:  bidsderiv.Job{Rule: bidsderiv.SortRule{Name: "motion_csv", DataType: "qc", NewSuffix: "recon-motion_pars", Kind: bidsderiv.CSV}},
		Path: filepath.Join(root, "missing.csv"),
	}}

	files, err := Write(root, "sub-01_ses-1_bold.nii.gz", dests, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	summary, err := os.ReadFile(files.Summary)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(summary), "note: could not summarize motion") {
		t.Fatalf("expected a note about the motion table:\n%s", summary)
	}
}

func TestWriteRequiresEntities(t *testing.T) {
	if _, err := Write(t.TempDir(), "atlas_T1w_template.nii.gz", nil, DefaultOptions()); err == nil {
		t.Fatalf("expected an error for a source without subject and session")
	}
}

func TestSessionDate(t *testing.T) {
	for _, c := range []struct {
		in   string
		want string
		ok   bool
	}{
		{"20220101", "2022-01-01", true},
		{"19991231", "1999-12-31", true},
		{"1", "", false},
		{"baseline", "", false},
		{"2022010a", "", false},
	} {
		got, ok := SessionDate(c.in)
		if ok != c.ok || (ok && got.Format("2006-01-02") != c.want) {
			t.Fatalf("%q: got %v, %v", c.in, got, ok)
		}
	}
}
