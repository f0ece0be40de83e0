package bidsderiv

import (
	"errors"
	"testing"
)

func TestPairLists(t *testing.T) {
	rs := DefaultRuleSet()

	files := make([]string, rs.Files.Len())
	for i := range files {
		files[i] = "/work/out" + string(rune('a'+i))
	}

	jobs, err := PairLists(files, rs.Files, []string{"/work/melodic"}, rs.Folders)
	if err != nil {
		t.Fatal(err)
	}

	if len(jobs) != len(files)+1 {
		t.Fatalf("got %d jobs", len(jobs))
	}
	for i, j := range jobs {
		if j.Index != i {
			t.Fatalf("job %d has index %d", i, j.Index)
		}
	}

	last := jobs[len(jobs)-1]
	if !last.Artifact.Folder || last.Rule.Name != "melodic" {
		t.Fatalf("last job should be the melodic folder, got %+v", last)
	}
}

func TestPairArity(t *testing.T) {
	rs := DefaultRuleSet()

	cases := []struct {
		name    string
		files   []string
		folders []string
		group   string
		n       int
	}{
		{"too few files", []string{"/a"}, []string{"/m"}, "files", 1},
		{"too many folders", make([]string, rs.Files.Len()), []string{"/m", "/n"}, "folders", 2},
		{"no folders", make([]string, rs.Files.Len()), nil, "folders", 0},
	}

	for _, c := range cases {
		_, err := PairLists(c.files, rs.Files, c.folders, rs.Folders)

		var arity *ArityMismatchError
		if !errors.As(err, &arity) {
			t.Fatalf("%s: expected *ArityMismatchError, got %v", c.name, err)
		}
		if arity.Group != c.group || arity.Artifacts != c.n {
			t.Fatalf("%s: got %+v", c.name, arity)
		}
	}
}

func TestJobCheck(t *testing.T) {
	image := SortRule{Name: "img", DataType: "qc", NewSuffix: "x", Kind: Image}
	folder := SortRule{Name: "dir", DataType: "melodic", NewSuffix: "melodic.ica", Kind: Folder}

	for _, c := range []struct {
		job Job
		ok  bool
	}{
		{Job{Artifact: FileArtifact("/a"), Rule: image}, true},
		{Job{Artifact: FolderArtifact("/a"), Rule: folder}, true},
		{Job{Artifact: FolderArtifact("/a"), Rule: image}, false},
		{Job{Artifact: FileArtifact("/a"), Rule: folder}, false},
	} {
		err := c.job.check()
		if c.ok != (err == nil) {
			t.Fatalf("%+v: got %v", c.job, err)
		}

		var km *KindMismatchError
		if !c.ok && !errors.As(err, &km) {
			t.Fatalf("expected *KindMismatchError, got %v", err)
		}
	}
}
