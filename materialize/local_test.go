package materialize

import (
	"bytes"
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func write(t *testing.T, p, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func tree(t *testing.T, dir string) map[string]string {
	t.Helper()

	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		out[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestLocalCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "out", "nested", "dst.txt")
	write(t, src, "hello")

	l := NewLocal()

	n, err := l.CopyFile(context.Background(), src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("copied %d bytes", n)
	}

	// Overwrite with new content
	write(t, src, "hello again")
	if _, err := l.CopyFile(context.Background(), src, dst); err != nil {
		t.Fatal(err)
	}

	got := tree(t, filepath.Join(dir, "out"))
	if !reflect.DeepEqual(got, map[string]string{"nested/dst.txt": "hello again"}) {
		t.Fatalf("got %v", got)
	}
}

func TestLocalCopyFileErrors(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal()

	if _, err := l.CopyFile(context.Background(), filepath.Join(dir, "missing"), filepath.Join(dir, "out", "x")); err == nil {
		t.Fatalf("expected an error for a missing source")
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Fatalf("nothing should be created for a missing source")
	}

	if _, err := l.CopyFile(context.Background(), dir, filepath.Join(dir, "y")); err == nil {
		t.Fatalf("expected an error when the source is a directory")
	}
}

func TestLocalCopyTree(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "melodic")
	for rel, body := range map[string]string{
		"melodic_IC.nii.gz":      "ic",
		"report/00index.html":    "<html>",
		"_report/report.rst":     "x",
		"_inputs.pklz":           "x",
		"stats/_0x0123abcd.json": "x",
		"stats/zstat1.nii.gz":    "z",
	} {
		write(t, filepath.Join(src, filepath.FromSlash(rel)), body)
	}

	dst := filepath.Join(dir, "deriv", "melodic.ica")
	write(t, filepath.Join(dst, "existing.txt"), "kept")

	st, err := NewLocal().CopyTree(context.Background(), src, dst)
	if err != nil {
		t.Fatal(err)
	}

	if st.Files != 3 || st.Bytes != int64(len("ic")+len("<html>")+len("z")) {
		t.Fatalf("got %+v", st)
	}

	want := map[string]string{
		"existing.txt":        "kept",
		"melodic_IC.nii.gz":   "ic",
		"report/00index.html": "<html>",
		"stats/zstat1.nii.gz": "z",
	}
	if got := tree(t, dst); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// The staging directory is gone
	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only melodic.ica, got %v", entries)
	}

	// The source is untouched
	if got := tree(t, src); len(got) != 6 {
		t.Fatalf("source changed: %v", got)
	}
}

func TestLocalCopyTreeErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	write(t, file, "x")
	l := NewLocal()

	for _, src := range []string{filepath.Join(dir, "missing"), file} {
		dst := filepath.Join(dir, "out", "tree")
		if _, err := l.CopyTree(context.Background(), src, dst); err == nil {
			t.Fatalf("%s: expected an error", src)
		}
		if _, err := os.Stat(dst); !os.IsNotExist(err) {
			t.Fatalf("%s: destination should not exist", src)
		}
	}
}

func TestLocalCopyTreeCancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "a"), "a")
	dst := filepath.Join(dir, "dst")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewLocal().CopyTree(ctx, src, dst); err == nil {
		t.Fatalf("expected an error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist after a failed stage")
	}
}

func TestLocalScrub(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"keep.nii.gz", "_node.pklz", "_report/a", "sub/result_x.pklz", "sub/keep.txt"} {
		write(t, filepath.Join(dir, filepath.FromSlash(rel)), "x")
	}

	var buf bytes.Buffer
	l := NewLocal(WithLogger(log.New(&buf, "", 0)))

	if n := l.Scrub(context.Background(), dir); n != 3 {
		t.Fatalf("removed %d entries, want 3", n)
	}

	want := map[string]string{"keep.nii.gz": "x", "sub/keep.txt": "x"}
	if got := tree(t, dir); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}

	// A missing directory is logged, not fatal
	if n := l.Scrub(context.Background(), filepath.Join(dir, "missing")); n != 0 {
		t.Fatalf("removed %d from a missing dir", n)
	}
	if !strings.Contains(buf.String(), "warning:") {
		t.Fatalf("expected a warning, got %q", buf.String())
	}
}

func TestLocalScrubContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"keep.txt", "_a.pklz", "_b.pklz", "sub/_c.pklz"} {
		write(t, filepath.Join(dir, filepath.FromSlash(rel)), "x")
	}

	var buf bytes.Buffer
	l := NewLocal(WithLogger(log.New(&buf, "", 0)))

	stuck := filepath.Join(dir, "_b.pklz")
	l.remove = func(p string) error {
		if p == stuck {
			return &os.PathError{Op: "unlinkat", Path: p, Err: os.ErrPermission}
		}
		return os.RemoveAll(p)
	}

	if n := l.Scrub(context.Background(), dir); n != 2 {
		t.Fatalf("removed %d entries, want 2", n)
	}

	want := map[string]string{"keep.txt": "x", "_b.pklz": "x"}
	if got := tree(t, dir); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
	if !strings.Contains(buf.String(), "warning: scrub could not remove "+stuck) {
		t.Fatalf("expected a warning about %s, got %q", stuck, buf.String())
	}
}

func TestLocalCopyTreeConflictLeavesDestination(t *testing.T) {
	dir := t.TempDir()

	dst := filepath.Join(dir, "melodic.ica")
	write(t, filepath.Join(dst, "a_first.txt"), "old-a")
	write(t, filepath.Join(dst, "report"), "old file")

	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "a_first.txt"), "new-a")
	write(t, filepath.Join(src, "report", "index.html"), "new")

	if _, err := NewLocal().CopyTree(context.Background(), src, dst); err == nil {
		t.Fatalf("expected an error for a file where a directory is merged")
	}

	want := map[string]string{"a_first.txt": "old-a", "report": "old file"}
	if got := tree(t, dst); !reflect.DeepEqual(got, want) {
		t.Fatalf("destination changed after a failed merge: %v", got)
	}

	// The reverse: a directory where the new tree has a file
	dst2 := filepath.Join(dir, "other.ica")
	write(t, filepath.Join(dst2, "a_first.txt"), "old-a")
	write(t, filepath.Join(dst2, "report", "index.html"), "old")

	src2 := filepath.Join(dir, "src2")
	write(t, filepath.Join(src2, "a_first.txt"), "new-a")
	write(t, filepath.Join(src2, "report"), "new file")

	if _, err := NewLocal().CopyTree(context.Background(), src2, dst2); err == nil {
		t.Fatalf("expected an error for a directory where a file is merged")
	}

	want = map[string]string{"a_first.txt": "old-a", "report/index.html": "old"}
	if got := tree(t, dst2); !reflect.DeepEqual(got, want) {
		t.Fatalf("destination changed after a failed merge: %v", got)
	}

	// No staging directories are left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Fatalf("left behind %s", e.Name())
		}
	}
}

func TestWithIgnore(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	write(t, filepath.Join(src, "a.log"), "x")
	write(t, filepath.Join(src, "_node.pklz"), "x")

	dst := filepath.Join(dir, "dst")
	if _, err := NewLocal(WithIgnore(Ignore{"*.log"})).CopyTree(context.Background(), src, dst); err != nil {
		t.Fatal(err)
	}

	// Replacing the ignore set drops the defaults
	want := map[string]string{"_node.pklz": "x"}
	if got := tree(t, dst); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}

func TestOpenLocal(t *testing.T) {
	root := filepath.Join(t.TempDir(), "new", "root")

	target, err := Open(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	defer target.Close()

	if _, ok := target.(*Local); !ok {
		t.Fatalf("got %T", target)
	}
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		t.Fatalf("root was not created: %v", err)
	}
}

func TestSplitGSPath(t *testing.T) {
	cases := []struct {
		in, bucket, object string
		ok                 bool
	}{
		{"gs://bucket/a/b.nii.gz", "bucket", "a/b.nii.gz", true},
		{"gs://bucket", "", "", false},
		{"/local/path", "", "", false},
		{"gs:///x", "", "", false},
	}

	for _, c := range cases {
		b, o, err := SplitGSPath(c.in)
		if (err == nil) != c.ok {
			t.Fatalf("%s: err %v", c.in, err)
		}
		if c.ok && (b != c.bucket || o != c.object) {
			t.Fatalf("%s: got %q %q", c.in, b, o)
		}
	}
}
