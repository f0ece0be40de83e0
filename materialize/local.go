package materialize

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
)

const dirPerm = 0o755

// Local materializes into the local filesystem.
type Local struct {
	ignore Ignore
	log    Logger
	remove func(string) error
}

func NewLocal(opts ...Option) *Local {
	o := buildOptions(opts)
	return &Local{ignore: o.ignore, log: o.log, remove: os.RemoveAll}
}

func (l *Local) MkdirAll(ctx context.Context, dir string) error {
	// os.MkdirAll tolerates concurrent creators of the same directory
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return pfx.Err(err)
	}
	return nil
}

// CopyFile writes into a temporary file next to dst and renames it over dst
// once the copy is complete.
func (l *Local) CopyFile(ctx context.Context, src, dst string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, pfx.Err(err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, pfx.Err(err)
	}
	if info.IsDir() {
		return 0, pfx.Err(fmt.Errorf("%s is a directory, not a file", src))
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return 0, pfx.Err(err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return 0, pfx.Err(err)
	}
	tmpName := tmp.Name()

	n, err := publish(tmp, in, info.Mode().Perm(), dst)
	if err != nil {
		os.Remove(tmpName)
		return 0, err
	}

	return n, nil
}

// publish drains r into tmp and renames tmp to dst. tmp is always closed.
func publish(tmp *os.File, r io.Reader, perm fs.FileMode, dst string) (int64, error) {
	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, pfx.Err(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, pfx.Err(err)
	}
	if err := tmp.Close(); err != nil {
		return 0, pfx.Err(err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return 0, pfx.Err(err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return 0, pfx.Err(err)
	}
	return n, nil
}

// CopyTree copies the complete tree into a hidden staging directory beside
// dstDir first. Only when staging succeeds are its files renamed into dstDir,
// so a failed copy leaves dstDir as it was.
func (l *Local) CopyTree(ctx context.Context, srcDir, dstDir string) (Stats, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return Stats{}, pfx.Err(err)
	}
	if !info.IsDir() {
		return Stats{}, pfx.Err(fmt.Errorf("%s is not a directory", srcDir))
	}

	parent := filepath.Dir(dstDir)
	if err := os.MkdirAll(parent, dirPerm); err != nil {
		return Stats{}, pfx.Err(err)
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dstDir)+".staging-*")
	if err != nil {
		return Stats{}, pfx.Err(err)
	}
	defer os.RemoveAll(staging)

	if err := l.stage(ctx, srcDir, staging); err != nil {
		return Stats{}, err
	}

	return merge(ctx, staging, dstDir)
}

func (l *Local) stage(ctx context.Context, srcDir, staging string) error {
	return filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return pfx.Err(err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return pfx.Err(err)
		}
		if rel == "." {
			return nil
		}

		// Ignored? Leave it behind
		if l.ignore.Match(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(staging, rel)

		if d.IsDir() {
			return pfx.Err(os.MkdirAll(target, dirPerm))
		}

		// Symlinks are followed; dangling links or links to
		// directories are skipped
		fi, err := os.Stat(p)
		if err != nil || !fi.Mode().IsRegular() {
			l.log.Printf("warning: skipping %s in tree copy: not a regular file\n", p)
			return nil
		}

		return copyPlain(p, target, fi.Mode().Perm())
	})
}

func copyPlain(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return pfx.Err(err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return pfx.Err(err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return pfx.Err(err)
	}

	return pfx.Err(out.Close())
}

// merge moves every file under staging into the same relative place under
// dstDir, creating directories as needed and replacing existing files. A
// file in dstDir where the staged tree has a directory, or the reverse, fails
// the merge before anything is moved.
func merge(ctx context.Context, staging, dstDir string) (Stats, error) {
	var st Stats

	if err := checkMerge(staging, dstDir); err != nil {
		return st, err
	}

	if err := os.MkdirAll(dstDir, dirPerm); err != nil {
		return st, pfx.Err(err)
	}

	err := filepath.WalkDir(staging, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return pfx.Err(err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(staging, p)
		if err != nil {
			return pfx.Err(err)
		}
		if rel == "." {
			return nil
		}

		target := filepath.Join(dstDir, rel)

		if d.IsDir() {
			return pfx.Err(os.MkdirAll(target, dirPerm))
		}

		fi, err := d.Info()
		if err != nil {
			return pfx.Err(err)
		}

		if err := os.Rename(p, target); err != nil {
			return pfx.Err(err)
		}

		st.Files++
		st.Bytes += fi.Size()

		return nil
	})

	return st, err
}

func checkMerge(staging, dstDir string) error {
	return filepath.WalkDir(staging, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return pfx.Err(err)
		}

		rel, err := filepath.Rel(staging, p)
		if err != nil {
			return pfx.Err(err)
		}
		target := filepath.Join(dstDir, rel)

		existing, err := os.Stat(target)
		if os.IsNotExist(err) {
			// Nothing below a new directory can conflict
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		} else if err != nil {
			return pfx.Err(err)
		}

		switch {
		case d.IsDir() && !existing.IsDir():
			return pfx.Err(fmt.Errorf("cannot merge directory into %s: a file is in the way", target))
		case !d.IsDir() && existing.IsDir():
			return pfx.Err(fmt.Errorf("cannot merge file into %s: a directory is in the way", target))
		}

		return nil
	})
}

// Scrub removes entries under dir whose base name is ignored.
func (l *Local) Scrub(ctx context.Context, dir string) int {
	removed := 0

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			l.log.Printf("warning: scrub %s: %v\n", p, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p == dir || !l.ignore.Match(d.Name()) {
			return nil
		}

		if err := l.remove(p); err != nil {
			l.log.Printf("warning: scrub could not remove %s: %v\n", p, err)
		} else {
			removed++
		}

		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		l.log.Printf("warning: scrub of %s stopped early: %v\n", dir, err)
	}

	return removed
}

func (l *Local) Close() error {
	return nil
}
