package materialize

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

// GCS materializes into a Google Storage bucket. Destinations are gs:// URLs.
// Sources may be local paths or gs:// URLs.
type GCS struct {
	client *storage.Client
	ignore Ignore
	log    Logger
}

// OpenGCS creates a storage client with default credentials.
func OpenGCS(ctx context.Context, opts ...Option) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return NewGCS(client, opts...), nil
}

// NewGCS wraps an existing client. Safe for concurrent use by multiple
// goroutines, as is the client.
func NewGCS(client *storage.Client, opts ...Option) *GCS {
	o := buildOptions(opts)
	return &GCS{client: client, ignore: o.ignore, log: o.log}
}

// SplitGSPath separates a gs:// URL into its bucket and object name.
func SplitGSPath(p string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(p, "gs://"), "/", 2)
	if !strings.HasPrefix(p, "gs://") || len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return "", "", fmt.Errorf("Tried to split your google storage path %q into bucket and object, but got %v", p, pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// MkdirAll is a nop; buckets have no directories.
func (g *GCS) MkdirAll(ctx context.Context, dir string) error {
	return nil
}

func (g *GCS) openSource(ctx context.Context, src string) (io.ReadCloser, error) {
	if !strings.HasPrefix(src, "gs://") {
		f, err := os.Open(src)
		if err != nil {
			return nil, pfx.Err(err)
		}
		if fi, err := f.Stat(); err != nil || fi.IsDir() {
			f.Close()
			return nil, pfx.Err(fmt.Errorf("%s is not a regular file", src))
		}
		return f, nil
	}

	bucket, object, err := SplitGSPath(src)
	if err != nil {
		return nil, err
	}

	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %s", src, err))
	}

	return r, nil
}

// CopyFile streams src into the dst object. The object only becomes visible
// once the writer closes cleanly; on error the upload is cancelled.
func (g *GCS) CopyFile(ctx context.Context, src, dst string) (int64, error) {
	bucket, object, err := SplitGSPath(dst)
	if err != nil {
		return 0, err
	}

	in, err := g.openSource(ctx, src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(bucket).Object(object).NewWriter(wctx)

	n, err := io.Copy(w, in)
	if err != nil {
		// Cancelling before Close discards the partial upload
		cancel()
		w.Close()
		return 0, pfx.Err(fmt.Errorf("%s: %s", dst, err))
	}

	if err := w.Close(); err != nil {
		return 0, pfx.Err(fmt.Errorf("%s: %s", dst, err))
	}

	return n, nil
}

// CopyTree uploads every non-ignored file under the local srcDir. Existing
// objects under dstDir are overwritten or kept, never deleted.
func (g *GCS) CopyTree(ctx context.Context, srcDir, dstDir string) (Stats, error) {
	var st Stats

	if _, _, err := SplitGSPath(dstDir); err != nil {
		return st, err
	}

	info, err := os.Stat(srcDir)
	if err != nil {
		return st, pfx.Err(err)
	}
	if !info.IsDir() {
		return st, pfx.Err(fmt.Errorf("%s is not a directory", srcDir))
	}

	err = filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return pfx.Err(err)
		}
		if p == srcDir {
			return nil
		}

		if g.ignore.Match(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return pfx.Err(err)
		}

		n, err := g.CopyFile(ctx, p, strings.TrimSuffix(dstDir, "/")+"/"+filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		st.Files++
		st.Bytes += n

		return nil
	})

	return st, err
}

// Scrub deletes objects under dir that have an ignored path element.
func (g *GCS) Scrub(ctx context.Context, dir string) int {
	bucket, prefix, err := SplitGSPath(dir)
	if err != nil {
		g.log.Printf("warning: scrub: %v\n", err)
		return 0
	}
	prefix = strings.TrimSuffix(prefix, "/") + "/"

	bkt := g.client.Bucket(bucket)
	removed := 0

	it := bkt.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			g.log.Printf("warning: scrub listing gs://%s/%s: %v\n", bucket, prefix, err)
			break
		}

		if !g.ignore.MatchPath(strings.TrimPrefix(attrs.Name, prefix)) {
			continue
		}

		if err := bkt.Object(attrs.Name).Delete(ctx); err != nil {
			g.log.Printf("warning: scrub could not remove gs://%s/%s: %v\n", bucket, attrs.Name, err)
			continue
		}
		removed++
	}

	return removed
}

func (g *GCS) Close() error {
	return g.client.Close()
}
