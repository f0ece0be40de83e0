// Package materialize copies sorted artifacts into a derivatives tree, either
// on the local filesystem or in Google Cloud Storage.
//
// Every single-file and single-tree copy is published all at once: readers of
// the derivatives tree never see a partially written output.
package materialize

import (
	"context"
	"io/ioutil"
	"log"
	"strings"

	"github.com/carbocation/pfx"
)

// Target is a place artifacts can be materialized into.
type Target interface {
	// MkdirAll creates dir and any missing parents. It is not an error if
	// they already exist.
	MkdirAll(ctx context.Context, dir string) error

	// CopyFile copies src to dst byte for byte, replacing dst if present,
	// and returns the number of bytes written.
	CopyFile(ctx context.Context, src, dst string) (int64, error)

	// CopyTree copies the directory srcDir into dstDir, merging with any
	// content dstDir already holds. Ignored entries are not copied.
	CopyTree(ctx context.Context, srcDir, dstDir string) (Stats, error)

	// Scrub removes ignored entries from under dir. Failures are logged and
	// skipped; the number of removed entries is returned.
	Scrub(ctx context.Context, dir string) int

	Close() error
}

// Stats summarizes a tree copy.
type Stats struct {
	Files int
	Bytes int64
}

// Logger is satisfied by *log.Logger.
type Logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// Discard drops all log output.
var Discard Logger = log.New(ioutil.Discard, "", 0)

type options struct {
	ignore Ignore
	log    Logger
}

type Option func(*options)

// WithIgnore replaces the default ignore set.
func WithIgnore(ig Ignore) Option {
	return func(o *options) { o.ignore = ig }
}

func WithLogger(l Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{ignore: DefaultIgnore, log: Discard}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open returns a GCS target for gs:// roots and a local target otherwise.
// Local roots are created if they do not exist yet.
func Open(ctx context.Context, root string, opts ...Option) (Target, error) {
	if strings.HasPrefix(root, "gs://") {
		return OpenGCS(ctx, opts...)
	}

	l := NewLocal(opts...)
	if err := l.MkdirAll(ctx, root); err != nil {
		return nil, pfx.Err(err)
	}

	return l, nil
}
