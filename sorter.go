package bidsderiv

import (
	"context"
	"runtime"

	"github.com/carbocation/bidsderiv/materialize"
	"golang.org/x/sync/errgroup"
)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// Destination records where one job's artifact ended up.
type Destination struct {
	Job   Job
	Path  string
	Files int
	Bytes int64
}

// Sorter places pipeline outputs into a derivatives tree. A Sorter holds no
// per-run state and may be shared across runs and goroutines.
type Sorter struct {
	target      materialize.Target
	log         Logger
	concurrency int
}

type SorterOption func(*Sorter)

func WithLogger(l Logger) SorterOption {
	return func(s *Sorter) { s.log = l }
}

// WithConcurrency bounds the number of artifacts copied at once. Values below
// 1 mean one at a time.
func WithConcurrency(n int) SorterOption {
	return func(s *Sorter) {
		if n < 1 {
			n = 1
		}
		s.concurrency = n
	}
}

func NewSorter(target materialize.Target, opts ...SorterOption) *Sorter {
	s := &Sorter{
		target:      target,
		log:         materialize.Discard,
		concurrency: 4 * runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SortLists is Sort for positional lists: fileArtifacts[i] is placed by
// fileRules.At(i) and likewise for folders.
func (s *Sorter) SortLists(ctx context.Context, sourceFile, root string, fileArtifacts []string, fileRules RuleTable, folderArtifacts []string, folderRules RuleTable) ([]Destination, error) {
	jobs, err := PairLists(fileArtifacts, fileRules, folderArtifacts, folderRules)
	if err != nil {
		return nil, err
	}

	return s.Sort(ctx, sourceFile, root, jobs)
}

// Sort materializes each job's artifact under root, named after sourceFile.
//
// Everything that can be checked without touching the filesystem is checked
// before the first write: the source entities, each rule, the artifact/rule
// pairing and colliding destinations. After that the first failed copy
// cancels the jobs that have not started and is returned as a *CopyError;
// outputs that were already published stay in place, each one complete.
func (s *Sorter) Sort(ctx context.Context, sourceFile, root string, jobs []Job) ([]Destination, error) {
	e, err := ParseEntities(sourceFile)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(jobs))
	for _, j := range jobs {
		// Rules built as struct literals never went through NewSortRule
		if err := j.Rule.Validate(); err != nil {
			return nil, err
		}
		if err := j.check(); err != nil {
			return nil, err
		}

		dst := DestinationPath(root, e, j.Artifact, j.Rule).Full
		if first, dup := seen[dst]; dup {
			return nil, &CollisionError{First: first, Second: j.Index, Path: dst}
		}
		seen[dst] = j.Index
	}

	out := make([]Destination, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range jobs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			d, err := s.sortOne(gctx, root, e, jobs[i])
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// BuildPath computes an artifact's destination and makes sure its data type
// folder exists on target.
func BuildPath(ctx context.Context, target materialize.Target, root string, e Entities, a Artifact, r SortRule) (Path, error) {
	p := DestinationPath(root, e, a, r)
	if err := target.MkdirAll(ctx, p.Dir); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Sorter) sortOne(ctx context.Context, root string, e Entities, j Job) (Destination, error) {
	p, err := BuildPath(ctx, s.target, root, e, j.Artifact, j.Rule)

	fail := func(err error) (Destination, error) {
		return Destination{}, &CopyError{Index: j.Index, Rule: j.Rule.label(), Src: j.Artifact.Path, Dst: p.Full, Err: err}
	}

	if err != nil {
		return fail(err)
	}

	if !p.SuffixApplied {
		s.log.Printf("warning: suffix %q not found in %q; rule %q output keeps the source stem\n", e.Suffix, e.Stem(), j.Rule.label())
	}

	d := Destination{Job: j, Path: p.Full}

	if j.Rule.Kind == Folder {
		st, err := s.target.CopyTree(ctx, j.Artifact.Path, p.Full)
		if err != nil {
			return fail(err)
		}

		// Stale bookkeeping from earlier runs may still be in a merged tree
		if n := s.target.Scrub(ctx, p.Full); n > 0 {
			s.log.Printf("scrubbed %d auxiliary entries from %s\n", n, p.Full)
		}

		d.Files, d.Bytes = st.Files, st.Bytes
	} else {
		n, err := s.target.CopyFile(ctx, j.Artifact.Path, p.Full)
		if err != nil {
			return fail(err)
		}
		d.Files, d.Bytes = 1, n
	}

	s.log.Printf("[%d] %s -> %s\n", j.Index, j.Artifact.Path, p.Full)

	return d, nil
}
