// Package ledger keeps a provenance record of every output the sorter
// places, so a derivatives tree can be traced back to the pipeline run and
// working-directory file it came from.
package ledger

import (
	"context"
	"time"

	"github.com/carbocation/bidsderiv"
	"github.com/carbocation/bidsderiv/compileinfo"
	"github.com/google/uuid"
)

// Entry is one sorted output.
type Entry struct {
	RunID      string    `db:"run_id" bigquery:"run_id" csv:"run_id"`
	SortedAt   time.Time `db:"sorted_at" bigquery:"sorted_at" csv:"sorted_at"`
	SourceFile string    `db:"source_file" bigquery:"source_file" csv:"source_file"`
	Subject    string    `db:"subject" bigquery:"subject" csv:"subject"`
	Session    string    `db:"session" bigquery:"session" csv:"session"`
	RuleIndex  int       `db:"rule_index" bigquery:"rule_index" csv:"rule_index"`
	RuleName   string    `db:"rule_name" bigquery:"rule_name" csv:"rule_name"`
	DataType   string    `db:"data_type" bigquery:"data_type" csv:"data_type"`
	Kind       string    `db:"kind" bigquery:"kind" csv:"kind"`
	Src        string    `db:"src" bigquery:"src" csv:"src"`
	Dst        string    `db:"dst" bigquery:"dst" csv:"dst"`
	Files      int       `db:"files" bigquery:"files" csv:"files"`
	Bytes      int64     `db:"bytes" bigquery:"bytes" csv:"bytes"`

	// Build identifies the sorter binary, see compileinfo.CompileInfo.Short
	Build string `db:"build" bigquery:"build" csv:"build"`
}

// Ledger stores entries.
type Ledger interface {
	Record(ctx context.Context, entries []Entry) error
	Close() error
}

// NewRunID returns a fresh identifier for one sorter invocation.
func NewRunID() string {
	return uuid.NewString()
}

// Entries converts the destinations of one sort into ledger rows.
func Entries(runID, sourceFile string, e bidsderiv.Entities, dests []bidsderiv.Destination, at time.Time) []Entry {
	build := compileinfo.Get().Short()

	out := make([]Entry, 0, len(dests))
	for _, d := range dests {
		out = append(out, Entry{
			RunID:      runID,
			SortedAt:   at.UTC(),
			SourceFile: sourceFile,
			Subject:    e.Subject,
			Session:    e.Session,
			RuleIndex:  d.Job.Index,
			RuleName:   d.Job.Rule.Name,
			DataType:   d.Job.Rule.DataType,
			Kind:       d.Job.Rule.Kind.String(),
			Src:        d.Job.Artifact.Path,
			Dst:        d.Path,
			Files:      d.Files,
			Bytes:      d.Bytes,
			Build:      build,
		})
	}
	return out
}
