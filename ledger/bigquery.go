package ledger

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/carbocation/pfx"
)

// BigQuery streams entries into an existing table.
type BigQuery struct {
	Context context.Context
	Client  *bigquery.Client
	Project string
	Dataset string
	Table   string
}

// ParseTableRef splits "project.dataset.table".
func ParseTableRef(ref string) (project, dataset, table string, err error) {
	parts := strings.Split(ref, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("BigQuery table %q should look like project.dataset.table", ref)
	}
	return parts[0], parts[1], parts[2], nil
}

// OpenBigQuery connects with default credentials to the table named by ref.
func OpenBigQuery(ctx context.Context, ref string) (*BigQuery, error) {
	project, dataset, table, err := ParseTableRef(ref)
	if err != nil {
		return nil, err
	}

	BQ := &BigQuery{
		Context: ctx,
		Project: project,
		Dataset: dataset,
		Table:   table,
	}

	BQ.Client, err = bigquery.NewClient(BQ.Context, BQ.Project)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return BQ, nil
}

// Record inserts entries using the streaming API. Rows carry insert IDs
// derived from run and rule so a retried insert does not duplicate them.
func (b *BigQuery) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]*bigquery.StructSaver, 0, len(entries))
	for i := range entries {
		rows = append(rows, &bigquery.StructSaver{
			Struct:   &entries[i],
			InsertID: fmt.Sprintf("%s-%d", entries[i].RunID, entries[i].RuleIndex),
		})
	}

	ins := b.Client.Dataset(b.Dataset).Table(b.Table).Inserter()
	if err := ins.Put(ctx, rows); err != nil {
		return pfx.Err(fmt.Sprint(err.Error(), " table ", b.Project, ".", b.Dataset, ".", b.Table))
	}

	return nil
}

func (b *BigQuery) Close() error {
	return b.Client.Close()
}
