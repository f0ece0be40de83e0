// derivsort places the outputs of one preprocessing run into a BIDS
// derivatives tree, named after the source BOLD file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/carbocation/bidsderiv"
	"github.com/carbocation/bidsderiv/compileinfo"
	"github.com/carbocation/bidsderiv/ledger"
	"github.com/carbocation/bidsderiv/materialize"
	"github.com/carbocation/bidsderiv/report"
)

func main() {
	var files, folders flagSlice

	source := flag.String("source", "", "BIDS source file whose entities name the outputs, e.g. sub-01_ses-1_task-rest_bold.nii.gz")
	deriv := flag.String("deriv", "", "Root of the derivatives tree. May be a Google Storage URL (gs://).")
	rulesPath := flag.String("rules", "", "(Optional) YAML file with files and folders rule tables. Default is the built-in table.")
	flag.Var(&files, "file", "Output file for a rule, as name=path. Pass once per file (e.g., -file bold_tmean=./tmean.nii.gz -file moco_pars=./moco.par).")
	flag.Var(&folders, "folder", "Output folder for a folder rule, as name=path. Pass once per folder.")
	ignore := flag.String("ignore", "", "(Optional) Comma-separated glob patterns that are never copied from folders. Default is the nipype bookkeeping set.")
	concurrency := flag.Int("concurrency", 4*runtime.NumCPU(), "Number of outputs copied at once")
	ledgerPath := flag.String("ledger", "", "(Optional) SQLite file that records every sorted output")
	bqTable := flag.String("bq-table", "", "(Optional) BigQuery table, as project.dataset.table, that records every sorted output")
	writeReport := flag.Bool("report", false, "(Optional) Write a summary report into sub-X/ses-Y/report. Local roots only.")
	flag.Parse()

	if *source == "" || *deriv == "" || (len(files) == 0 && len(folders) == 0) {
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := log.New(os.Stderr, log.Prefix(), log.LstdFlags)
	compileinfo.Log(logger)

	root := ExpandHome(*deriv)

	rules := bidsderiv.DefaultRuleSet()
	if *rulesPath != "" {
		var err error
		rules, err = bidsderiv.LoadRuleSet(ExpandHome(*rulesPath))
		if err != nil {
			log.Fatalln(err)
		}
	}

	jobs, err := buildJobs(rules, files, folders)
	if err != nil {
		log.Fatalln(err)
	}

	opts := []materialize.Option{materialize.WithLogger(logger)}
	if *ignore != "" {
		patterns, err := materialize.ParseIgnore(*ignore)
		if err != nil {
			log.Fatalln(err)
		}
		opts = append(opts, materialize.WithIgnore(patterns))
	}

	ctx := context.Background()

	target, err := openTarget(ctx, *source, root, opts...)
	if err != nil {
		log.Fatalln(err)
	}
	defer target.Close()

	sorter := bidsderiv.NewSorter(target, bidsderiv.WithLogger(logger), bidsderiv.WithConcurrency(*concurrency))

	started := time.Now()
	dests, err := sorter.Sort(ctx, *source, root, jobs)
	if err != nil {
		log.Fatalln(err)
	}
	logger.Printf("Sorted %d outputs for %s in %s\n", len(dests), *source, time.Since(started))

	if *ledgerPath != "" || *bqTable != "" {
		if err := record(ctx, *source, dests, ExpandHome(*ledgerPath), *bqTable); err != nil {
			log.Fatalln(err)
		}
	}

	if *writeReport {
		if strings.HasPrefix(root, "gs://") {
			logger.Println("Skipping report: not supported for gs:// roots")
		} else {
			out, err := report.Write(root, *source, dests, report.DefaultOptions())
			if err != nil {
				log.Fatalln(err)
			}
			logger.Println("Wrote", out.Summary)
		}
	}
}

// buildJobs looks up each name=path pair in the rule set. Jobs are numbered
// in flag order, files before folders.
func buildJobs(rules bidsderiv.RuleSet, files, folders flagSlice) ([]bidsderiv.Job, error) {
	jobs := make([]bidsderiv.Job, 0, len(files)+len(folders))

	add := func(group string, table bidsderiv.RuleTable, pairs flagSlice, artifact func(string) bidsderiv.Artifact) error {
		for _, pair := range pairs {
			name, p, ok := strings.Cut(pair, "=")
			if !ok || name == "" || p == "" {
				return fmt.Errorf("-%s %q: expected name=path", group, pair)
			}

			idx := table.Index(name)
			if idx < 0 {
				return fmt.Errorf("-%s %q: no %s rule named %q", group, pair, group, name)
			}

			jobs = append(jobs, bidsderiv.Job{
				Index:    len(jobs),
				Artifact: artifact(ExpandHome(p)),
				Rule:     table.At(idx),
			})
		}
		return nil
	}

	if err := add("file", rules.Files, files, bidsderiv.FileArtifact); err != nil {
		return nil, err
	}
	if err := add("folder", rules.Folders, folders, bidsderiv.FolderArtifact); err != nil {
		return nil, err
	}

	return jobs, nil
}

// openTarget refuses a source without subject and session before the
// derivatives root is created.
func openTarget(ctx context.Context, source, root string, opts ...materialize.Option) (materialize.Target, error) {
	if _, err := bidsderiv.ParseEntities(source); err != nil {
		return nil, err
	}

	return materialize.Open(ctx, root, opts...)
}

func record(ctx context.Context, source string, dests []bidsderiv.Destination, sqlitePath, bqTable string) error {
	e, err := bidsderiv.ParseEntities(source)
	if err != nil {
		return err
	}

	entries := ledger.Entries(ledger.NewRunID(), source, e, dests, time.Now())

	var ledgers []ledger.Ledger
	defer func() {
		for _, l := range ledgers {
			l.Close()
		}
	}()

	if sqlitePath != "" {
		db, err := ledger.OpenSQLite(sqlitePath)
		if err != nil {
			return err
		}
		ledgers = append(ledgers, db)
	}

	if bqTable != "" {
		bq, err := ledger.OpenBigQuery(ctx, bqTable)
		if err != nil {
			return err
		}
		ledgers = append(ledgers, bq)
	}

	for _, l := range ledgers {
		if err := l.Record(ctx, entries); err != nil {
			return err
		}
	}

	return nil
}
