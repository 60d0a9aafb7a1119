package resolution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sink persists a report result. It is only called for reports with at least
// one processed value set and returns where the result was written.
type Sink interface {
	WriteReport(ctx context.Context, report *ReportResult) (string, error)
}

// Summary describes one directory run.
type Summary struct {
	Files   int
	Reports int
	Written []string
	Empty   []string
	Failed  []string
	Elapsed time.Duration
}

// Runner processes every XML export in a directory and hands the results to
// a Sink.
type Runner struct {
	svc  *Service
	sink Sink
	log  zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(svc *Service, sink Sink, log zerolog.Logger) *Runner {
	return &Runner{svc: svc, sink: sink, log: log}
}

// XMLFiles lists the .xml files directly under dir in name order.
func XMLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read xml directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Run processes every XML file in dir. A file that cannot be parsed or a
// report that cannot be written is logged and recorded in the summary; the
// run only stops early when ctx is done.
func (r *Runner) Run(ctx context.Context, dir string) (*Summary, error) {
	start := time.Now()
	files, err := XMLFiles(dir)
	if err != nil {
		return nil, err
	}

	r.log.Info().Int("files", len(files)).Str("dir", dir).Msg("found XML files")
	for _, f := range files {
		r.log.Info().Str("file", filepath.Base(f)).Msg("xml file")
	}

	sum := &Summary{Files: len(files)}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := r.runFile(ctx, f, sum); err != nil {
			r.log.Error().Err(err).Str("file", f).Msg("failed to process file")
			sum.Failed = append(sum.Failed, f)
		}
	}

	sum.Elapsed = time.Since(start)
	r.log.Info().
		Int("files", sum.Files).
		Int("reports", sum.Reports).
		Int("workbooks", len(sum.Written)).
		Dur("elapsed", sum.Elapsed).
		Msg("run complete")
	return sum, nil
}

func (r *Runner) runFile(ctx context.Context, path string, sum *Summary) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r.log.Info().Str("file", filepath.Base(path)).Msg("processing file")
	reports, err := r.svc.ProcessDocument(ctx, f)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	for _, rep := range reports {
		sum.Reports++
		processed, total := rep.Counts()
		if processed == 0 {
			r.log.Info().
				Str("report", rep.Name).
				Int("total", total).
				Msg("no value sets were processed as they didn't contain any SNOMED-CT concepts, no workbook saved")
			sum.Empty = append(sum.Empty, rep.Name)
			continue
		}

		out, err := r.sink.WriteReport(ctx, rep)
		if err != nil {
			return fmt.Errorf("write report %q: %w", rep.Name, err)
		}
		sum.Written = append(sum.Written, out)
		r.log.Info().
			Str("report", rep.Name).
			Int("processed", processed).
			Int("total", total).
			Str("workbook", out).
			Msg("report saved")
	}
	return nil
}
