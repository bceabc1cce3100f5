package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/abyrne55/verifier-log-analysis/internal/config"
	"github.com/abyrne55/verifier-log-analysis/internal/egress"
	"github.com/abyrne55/verifier-log-analysis/internal/export"
	"github.com/abyrne55/verifier-log-analysis/internal/hcp"
	"github.com/abyrne55/verifier-log-analysis/internal/logging"
	"github.com/abyrne55/verifier-log-analysis/internal/pipeline"
	"github.com/abyrne55/verifier-log-analysis/internal/record"
	"github.com/abyrne55/verifier-log-analysis/internal/report"
	"github.com/abyrne55/verifier-log-analysis/internal/telemetry"
)

type analyzeFlags struct {
	onlyHCP    bool
	excludeHCP bool
}

func newAnalyzeCmd(rf *rootFlags) *cobra.Command {
	var af analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Classify every cluster in a verifier cron log and report metrics",
		Long: `Analyze reads the verifier cron job CSV (use - for stdin), keeps the rows
inside [--since, --until], merges them per cluster and classifies each
cluster as TRUE_POSITIVE, TRUE_NEGATIVE, FALSE_POSITIVE, FALSE_NEGATIVE
or UNKNOWN.

Examples:
  verifier-analyze analyze cron.csv
  verifier-analyze analyze cron.csv --no-hcp --since 2023-06-01
  verifier-analyze analyze cron.csv --fetch-logs --format markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, rf, &af, args[0])
		},
	}

	f := cmd.Flags()
	f.BoolVar(&af.onlyHCP, "hcp", false, "Only analyze hosted-control-plane clusters")
	f.BoolVar(&af.excludeHCP, "no-hcp", false, "Exclude hosted-control-plane clusters")
	cmd.MarkFlagsMutuallyExclusive("hcp", "no-hcp")
	f.String("since", "", "Ignore rows before this ISO-8601 instant (inclusive; naive means UTC)")
	f.String("until", "", "Ignore rows after this ISO-8601 instant (inclusive; naive means UTC)")
	f.Bool("fetch-logs", false, "Download false-positive verifier logs and tally their egress failures")
	f.StringP("format", "f", string(report.Text), "Report format: text, markdown, json, yaml")
	f.String("export-db", "", "Also write a SQLite snapshot of the run to this new file")
	f.String("metrics-textfile", "", "Also write Prometheus gauges to this textfile")
	addOCMFlags(cmd)
	return cmd
}

func runAnalyze(cmd *cobra.Command, rf *rootFlags, af *analyzeFlags, path string) error {
	cfg, err := setup(cmd, rf)
	if err != nil {
		return err
	}
	if err := cfg.SetHCP(af.onlyHCP, af.excludeHCP); err != nil {
		return err
	}
	pcfg, err := cfg.Pipeline()
	if err != nil {
		return err
	}
	log := logging.New("analyze")
	ctx := cmd.Context()

	var opts []pipeline.Option
	classifier, err := analyzeClassifier(cfg, pcfg.HCP)
	if err != nil {
		return err
	}
	if classifier != nil {
		opts = append(opts, pipeline.WithClassifier(classifier))
	}
	if cfg.FetchLogs {
		opts = append(opts, pipeline.WithEndpointFetcher(egress.NewFetcher(
			egress.WithTimeout(cfg.Timeout),
			egress.WithLogger(logging.New("egress")))))
	}
	opts = append(opts, pipeline.WithLogger(logging.New("pipeline")))

	p, err := pipeline.New(pcfg, opts...)
	if err != nil {
		return err
	}

	in, err := openInput(cmd, path)
	if err != nil {
		return err
	}
	defer in.Close()
	src, err := record.NewReader(in)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := p.Run(ctx, src)
	if err != nil {
		return err
	}
	source := path
	if path != "-" {
		source = filepath.Base(path)
	}
	rep := report.Build(res, report.Meta{Source: source, Config: pcfg, GeneratedAt: time.Now()})
	log.Info("analysis complete", "records", rep.Total, "false_positives", len(rep.FalsePositives),
		"elapsed", time.Since(start).Round(time.Millisecond))

	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	if err := report.Render(cmd.OutOrStdout(), rep, format); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if cfg.ExportDB != "" {
		if err := export.Write(ctx, cfg.ExportDB, rep, res); err != nil {
			return fmt.Errorf("export snapshot: %w", err)
		}
		log.Info("wrote snapshot", "path", cfg.ExportDB)
	}
	if cfg.MetricsTextfile != "" {
		c := telemetry.NewCollector()
		var lookups int64
		if classifier != nil {
			lookups = classifier.Calls()
		}
		c.Observe(rep, lookups)
		if err := c.WriteTextfile(cfg.MetricsTextfile); err != nil {
			return err
		}
		log.Info("wrote metrics textfile", "path", cfg.MetricsTextfile)
	}
	return nil
}

// analyzeClassifier returns a classifier when the filter needs one, or when
// a token is available to annotate false positives. Nil otherwise.
func analyzeClassifier(cfg *config.Config, filter hcp.Filter) (*hcp.Classifier, error) {
	if filter.NeedsLookup() {
		return newClassifier(cfg)
	}
	token, err := cfg.Token()
	if err != nil || token == "" {
		return nil, err
	}
	return newClassifier(cfg)
}
