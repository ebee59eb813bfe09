package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gcovr/gcovr-sub000/internal/exclusion"
	"github.com/gcovr/gcovr-sub000/internal/filesystem"
	"github.com/gcovr/gcovr-sub000/internal/glob"
	"github.com/gcovr/gcovr-sub000/internal/interchange"
	"github.com/gcovr/gcovr-sub000/internal/logging"
	"github.com/gcovr/gcovr-sub000/internal/model"
	"github.com/gcovr/gcovr-sub000/internal/parser/hits"
	"github.com/gcovr/gcovr-sub000/internal/reportconfig"
	"github.com/gcovr/gcovr-sub000/internal/reporter/textsummary"
	"github.com/gcovr/gcovr-sub000/internal/reporting"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/gcovr/gcovr-sub000/internal/parser/gcovjson" // Register the gcov JSON parser
	_ "github.com/gcovr/gcovr-sub000/internal/parser/gcovtext" // Register the gcov text parser
)

// dataFileSuffixes are the names of the files collected from the search
// paths.
var dataFileSuffixes = []string{".gcov", ".gcov.json.gz", ".gcov.json"}

// NewRootCommand creates the gcovr-core command.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "gcovr-core [flags] [search_paths...]",
		Short: "Collect gcov coverage data and summarize it.",
		Long: `gcovr-core reads the intermediate files written by gcov, in the text
format (*.gcov) or the JSON format (*.gcov.json.gz), merges the coverage of
every source file and prints a summary table.

The search paths default to the root directory. Every flag can also be set
in a gcovr.yaml config file or with a GCOVR_ environment variable, e.g.
GCOVR_MERGE_MODE_FUNCTIONS=separate.

Examples:
  # Summarize all gcov files below the build directory
  gcovr-core --root . build

  # Run the decision analysis and write the gcovr JSON format
  gcovr-core --decisions --json coverage.json build

  # Merge JSON files of earlier runs
  gcovr-core --json-add-tracefile 'runs/*.json' --json merged.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				v.Set(reportconfig.KeySearchPaths, args)
			}
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			cfg, err := reportconfig.Load(v)
			if err != nil {
				return err
			}
			logging.Setup(cfg.Verbosity, cmd.ErrOrStderr())
			return run(cmd, cfg)
		},
	}

	addFlags(cmd)
	return cmd
}

func addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String(reportconfig.KeyConfig, "", "YAML config file (default: gcovr.yaml in . or ./configs)")
	f.StringP(reportconfig.KeyRoot, "r", ".", "root directory of the sources, used for filters and relative names")
	f.StringP(reportconfig.KeyVerbosity, "v", logging.Info.String(), "logging verbosity (Verbose, Info, Warning, Error, Off)")
	f.StringArrayP(reportconfig.KeyFilter, "f", nil, "keep only source files matching this regex (repeatable)")
	f.StringArrayP(reportconfig.KeyExclude, "e", nil, "drop source files matching this regex (repeatable)")
	f.StringSlice(reportconfig.KeyGcovIgnoreParseErrors, nil, "parse errors to ignore (all, negative_hits.warn, negative_hits.warn_once_per_file, suspicious_hits.warn, suspicious_hits.warn_once_per_file)")
	f.Int64(reportconfig.KeySuspiciousHitsThreshold, int64(hits.SuspiciousCounter), "counts at or above this value are suspicious, 0 disables the check")
	f.String(reportconfig.KeyMergeModeFunctions, model.FunctionMergeStrict.String(), "merge mode for functions (strict, merge-use-line-0, merge-use-line-min, merge-use-line-max, separate)")
	f.String(reportconfig.KeyMergeModeConditions, model.ConditionMergeStrict.String(), "merge mode for conditions (strict, fold)")
	f.Bool(reportconfig.KeyDecisions, false, "run the decision analysis")
	f.Bool(reportconfig.KeyCalls, false, "keep the call coverage")
	f.String(reportconfig.KeyJSON, "", "write the gcovr JSON format to this file, - for stdout")
	f.Bool(reportconfig.KeyJSONPretty, false, "indent the JSON output")
	f.StringArrayP(reportconfig.KeyJSONAddTracefile, "a", nil, "merge gcovr JSON files matching this glob (repeatable)")
	f.IntP(reportconfig.KeyJobs, "j", 1, "number of files parsed in parallel, 0 for one per CPU")
	f.Bool(reportconfig.KeyDeleteGcovFiles, false, "delete the data files after reading them")
	f.String(reportconfig.KeySourceEncoding, "utf-8", "encoding of the source files")
	f.Bool(reportconfig.KeyExcludeUnreachableBranches, false, "drop branches on lines without code")
	f.Bool(reportconfig.KeyExcludeThrowBranches, false, "drop exception branches")
	f.Bool(reportconfig.KeyExcludeFunctionLines, false, "drop the lines where functions start")
	f.Bool(reportconfig.KeyExcludeInternalFunctions, false, "drop compiler generated functions")
	f.Bool(reportconfig.KeyExcludeNoncodeLines, false, "drop uncovered lines without code")
	f.String(reportconfig.KeyExcludeLinesByPattern, "", "exclude source lines matching this regex")
	f.String(reportconfig.KeyExcludeBranchesByPattern, "", "exclude the branches of source lines matching this regex")
	f.String(reportconfig.KeyExcludePatternPrefix, exclusion.DefaultPatternPrefix, "regex prefix of the exclusion markers")
	f.Bool(reportconfig.KeyNoMarkers, false, "ignore the exclusion markers in the sources")
	f.String(reportconfig.KeySortKey, string(model.SortByFilename), "order of the summary (filename, uncovered-number, uncovered-percent)")
	f.Bool(reportconfig.KeySortReverse, false, "reverse the order of the summary")
	f.String(reportconfig.KeySortMetric, string(model.MetricLine), "metric of the uncovered sorts (line, branch, decision)")
}

func run(cmd *cobra.Command, cfg *reportconfig.Configuration) error {
	start := time.Now()
	fsys := filesystem.DefaultFS{}

	dataFiles, err := glob.FindFiles(fsys, cfg.SearchPaths, dataFileSuffixes...)
	if err != nil {
		return err
	}
	slog.Info("Found data files.", "count", len(dataFiles))

	collector, err := reporting.NewCollector(cfg, reporting.Options{
		MergeOptions:    cfg.MergeOptions(),
		Exclusion:       cfg.ExclusionOptions(),
		Decisions:       cfg.Decisions,
		Jobs:            cfg.Jobs,
		DeleteDataFiles: cfg.DeleteGcovFiles,
	})
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	container, err := collector.Collect(ctx, dataFiles)
	if err != nil {
		return err
	}

	if err := addTracefiles(fsys, cfg, container); err != nil {
		return err
	}
	if container.Len() == 0 {
		slog.Warn("No coverage data found.")
	}

	summary := textsummary.NewTextReportBuilder(cmd.OutOrStdout(), textsummary.Options{
		Root:          cfg.Root,
		SortKey:       cfg.SortKey,
		SortMetric:    cfg.SortMetric,
		Reverse:       cfg.SortReverse,
		ShowDecisions: cfg.Decisions,
	})
	if err := summary.CreateReport(container); err != nil {
		return err
	}

	if cfg.JSON != "" {
		opts := interchange.EncodeOptions{Root: cfg.Root}
		if err := interchange.WriteFile(cfg.JSON, container, opts, cfg.JSONPretty); err != nil {
			return err
		}
		slog.Info("JSON written.", "file", cfg.JSON)
	}

	slog.Info("Done.", "files", container.Len(), "duration", time.Since(start))
	return nil
}

// addTracefiles merges the gcovr JSON files matching the tracefile globs
// into container.
func addTracefiles(fsys filesystem.Filesystem, cfg *reportconfig.Configuration, container *model.CoverageContainer) error {
	var paths []string
	for _, pattern := range cfg.JSONAddTracefile {
		files, err := glob.GetFiles(fsys, pattern)
		if err != nil {
			return fmt.Errorf("error expanding tracefile pattern '%s': %w", pattern, err)
		}
		if len(files) == 0 {
			return fmt.Errorf("no tracefile found for pattern '%s'", pattern)
		}
		paths = append(paths, files...)
	}
	if len(paths) == 0 {
		return nil
	}

	traces, err := interchange.ReadFiles(paths, interchange.DecodeOptions{
		Root:         cfg.Root,
		Filters:      cfg.FileFilters(),
		MergeOptions: cfg.MergeOptions(),
	})
	if err != nil {
		return err
	}
	return container.Merge(traces, cfg.MergeOptions())
}
