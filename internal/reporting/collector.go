// Package reporting collects the coverage of many data files into one
// container. The files are parsed in parallel and folded in arrival order.
package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gcovr/gcovr-sub000/internal/decision"
	"github.com/gcovr/gcovr-sub000/internal/dirlock"
	"github.com/gcovr/gcovr-sub000/internal/exclusion"
	"github.com/gcovr/gcovr-sub000/internal/filesystem"
	"github.com/gcovr/gcovr-sub000/internal/model"
	"github.com/gcovr/gcovr-sub000/internal/parser"
	"golang.org/x/sync/errgroup"
)

// Options configures a Collector.
type Options struct {
	MergeOptions model.MergeOptions
	Exclusion    exclusion.Options
	// Decisions runs the decision analysis on every file.
	Decisions bool
	// Jobs is the number of files parsed at the same time.
	Jobs int
	// DeleteDataFiles removes every data file once it was parsed.
	DeleteDataFiles bool
}

// Collector parses data files with the registered parsers.
type Collector struct {
	config   parser.ParserConfig
	opts     Options
	excluder *exclusion.Excluder
	locker   *dirlock.Locker
	remover  filesystem.Remover
	find     func(string) (parser.IParser, error)

	mu        sync.Mutex
	container *model.CoverageContainer
}

// NewCollector creates a Collector with an empty container.
func NewCollector(config parser.ParserConfig, opts Options) (*Collector, error) {
	excluder, err := exclusion.New(opts.Exclusion)
	if err != nil {
		return nil, err
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	return &Collector{
		config:    config,
		opts:      opts,
		excluder:  excluder,
		locker:    &dirlock.Locker{},
		remover:   filesystem.DefaultFS{},
		find:      parser.FindParserForFile,
		container: model.NewCoverageContainer(),
	}, nil
}

// Collect parses the data files and merges them into the container of
// the collector. No new file is started once ctx is done. The files parsed
// before the first error stay in the container.
func (c *Collector) Collect(ctx context.Context, dataFiles []string) (*model.CoverageContainer, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Jobs)

	for _, dataFile := range dataFiles {
		if gctx.Err() != nil {
			break
		}
		dataFile := dataFile
		g.Go(func() error {
			return c.collectFile(gctx, dataFile)
		})
	}
	if err := g.Wait(); err != nil {
		return c.Container(), err
	}
	return c.Container(), ctx.Err()
}

// Container returns the merged coverage collected so far.
func (c *Collector) Container() *model.CoverageContainer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.container
}

func (c *Collector) collectFile(ctx context.Context, dataFile string) error {
	p, err := c.find(dataFile)
	if err != nil {
		return err
	}

	var result *parser.ParserResult
	err = c.locker.Do(ctx, filepath.Dir(dataFile), func() error {
		slog.Info("Processing file.", "file", dataFile, "parser", p.Name())
		var err error
		if result, err = p.Parse(dataFile, c.config); err != nil {
			return err
		}
		if c.opts.DeleteDataFiles {
			slog.Debug("Removing data file.", "file", dataFile)
			if err := c.remover.Remove(dataFile); err != nil {
				return fmt.Errorf("failed to delete %s: %w", dataFile, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, file := range result.Files {
		c.excluder.Apply(file.Coverage, file.SourceLines)
		if c.opts.Decisions {
			decision.Analyze(file.Coverage, file.SourceLines)
		}
	}
	return c.fold(result.Files)
}

// fold merges parsed files into the container. A file is merged
// completely or not at all.
func (c *Collector) fold(files []parser.FileResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, file := range files {
		if err := c.container.InsertFile(file.Coverage, c.opts.MergeOptions); err != nil {
			return err
		}
	}
	return nil
}
