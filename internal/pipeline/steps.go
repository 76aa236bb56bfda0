package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nao1215/threadtracker/internal/config"
	"github.com/nao1215/threadtracker/internal/crawler"
	"github.com/nao1215/threadtracker/internal/dates"
	"github.com/nao1215/threadtracker/internal/model"
	"github.com/nao1215/threadtracker/internal/render"
)

// SearchStep runs the user's search and reads every results page.
// Board failures become sentinel records, so the step only errors when
// the crawler cannot be built from its settings.
type SearchStep struct {
	fetcher    crawler.Fetcher
	boardURL   string
	opts       config.TrackerOptions
	normalizer *dates.Normalizer
	logger     *slog.Logger
}

// SearchStepOption configures a SearchStep.
type SearchStepOption func(*SearchStep)

// WithSearchNormalizer sets the date normalizer used for post dates.
func WithSearchNormalizer(n *dates.Normalizer) SearchStepOption {
	return func(s *SearchStep) {
		s.normalizer = n
	}
}

// WithSearchLogger sets a custom logger for the search step.
func WithSearchLogger(logger *slog.Logger) SearchStepOption {
	return func(s *SearchStep) {
		s.logger = logger
	}
}

// NewSearchStep creates a search step for the user named in opts.
func NewSearchStep(fetcher crawler.Fetcher, boardURL string, opts config.TrackerOptions, stepOpts ...SearchStepOption) *SearchStep {
	s := &SearchStep{
		fetcher:  fetcher,
		boardURL: boardURL,
		opts:     opts,
		logger:   slog.Default(),
	}

	for _, opt := range stepOpts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SearchStep) Name() string {
	return "search"
}

// Do executes the search step.
func (s *SearchStep) Do(ctx context.Context, run *model.Run) error {
	c, err := crawler.NewSearchCrawler(s.fetcher, s.boardURL, s.opts,
		crawler.WithLogger(s.logger),
		crawler.WithNormalizer(s.normalizer),
	)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}

	result := c.Crawl(ctx)
	run.Outcome = result.Outcome
	run.BoardMessage = result.BoardMessage
	run.Pages = result.Pages
	run.PageFailure = result.PageFailure
	run.Records = append(run.Records, result.Records...)

	s.logger.Debug("search finished",
		"user", run.UserID,
		"outcome", result.Outcome,
		"pages", len(result.Pages),
		"records", len(result.Records),
	)

	return nil
}

// SortStep orders the records newest first. Records with equal dates keep
// their crawl order and undated records go last.
type SortStep struct{}

// NewSortStep creates a sort step.
func NewSortStep() *SortStep {
	return &SortStep{}
}

// Name returns the step name.
func (s *SortStep) Name() string {
	return "sort"
}

// Finishes reports that the step also runs on a cut-short crawl.
func (s *SortStep) Finishes() bool {
	return true
}

// Do executes the sort step.
func (s *SortStep) Do(_ context.Context, run *model.Run) error {
	slices.SortStableFunc(run.Records, compareNewestFirst)
	return nil
}

func compareNewestFirst(a, b model.ThreadRecord) int {
	switch {
	case a.NewerThan(b):
		return -1
	case b.NewerThan(a):
		return 1
	default:
		return 0
	}
}

// PlaceStep appends every record's fragment to its container, in record
// order. Configured containers are declared first so the board lists them
// in configuration order.
type PlaceStep struct {
	containers []string
}

// NewPlaceStep creates a place step for the given configured containers.
func NewPlaceStep(containers []string) *PlaceStep {
	return &PlaceStep{containers: containers}
}

// Name returns the step name.
func (s *PlaceStep) Name() string {
	return "place"
}

// Finishes reports that the step also runs on a cut-short crawl.
func (s *PlaceStep) Finishes() bool {
	return true
}

// Do executes the place step.
func (s *PlaceStep) Do(_ context.Context, run *model.Run) error {
	if run.Containers == nil {
		run.Containers = model.NewBoard()
	}
	for _, name := range s.containers {
		run.Containers.Declare(name)
	}
	for _, rec := range run.Records {
		run.Containers.Append(rec.Container, rec.Fragment)
	}
	return nil
}

// BackfillStep puts the placeholder into every configured container that
// is still empty after placement.
type BackfillStep struct {
	containers  []string
	placeholder string
	logger      *slog.Logger
}

// NewBackfillStep creates a backfill step for the given containers.
func NewBackfillStep(containers []string, logger *slog.Logger) *BackfillStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackfillStep{
		containers:  containers,
		placeholder: render.Placeholder,
		logger:      logger,
	}
}

// Name returns the step name.
func (s *BackfillStep) Name() string {
	return "backfill"
}

// Finishes reports that the step also runs on a cut-short crawl.
func (s *BackfillStep) Finishes() bool {
	return true
}

// Do executes the backfill step.
func (s *BackfillStep) Do(_ context.Context, run *model.Run) error {
	if run.Containers == nil {
		run.Containers = model.NewBoard()
	}
	for _, name := range s.containers {
		if run.Containers.Backfill(name, s.placeholder) {
			s.logger.Debug("container backfilled", "user", run.UserID, "container", name)
		}
	}
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Normalizer reads post dates. Nil uses the local clock and zone.
	Normalizer *dates.Normalizer
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineNormalizer sets the date normalizer for the search step.
func WithPipelineNormalizer(n *dates.Normalizer) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Normalizer = n
	}
}

// DefaultPipeline creates the standard tracking pipeline for one user:
// search, sort, place, backfill.
//
// The tracker options are resolved here so the place and backfill steps
// see the same container lists the crawler routes to. Options that do not
// resolve still produce a pipeline; its search step reports the error.
func DefaultPipeline(fetcher crawler.Fetcher, boardURL string, opts config.TrackerOptions, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(cfg)
	}

	var containers []string
	if resolved, err := opts.Resolve(); err == nil {
		containers = resolved.ContainerNames()
	}

	p.AddSteps(
		NewSearchStep(fetcher, boardURL, opts,
			WithSearchNormalizer(cfg.Normalizer),
			WithSearchLogger(p.logger),
		),
		NewSortStep(),
		NewPlaceStep(containers),
		NewBackfillStep(containers, p.logger),
	)

	return p
}
