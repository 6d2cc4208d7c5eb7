package ingest

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/clock"
	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/flock"
	"github.com/imkarma/logiri/internal/store"
	"github.com/imkarma/logiri/internal/worker"
)

// Run statuses.
const (
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// Pipeline ingests sources into the store.
type Pipeline struct {
	store   *store.Store
	cfg     *config.Config
	clock   clock.Clock
	log     zerolog.Logger
	lockDir string

	mu         sync.RWMutex
	connectors map[store.Source]Connector
}

// New creates a pipeline. Sources must be registered before they can run.
func New(s *store.Store, cfg *config.Config, c clock.Clock, log zerolog.Logger) *Pipeline {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Pipeline{
		store:      s,
		cfg:        cfg,
		clock:      c,
		log:        log,
		lockDir:    filepath.Join(cfg.DataDir, "locks"),
		connectors: map[store.Source]Connector{},
	}
}

// Register sets the connector used for src.
func (p *Pipeline) Register(src store.Source, conn Connector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectors[src] = conn
}

func (p *Pipeline) connector(src store.Source) (Connector, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.connectors[src]
	return c, ok
}

// Run ingests every segment of src. Segment failures are recorded on the
// returned run and do not stop the remaining segments. An error is returned
// when the run could not start, authentication failed, or every segment
// failed.
func (p *Pipeline) Run(ctx context.Context, src store.Source) (*store.IngestRun, error) {
	conn, ok := p.connector(src)
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownSource, "%q", src)
	}
	specs, err := Reports(src, p.cfg)
	if err != nil {
		return nil, err
	}

	lock, err := flock.Acquire(filepath.Join(p.lockDir, string(src)+".lock"))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrIngestLocked, "%s: %v", src, err)
	}
	defer lock.Release()

	log := p.log.With().Str("source", string(src)).Logger()

	run, err := p.store.StartIngestRun(ctx, src)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("run", run.ID).Logger()
	log.Info().Int("segments", len(specs)).Msg("ingestion started")

	if err := p.store.EnsureSnapshotSchema(ctx, src); err != nil {
		log.Error().Err(err).Msg("ensure schema failed")
		run.Status, run.Error = RunFailed, err.Error()
		p.finish(ctx, run, log)
		return run, err
	}

	fetcher, err := conn(ctx)
	if err != nil {
		log.Error().Err(err).Msg("connect failed")
		run.Status, run.Error = RunFailed, err.Error()
		p.finish(ctx, run, log)
		return run, err
	}

	today := clock.Today(p.clock)
	failed := 0
	for _, spec := range specs {
		spec.Start, spec.End = spec.Window.Range(today)
		res := p.segment(ctx, src, fetcher, spec, log)
		if res.Status == store.SegmentError {
			failed++
		}
		run.Segments = append(run.Segments, res)
	}

	switch failed {
	case 0:
		run.Status = RunCompleted
	case len(specs):
		run.Status = RunFailed
		run.Error = "every segment failed"
	default:
		run.Status = RunPartial
	}
	p.finish(ctx, run, log)

	if run.Status == RunFailed {
		return run, errors.Wrapf(errors.ErrUpstream, "%s: every segment failed", src)
	}
	return run, nil
}

// segment fetches and stores one report. A failed fetch still replaces the
// segment, with zero rows.
func (p *Pipeline) segment(ctx context.Context, src store.Source, f Fetcher, spec ReportSpec, log zerolog.Logger) store.SegmentResult {
	res := store.SegmentResult{Segment: spec.Segment}
	log = log.With().Str("segment", spec.Segment).Logger()

	raw, err := f.Fetch(ctx, spec)
	if err != nil {
		log.Warn().Err(err).Msg("fetch failed, segment cleared")
		res.Status, res.Error = store.SegmentError, err.Error()
		if _, cerr := p.store.ReplaceSegment(ctx, src, spec.Segment, nil); cerr != nil {
			log.Error().Err(cerr).Msg("clear segment failed")
		}
		return res
	}

	n, err := p.store.ReplaceSegment(ctx, src, spec.Segment, normalize(src, spec, raw))
	if err != nil {
		log.Error().Err(err).Msg("store failed")
		res.Status, res.Error = store.SegmentError, err.Error()
		return res
	}

	res.Rows = n
	res.Status = store.SegmentOK
	if n == 0 {
		res.Status = store.SegmentEmpty
		log.Warn().Str("window", spec.Start.Format(store.DateLayout)+".."+spec.End.Format(store.DateLayout)).Msg("0 rows")
	} else {
		log.Info().Int("rows", n).Msg("segment stored")
	}
	return res
}

func (p *Pipeline) finish(ctx context.Context, run *store.IngestRun, log zerolog.Logger) {
	if err := p.store.FinishIngestRun(ctx, run); err != nil {
		log.Error().Err(err).Msg("record run")
		return
	}
	log.Info().Str("status", run.Status).Msg("ingestion finished")
}

// Outcome is one source's result from RunAll.
type Outcome struct {
	Source store.Source
	Run    *store.IngestRun
	Err    error
}

// RunAll ingests the given sources in parallel, at most cfg.Ingest.Parallel
// at a time. Each source is still serialized by its own lock.
func (p *Pipeline) RunAll(ctx context.Context, sources []store.Source) []Outcome {
	outcomes := make([]Outcome, len(sources))
	jobs := make([]worker.Job, len(sources))
	for i, src := range sources {
		outcomes[i].Source = src
		jobs[i] = worker.Job{
			Name: string(src),
			Run: func(ctx context.Context) error {
				run, err := p.Run(ctx, src)
				outcomes[i].Run = run
				return err
			},
		}
	}

	results := worker.NewPool(p.cfg.Ingest.Parallel, p.log).Run(ctx, jobs)
	for i, r := range results {
		outcomes[i].Err = r.Error
	}
	return outcomes
}
