// Package worker runs independent jobs in parallel with a bounded number of
// goroutines. One job failing never cancels the others.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Job is one unit of work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result holds the outcome of a single job.
type Result struct {
	Name     string
	Status   string // "done", "failed", "skipped"
	Duration time.Duration
	Error    error
}

// Pool manages parallel job execution.
type Pool struct {
	maxWorkers int
	log        zerolog.Logger
}

// NewPool creates a pool running at most maxWorkers jobs at a time.
func NewPool(maxWorkers int, log zerolog.Logger) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{maxWorkers: maxWorkers, log: log}
}

// Run executes all jobs and returns their results in input order.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	if p.maxWorkers <= 1 || len(jobs) <= 1 {
		return p.runSequential(ctx, jobs)
	}
	return p.runParallel(ctx, jobs)
}

func (p *Pool) runSequential(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, 0, len(jobs))
	for _, j := range jobs {
		results = append(results, p.execute(ctx, j))
	}
	return results
}

func (p *Pool) runParallel(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.maxWorkers)
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = p.execute(ctx, j)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pool) execute(ctx context.Context, j Job) (r Result) {
	r.Name = j.Name
	if err := ctx.Err(); err != nil {
		r.Status, r.Error = "skipped", err
		return r
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.Status, r.Error = "failed", fmt.Errorf("job %s panicked: %v", j.Name, rec)
		}
		r.Duration = time.Since(start)
		p.log.Debug().Str("job", j.Name).Str("status", r.Status).Dur("duration", r.Duration).Msg("job finished")
	}()

	if err := j.Run(ctx); err != nil {
		r.Status, r.Error = "failed", err
		return r
	}
	r.Status = "done"
	return r
}
