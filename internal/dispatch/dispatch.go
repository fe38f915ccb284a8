// Package dispatch fans regions out across a fixed pool of workers, each
// running a full region build, and collects the results into a world.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/worldforge/internal/ledger"
	"github.com/kingrea/worldforge/internal/logbook"
	"github.com/kingrea/worldforge/internal/world"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 3

const tracerName = "github.com/kingrea/worldforge/internal/dispatch"

// RegionBuilder builds one region. Each worker gets its own builder.
type RegionBuilder interface {
	Build(ctx context.Context, region world.Region) (world.Region, error)
}

// BuilderFunc adapts a function to RegionBuilder.
type BuilderFunc func(ctx context.Context, region world.Region) (world.Region, error)

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context, region world.Region) (world.Region, error) {
	return f(ctx, region)
}

// BuilderFactory returns the builder a worker uses for its lifetime.
type BuilderFactory func() RegionBuilder

// Recorder receives one outcome per region.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome ledger.Outcome) error
}

// Failure is a region whose build did not complete.
type Failure struct {
	Region string
	Err    error
}

// Result is what a dispatch produced. World.Regions is in completion order.
type Result struct {
	World    world.World
	Failures []Failure
}

// Err joins every failure, or returns nil when all regions were built.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, failure := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", failure.Region, failure.Err))
	}
	return errors.Join(errs...)
}

// Dispatcher runs region builds on a fixed worker pool.
type Dispatcher struct {
	workers  int
	timeout  time.Duration
	log      logbook.Logger
	recorder Recorder
	runID    string
	tracer   trace.Tracer
	now      func() time.Time
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers sets the pool size. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithRegionTimeout bounds each region build. Zero disables the bound, so a
// stuck region stalls the run until it returns.
func WithRegionTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger routes progress to log.
func WithLogger(log logbook.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithRecorder records every region outcome under runID.
func WithRecorder(recorder Recorder, runID string) Option {
	return func(d *Dispatcher) {
		d.recorder = recorder
		d.runID = runID
	}
}

// New returns a Dispatcher with DefaultWorkers workers.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		workers: DefaultWorkers,
		log:     logbook.Discard,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type built struct {
	name   string
	region world.Region
	err    error
}

// Run queues every region, starts the workers and waits for all of them to
// exit before draining the results. A failed region is reported in
// Result.Failures and left out of the world; the other regions are unaffected.
// The returned error is non-nil only when ctx ended the run early.
func (d *Dispatcher) Run(ctx context.Context, regions []world.Region, factory BuilderFactory) (Result, error) {
	if factory == nil {
		return Result{}, fmt.Errorf("dispatch: builder factory is required")
	}
	jobs := make(chan world.Region, len(regions))
	for _, region := range regions {
		jobs <- region
	}
	close(jobs)
	results := make(chan built, len(regions))

	workers := min(d.workers, len(regions))
	d.log.Info("dispatch: %d region(s) across %d worker(s)", len(regions), workers)

	var group errgroup.Group
	for id := 1; id <= workers; id++ {
		builder := factory()
		group.Go(func() error {
			return d.work(ctx, id, builder, jobs, results)
		})
	}
	err := group.Wait()
	close(results)

	result := Result{World: world.World{Regions: make([]world.Region, 0, len(regions))}}
	for out := range results {
		if out.err != nil {
			result.Failures = append(result.Failures, Failure{Region: out.name, Err: out.err})
			continue
		}
		result.World.Regions = append(result.World.Regions, out.region)
	}
	if err != nil {
		return result, fmt.Errorf("dispatch: %w", err)
	}
	return result, nil
}

// work pulls regions until the queue is empty. It only returns an error when
// ctx is done.
func (d *Dispatcher) work(ctx context.Context, id int, builder RegionBuilder, jobs <-chan world.Region, results chan<- built) error {
	for region := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		results <- d.buildOne(ctx, id, builder, region)
	}
	return nil
}

func (d *Dispatcher) buildOne(ctx context.Context, worker int, builder RegionBuilder, region world.Region) built {
	ctx, span := d.tracer.Start(ctx, "dispatch.BuildRegion", trace.WithAttributes(
		attribute.String("region.name", region.LocationName),
		attribute.String("region.type", string(region.LocationType)),
		attribute.Int("dispatch.worker", worker),
	))
	defer span.End()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	d.log.Info("dispatch: worker %d building %s", worker, region.LocationName)
	started := d.now()
	out, err := builder.Build(ctx, region)
	elapsed := d.now().Sub(started)

	outcome := ledger.Outcome{
		RunID:    d.runID,
		Region:   region.LocationName,
		Phase:    ledger.PhaseText,
		Status:   ledger.StatusSucceeded,
		Worker:   worker,
		Duration: elapsed,
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome.Status = ledger.StatusFailed
		outcome.Error = err.Error()
		d.log.Error("dispatch: worker %d failed %s after %s: %v", worker, region.LocationName, elapsed.Round(time.Millisecond), err)
	} else {
		d.log.Info("dispatch: worker %d finished %s in %s", worker, region.LocationName, elapsed.Round(time.Millisecond))
	}
	d.record(ctx, outcome)
	return built{name: region.LocationName, region: out, err: err}
}

func (d *Dispatcher) record(ctx context.Context, outcome ledger.Outcome) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordOutcome(context.WithoutCancel(ctx), outcome); err != nil {
		d.log.Warn("dispatch: record outcome for %s: %v", outcome.Region, err)
	}
}
