// Package orchestrator coordinates one generation run: it reads the inputs,
// decides how much of a previous run to reuse, and drives extraction,
// dispatch, illustration and rendering in order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/worldforge/internal/artifact"
	"github.com/kingrea/worldforge/internal/builder"
	"github.com/kingrea/worldforge/internal/config"
	"github.com/kingrea/worldforge/internal/content"
	"github.com/kingrea/worldforge/internal/dispatch"
	"github.com/kingrea/worldforge/internal/extract"
	"github.com/kingrea/worldforge/internal/illustrate"
	"github.com/kingrea/worldforge/internal/ledger"
	"github.com/kingrea/worldforge/internal/logbook"
	"github.com/kingrea/worldforge/internal/prompts"
	"github.com/kingrea/worldforge/internal/render"
	"github.com/kingrea/worldforge/internal/tui"
	"github.com/kingrea/worldforge/internal/workflow"
	"github.com/kingrea/worldforge/internal/world"
)

const producer = "orchestrator"

// Answers accepted when a previous run left a snapshot behind.
const (
	ChoiceReuse      = "reuse"
	ChoiceRegenerate = "regenerate"
)

var (
	// ErrAborted means the user declined the generation plan. It is a clean
	// exit, not a failure.
	ErrAborted = errors.New("orchestrator: aborted by user")
	// ErrInvalidChoice means the reuse prompt got an answer it does not know.
	ErrInvalidChoice = errors.New("orchestrator: invalid choice")
	// ErrNoRegionsBuilt means every region failed during dispatch.
	ErrNoRegionsBuilt = errors.New("orchestrator: no region could be built")
)

// Prompter asks the user the two questions a run can need.
type Prompter interface {
	Confirm(ctx context.Context, plan tui.Plan) (bool, error)
	Choose(ctx context.Context, question string, options []string) (string, error)
}

// Ledger records region outcomes and summarizes a run.
type Ledger interface {
	dispatch.Recorder
	Tally(ctx context.Context, runID string) (succeeded, failed int, err error)
}

// Orchestrator runs one generation into a single output tree.
type Orchestrator struct {
	cfg         *config.Config
	svc         content.Service
	wf          *workflow.Workflow
	store       *artifact.Store
	prompter    Prompter
	ledger      Ledger
	log         logbook.Logger
	rng         *rand.Rand
	runID       string
	title       string
	workers     int
	autoConfirm bool
	now         func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPrompter sets where questions are asked.
func WithPrompter(p Prompter) Option {
	return func(o *Orchestrator) {
		o.prompter = p
	}
}

// WithLedger records region outcomes into l.
func WithLedger(l Ledger) Option {
	return func(o *Orchestrator) {
		o.ledger = l
	}
}

// WithLogger routes progress to log.
func WithLogger(log logbook.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithRand fixes the source used to roll region counts.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) {
		if rng != nil {
			o.rng = rng
		}
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.runID = id
		}
	}
}

// WithTitle sets the world book title.
func WithTitle(title string) Option {
	return func(o *Orchestrator) {
		o.title = title
	}
}

// WithWorkers overrides the dispatcher pool size.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithAutoConfirm skips the confirmation prompt.
func WithAutoConfirm(yes bool) Option {
	return func(o *Orchestrator) {
		o.autoConfirm = yes
	}
}

// WithClock overrides the clock used to stamp the world.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.now = clock
		}
	}
}

// New returns an Orchestrator writing under cfg's output directory.
func New(cfg *config.Config, svc content.Service, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		svc:     svc,
		wf:      workflow.New(cfg.OutputDir()),
		log:     logbook.Discard,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		runID:   uuid.NewString(),
		workers: dispatch.DefaultWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.store = artifact.NewStore(o.wf, artifact.WithClock(o.now))
	return o
}

// Summary describes what a run produced.
type Summary struct {
	RunID       string
	Resumed     workflow.Phase
	Regions     int
	Failures    []dispatch.Failure
	Images      illustrate.Stats
	Documents   []string
	Book        string
	Succeeded   int
	FailedTotal int
}

type inputs struct {
	worldContext string
	image        content.Image
}

// Run executes the whole pipeline. A declined plan returns ErrAborted.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: o.runID}
	if err := o.wf.Initialize(); err != nil {
		return summary, fmt.Errorf("orchestrator: prepare output: %w", err)
	}
	in, err := o.readInputs()
	if err != nil {
		return summary, err
	}

	phase := o.wf.CurrentPhase()
	o.log.Info("orchestrator: run %s starting in %s (previous run: %s)", o.runID, o.wf.Root(), phase)
	if phase.HasWorld() {
		reuse, err := o.askReuse(ctx, phase)
		if err != nil {
			return summary, err
		}
		if reuse {
			summary.Resumed = phase
		} else {
			if err := o.clearSnapshots(); err != nil {
				return summary, err
			}
		}
	}

	var w world.World
	switch summary.Resumed {
	case workflow.PhaseComplete:
		w, err = o.loadWorld(artifact.ExpandedWorld)
	case workflow.PhaseIllustrated:
		w, err = o.loadWorld(artifact.IllustratedWaypoint)
	case workflow.PhaseTextBuilt:
		w, err = o.loadWorld(artifact.TextWaypoint)
	default:
		w, err = o.extract(ctx, in.image)
	}
	if err != nil {
		return summary, err
	}

	buildText := summary.Resumed < workflow.PhaseTextBuilt
	illustrateWorld := o.cfg.ImagesEnabled() && (buildText || illustrate.Pending(w) > 0)
	if !o.cfg.ImagesEnabled() && summary.Resumed >= workflow.PhaseTextBuilt {
		if pending := illustrate.Pending(w); pending > 0 {
			o.log.Info("orchestrator: images are disabled, %d image(s) stay missing", pending)
		}
	}
	if buildText {
		w.Regions = dispatch.AssignCounts(w.Regions, o.rng, o.cfg.Debug())
	}
	if buildText || illustrateWorld {
		if err := o.confirm(ctx, w, buildText, illustrateWorld); err != nil {
			return summary, err
		}
	}

	if buildText {
		built, failures, err := o.buildText(ctx, w, in.worldContext)
		summary.Failures = failures
		if err != nil {
			return summary, err
		}
		w = built
		if err := o.saveWorld(artifact.TextWaypoint, w); err != nil {
			return summary, err
		}
	}
	if illustrateWorld {
		illustrated, stats, err := o.illustrate(ctx, w, in.worldContext)
		summary.Images = stats
		if err != nil {
			return summary, err
		}
		w = illustrated
		if err := o.saveWorld(artifact.IllustratedWaypoint, w); err != nil {
			return summary, err
		}
	}
	if summary.Resumed != workflow.PhaseComplete || illustrateWorld {
		if err := o.saveWorld(artifact.ExpandedWorld, w); err != nil {
			return summary, err
		}
		if err := o.clearWaypoints(); err != nil {
			return summary, err
		}
	}
	summary.Regions = len(w.Regions)

	report, err := render.New(o.store, render.WithTitle(o.title), render.WithLogger(o.log)).Render(w)
	summary.Documents = report.Documents
	summary.Book = report.Book
	if err != nil {
		return summary, err
	}

	if o.ledger != nil {
		succeeded, failed, err := o.ledger.Tally(ctx, o.runID)
		if err != nil {
			o.log.Warn("orchestrator: tally ledger: %v", err)
		}
		summary.Succeeded, summary.FailedTotal = succeeded, failed
	}
	o.log.Info("orchestrator: run %s finished with %d region(s), %d failed", o.runID, summary.Regions, len(summary.Failures))
	return summary, nil
}

func (o *Orchestrator) readInputs() (inputs, error) {
	worldContext, err := os.ReadFile(o.cfg.Inputs.ContextPath)
	if err != nil {
		return inputs{}, fmt.Errorf("orchestrator: read context: %w", err)
	}
	data, err := os.ReadFile(o.cfg.Inputs.MapPath)
	if err != nil {
		return inputs{}, fmt.Errorf("orchestrator: read map image: %w", err)
	}
	return inputs{
		worldContext: strings.TrimSpace(string(worldContext)),
		image:        content.Image{Data: data, MIMEType: http.DetectContentType(data)},
	}, nil
}

func (o *Orchestrator) askReuse(ctx context.Context, phase workflow.Phase) (bool, error) {
	if o.prompter == nil {
		return false, fmt.Errorf("orchestrator: a previous run reached %q but no prompter is configured", phase)
	}
	question := fmt.Sprintf("A previous run in %s reached %q. Reuse it or regenerate?", o.wf.Root(), phase)
	answer, err := o.prompter.Choose(ctx, question, []string{ChoiceReuse, ChoiceRegenerate})
	if err != nil {
		return false, fmt.Errorf("orchestrator: ask reuse: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case ChoiceReuse:
		o.log.Info("orchestrator: reusing %s snapshot", phase)
		return true, nil
	case ChoiceRegenerate:
		o.log.Info("orchestrator: regenerating over %s snapshot", phase)
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidChoice, answer, ChoiceReuse, ChoiceRegenerate)
	}
}

func (o *Orchestrator) extract(ctx context.Context, image content.Image) (world.World, error) {
	ex := extract.New(o.svc, o.store,
		extract.WithLogger(o.log),
		extract.WithRun(o.runID, o.cfg.Inputs.MapPath),
	)
	if ex.Exists() {
		o.log.Info("orchestrator: reading existing map description")
		return ex.Load()
	}
	o.log.Info("orchestrator: studying the map")
	return ex.IdentifyRegions(ctx, image)
}

func (o *Orchestrator) confirm(ctx context.Context, w world.World, text, images bool) error {
	regions := w.Regions
	est := dispatch.Estimate(regions, images)
	if !text {
		est.TextCalls = 0
		if images {
			est.ImageCalls = illustrate.Pending(w)
		}
	}
	plan := tui.Plan{
		Backend:    o.cfg.Backend(),
		Workers:    min(o.workers, max(len(regions), 1)),
		Images:     images,
		Debug:      o.cfg.Debug(),
		TextCalls:  est.TextCalls,
		ImageCalls: est.ImageCalls,
	}
	for _, region := range regions {
		plan.Regions = append(plan.Regions, tui.PlanRegion{
			Name:       region.LocationName,
			Type:       string(region.LocationType),
			Locations:  region.NumLocations,
			Characters: region.NumCharacters,
			Quests:     region.NumQuests,
		})
	}
	o.log.Info("orchestrator: plan is %d text and %d image request(s) over %d region(s)", est.TextCalls, est.ImageCalls, len(regions))
	if o.autoConfirm {
		return nil
	}
	if o.prompter == nil {
		return fmt.Errorf("orchestrator: confirmation required but no prompter is configured")
	}
	ok, err := o.prompter.Confirm(ctx, plan)
	if err != nil {
		return fmt.Errorf("orchestrator: confirm: %w", err)
	}
	if !ok {
		o.log.Info("orchestrator: plan declined")
		return ErrAborted
	}
	return nil
}

func (o *Orchestrator) buildText(ctx context.Context, w world.World, worldContext string) (world.World, []dispatch.Failure, error) {
	pc := prompts.Context{World: worldContext, Settings: o.cfg.Settings}
	d := dispatch.New(
		dispatch.WithWorkers(o.workers),
		dispatch.WithRegionTimeout(o.cfg.Env.RegionTimeout),
		dispatch.WithLogger(o.log),
		dispatch.WithRecorder(o.recorder(), o.runID),
	)
	result, err := d.Run(ctx, w.Regions, func() dispatch.RegionBuilder {
		return builder.New(o.svc, pc, builder.WithLogger(o.log))
	})
	if err != nil {
		return w, result.Failures, err
	}
	for _, failure := range result.Failures {
		o.log.Warn("orchestrator: region %s left out of the world: %v", failure.Region, failure.Err)
	}
	if len(result.World.Regions) == 0 {
		return w, result.Failures, fmt.Errorf("%w: %w", ErrNoRegionsBuilt, result.Err())
	}
	out := result.World
	out.Cover = w.Cover
	out.GeneratedAt = o.now().UTC().Format(time.RFC3339)
	return out, result.Failures, nil
}

func (o *Orchestrator) illustrate(ctx context.Context, w world.World, worldContext string) (world.World, illustrate.Stats, error) {
	ill := illustrate.New(o.svc, o.store, o.cfg.Settings,
		illustrate.WithLogger(o.log),
		illustrate.WithClock(o.now),
		illustrate.WithRegionDone(func(report illustrate.RegionReport) {
			outcome := ledger.Outcome{
				RunID:    o.runID,
				Region:   report.Region,
				Phase:    ledger.PhaseIllustrate,
				Status:   ledger.StatusSucceeded,
				Duration: report.Duration,
			}
			if report.Stats.Missed > 0 {
				outcome.Status = ledger.StatusFailed
				outcome.Error = fmt.Sprintf("%d image(s) missed", report.Stats.Missed)
			}
			o.record(ctx, outcome)
		}),
	)
	out, stats, err := ill.World(ctx, w, worldContext)
	if err != nil {
		return w, stats, fmt.Errorf("orchestrator: %w", err)
	}
	return out, stats, nil
}

func (o *Orchestrator) recorder() dispatch.Recorder {
	if o.ledger == nil {
		return nil
	}
	return o.ledger
}

func (o *Orchestrator) record(ctx context.Context, outcome ledger.Outcome) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.RecordOutcome(context.WithoutCancel(ctx), outcome); err != nil {
		o.log.Warn("orchestrator: record outcome for %s: %v", outcome.Region, err)
	}
}
