// Package extract turns the source map image into the list of raw regions the
// rest of the run builds on.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingrea/worldforge/internal/artifact"
	"github.com/kingrea/worldforge/internal/content"
	"github.com/kingrea/worldforge/internal/logbook"
	"github.com/kingrea/worldforge/internal/prompts"
	"github.com/kingrea/worldforge/internal/world"
)

const (
	producer  = "extract"
	maxTokens = 2000
)

// ErrNoRegions is returned when the map yielded nothing usable.
var ErrNoRegions = errors.New("extract: no regions identified")

// Extractor sends the map image to the content service once.
type Extractor struct {
	svc    content.Service
	store  *artifact.Store
	log    logbook.Logger
	runID  string
	inputs []string
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithLogger routes warnings to log.
func WithLogger(log logbook.Logger) Option {
	return func(e *Extractor) {
		if log != nil {
			e.log = log
		}
	}
}

// WithRun stamps persisted artifacts with the run id and input paths.
func WithRun(runID string, inputs ...string) Option {
	return func(e *Extractor) {
		e.runID = runID
		e.inputs = append([]string(nil), inputs...)
	}
}

// New returns an Extractor that persists through store.
func New(svc content.Service, store *artifact.Store, opts ...Option) *Extractor {
	e := &Extractor{svc: svc, store: store, log: logbook.Discard}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IdentifyRegions asks the service for the regions on the map. A reply that
// is not valid JSON is fatal and is not repaired. A reply that is unusable
// keeps its raw text next to the map description for inspection and is never
// persisted, so the next run asks again.
func (e *Extractor) IdentifyRegions(ctx context.Context, image content.Image) (world.World, error) {
	req := content.TextRequest{
		Step:      content.StepExtract,
		Prompt:    prompts.Extract(),
		Image:     &image,
		MaxTokens: maxTokens,
	}
	raw, err := e.svc.GenerateText(ctx, req)
	if err != nil {
		return world.World{}, fmt.Errorf("extract: identify regions: %w", err)
	}
	var payload json.RawMessage
	if err := content.Decode(req.Topic(), raw, &payload); err != nil {
		e.keepInvalid(raw, "was not valid JSON")
		return world.World{}, fmt.Errorf("extract: identify regions: %w", err)
	}
	decoded, err := world.Decode(payload)
	if err != nil {
		e.keepInvalid(raw, "was not valid JSON")
		return world.World{}, fmt.Errorf("extract: identify regions: %w", &content.ParseError{Topic: req.Topic(), Attempts: 1, Raw: raw, Err: err})
	}
	cleaned, err := e.normalize(decoded)
	if err != nil {
		e.keepInvalid(raw, "named no usable region")
		return world.World{}, err
	}
	if err := e.persist(decoded, raw); err != nil {
		return world.World{}, err
	}
	return cleaned, nil
}

// Load reads a previously persisted map description.
func (e *Extractor) Load() (world.World, error) {
	decoded, err := e.read()
	if err != nil {
		return world.World{}, err
	}
	return e.normalize(decoded)
}

// Exists reports whether a usable map description is already on disk. A
// description that names no region counts as missing.
func (e *Extractor) Exists() bool {
	result, err := e.store.Check(artifact.MapDescription)
	if err != nil || result.State != artifact.StateReady {
		return false
	}
	decoded, err := e.read()
	if err != nil {
		return false
	}
	cleaned, _ := world.Normalize(decoded)
	return len(cleaned.Regions) > 0
}

func (e *Extractor) read() (world.World, error) {
	body, _, err := e.store.Read(artifact.MapDescription)
	if err != nil {
		return world.World{}, fmt.Errorf("extract: load map description: %w", err)
	}
	decoded, err := world.Decode(body)
	if err != nil {
		return world.World{}, fmt.Errorf("extract: load map description: %w", err)
	}
	return decoded, nil
}

func (e *Extractor) normalize(decoded world.World) (world.World, error) {
	dropped := len(decoded.Regions)
	cleaned, coerced := world.Normalize(decoded)
	dropped -= len(cleaned.Regions)
	if dropped > 0 {
		e.log.Warn("extract: dropped %d region(s) without a name", dropped)
	}
	for _, name := range coerced {
		e.log.Warn("extract: region %q has an unknown type, treating it as %s", name, world.Other)
	}
	cleaned.Regions = dedupe(cleaned.Regions, e.log)
	for _, err := range world.ValidateWorld(cleaned) {
		e.log.Warn("extract: %v", err)
	}
	if len(cleaned.Regions) == 0 {
		return world.World{}, ErrNoRegions
	}
	e.log.Info("extract: identified %d region(s)", len(cleaned.Regions))
	return cleaned, nil
}

// persist stores the decoded reply as the map description and the reply
// text verbatim beside it, so keys the decoder does not know survive.
func (e *Extractor) persist(decoded world.World, raw string) error {
	body, err := world.Encode(decoded)
	if err != nil {
		return fmt.Errorf("extract: persist map description: %w", err)
	}
	meta := artifact.Metadata{Producer: producer, RunID: e.runID, Inputs: e.inputs}
	if err := e.store.Write(artifact.MapDescription, body, meta); err != nil {
		return fmt.Errorf("extract: persist map description: %w", err)
	}
	if err := writeFile(e.store.Workflow().RawMapDescriptionPath(), raw); err != nil {
		return fmt.Errorf("extract: persist raw reply: %w", err)
	}
	return nil
}

func (e *Extractor) keepInvalid(raw, reason string) {
	path := e.store.Workflow().InvalidMapDescriptionPath()
	if err := writeFile(path, raw); err != nil {
		e.log.Warn("extract: keep invalid reply: %v", err)
		return
	}
	e.log.Error("extract: map description %s, raw reply saved to %s", reason, path)
}

func writeFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// dedupe keeps the first region for each case-insensitive name. Region names
// become document file names, so later duplicates are dropped.
func dedupe(regions []world.Region, log logbook.Logger) []world.Region {
	seen := make(map[string]struct{}, len(regions))
	out := regions[:0]
	for _, region := range regions {
		key := strings.ToLower(region.LocationName)
		if _, ok := seen[key]; ok {
			log.Warn("extract: dropped duplicate region %q", region.LocationName)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, region)
	}
	return out
}
