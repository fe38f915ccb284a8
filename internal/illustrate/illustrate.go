// Package illustrate adds portraits, location scenes and a cover image to a
// built world. Image failures never abort the run: the affected entry keeps
// content.NoImage and a warning is logged.
package illustrate

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/worldforge/internal/artifact"
	"github.com/kingrea/worldforge/internal/config"
	"github.com/kingrea/worldforge/internal/content"
	"github.com/kingrea/worldforge/internal/logbook"
	"github.com/kingrea/worldforge/internal/prompts"
	"github.com/kingrea/worldforge/internal/world"
)

// Illustrator requests and stores images for a world.
type Illustrator struct {
	svc      content.Service
	store    *artifact.Store
	settings config.Settings
	log      logbook.Logger
	newName  func() string
	now      func() time.Time
	onRegion func(RegionReport)
}

// Option customizes an Illustrator.
type Option func(*Illustrator)

// WithLogger routes warnings to log.
func WithLogger(log logbook.Logger) Option {
	return func(i *Illustrator) {
		if log != nil {
			i.log = log
		}
	}
}

// WithNamer overrides the random file name generator.
func WithNamer(fn func() string) Option {
	return func(i *Illustrator) {
		if fn != nil {
			i.newName = fn
		}
	}
}

// WithClock overrides the clock used to time each region.
func WithClock(clock func() time.Time) Option {
	return func(i *Illustrator) {
		if clock != nil {
			i.now = clock
		}
	}
}

// WithRegionDone calls fn after each region of World has been illustrated.
func WithRegionDone(fn func(RegionReport)) Option {
	return func(i *Illustrator) {
		i.onRegion = fn
	}
}

// New returns an Illustrator saving images into the image folders of store.
func New(svc content.Service, store *artifact.Store, settings config.Settings, opts ...Option) *Illustrator {
	i := &Illustrator{
		svc:      svc,
		store:    store,
		settings: settings,
		log:      logbook.Discard,
		newName:  func() string { return uuid.NewString() },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Stats counts what one pass produced.
type Stats struct {
	Requested int
	Saved     int
	Missed    int
}

// RegionReport describes the images one region asked for.
type RegionReport struct {
	Region   string
	Stats    Stats
	Duration time.Duration
}

// Pending counts the portraits, scenes and cover that still have no image.
func Pending(w world.World) int {
	n := 0
	if w.Cover == content.NoImage {
		n++
	}
	for _, region := range w.Regions {
		for _, character := range region.Characters {
			if character.Portrait == content.NoImage {
				n++
			}
		}
		for _, location := range region.Locations {
			if location.Illustration == content.NoImage {
				n++
			}
		}
	}
	return n
}

// World illustrates every region and the cover. Entries that already carry an
// image are skipped so a resumed run does not pay for them twice. The only
// error returned is context cancellation.
func (i *Illustrator) World(ctx context.Context, w world.World, worldContext string) (world.World, Stats, error) {
	var stats Stats
	out := w
	out.Regions = make([]world.Region, len(w.Regions))
	for idx, region := range w.Regions {
		var regionStats Stats
		started := i.now()
		illustrated, err := i.Region(ctx, region, &regionStats)
		stats.add(regionStats)
		if err != nil {
			return w, stats, fmt.Errorf("illustrate: %s: %w", region.LocationName, err)
		}
		out.Regions[idx] = illustrated
		if i.onRegion != nil {
			i.onRegion(RegionReport{Region: region.LocationName, Stats: regionStats, Duration: i.now().Sub(started)})
		}
	}
	cover, err := i.Cover(ctx, out, worldContext, &stats)
	if err != nil {
		return w, stats, fmt.Errorf("illustrate: cover: %w", err)
	}
	out.Cover = cover
	i.log.Info("illustrate: %d image(s) saved, %d missed", stats.Saved, stats.Missed)
	return out, stats, nil
}

func (s *Stats) add(o Stats) {
	s.Requested += o.Requested
	s.Saved += o.Saved
	s.Missed += o.Missed
}

// Cover returns the world's cover reference, requesting one only when the
// world has none yet.
func (i *Illustrator) Cover(ctx context.Context, w world.World, worldContext string, stats *Stats) (string, error) {
	if w.Cover != content.NoImage {
		return w.Cover, nil
	}
	if stats == nil {
		stats = &Stats{}
	}
	return i.image(ctx, content.ImageRequest{
		Kind:    content.ImageCover,
		Subject: "cover",
		Prompt:  prompts.Cover(i.settings, w, worldContext),
	}, stats)
}

// Region illustrates one region's characters and locations. The input is not
// modified.
func (i *Illustrator) Region(ctx context.Context, region world.Region, stats *Stats) (world.Region, error) {
	if stats == nil {
		stats = &Stats{}
	}
	out := region
	out.Characters = make(map[string]world.Character, len(region.Characters))
	for name, character := range region.Characters {
		out.Characters[name] = character
	}
	out.Locations = make(map[string]world.Location, len(region.Locations))
	for name, location := range region.Locations {
		out.Locations[name] = location
	}

	for _, name := range region.CharacterNames() {
		character := out.Characters[name]
		if character.Portrait != content.NoImage {
			continue
		}
		ref, err := i.image(ctx, content.ImageRequest{
			Kind:    content.ImagePortrait,
			Subject: name,
			Prompt:  prompts.Portrait(i.settings, region.LocationName, name, character),
		}, stats)
		if err != nil {
			return region, err
		}
		character.Portrait = ref
		out.Characters[name] = character
	}
	for _, name := range region.LocationNames() {
		location := out.Locations[name]
		if location.Illustration != content.NoImage {
			continue
		}
		ref, err := i.image(ctx, content.ImageRequest{
			Kind:    content.ImageLocation,
			Subject: name,
			Prompt:  prompts.LocationScene(i.settings, region.LocationName, name, location),
		}, stats)
		if err != nil {
			return region, err
		}
		location.Illustration = ref
		out.Locations[name] = location
	}
	return out, nil
}

// image returns the stored reference or content.NoImage. It only fails when
// ctx is done.
func (i *Illustrator) image(ctx context.Context, req content.ImageRequest, stats *Stats) (string, error) {
	if err := ctx.Err(); err != nil {
		return content.NoImage, err
	}
	stats.Requested++
	pic, err := i.svc.GenerateImage(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return content.NoImage, ctxErr
		}
		i.log.Warn("illustrate: %s %q: %v", req.Kind, req.Subject, err)
		stats.Missed++
		return content.NoImage, nil
	}
	if pic.Empty() {
		i.log.Warn("illustrate: %s %q: %v", req.Kind, req.Subject, content.ErrEmptyResponse)
		stats.Missed++
		return content.NoImage, nil
	}
	if len(pic.Data) == 0 {
		stats.Saved++
		return pic.URL, nil
	}
	ref, err := i.save(req.Kind, pic.Data)
	if err != nil {
		i.log.Warn("illustrate: %s %q: %v", req.Kind, req.Subject, err)
		stats.Missed++
		return content.NoImage, nil
	}
	stats.Saved++
	return ref, nil
}

// save writes data into the image folder for kind with a random name and
// returns the path relative to the output root.
func (i *Illustrator) save(kind content.ImageKind, data []byte) (string, error) {
	ref := folder(kind)
	if check, err := i.store.Check(ref); err != nil || check.State != artifact.StateReady {
		if err := i.store.Write(ref, nil, artifact.Metadata{}); err != nil {
			return "", fmt.Errorf("illustrate: ensure %s: %w", ref.ID, err)
		}
	}
	wf := i.store.Workflow()
	path := filepath.Join(ref.Path(wf), i.newName()+Extension(data))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("illustrate: write %s: %w", path, err)
	}
	return filepath.ToSlash(wf.Rel(path)), nil
}

// folder maps an image kind to the directory artifact that holds it.
func folder(kind content.ImageKind) artifact.ArtifactRef {
	switch kind {
	case content.ImagePortrait:
		return artifact.CharacterImages
	case content.ImageLocation:
		return artifact.LocationImages
	default:
		return artifact.CoverImages
	}
}

// Extension sniffs image bytes and returns a file extension. Unknown data is
// saved as .png since every supported backend defaults to PNG.
func Extension(data []byte) string {
	switch mime := http.DetectContentType(data); {
	case strings.HasPrefix(mime, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(mime, "image/webp"):
		return ".webp"
	case strings.HasPrefix(mime, "image/gif"):
		return ".gif"
	default:
		return ".png"
	}
}
