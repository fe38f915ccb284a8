// Package builder runs the fixed generation pipeline for one region:
// describe, locations, characters, quests and the random encounter table.
package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/kingrea/worldforge/internal/content"
	"github.com/kingrea/worldforge/internal/logbook"
	"github.com/kingrea/worldforge/internal/prompts"
	"github.com/kingrea/worldforge/internal/world"
)

const (
	// QuestCount is the number of quest hooks every region receives.
	QuestCount = 6
	// EncounterCount is the size of every random encounter table.
	EncounterCount = 10
)

const (
	describeTokens  = 800
	entryTokens     = 600
	textTemperature = 0.9
)

// Builder turns one raw region into a built one. A Builder holds no per-region
// state, so one value may serve many workers.
type Builder struct {
	svc    content.Service
	prompt prompts.Context
	log    logbook.Logger
}

// Option customizes a Builder.
type Option func(*Builder)

// WithLogger routes progress to log.
func WithLogger(log logbook.Logger) Option {
	return func(b *Builder) {
		if log != nil {
			b.log = log
		}
	}
}

// New returns a Builder generating through svc.
func New(svc content.Service, prompt prompts.Context, opts ...Option) *Builder {
	b := &Builder{svc: svc, prompt: prompt, log: logbook.Discard}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs every step in order and returns the populated region. The input
// is not modified. Any step that fails, including a reply that is still not
// valid JSON after repair, aborts the whole region.
func (b *Builder) Build(ctx context.Context, region world.Region) (world.Region, error) {
	out := region
	out.Locations = make(map[string]world.Location, region.NumLocations)
	out.Characters = make(map[string]world.Character, region.NumCharacters)
	out.Quests = make([]world.Quest, 0, QuestCount)
	out.RandomEncounterTable = make([]world.Encounter, 0, EncounterCount)

	steps := []struct {
		name string
		run  func(context.Context, *world.Region) error
	}{
		{content.StepDescribe, b.describe},
		{content.StepLocation, b.locations},
		{content.StepCharacter, b.characters},
		{content.StepQuest, b.quests},
		{content.StepEncounter, b.encounters},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return world.Region{}, fmt.Errorf("builder: %s: %w", region.LocationName, err)
		}
		if err := step.run(ctx, &out); err != nil {
			return world.Region{}, fmt.Errorf("builder: %s: %s: %w", region.LocationName, step.name, err)
		}
	}
	b.log.Info("builder: %s built with %d location(s), %d character(s)", region.LocationName, len(out.Locations), len(out.Characters))
	return out, nil
}

func (b *Builder) request(step string, region *world.Region, index int, prompt string, maxTokens int) content.TextRequest {
	return content.TextRequest{
		Step:        step,
		Subject:     region.LocationName,
		Index:       index,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: textTemperature,
	}
}

type describeReply struct {
	Description string `json:"description"`
	Lore        string `json:"lore"`
}

func (b *Builder) describe(ctx context.Context, region *world.Region) error {
	var reply describeReply
	req := b.request(content.StepDescribe, region, 0, prompts.Describe(b.prompt, *region), describeTokens)
	if err := content.GenerateJSON(ctx, b.svc, req, &reply); err != nil {
		return err
	}
	region.Description = strings.TrimSpace(reply.Description)
	region.Lore = strings.TrimSpace(reply.Lore)
	return nil
}

type locationReply struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Lore        string         `json:"lore"`
	Other       map[string]any `json:"other"`
}

func (b *Builder) locations(ctx context.Context, region *world.Region) error {
	for n := 1; n <= region.NumLocations; n++ {
		var reply locationReply
		req := b.request(content.StepLocation, region, n, prompts.Location(b.prompt, *region, n), entryTokens)
		if err := content.GenerateJSON(ctx, b.svc, req, &reply); err != nil {
			return err
		}
		name := placeholder(reply.Name, "Location", n)
		if _, exists := region.Locations[name]; exists {
			b.log.Warn("builder: %s: location %q generated twice, keeping the latest", region.LocationName, name)
		}
		region.Locations[name] = world.Location{
			Description: strings.TrimSpace(reply.Description),
			Lore:        strings.TrimSpace(reply.Lore),
			Other:       nonEmptyMap(reply.Other),
		}
	}
	return nil
}

type characterReply struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Personality string         `json:"personality"`
	Race        string         `json:"race"`
	Class       string         `json:"class"`
	Gender      string         `json:"gender"`
	Other       map[string]any `json:"other"`
}

func (b *Builder) characters(ctx context.Context, region *world.Region) error {
	for n := 1; n <= region.NumCharacters; n++ {
		var reply characterReply
		req := b.request(content.StepCharacter, region, n, prompts.Character(b.prompt, *region, n), entryTokens)
		if err := content.GenerateJSON(ctx, b.svc, req, &reply); err != nil {
			return err
		}
		name := placeholder(reply.Name, "Character", n)
		if _, exists := region.Characters[name]; exists {
			b.log.Warn("builder: %s: character %q generated twice, keeping the latest", region.LocationName, name)
		}
		region.Characters[name] = world.Character{
			Description: strings.TrimSpace(reply.Description),
			Personality: strings.TrimSpace(reply.Personality),
			Race:        strings.TrimSpace(reply.Race),
			Class:       strings.TrimSpace(reply.Class),
			Gender:      strings.TrimSpace(reply.Gender),
			Other:       nonEmptyMap(reply.Other),
		}
	}
	return nil
}

type questReply struct {
	Title       string `json:"title"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (b *Builder) quests(ctx context.Context, region *world.Region) error {
	for n := 1; n <= QuestCount; n++ {
		var reply questReply
		req := b.request(content.StepQuest, region, n, prompts.Quest(b.prompt, *region, n, QuestCount), entryTokens)
		if err := content.GenerateJSON(ctx, b.svc, req, &reply); err != nil {
			return err
		}
		title := reply.Title
		if strings.TrimSpace(title) == "" {
			title = reply.Name
		}
		region.Quests = append(region.Quests, world.Quest{
			Index:       n,
			Title:       placeholder(title, "Quest", n),
			Description: strings.TrimSpace(reply.Description),
		})
	}
	return nil
}

type encounterBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Opportunity string `json:"opportunity"`
}

// encounterReply accepts both {"encounter": {...}} and the flat form.
type encounterReply struct {
	encounterBody
	Encounter *encounterBody `json:"encounter"`
}

func (r encounterReply) body() encounterBody {
	if r.Encounter != nil {
		return *r.Encounter
	}
	return r.encounterBody
}

func (b *Builder) encounters(ctx context.Context, region *world.Region) error {
	for n := 1; n <= EncounterCount; n++ {
		var reply encounterReply
		req := b.request(content.StepEncounter, region, n, prompts.Encounter(b.prompt, *region, n, EncounterCount), entryTokens)
		if err := content.GenerateJSON(ctx, b.svc, req, &reply); err != nil {
			return err
		}
		body := reply.body()
		region.RandomEncounterTable = append(region.RandomEncounterTable, world.Encounter{
			Index:       n,
			Title:       strings.TrimSpace(body.Title),
			Description: strings.TrimSpace(body.Description),
			Opportunity: strings.TrimSpace(body.Opportunity),
		})
	}
	return nil
}

// placeholder returns the trimmed name or "<kind> #<n>" when it is blank.
func placeholder(name, kind string, n int) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("%s #%d", kind, n)
}

func nonEmptyMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}
