package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/kingrea/worldforge/internal/content"
	"github.com/kingrea/worldforge/internal/content/contenttest"
	"github.com/kingrea/worldforge/internal/prompts"
	"github.com/kingrea/worldforge/internal/world"
)

func portAshen(locations, characters int) world.Region {
	return world.Region{
		LocationName:     "Port Ashen",
		LocationType:     world.SmallTown,
		ShortDescription: "a fog-bound fishing town",
		NumLocations:     locations,
		NumCharacters:    characters,
		NumQuests:        2,
	}
}

func TestBuildPortAshen(t *testing.T) {
	stub := &contenttest.Stub{}
	input := portAshen(3, 4)
	got, err := New(stub, prompts.Context{World: "A drowned archipelago."}).Build(context.Background(), input)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got.Description == "" || got.Lore == "" {
		t.Fatalf("description/lore missing: %+v", got)
	}
	if len(got.Locations) != 3 {
		t.Fatalf("locations = %d, want 3", len(got.Locations))
	}
	if len(got.Characters) != 4 {
		t.Fatalf("characters = %d, want 4", len(got.Characters))
	}
	if len(got.Quests) != QuestCount || len(got.RandomEncounterTable) != EncounterCount {
		t.Fatalf("quests = %d encounters = %d", len(got.Quests), len(got.RandomEncounterTable))
	}
	for i, q := range got.Quests {
		if q.Index != i+1 || q.Title == "" || q.Description == "" {
			t.Fatalf("quest[%d] = %+v", i, q)
		}
	}
	for i, e := range got.RandomEncounterTable {
		if e.Index != i+1 || e.Description == "" || e.Opportunity == "" {
			t.Fatalf("encounter[%d] = %+v", i, e)
		}
	}
	if got.Characters["Fisher 1"].Race != "human" {
		t.Fatalf("character fields not kept: %+v", got.Characters["Fisher 1"])
	}
	if got.NumLocations != 3 || got.NumCharacters != 4 || got.NumQuests != 2 {
		t.Fatalf("counts must not change: %+v", got)
	}
	if input.Locations != nil || input.Description != "" {
		t.Fatalf("input region was mutated")
	}
}

func TestBuildRunsStepsInOrder(t *testing.T) {
	stub := &contenttest.Stub{}
	if _, err := New(stub, prompts.Context{}).Build(context.Background(), portAshen(2, 2)); err != nil {
		t.Fatalf("build: %v", err)
	}
	order := map[string]int{
		content.StepDescribe:  0,
		content.StepLocation:  1,
		content.StepCharacter: 2,
		content.StepQuest:     3,
		content.StepEncounter: 4,
	}
	last := -1
	for _, call := range stub.TextCalls() {
		rank := order[call.Step]
		if rank < last {
			t.Fatalf("step %s ran after a later step", call.Step)
		}
		last = rank
	}
	counts := stub.CountSteps()
	want := map[string]int{
		content.StepDescribe:  1,
		content.StepLocation:  2,
		content.StepCharacter: 2,
		content.StepQuest:     QuestCount,
		content.StepEncounter: EncounterCount,
	}
	for step, n := range want {
		if counts[step] != n {
			t.Fatalf("%s calls = %d, want %d", step, counts[step], n)
		}
	}
}

func TestBuildMissingNamesUsePositionalPlaceholders(t *testing.T) {
	stub := &contenttest.Stub{Text: func(req content.TextRequest) (string, error) {
		switch req.Step {
		case content.StepLocation:
			if req.Index == 2 {
				return `{"name":"The Pier","description":"d","lore":"l"}`, nil
			}
			return `{"description":"d","lore":"l"}`, nil
		case content.StepCharacter:
			return `{"name":"  ","description":"d","personality":"p"}`, nil
		}
		return contenttest.Canned(req), nil
	}}
	got, err := New(stub, prompts.Context{}).Build(context.Background(), portAshen(3, 2))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, name := range []string{"Location #1", "The Pier", "Location #3"} {
		if _, ok := got.Locations[name]; !ok {
			t.Fatalf("missing location %q in %v", name, got.LocationNames())
		}
	}
	for _, name := range []string{"Character #1", "Character #2"} {
		if _, ok := got.Characters[name]; !ok {
			t.Fatalf("missing character %q in %v", name, got.CharacterNames())
		}
	}
}

func TestBuildDuplicateNamesOverwrite(t *testing.T) {
	stub := &contenttest.Stub{Text: func(req content.TextRequest) (string, error) {
		if req.Step == content.StepLocation {
			if req.Index == 1 {
				return `{"name":"The Pier","description":"first","lore":"l"}`, nil
			}
			return `{"name":"The Pier","description":"second","lore":"l"}`, nil
		}
		return contenttest.Canned(req), nil
	}}
	got, err := New(stub, prompts.Context{}).Build(context.Background(), portAshen(2, 1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(got.Locations) != 1 || got.Locations["The Pier"].Description != "second" {
		t.Fatalf("locations = %+v", got.Locations)
	}
}

func TestBuildRepairsMalformedReply(t *testing.T) {
	stub := &contenttest.Stub{Text: func(req content.TextRequest) (string, error) {
		if req.Step == content.StepDescribe && !req.Repair {
			return `{"description": "Fog rolls", "lore": `, nil
		}
		return contenttest.Canned(req), nil
	}}
	got, err := New(stub, prompts.Context{}).Build(context.Background(), portAshen(1, 1))
	if err != nil {
		t.Fatalf("repairable reply should not fail the build: %v", err)
	}
	if got.Description == "" {
		t.Fatalf("description not populated after repair")
	}
}

func TestBuildRepairDropsFieldsFromRejectedReply(t *testing.T) {
	stub := &contenttest.Stub{Text: func(req content.TextRequest) (string, error) {
		if req.Step == content.StepLocation {
			if req.Repair {
				return `{"description":"A tarred pier.","lore":"Old."}`, nil
			}
			return `{"name":"Rejected Pier","description":42}`, nil
		}
		return contenttest.Canned(req), nil
	}}
	got, err := New(stub, prompts.Context{}).Build(context.Background(), portAshen(1, 1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	loc, ok := got.Locations["Location #1"]
	if !ok {
		t.Fatalf("location keys = %v, want [Location #1]", got.LocationNames())
	}
	if loc.Description != "A tarred pier." || loc.Lore != "Old." {
		t.Fatalf("location = %+v", loc)
	}
}

func TestBuildQuestAndEncounterShapes(t *testing.T) {
	stub := &contenttest.Stub{Text: func(req content.TextRequest) (string, error) {
		switch req.Step {
		case content.StepQuest:
			if req.Index == 1 {
				return `{"title":"Lamplight","description":"d"}`, nil
			}
			return `{"description":"d"}`, nil
		case content.StepEncounter:
			return `{"title":"Flat","description":"d","opportunity":"o"}`, nil
		}
		return contenttest.Canned(req), nil
	}}
	got, err := New(stub, prompts.Context{}).Build(context.Background(), portAshen(1, 1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got.Quests[0].Title != "Lamplight" || got.Quests[1].Title != "Quest #2" {
		t.Fatalf("quests = %+v", got.Quests[:2])
	}
	if got.RandomEncounterTable[0].Title != "Flat" || got.RandomEncounterTable[0].Opportunity != "o" {
		t.Fatalf("flat encounter not decoded: %+v", got.RandomEncounterTable[0])
	}
}

func TestBuildAbortsWhenRepairFails(t *testing.T) {
	stub := &contenttest.Stub{Text: func(req content.TextRequest) (string, error) {
		if req.Step == content.StepQuest && req.Index == 3 {
			return "still not json", nil
		}
		return contenttest.Canned(req), nil
	}}
	got, err := New(stub, prompts.Context{}).Build(context.Background(), portAshen(1, 1))
	var parseErr *content.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if got.LocationName != "" {
		t.Fatalf("failed build must not return a partial region")
	}
	if n := stub.CountSteps()[content.StepEncounter]; n != 0 {
		t.Fatalf("encounters ran after a failed step: %d", n)
	}
}

func TestBuildStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&contenttest.Stub{}, prompts.Context{}).Build(ctx, portAshen(1, 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
