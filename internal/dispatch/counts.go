package dispatch

import (
	"math/rand/v2"

	"github.com/kingrea/worldforge/internal/builder"
	"github.com/kingrea/worldforge/internal/world"
)

// Range is an inclusive integer interval.
type Range struct {
	Min int
	Max int
}

// Roll draws a value from r.
func (r Range) Roll(rng *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.IntN(r.Max-r.Min+1)
}

// Contains reports whether v lies inside r.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// CountRanges holds the per-type ranges for the three rolled counts.
type CountRanges struct {
	Locations  Range
	Characters Range
	Quests     Range
}

var (
	bigTownRanges   = CountRanges{Locations: Range{4, 10}, Characters: Range{4, 10}, Quests: Range{1, 6}}
	smallTownRanges = CountRanges{Locations: Range{2, 6}, Characters: Range{2, 6}, Quests: Range{1, 2}}
	otherRanges     = CountRanges{Locations: Range{1, 2}, Characters: Range{1, 4}, Quests: Range{1, 4}}
	debugRanges     = CountRanges{Locations: Range{1, 1}, Characters: Range{1, 1}, Quests: Range{1, 1}}
)

// RangesFor returns the count ranges for a region type. Natural features,
// "other" and anything unrecognized share the smallest ranges.
func RangesFor(t world.LocationType) CountRanges {
	switch t {
	case world.BigTown:
		return bigTownRanges
	case world.SmallTown:
		return smallTownRanges
	default:
		return otherRanges
	}
}

// AssignCounts returns a copy of regions with num_locations, num_characters
// and num_quests rolled from their type's ranges. Regions that already carry
// counts keep them. In debug mode every count is 1.
func AssignCounts(regions []world.Region, rng *rand.Rand, debug bool) []world.Region {
	out := make([]world.Region, len(regions))
	for i, region := range regions {
		if region.NumLocations == 0 && region.NumCharacters == 0 && region.NumQuests == 0 {
			ranges := RangesFor(region.LocationType)
			if debug {
				ranges = debugRanges
			}
			region.NumLocations = ranges.Locations.Roll(rng)
			region.NumCharacters = ranges.Characters.Roll(rng)
			region.NumQuests = ranges.Quests.Roll(rng)
		}
		out[i] = region
	}
	return out
}

// CallEstimate is the advisory request count shown before a run.
type CallEstimate struct {
	Regions    int
	Locations  int
	Characters int
	TextCalls  int
	ImageCalls int
}

// Total returns text and image calls combined.
func (e CallEstimate) Total() int {
	return e.TextCalls + e.ImageCalls
}

// Estimate counts the requests a run will make, repairs excluded. Each region
// costs one describe call plus one call per location, character, quest and
// encounter; with images on, every location and character plus the cover
// costs one image call.
func Estimate(regions []world.Region, images bool) CallEstimate {
	var e CallEstimate
	e.Regions = len(regions)
	for _, region := range regions {
		e.Locations += region.NumLocations
		e.Characters += region.NumCharacters
		e.TextCalls += 1 + region.NumLocations + region.NumCharacters + builder.QuestCount + builder.EncounterCount
	}
	if images {
		e.ImageCalls = e.Locations + e.Characters
		if len(regions) > 0 {
			e.ImageCalls++
		}
	}
	return e
}
