// Package world defines the region and world records that flow through the
// generator. The JSON field names are the on-disk contract shared by the map
// extraction, the waypoint snapshots and the final expanded world.
package world

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// LocationType classifies a region identified on the source map.
type LocationType string

const (
	BigTown        LocationType = "bigTown"
	SmallTown      LocationType = "smallTown"
	NaturalFeature LocationType = "NaturalFeature"
	Other          LocationType = "other"
)

// Known reports whether the type is one of the recognized map categories.
func (t LocationType) Known() bool {
	switch t {
	case BigTown, SmallTown, NaturalFeature, Other:
		return true
	default:
		return false
	}
}

// ParseLocationType maps loosely formatted model output onto a LocationType.
// Unrecognized values are returned unchanged so callers can decide how to
// treat them.
func ParseLocationType(value string) LocationType {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(trimmed)) {
	case "bigtown", "city", "largetown":
		return BigTown
	case "smalltown", "village", "town":
		return SmallTown
	case "naturalfeature", "feature":
		return NaturalFeature
	case "other":
		return Other
	default:
		return LocationType(trimmed)
	}
}

// Location is one generated point of interest inside a region.
type Location struct {
	Description  string         `json:"description"`
	Lore         string         `json:"lore"`
	Illustration string         `json:"illustration,omitempty"`
	Other        map[string]any `json:"other,omitempty"`
}

// Character is one generated inhabitant of a region.
type Character struct {
	Description string         `json:"description"`
	Personality string         `json:"personality"`
	Race        string         `json:"race,omitempty"`
	Class       string         `json:"class,omitempty"`
	Gender      string         `json:"gender,omitempty"`
	Portrait    string         `json:"portrait,omitempty"`
	Other       map[string]any `json:"other,omitempty"`
}

// Quest is a short dilemma hook. Index is 1-based.
type Quest struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Encounter is one row of a region's random encounter table. Index is 1-based.
type Encounter struct {
	Index       int    `json:"index"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
	Opportunity string `json:"opportunity"`
}

// Region is a named area of the world. The first three fields come from map
// extraction; the counts are rolled once before building and the remaining
// fields are filled by the region builder.
type Region struct {
	LocationName     string       `json:"LocationName"`
	LocationType     LocationType `json:"LocationType"`
	ShortDescription string       `json:"ShortDescription"`

	NumLocations  int `json:"num_locations,omitempty"`
	NumCharacters int `json:"num_characters,omitempty"`
	NumQuests     int `json:"num_quests,omitempty"`

	Description          string               `json:"description,omitempty"`
	Lore                 string               `json:"lore,omitempty"`
	Locations            map[string]Location  `json:"locations,omitempty"`
	Characters           map[string]Character `json:"characters,omitempty"`
	Quests               []Quest              `json:"quests,omitempty"`
	RandomEncounterTable []Encounter          `json:"random_encounter_table,omitempty"`
}

// Built reports whether the region carries builder output.
func (r Region) Built() bool {
	return r.Description != "" && len(r.Quests) > 0 && len(r.RandomEncounterTable) > 0
}

// LocationNames returns location keys in sorted order.
func (r Region) LocationNames() []string {
	names := make([]string, 0, len(r.Locations))
	for name := range r.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CharacterNames returns character keys in sorted order.
func (r Region) CharacterNames() []string {
	names := make([]string, 0, len(r.Characters))
	for name := range r.Characters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slug returns a filesystem-safe identifier derived from the region name.
func (r Region) Slug() string {
	return Slugify(r.LocationName)
}

// World is the aggregate produced by one generation run.
type World struct {
	Regions     []Region `json:"regions"`
	Cover       string   `json:"cover,omitempty"`
	GeneratedAt string   `json:"generated_at,omitempty"`
}

// Decode parses a world document. Extraction output from models is accepted in
// three shapes: {"regions": [...]}, {"locations": [...]} and a bare array.
func Decode(data []byte) (World, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var regions []Region
		if err := json.Unmarshal([]byte(trimmed), &regions); err != nil {
			return World{}, fmt.Errorf("world: decode regions: %w", err)
		}
		return World{Regions: regions}, nil
	}
	var envelope struct {
		World
		Locations []Region `json:"locations"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return World{}, fmt.Errorf("world: decode: %w", err)
	}
	out := envelope.World
	if len(out.Regions) == 0 && len(envelope.Locations) > 0 {
		out.Regions = envelope.Locations
	}
	return out, nil
}

// Encode renders the world as indented JSON.
func Encode(w World) ([]byte, error) {
	if w.Regions == nil {
		w.Regions = []Region{}
	}
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("world: encode: %w", err)
	}
	return data, nil
}

// Slugify lowercases a name and replaces everything outside [a-z0-9] with
// single dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "region"
	}
	return slug
}
