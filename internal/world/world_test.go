package world

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func builtRegion() Region {
	return Region{
		LocationName:     "Port Ashen",
		LocationType:     SmallTown,
		ShortDescription: "a fog-bound fishing town",
		NumLocations:     2,
		NumCharacters:    1,
		NumQuests:        1,
		Description:      "Grey piers lean into the tide.",
		Lore:             "Founded by smugglers.",
		Locations: map[string]Location{
			"The Salt Lantern": {Description: "A tavern", Lore: "Never closes", Illustration: "images/locations/a.png"},
			"Harbor Watch":     {Description: "A tower", Lore: "Built twice"},
		},
		Characters: map[string]Character{
			"Maren Tull": {Description: "Tall", Personality: "Wry", Race: "human", Class: "merchant", Gender: "F", Portrait: "images/characters/b.png"},
		},
		Quests: []Quest{{Index: 1, Title: "Lost nets", Description: "Find them"}},
		RandomEncounterTable: []Encounter{
			{Index: 1, Title: "Gulls", Description: "Birds attack", Opportunity: "Feathers"},
		},
	}
}

func TestRegionJSONRoundTripKeepsEveryField(t *testing.T) {
	region := builtRegion()
	data, err := json.Marshal(region)
	if err != nil {
		t.Fatalf("marshal region: %v", err)
	}
	var parsed Region
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal region: %v", err)
	}
	if !reflect.DeepEqual(region, parsed) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", parsed, region)
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("unmarshal generic: %v", err)
	}
	again, err := json.Marshal(parsed)
	if err != nil {
		t.Fatalf("marshal parsed: %v", err)
	}
	var genericAgain map[string]any
	if err := json.Unmarshal(again, &genericAgain); err != nil {
		t.Fatalf("unmarshal generic again: %v", err)
	}
	if !reflect.DeepEqual(generic, genericAgain) {
		t.Fatalf("generic mapping changed across round trip")
	}
}

func TestRegionUsesContractKeys(t *testing.T) {
	data, err := json.Marshal(builtRegion())
	if err != nil {
		t.Fatalf("marshal region: %v", err)
	}
	for _, key := range []string{"LocationName", "LocationType", "ShortDescription", "num_locations", "num_characters", "num_quests", "random_encounter_table", "portrait", "illustration"} {
		if !strings.Contains(string(data), `"`+key+`"`) {
			t.Fatalf("encoded region missing key %q: %s", key, data)
		}
	}
}

func TestDecodeAcceptsExtractionShapes(t *testing.T) {
	cases := map[string]string{
		"regions":   `{"regions":[{"LocationName":"A","LocationType":"bigTown","ShortDescription":"x"}]}`,
		"locations": `{"locations":[{"LocationName":"A","LocationType":"bigTown","ShortDescription":"x"}]}`,
		"array":     `[{"LocationName":"A","LocationType":"bigTown","ShortDescription":"x"}]`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			w, err := Decode([]byte(input))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(w.Regions) != 1 || w.Regions[0].LocationName != "A" || w.Regions[0].LocationType != BigTown {
				t.Fatalf("unexpected world: %+v", w)
			}
		})
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNormalizeCoercesUnknownTypesAndDropsNameless(t *testing.T) {
	w := World{Regions: []Region{
		{LocationName: " Dunmere ", LocationType: "Big Town", ShortDescription: "walls"},
		{LocationName: "", LocationType: BigTown},
		{LocationName: "Glass Dunes", LocationType: "desert", ShortDescription: "sand"},
	}}
	out, coerced := Normalize(w)
	if len(out.Regions) != 2 {
		t.Fatalf("regions = %d, want 2", len(out.Regions))
	}
	if out.Regions[0].LocationName != "Dunmere" || out.Regions[0].LocationType != BigTown {
		t.Fatalf("unexpected first region: %+v", out.Regions[0])
	}
	if out.Regions[1].LocationType != Other {
		t.Fatalf("unknown type not coerced: %q", out.Regions[1].LocationType)
	}
	if len(coerced) != 1 || coerced[0] != "Glass Dunes" {
		t.Fatalf("coerced = %v", coerced)
	}
}

func TestValidateWorldReportsViolations(t *testing.T) {
	w := World{Regions: []Region{
		{LocationName: "A", LocationType: "castle", ShortDescription: "x"},
		{LocationName: "a", LocationType: Other, ShortDescription: "y"},
		{},
	}}
	errs := ValidateWorld(w)
	joined := ""
	for _, err := range errs {
		joined += err.Error() + "\n"
	}
	for _, want := range []string{`unknown LocationType "castle"`, "duplicates regions[0]", "regions[2]: LocationName is required"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in:\n%s", want, joined)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Port Ashen":          "port-ashen",
		"  The Salt--Marsh! ": "the-salt-marsh",
		"":                    "region",
		"Åsgard 2":            "sgard-2",
	}
	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}
