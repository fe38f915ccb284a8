// Package prompts builds the instruction text sent to the content service.
// Every builder is a pure function of the region, the world context and the
// style settings so the same inputs always produce the same request.
package prompts

import (
	"fmt"
	"strings"

	"github.com/kingrea/worldforge/internal/config"
	"github.com/kingrea/worldforge/internal/world"
)

// Reply shapes requested from the model. Field names match what the builder
// decodes.
const (
	describeShape  = `{"description": "1-2 paragraphs expanding on the short description", "lore": "1 paragraph of history, rumours or legends tied to this region"}`
	locationShape  = `{"name": "the name of the location", "description": "1 paragraph of detailed description of this place", "lore": "1 paragraph about the history, mood or unique quality of this place", "other": {}}`
	characterShape = `{"name": "the name of the character", "description": "1 paragraph description of the character's physical appearance and visible qualities", "personality": "1-2 sentences describing the character's demeanor, worldview or mood", "race": "the character's race, chosen from those available in the world description", "class": "one of pauper, merchant, military, nobility or other", "gender": "one of M, F or unknown", "other": {}}`
	questShape     = `{"title": "a short title for the quest", "description": "1 paragraph description of the quest", "other": {}}`
	encounterShape = `{"encounter": {"title": "a short title, possibly with irony, puns or alliteration", "description": "1 paragraph description of a random encounter or event that requires the party to engage", "opportunity": "1-2 sentences describing why the party should or should not get involved", "other": {}}}`
)

// Extract is the fixed instruction sent with the map image.
func Extract() string {
	return "Review this map carefully and create a json file that contains the names and brief descriptions of the locations. " +
		"Specifically, look for big and small towns, and named natural features.\n" +
		"Return a single JSON object of the form {\"regions\": [ ... ]} where each item has exactly these keys:\n" +
		"- LocationName, LocationType, ShortDescription\n\n" +
		"* The LocationType should be one of these items [ bigTown, smallTown, NaturalFeature, other ]. " +
		"The ShortDescription should be minimal. One to two lines at most."
}

// Context is the run-wide material every region prompt interpolates.
type Context struct {
	World    string
	Settings config.Settings
}

func (c Context) header(region world.Region) string {
	var b strings.Builder
	if text := strings.TrimSpace(c.World); text != "" {
		fmt.Fprintf(&b, "World description:\n%s\n\n", text)
	}
	fmt.Fprintf(&b, "Location Name: %s\nLocation Type: %s\nShort Description: %s\n", region.LocationName, region.LocationType, region.ShortDescription)
	if region.Description != "" {
		fmt.Fprintf(&b, "Region Description: %s\n", region.Description)
	}
	if region.Lore != "" {
		fmt.Fprintf(&b, "Region Lore: %s\n", region.Lore)
	}
	return b.String()
}

func (c Context) style() string {
	if style := strings.TrimSpace(c.Settings.WritingStyle); style != "" {
		return fmt.Sprintf("Writing style: %s\n", style)
	}
	return ""
}

func instruct(body, shape string) string {
	return fmt.Sprintf("INSTRUCTIONS: %s\nRespond only with valid JSON using this structure:\n%s\n", body, shape)
}

// Describe asks for the expanded description and lore of a region.
func Describe(c Context, region world.Region) string {
	return c.header(region) + c.style() + "\n" + instruct(
		"Write a creatively written description that embellishes on the short description of this region, and a paragraph of lore that ties it to the wider world.",
		describeShape,
	)
}

// Location asks for the n-th significant location of a region.
func Location(c Context, region world.Region, n int) string {
	var b strings.Builder
	b.WriteString(c.header(region))
	b.WriteString(c.style())
	if names := region.LocationNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Locations already created here (do not repeat them): %s\n", strings.Join(names, ", "))
	}
	b.WriteString("\n")
	b.WriteString(instruct(
		fmt.Sprintf("Create significant location %d of %d appropriate for existing in this region. Describe its physical appearance and give it a piece of lore.", n, max(region.NumLocations, n)),
		locationShape,
	))
	return b.String()
}

// Character asks for the n-th inhabitant of a region.
func Character(c Context, region world.Region, n int) string {
	var b strings.Builder
	b.WriteString(c.header(region))
	b.WriteString(c.style())
	if names := region.LocationNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Notable locations: %s\n", strings.Join(names, ", "))
	}
	if names := region.CharacterNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Characters already created here (do not repeat them): %s\n", strings.Join(names, ", "))
	}
	b.WriteString("\n")
	b.WriteString(instruct(
		fmt.Sprintf("Create NPC character %d of %d appropriate for the context who dwells in this region. Give a physical description and a brief personality.", n, max(region.NumCharacters, n)),
		characterShape,
	))
	return b.String()
}

// Quest asks for the n-th quest hook. The prompt carries every character's
// personality and every location's lore generated so far.
func Quest(c Context, region world.Region, n, total int) string {
	var b strings.Builder
	b.WriteString(c.header(region))
	b.WriteString(c.style())
	if names := region.CharacterNames(); len(names) > 0 {
		b.WriteString("\nCharacters:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %s\n", name, region.Characters[name].Personality)
		}
	}
	if names := region.LocationNames(); len(names) > 0 {
		b.WriteString("\nLocations:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %s\n", name, region.Locations[name].Lore)
		}
	}
	if len(region.Quests) > 0 {
		titles := make([]string, 0, len(region.Quests))
		for _, q := range region.Quests {
			titles = append(titles, q.Title)
		}
		fmt.Fprintf(&b, "\nQuests already written (write a different one): %s\n", strings.Join(titles, "; "))
	}
	b.WriteString("\n")
	b.WriteString(instruct(
		fmt.Sprintf("Write quest %d of %d: a short dilemma that draws on the personalities of the characters and the lore of the locations above. The party should face a real choice.", n, total),
		questShape,
	))
	return b.String()
}

// Encounter asks for the n-th entry of the random encounter table.
func Encounter(c Context, region world.Region, n, total int) string {
	var b strings.Builder
	b.WriteString(c.header(region))
	b.WriteString(c.style())
	if len(region.RandomEncounterTable) > 0 {
		titles := make([]string, 0, len(region.RandomEncounterTable))
		for _, e := range region.RandomEncounterTable {
			titles = append(titles, e.Title)
		}
		fmt.Fprintf(&b, "Encounters already on the table (write a different one): %s\n", strings.Join(titles, "; "))
	}
	b.WriteString("\n")
	b.WriteString(instruct(
		fmt.Sprintf("Write entry %d of %d of a random encounter table for travellers in this region: a one-off situation the party stumbles into.", n, total),
		encounterShape,
	))
	return b.String()
}

// Portrait describes a character illustration.
func Portrait(s config.Settings, regionName, name string, character world.Character) string {
	parts := []string{fmt.Sprintf("Portrait of %s, an inhabitant of %s.", name, regionName)}
	if who := strings.TrimSpace(strings.Join(nonEmpty(character.Gender, character.Race, character.Class), " ")); who != "" {
		parts = append(parts, fmt.Sprintf("(%s)", who))
	}
	parts = append(parts, character.Description)
	return withStyle(parts, s.VisualStyle)
}

// LocationScene describes a location illustration.
func LocationScene(s config.Settings, regionName, name string, location world.Location) string {
	parts := []string{fmt.Sprintf("%s, a place in %s.", name, regionName), location.Description}
	return withStyle(parts, s.VisualStyle)
}

// Cover describes the world book cover. It names the first few regions so the
// image reflects the map.
func Cover(s config.Settings, w world.World, worldContext string) string {
	const maxNames = 5
	names := make([]string, 0, maxNames)
	for _, region := range w.Regions {
		if len(names) == maxNames {
			break
		}
		names = append(names, region.LocationName)
	}
	parts := []string{"Book cover illustration for a tabletop role-playing setting."}
	if len(names) > 0 {
		parts = append(parts, "Featuring "+strings.Join(names, ", ")+".")
	}
	if summary := firstSentence(worldContext); summary != "" {
		parts = append(parts, summary)
	}
	style := s.CoverStyle
	if strings.TrimSpace(style) == "" {
		style = s.VisualStyle
	}
	return withStyle(parts, style)
}

func withStyle(parts []string, style string) string {
	if style = strings.TrimSpace(style); style != "" {
		parts = append(parts, "Style: "+style+".")
	}
	return strings.Join(nonEmpty(parts...), " ")
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?\n"); i >= 0 {
		return strings.TrimSpace(text[:i+1])
	}
	return text
}
