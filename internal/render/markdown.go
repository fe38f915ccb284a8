// Package render turns an expanded world into player-facing documents: one
// markdown file per region and a PDF world book.
package render

import (
	"fmt"
	"path"
	"strings"

	"github.com/kingrea/worldforge/internal/world"
)

const missing = "No description available."

// Markdown renders one region document body. The output depends only on the
// region, so rendering an unchanged world twice yields identical bytes.
func Markdown(region world.Region) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", region.LocationName)
	if region.ShortDescription != "" {
		fmt.Fprintf(&b, "*%s*\n\n", oneLine(region.ShortDescription))
	}

	section(&b, "Description", or(region.Description))
	if region.Lore != "" {
		section(&b, "Lore", region.Lore)
	}

	b.WriteString("## Locations\n\n")
	for _, name := range region.LocationNames() {
		loc := region.Locations[name]
		fmt.Fprintf(&b, "### %s\n\n", name)
		if link := imageLink(loc.Illustration); link != "" {
			fmt.Fprintf(&b, "![%s](%s)\n\n", name, link)
		}
		fmt.Fprintf(&b, "%s\n\n", or(loc.Description))
		if loc.Lore != "" {
			fmt.Fprintf(&b, "**Lore:** %s\n\n", loc.Lore)
		}
	}

	b.WriteString("## Characters\n\n")
	for _, name := range region.CharacterNames() {
		char := region.Characters[name]
		fmt.Fprintf(&b, "### %s\n\n", name)
		if summary := identity(char); summary != "" {
			fmt.Fprintf(&b, "*%s*\n\n", summary)
		}
		if link := imageLink(char.Portrait); link != "" {
			fmt.Fprintf(&b, "![%s](%s)\n\n", name, link)
		}
		fmt.Fprintf(&b, "**Physical Description:** %s\n\n", or(char.Description))
		fmt.Fprintf(&b, "**Personality:** %s\n\n", or(char.Personality))
	}

	b.WriteString("## Quests\n\n")
	for _, quest := range region.Quests {
		title := quest.Title
		if title == "" {
			title = fmt.Sprintf("Quest %d", quest.Index)
		}
		fmt.Fprintf(&b, "### %d. %s\n\n%s\n\n", quest.Index, title, or(quest.Description))
	}

	b.WriteString("## Random Encounters\n\n")
	for _, enc := range region.RandomEncounterTable {
		line := oneLine(or(enc.Description))
		if enc.Title != "" {
			line = fmt.Sprintf("**%s.** %s", oneLine(enc.Title), line)
		}
		if enc.Opportunity != "" {
			line += fmt.Sprintf(" *Opportunity:* %s", oneLine(enc.Opportunity))
		}
		fmt.Fprintf(&b, "%d. %s\n", enc.Index, line)
	}
	return []byte(b.String())
}

func section(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "## %s\n\n%s\n\n", title, body)
}

// identity joins the optional character traits, e.g. "female elf ranger".
func identity(c world.Character) string {
	var parts []string
	for _, part := range []string{c.Gender, c.Race, c.Class} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// imageLink maps a stored image reference to a link usable from regions/.
// Stored paths are relative to the output root; URLs pass through.
func imageLink(ref string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	default:
		return path.Join("..", ref)
	}
}

func or(value string) string {
	if strings.TrimSpace(value) == "" {
		return missing
	}
	return strings.TrimSpace(value)
}

func oneLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
