package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/kingrea/worldforge/internal/artifact"
	"github.com/kingrea/worldforge/internal/logbook"
	"github.com/kingrea/worldforge/internal/world"
)

const producer = "render"

// DefaultTitle is used on the world book cover when no title is set.
const DefaultTitle = "Worldforge"

// Renderer writes region documents and the world book into an output tree.
type Renderer struct {
	store *artifact.Store
	title string
	log   logbook.Logger
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithTitle sets the world book title.
func WithTitle(title string) Option {
	return func(r *Renderer) {
		if strings.TrimSpace(title) != "" {
			r.title = strings.TrimSpace(title)
		}
	}
}

// WithLogger routes warnings to log.
func WithLogger(log logbook.Logger) Option {
	return func(r *Renderer) {
		if log != nil {
			r.log = log
		}
	}
}

// New returns a Renderer writing through store.
func New(store *artifact.Store, opts ...Option) *Renderer {
	r := &Renderer{store: store, title: DefaultTitle, log: logbook.Discard}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report lists the files a render produced.
type Report struct {
	Documents []string
	Book      string
}

// Render writes every region document followed by the world book.
func (r *Renderer) Render(w world.World) (Report, error) {
	docs, err := r.Documents(w)
	if err != nil {
		return Report{}, err
	}
	book, err := r.Book(w)
	if err != nil {
		return Report{Documents: docs}, err
	}
	return Report{Documents: docs, Book: book}, nil
}

// Documents writes regions/<slug>.md for every region and returns the paths.
// Regions whose slugs collide get a numeric suffix.
func (r *Renderer) Documents(w world.World) ([]string, error) {
	stamp := generatedAt(w)
	seen := map[string]int{}
	paths := make([]string, 0, len(w.Regions))
	for _, region := range ordered(w.Regions) {
		slug := region.Slug()
		seen[slug]++
		if n := seen[slug]; n > 1 {
			slug = fmt.Sprintf("%s-%d", slug, n)
		}
		ref := artifact.RegionDocument(slug)
		meta := artifact.Metadata{
			Producer:  producer,
			CreatedAt: stamp,
			Notes:     map[string]string{"region": region.LocationName, "type": string(region.LocationType)},
		}
		if err := r.store.Write(ref, Markdown(region), meta); err != nil {
			return paths, fmt.Errorf("render: write %s: %w", region.LocationName, err)
		}
		paths = append(paths, ref.Path(r.store.Workflow()))
	}
	return paths, nil
}

// Book writes the PDF world book and returns its path.
func (r *Renderer) Book(w world.World) (string, error) {
	wf := r.store.Workflow()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(generatedAt(w))
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(r.title, true)
	pdf.SetCreator("worldforge", true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 28)
	pdf.Ln(40)
	pdf.CellFormat(0, 14, tr(r.title), "", 1, "C", false, 0, "")
	r.image(pdf, wf.Root(), w.Cover, 40, 130)

	for _, region := range ordered(w.Regions) {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 20)
		pdf.MultiCell(0, 10, tr(region.LocationName), "", "L", false)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, tr(string(region.LocationType)+" - "+oneLine(region.ShortDescription)), "", "L", false)
		pdf.Ln(3)
		paragraph(pdf, tr, "", or(region.Description))
		if region.Lore != "" {
			paragraph(pdf, tr, "Lore", region.Lore)
		}

		heading(pdf, tr, "Locations")
		for _, name := range region.LocationNames() {
			loc := region.Locations[name]
			subheading(pdf, tr, name)
			r.image(pdf, wf.Root(), loc.Illustration, pdf.GetX(), 60)
			paragraph(pdf, tr, "", or(loc.Description))
			if loc.Lore != "" {
				paragraph(pdf, tr, "Lore", loc.Lore)
			}
		}

		heading(pdf, tr, "Characters")
		for _, name := range region.CharacterNames() {
			char := region.Characters[name]
			label := name
			if summary := identity(char); summary != "" {
				label += " (" + summary + ")"
			}
			subheading(pdf, tr, label)
			r.image(pdf, wf.Root(), char.Portrait, pdf.GetX(), 40)
			paragraph(pdf, tr, "Physical Description", or(char.Description))
			paragraph(pdf, tr, "Personality", or(char.Personality))
		}

		heading(pdf, tr, "Quests")
		for _, quest := range region.Quests {
			subheading(pdf, tr, fmt.Sprintf("%d. %s", quest.Index, quest.Title))
			paragraph(pdf, tr, "", or(quest.Description))
		}

		heading(pdf, tr, "Random Encounters")
		for _, enc := range region.RandomEncounterTable {
			text := oneLine(or(enc.Description))
			if enc.Opportunity != "" {
				text += " Opportunity: " + oneLine(enc.Opportunity)
			}
			paragraph(pdf, tr, fmt.Sprintf("%d", enc.Index), text)
		}
	}

	if err := pdf.Error(); err != nil {
		return "", fmt.Errorf("render: build world book: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", fmt.Errorf("render: encode world book: %w", err)
	}
	path := wf.WorldBookPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("render: write world book: %w", err)
	}
	return path, nil
}

// image embeds a stored image when it is a local file gofpdf can decode.
// Anything else is skipped with a warning.
func (r *Renderer) image(pdf *gofpdf.Fpdf, root, ref string, x, width float64) {
	if ref == "" || strings.Contains(ref, "://") {
		return
	}
	kind := ""
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".png":
		kind = "PNG"
	case ".jpg", ".jpeg":
		kind = "JPG"
	case ".gif":
		kind = "GIF"
	default:
		r.log.Warn("render: skipping %s: unsupported image format", ref)
		return
	}
	full := filepath.Join(root, filepath.FromSlash(ref))
	data, err := os.ReadFile(full)
	if err != nil {
		r.log.Warn("render: skipping %s: %v", ref, err)
		return
	}
	opts := gofpdf.ImageOptions{ImageType: kind, ReadDpi: true}
	info := pdf.RegisterImageOptionsReader(ref, opts, bytes.NewReader(data))
	if pdf.Err() {
		r.log.Warn("render: skipping %s: %v", ref, pdf.Error())
		pdf.ClearError()
		return
	}
	if info == nil {
		return
	}
	pdf.ImageOptions(ref, x, pdf.GetY(), width, 0, true, opts, 0, "")
	pdf.Ln(2)
}

func heading(pdf *gofpdf.Fpdf, tr func(string) string, text string) {
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 15)
	pdf.MultiCell(0, 8, tr(text), "B", "L", false)
	pdf.Ln(1)
}

func subheading(pdf *gofpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(0, 6, tr(text), "", "L", false)
}

func paragraph(pdf *gofpdf.Fpdf, tr func(string) string, label, text string) {
	if label != "" {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Write(5, tr(label+": "))
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.Write(5, tr(strings.TrimSpace(text)))
	pdf.Ln(7)
}

// ordered sorts regions by name so output does not depend on completion order.
func ordered(regions []world.Region) []world.Region {
	out := append([]world.Region(nil), regions...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].LocationName) < strings.ToLower(out[j].LocationName)
	})
	return out
}

// generatedAt returns the world's build stamp, or the Unix epoch when the
// world was never stamped, so rendering never reads the clock.
func generatedAt(w world.World) time.Time {
	if stamp, err := time.Parse(time.RFC3339, w.GeneratedAt); err == nil {
		return stamp.UTC()
	}
	return time.Unix(0, 0).UTC()
}
