// internal/workflow/workflow.go
//
// Defines the output directory structure and file constants.
// Every artifact a generation run produces lives under one output root so a
// rerun can detect how far the previous run got.

package workflow

import (
	"os"
	"path/filepath"
)

// Directory names within the output root
const (
	JSONDir    = "json"
	RegionsDir = "regions"
	ImagesDir  = "images"
	LogsDir    = "logs"
	StateDir   = "state"
)

// Image subfolders, one per content type
const (
	CharacterImagesDir = "characters"
	LocationImagesDir  = "locations"
	CoverImagesDir     = "cover"
)

// File names for generation artifacts (in json/)
const (
	FileMapDescription      = "map_description.json"
	FileMapDescriptionRaw   = "map_description.raw.txt"
	FileMapDescriptionBad   = "map_description.invalid.txt"
	FileWaypointText        = "waypoint_text.json"
	FileWaypointIllustrated = "waypoint_illustrated.json"
	FileExpandedWorld       = "expanded_world.json"
)

// Other output files
const (
	FileWorldBook = "world.pdf"
	FileLog       = "worldforge.log"
	FileLedger    = "ledger.db"
)

// Workflow manages the output directory structure
type Workflow struct {
	root string
}

// New creates a new Workflow manager rooted at the output directory
func New(root string) *Workflow {
	return &Workflow{root: filepath.Clean(root)}
}

// Root returns the output root
func (w *Workflow) Root() string {
	return w.root
}

// JSONDir returns the directory holding world snapshots (json/)
func (w *Workflow) JSONDir() string {
	return filepath.Join(w.root, JSONDir)
}

// MapDescriptionPath returns the path to the raw region extraction
func (w *Workflow) MapDescriptionPath() string {
	return filepath.Join(w.JSONDir(), FileMapDescription)
}

// RawMapDescriptionPath returns where the accepted extraction reply is kept verbatim
func (w *Workflow) RawMapDescriptionPath() string {
	return filepath.Join(w.JSONDir(), FileMapDescriptionRaw)
}

// InvalidMapDescriptionPath returns where an unusable extraction response is kept
func (w *Workflow) InvalidMapDescriptionPath() string {
	return filepath.Join(w.JSONDir(), FileMapDescriptionBad)
}

// TextWaypointPath returns the snapshot written after the text phase
func (w *Workflow) TextWaypointPath() string {
	return filepath.Join(w.JSONDir(), FileWaypointText)
}

// IllustratedWaypointPath returns the snapshot written after the illustration phase
func (w *Workflow) IllustratedWaypointPath() string {
	return filepath.Join(w.JSONDir(), FileWaypointIllustrated)
}

// ExpandedWorldPath returns the path to the final world
func (w *Workflow) ExpandedWorldPath() string {
	return filepath.Join(w.JSONDir(), FileExpandedWorld)
}

// RegionsDir returns the directory holding rendered region documents
func (w *Workflow) RegionsDir() string {
	return filepath.Join(w.root, RegionsDir)
}

// RegionDocumentPath returns the markdown path for a region slug
func (w *Workflow) RegionDocumentPath(slug string) string {
	return filepath.Join(w.RegionsDir(), slug+".md")
}

// WorldBookPath returns the path to the PDF world book
func (w *Workflow) WorldBookPath() string {
	return filepath.Join(w.root, FileWorldBook)
}

// ImagesDir returns the root image directory
func (w *Workflow) ImagesDir() string {
	return filepath.Join(w.root, ImagesDir)
}

// ImageDir returns the image subfolder for a content type
func (w *Workflow) ImageDir(kind string) string {
	return filepath.Join(w.ImagesDir(), kind)
}

// LogPath returns the path to the run logbook
func (w *Workflow) LogPath() string {
	return filepath.Join(w.root, LogsDir, FileLog)
}

// LedgerPath returns the path to the sqlite run ledger
func (w *Workflow) LedgerPath() string {
	return filepath.Join(w.root, StateDir, FileLedger)
}

// CurrentPhase detects how far a previous run progressed
func (w *Workflow) CurrentPhase() Phase {
	return DetectPhase(w.JSONDir())
}

// Initialize creates the output directory structure
func (w *Workflow) Initialize() error {
	dirs := []string{
		w.JSONDir(),
		w.RegionsDir(),
		w.ImageDir(CharacterImagesDir),
		w.ImageDir(LocationImagesDir),
		w.ImageDir(CoverImagesDir),
		filepath.Join(w.root, LogsDir),
		filepath.Join(w.root, StateDir),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return nil
}

// Rel returns path relative to the output root, falling back to path itself
func (w *Workflow) Rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
