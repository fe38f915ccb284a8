// Package artifact defines the filesystem-level contracts for everything a
// generation run persists. Each artifact has a stable identifier, kind, and a
// resolver that maps to the actual path within the output tree.

package artifact

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kingrea/worldforge/internal/workflow"
)

// Kind captures the storage shape and serialization format for an artifact.
type Kind string

const (
	// KindDocument represents a markdown document with YAML frontmatter.
	KindDocument Kind = "document"
	// KindJSON represents a JSON document enriched with a _worldforge metadata block.
	KindJSON Kind = "json"
	// KindDirectory represents a directory that must exist.
	KindDirectory Kind = "directory"
)

// PathResolver returns the fully-qualified path to an artifact for the current output tree.
type PathResolver func(*workflow.Workflow) string

// ArtifactRef declares a stable identifier and metadata for an artifact.
type ArtifactRef struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	path        PathResolver
}

// Path resolves the artifact path for the provided output tree.
func (r ArtifactRef) Path(wf *workflow.Workflow) string {
	if wf == nil || r.path == nil {
		return ""
	}
	return filepath.Clean(r.path(wf))
}

// Metadata captures provenance stored inside artifact frontmatter or metadata blocks.
type Metadata struct {
	ArtifactID string
	Producer   string
	Version    string
	RunID      string
	Inputs     []string
	CreatedAt  time.Time
	Checksum   string
	Notes      map[string]string
}

// WithDefaults ensures metadata carries the artifact ID and timestamps.
func (m Metadata) WithDefaults(ref ArtifactRef, now time.Time) Metadata {
	clone := m
	if clone.ArtifactID == "" {
		clone.ArtifactID = ref.ID
	}
	if clone.Version == "" {
		clone.Version = FormatVersion
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now.UTC()
	} else {
		clone.CreatedAt = clone.CreatedAt.UTC()
	}
	return clone
}

// ValidateFor ensures metadata matches the artifact contract.
func (m Metadata) ValidateFor(ref ArtifactRef) error {
	if m.ArtifactID != ref.ID {
		return fmt.Errorf("artifact: metadata id %s does not match ref %s", m.ArtifactID, ref.ID)
	}
	if m.Producer == "" {
		return fmt.Errorf("artifact: producer is required for %s", ref.ID)
	}
	if m.Version == "" {
		return fmt.Errorf("artifact: version is required for %s", ref.ID)
	}
	return nil
}

// FormatVersion is stamped on artifacts that do not set their own version.
const FormatVersion = "1"

// State captures the readiness of an artifact on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// CheckResult captures Store.Check results.
type CheckResult struct {
	Ref      ArtifactRef
	Path     string
	State    State
	Metadata *Metadata
	Err      error
}

// newDocRef creates a markdown document reference helper.
func newDocRef(id, name, desc string, resolver PathResolver) ArtifactRef {
	return ArtifactRef{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        KindDocument,
		path:        resolver,
	}
}

// newJSONRef creates a JSON artifact reference helper.
func newJSONRef(id, name, desc string, resolver PathResolver) ArtifactRef {
	return ArtifactRef{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        KindJSON,
		path:        resolver,
	}
}

// newDirectoryRef creates a directory reference helper.
func newDirectoryRef(id, name, desc string, resolver PathResolver) ArtifactRef {
	return ArtifactRef{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        KindDirectory,
		path:        resolver,
	}
}

// RegionDocument returns the reference for one rendered region document. The
// ID depends on the region slug.
func RegionDocument(slug string) ArtifactRef {
	return newDocRef("region-"+slug, "Region Document", "regions/"+slug+".md rendered from the expanded world", func(wf *workflow.Workflow) string {
		return wf.RegionDocumentPath(slug)
	})
}

// Canonical artifact references for a generation run.
var (
	MapDescription = newJSONRef("map-description", "Map Description", "map_description.json with the regions identified on the source map", func(wf *workflow.Workflow) string {
		return wf.MapDescriptionPath()
	})
	TextWaypoint = newJSONRef("waypoint-text", "Text Waypoint", "waypoint_text.json snapshot written after the text phase", func(wf *workflow.Workflow) string {
		return wf.TextWaypointPath()
	})
	IllustratedWaypoint = newJSONRef("waypoint-illustrated", "Illustrated Waypoint", "waypoint_illustrated.json snapshot written after the illustration phase", func(wf *workflow.Workflow) string {
		return wf.IllustratedWaypointPath()
	})
	ExpandedWorld = newJSONRef("expanded-world", "Expanded World", "expanded_world.json holding every built region", func(wf *workflow.Workflow) string {
		return wf.ExpandedWorldPath()
	})

	CharacterImages = newDirectoryRef("character-images", "Character Portraits", "images/characters folder storing portraits", func(wf *workflow.Workflow) string {
		return wf.ImageDir(workflow.CharacterImagesDir)
	})
	LocationImages = newDirectoryRef("location-images", "Location Illustrations", "images/locations folder storing location art", func(wf *workflow.Workflow) string {
		return wf.ImageDir(workflow.LocationImagesDir)
	})
	CoverImages = newDirectoryRef("cover-images", "Cover Art", "images/cover folder storing the world cover", func(wf *workflow.Workflow) string {
		return wf.ImageDir(workflow.CoverImagesDir)
	})
)
