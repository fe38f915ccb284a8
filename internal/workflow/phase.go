// internal/workflow/phase.go
//
// Phase detection for a generation run.
// The phase is derived from the snapshot files present in json/, most complete
// first, so a crashed run can be picked up from its last whole-world snapshot.

package workflow

import (
	"os"
	"path/filepath"
)

// Phase represents how far a generation run progressed
type Phase int

const (
	PhaseNone Phase = iota
	PhaseExtracted
	PhaseTextBuilt
	PhaseIllustrated
	PhaseComplete
)

// String returns a human-readable name for the phase
func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "Not Started"
	case PhaseExtracted:
		return "Regions Extracted"
	case PhaseTextBuilt:
		return "Text Generated"
	case PhaseIllustrated:
		return "Illustrated"
	case PhaseComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// HasWorld reports whether the phase carries a reusable built world snapshot
func (p Phase) HasWorld() bool {
	return p >= PhaseTextBuilt
}

// DetectPhase examines the json directory to determine the current phase.
// It checks files in reverse order (most complete first).
func DetectPhase(jsonDir string) Phase {
	if fileExists(jsonDir, FileExpandedWorld) {
		return PhaseComplete
	}
	if fileExists(jsonDir, FileWaypointIllustrated) {
		return PhaseIllustrated
	}
	if fileExists(jsonDir, FileWaypointText) {
		return PhaseTextBuilt
	}
	if fileExists(jsonDir, FileMapDescription) {
		return PhaseExtracted
	}
	return PhaseNone
}

func fileExists(parts ...string) bool {
	info, err := os.Stat(filepath.Join(parts...))
	return err == nil && !info.IsDir()
}
