package orchestrator

import (
	"fmt"

	"github.com/kingrea/worldforge/internal/artifact"
	"github.com/kingrea/worldforge/internal/world"
)

// saveWorld writes a whole-world snapshot stamped with this run.
func (o *Orchestrator) saveWorld(ref artifact.ArtifactRef, w world.World) error {
	body, err := world.Encode(w)
	if err != nil {
		return fmt.Errorf("orchestrator: save %s: %w", ref.ID, err)
	}
	meta := artifact.Metadata{
		Producer: producer,
		RunID:    o.runID,
		Inputs:   []string{o.cfg.Inputs.ContextPath, o.cfg.Inputs.MapPath, o.cfg.Inputs.SettingsPath},
		Notes:    map[string]string{"regions": fmt.Sprintf("%d", len(w.Regions))},
	}
	if err := o.store.Write(ref, body, meta); err != nil {
		return fmt.Errorf("orchestrator: save %s: %w", ref.ID, err)
	}
	o.log.Info("orchestrator: wrote %s", o.wf.Rel(ref.Path(o.wf)))
	return nil
}

func (o *Orchestrator) loadWorld(ref artifact.ArtifactRef) (world.World, error) {
	body, meta, err := o.store.Read(ref)
	if err != nil {
		return world.World{}, fmt.Errorf("orchestrator: load %s: %w", ref.ID, err)
	}
	w, err := world.Decode(body)
	if err != nil {
		return world.World{}, fmt.Errorf("orchestrator: load %s: %w", ref.ID, err)
	}
	o.log.Info("orchestrator: loaded %s from run %s (%d region(s))", ref.ID, meta.RunID, len(w.Regions))
	return w, nil
}

// clearWaypoints removes the intermediate snapshots once the expanded world
// is on disk.
func (o *Orchestrator) clearWaypoints() error {
	for _, ref := range []artifact.ArtifactRef{artifact.TextWaypoint, artifact.IllustratedWaypoint} {
		if err := o.store.Remove(ref); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
	}
	return nil
}

// clearSnapshots forgets every built world and its images so the run starts
// again from the map description.
func (o *Orchestrator) clearSnapshots() error {
	refs := []artifact.ArtifactRef{
		artifact.ExpandedWorld,
		artifact.CharacterImages,
		artifact.LocationImages,
		artifact.CoverImages,
	}
	for _, ref := range refs {
		if err := o.store.Remove(ref); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
	}
	return o.clearWaypoints()
}
