package extract

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/kingrea/worldforge/internal/artifact"
	"github.com/kingrea/worldforge/internal/content"
	"github.com/kingrea/worldforge/internal/content/contenttest"
	"github.com/kingrea/worldforge/internal/workflow"
	"github.com/kingrea/worldforge/internal/world"
)

func newStore(t *testing.T) *artifact.Store {
	t.Helper()
	wf := workflow.New(t.TempDir())
	if err := wf.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return artifact.NewStore(wf)
}

var mapImage = content.Image{Data: []byte("jpeg"), MIMEType: "image/jpeg"}

func TestIdentifyRegionsPersistsAndReloads(t *testing.T) {
	store := newStore(t)
	stub := &contenttest.Stub{}
	ex := New(stub, store, WithRun("run-1", "map.jpg"))

	got, err := ex.IdentifyRegions(context.Background(), mapImage)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if len(got.Regions) != 2 || got.Regions[0].LocationName != "Port Ashen" || got.Regions[1].LocationType != world.NaturalFeature {
		t.Fatalf("regions = %+v", got.Regions)
	}
	calls := stub.TextCalls()
	if len(calls) != 1 || calls[0].Image == nil || calls[0].Step != content.StepExtract {
		t.Fatalf("calls = %+v", calls)
	}
	if !ex.Exists() {
		t.Fatalf("map description should be persisted")
	}
	_, meta, err := store.Read(artifact.MapDescription)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if meta.RunID != "run-1" || meta.Producer != producer {
		t.Fatalf("meta = %+v", meta)
	}

	raw, err := os.ReadFile(store.Workflow().RawMapDescriptionPath())
	if err != nil || string(raw) != contenttest.Canned(calls[0]) {
		t.Fatalf("raw reply not kept verbatim: %v %q", err, raw)
	}

	reloaded, err := New(&contenttest.Stub{}, store).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(reloaded.Regions) != 2 || reloaded.Regions[0].ShortDescription != "a fog-bound fishing town" {
		t.Fatalf("reloaded = %+v", reloaded.Regions)
	}
}

func TestIdentifyRegionsInvalidJSONIsFatalWithoutRepair(t *testing.T) {
	store := newStore(t)
	stub := &contenttest.Stub{Text: func(req content.TextRequest) (string, error) {
		return "Sorry, I cannot read maps.", nil
	}}
	_, err := New(stub, store).IdentifyRegions(context.Background(), mapImage)
	var parseErr *content.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if calls := len(stub.TextCalls()); calls != 1 {
		t.Fatalf("extraction must not be repaired, calls = %d", calls)
	}
	raw, readErr := os.ReadFile(store.Workflow().InvalidMapDescriptionPath())
	if readErr != nil || !strings.Contains(string(raw), "cannot read maps") {
		t.Fatalf("raw reply not kept: %v %q", readErr, raw)
	}
	if New(stub, store).Exists() {
		t.Fatalf("invalid reply must not be persisted as the map description")
	}
}

func TestIdentifyRegionsAcceptsAliasesAndCoercesTypes(t *testing.T) {
	store := newStore(t)
	stub := &contenttest.Stub{Text: func(req content.TextRequest) (string, error) {
		return "```json\n[" +
			`{"LocationName":"Ironhold","LocationType":"city","ShortDescription":"a walled city"},` +
			`{"LocationName":"The Spire","LocationType":"ruin","ShortDescription":"a broken tower"},` +
			`{"LocationName":"","LocationType":"other","ShortDescription":"unnamed"},` +
			`{"LocationName":"ironhold","LocationType":"smallTown","ShortDescription":"duplicate"}` +
			"]\n```", nil
	}}
	got, err := New(stub, store).IdentifyRegions(context.Background(), mapImage)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if len(got.Regions) != 2 {
		t.Fatalf("regions = %+v", got.Regions)
	}
	if got.Regions[0].LocationType != world.BigTown {
		t.Fatalf("city should map to bigTown, got %q", got.Regions[0].LocationType)
	}
	if got.Regions[1].LocationType != world.Other {
		t.Fatalf("unknown type should be coerced to other, got %q", got.Regions[1].LocationType)
	}
}

func TestIdentifyRegionsEmptyIsAnError(t *testing.T) {
	for name, reply := range map[string]string{
		"empty list": `{"regions":[]}`,
		"nameless":   `{"regions":[{"LocationName":"  ","LocationType":"ruin"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			stub := &contenttest.Stub{Text: func(req content.TextRequest) (string, error) {
				return reply, nil
			}}
			ex := New(stub, store)
			if _, err := ex.IdentifyRegions(context.Background(), mapImage); !errors.Is(err, ErrNoRegions) {
				t.Fatalf("expected ErrNoRegions, got %v", err)
			}
			if ex.Exists() {
				t.Fatalf("an empty map description must not be persisted")
			}
			if _, err := os.Stat(store.Workflow().MapDescriptionPath()); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("map description written: %v", err)
			}
		})
	}
}

func TestExistsTreatsEmptyDescriptionAsMissing(t *testing.T) {
	store := newStore(t)
	meta := artifact.Metadata{Producer: "extract"}
	if err := store.Write(artifact.MapDescription, []byte(`{"regions":[]}`), meta); err != nil {
		t.Fatalf("write: %v", err)
	}
	ex := New(&contenttest.Stub{}, store)
	if ex.Exists() {
		t.Fatalf("a description without regions should count as missing")
	}
	if _, err := ex.Load(); !errors.Is(err, ErrNoRegions) {
		t.Fatalf("expected ErrNoRegions, got %v", err)
	}
}

func TestIdentifyRegionsTransportError(t *testing.T) {
	boom := errors.New("dial tcp: refused")
	stub := &contenttest.Stub{Text: func(req content.TextRequest) (string, error) { return "", boom }}
	if _, err := New(stub, newStore(t)).IdentifyRegions(context.Background(), mapImage); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
