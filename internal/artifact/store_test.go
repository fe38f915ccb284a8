package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/worldforge/internal/workflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	wf := workflow.New(t.TempDir())
	if err := wf.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return NewStore(wf, WithClock(clock))
}

func TestWriteJSONEmbedsMetadataAndReadStripsIt(t *testing.T) {
	store := newTestStore(t)
	body := []byte(`{"regions":[{"LocationName":"Port Ashen"}]}`)
	if err := store.Write(TextWaypoint, body, Metadata{Producer: "dispatch", RunID: "run-1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	check, err := store.Check(TextWaypoint)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if check.State != StateReady || check.Metadata == nil {
		t.Fatalf("unexpected check result: %+v", check)
	}
	if check.Metadata.RunID != "run-1" || check.Metadata.Checksum == "" {
		t.Fatalf("metadata not persisted: %+v", check.Metadata)
	}
	raw, err := os.ReadFile(check.Path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"_worldforge"`)) {
		t.Fatalf("metadata block missing: %s", raw)
	}

	got, meta, err := store.Read(TextWaypoint)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if meta.Producer != "dispatch" {
		t.Fatalf("producer = %q", meta.Producer)
	}
	var payload map[string]any
	if err := json.Unmarshal(got, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := payload["_worldforge"]; ok {
		t.Fatalf("read body still carries metadata")
	}
	if _, ok := payload["regions"]; !ok {
		t.Fatalf("read body lost payload: %s", got)
	}
}

func TestCheckReportsMissingAndInvalid(t *testing.T) {
	store := newTestStore(t)
	check, err := store.Check(ExpandedWorld)
	if err != nil || check.State != StateMissing {
		t.Fatalf("expected missing, got %+v (%v)", check, err)
	}
	path := ExpandedWorld.Path(store.Workflow())
	if err := os.WriteFile(path, []byte(`{"regions":[]}`), 0o644); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	check, err = store.Check(ExpandedWorld)
	if err == nil || check.State != StateInvalid {
		t.Fatalf("expected invalid, got %+v (%v)", check, err)
	}
}

func TestWriteRejectsMetadataWithoutProducer(t *testing.T) {
	store := newTestStore(t)
	if err := store.Write(ExpandedWorld, []byte(`{}`), Metadata{}); err == nil {
		t.Fatalf("expected producer validation error")
	}
}

func TestDocumentRoundTripIsDeterministic(t *testing.T) {
	store := newTestStore(t)
	ref := RegionDocument("port-ashen")
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	meta := Metadata{Producer: "render", CreatedAt: created, Notes: map[string]string{"region": "Port Ashen"}}
	body := []byte("# Port Ashen\n")
	if err := store.Write(ref, body, meta); err != nil {
		t.Fatalf("write: %v", err)
	}
	first, err := os.ReadFile(ref.Path(store.Workflow()))
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	if err := store.Write(ref, body, meta); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	second, err := os.ReadFile(ref.Path(store.Workflow()))
	if err != nil {
		t.Fatalf("read second: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("document output changed between writes")
	}
	gotBody, gotMeta, err := store.Read(ref)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(gotBody) != string(body) {
		t.Fatalf("body = %q", gotBody)
	}
	if !gotMeta.CreatedAt.Equal(created) || gotMeta.Notes["region"] != "Port Ashen" {
		t.Fatalf("metadata = %+v", gotMeta)
	}
	if !strings.HasPrefix(string(first), "---\nworldforge:\n") {
		t.Fatalf("unexpected frontmatter: %s", first)
	}
}

func TestRemoveIgnoresMissing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Remove(IllustratedWaypoint); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	if err := store.Write(IllustratedWaypoint, []byte(`{}`), Metadata{Producer: "illustrate"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Remove(IllustratedWaypoint); err != nil {
		t.Fatalf("remove: %v", err)
	}
	check, _ := store.Check(IllustratedWaypoint)
	if check.State != StateMissing {
		t.Fatalf("state after remove = %s", check.State)
	}
}

func TestParseFrontMatterErrors(t *testing.T) {
	if _, _, err := ParseFrontMatter([]byte("# no fences")); !errors.Is(err, ErrMissingFrontMatter) {
		t.Fatalf("expected missing frontmatter, got %v", err)
	}
	if _, _, err := ParseFrontMatter([]byte("---\nworldforge: {}\n")); !errors.Is(err, ErrMalformedFrontMatter) {
		t.Fatalf("expected malformed frontmatter, got %v", err)
	}
}

func TestDirectoryRefs(t *testing.T) {
	store := NewStore(workflow.New(t.TempDir()))
	check, err := store.Check(CoverImages)
	if err != nil || check.State != StateMissing {
		t.Fatalf("expected missing, got %+v (%v)", check, err)
	}
	if err := store.Write(CoverImages, nil, Metadata{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if check, _ := store.Check(CoverImages); check.State != StateReady {
		t.Fatalf("state after write = %s", check.State)
	}
	if _, _, err := store.Read(CoverImages); err == nil {
		t.Fatalf("reading a directory should fail")
	}
	path := CoverImages.Path(store.Workflow())
	if err := os.WriteFile(path+"/cover.png", []byte("png"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Remove(CoverImages); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("directory still present: %v", err)
	}
}
