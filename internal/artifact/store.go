package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kingrea/worldforge/internal/workflow"
)

// metadataKey is the JSON member that carries provenance inside JSON artifacts.
const metadataKey = "_worldforge"

// Store manages artifact IO rooted at the output directory.
type Store struct {
	workflow *workflow.Workflow
	now      func() time.Time
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the clock used for metadata timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// NewStore builds a store for an output tree.
func NewStore(wf *workflow.Workflow, opts ...StoreOption) *Store {
	store := &Store{
		workflow: wf,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Workflow returns the output tree the store writes into.
func (s *Store) Workflow() *workflow.Workflow {
	return s.workflow
}

// Check inspects the artifact on disk and returns its status and metadata.
func (s *Store) Check(ref ArtifactRef) (CheckResult, error) {
	path := ref.Path(s.workflow)
	if path == "" {
		err := fmt.Errorf("artifact: %s path could not be resolved", ref.ID)
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CheckResult{Ref: ref, Path: path, State: StateMissing}, nil
		}
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	switch ref.Kind {
	case KindDirectory:
		if !info.IsDir() {
			return invalidResult(ref, path, fmt.Errorf("artifact: expected directory"))
		}
		return CheckResult{Ref: ref, Path: path, State: StateReady}, nil
	case KindJSON:
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return CheckResult{Ref: ref, Path: path, State: StateError, Err: readErr}, readErr
		}
		meta, _, metaErr := splitJSON(data)
		if metaErr != nil {
			return invalidResult(ref, path, metaErr)
		}
		if meta.ArtifactID != ref.ID {
			return invalidResult(ref, path, fmt.Errorf("artifact: metadata id %s does not match %s", meta.ArtifactID, ref.ID))
		}
		return CheckResult{Ref: ref, Path: path, State: StateReady, Metadata: &meta}, nil
	default:
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return CheckResult{Ref: ref, Path: path, State: StateError, Err: readErr}, readErr
		}
		meta, _, metaErr := ParseFrontMatter(data)
		if metaErr != nil {
			return invalidResult(ref, path, metaErr)
		}
		if meta.ArtifactID != ref.ID {
			return invalidResult(ref, path, fmt.Errorf("artifact: metadata id %s does not match %s", meta.ArtifactID, ref.ID))
		}
		return CheckResult{Ref: ref, Path: path, State: StateReady, Metadata: &meta}, nil
	}
}

// Read loads an artifact and returns its body with the metadata stripped.
func (s *Store) Read(ref ArtifactRef) ([]byte, Metadata, error) {
	path := ref.Path(s.workflow)
	if path == "" {
		return nil, Metadata{}, fmt.Errorf("artifact: %s path could not be resolved", ref.ID)
	}
	if ref.Kind == KindDirectory {
		return nil, Metadata{}, fmt.Errorf("artifact: %s is a directory", ref.ID)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("artifact: read %s: %w", ref.ID, err)
	}
	if ref.Kind == KindJSON {
		meta, body, err := splitJSON(data)
		if err != nil {
			return nil, Metadata{}, err
		}
		return body, meta, nil
	}
	meta, body, err := ParseFrontMatter(data)
	if err != nil {
		return nil, Metadata{}, err
	}
	return body, meta, nil
}

// Write persists the artifact contents and metadata based on its kind.
func (s *Store) Write(ref ArtifactRef, body []byte, meta Metadata) error {
	path := ref.Path(s.workflow)
	if path == "" {
		return fmt.Errorf("artifact: %s path could not be resolved", ref.ID)
	}
	switch ref.Kind {
	case KindDirectory:
		return os.MkdirAll(path, 0o755)
	case KindJSON:
		return s.writeJSON(path, ref, body, meta)
	default:
		return s.writeDocument(path, ref, body, meta)
	}
}

// Remove deletes the artifact. Missing artifacts are not an error.
func (s *Store) Remove(ref ArtifactRef) error {
	path := ref.Path(s.workflow)
	if path == "" {
		return fmt.Errorf("artifact: %s path could not be resolved", ref.ID)
	}
	var err error
	if ref.Kind == KindDirectory {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("artifact: remove %s: %w", ref.ID, err)
	}
	return nil
}

func (s *Store) writeDocument(path string, ref ArtifactRef, body []byte, meta Metadata) error {
	if body == nil {
		body = []byte{}
	}
	prepared := meta.WithDefaults(ref, s.now())
	if prepared.Checksum == "" {
		prepared.Checksum = Checksum(body)
	}
	if err := prepared.ValidateFor(ref); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	content, err := WriteFrontMatter(prepared, body)
	if err != nil {
		return err
	}
	return writeAtomic(path, content)
}

func (s *Store) writeJSON(path string, ref ArtifactRef, body []byte, meta Metadata) error {
	if body == nil {
		body = []byte("{}")
	}
	prepared := meta.WithDefaults(ref, s.now())
	if err := prepared.ValidateFor(ref); err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("artifact: invalid json body for %s: %w", ref.ID, err)
	}
	if prepared.Checksum == "" {
		canonical, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("artifact: encode json for %s: %w", ref.ID, err)
		}
		prepared.Checksum = Checksum(canonical)
	}
	payload[metadataKey] = metadataToJSON(prepared)
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encode json for %s: %w", ref.ID, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeAtomic(path, encoded)
}

// Checksum returns the hex sha256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writeAtomic replaces path through a temp file in the same directory so a
// crash never leaves a half-written snapshot behind.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func invalidResult(ref ArtifactRef, path string, err error) (CheckResult, error) {
	return CheckResult{Ref: ref, Path: path, State: StateInvalid, Err: err}, err
}

// splitJSON separates the metadata block from the payload and returns the
// payload re-encoded without it.
func splitJSON(data []byte) (Metadata, []byte, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return Metadata{}, nil, fmt.Errorf("artifact: parse json metadata: %w", err)
	}
	raw, ok := payload[metadataKey]
	if !ok {
		return Metadata{}, nil, fmt.Errorf("artifact: missing %s metadata", metadataKey)
	}
	var metaMap map[string]any
	if err := json.Unmarshal(raw, &metaMap); err != nil {
		return Metadata{}, nil, fmt.Errorf("artifact: invalid %s metadata structure", metadataKey)
	}
	meta, err := metadataFromMap(metaMap)
	if err != nil {
		return Metadata{}, nil, err
	}
	delete(payload, metadataKey)
	body, err := json.Marshal(payload)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("artifact: encode json body: %w", err)
	}
	return meta, body, nil
}

func metadataToJSON(meta Metadata) map[string]any {
	result := map[string]any{
		"artifact": meta.ArtifactID,
		"producer": meta.Producer,
		"version":  meta.Version,
		"run":      meta.RunID,
		"inputs":   append([]string{}, meta.Inputs...),
		"created":  meta.CreatedAt.UTC().Format(timeLayout),
	}
	if meta.Checksum != "" {
		result["checksum"] = meta.Checksum
	}
	if len(meta.Notes) > 0 {
		result["notes"] = cloneNotes(meta.Notes)
	}
	return result
}

func metadataFromMap(values map[string]any) (Metadata, error) {
	artifactID := stringValue(values["artifact"])
	producer := stringValue(values["producer"])
	version := stringValue(values["version"])
	if artifactID == "" || producer == "" || version == "" {
		return Metadata{}, fmt.Errorf("artifact: incomplete metadata")
	}
	created := stringValue(values["created"])
	if created == "" {
		return Metadata{}, fmt.Errorf("artifact: metadata missing created timestamp")
	}
	timeValue, err := parseTime(created)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		ArtifactID: artifactID,
		Producer:   producer,
		Version:    version,
		RunID:      stringValue(values["run"]),
		Inputs:     sliceStringValue(values["inputs"]),
		CreatedAt:  timeValue,
		Checksum:   stringValue(values["checksum"]),
		Notes:      mapStringValue(values["notes"]),
	}, nil
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func sliceStringValue(value any) []string {
	arr, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s := stringValue(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mapStringValue(value any) map[string]string {
	raw, ok := value.(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s := stringValue(v); s != "" {
			out[k] = s
		}
	}
	return out
}
