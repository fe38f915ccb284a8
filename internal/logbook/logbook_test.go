package logbook

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journey.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestMirrorReceivesLeveledEntries(t *testing.T) {
	var mirror strings.Builder
	clock := func() time.Time { return time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC) }
	book, err := New(filepath.Join(t.TempDir(), "logs", "worldforge.log"), WithMirror(&mirror), WithClock(clock))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.Warn("region %s: image skipped", "Port Ashen")
	want := "2026-05-01T09:30:00Z WARN  region Port Ashen: image skipped\n"
	if mirror.String() != want {
		t.Fatalf("mirror = %q, want %q", mirror.String(), want)
	}
	lines, total := book.Tail(10)
	if total != 1 || len(lines) != 1 || lines[0]+"\n" != want {
		t.Fatalf("tail = %v (%d)", lines, total)
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	if lines, total := book.Tail(5); lines != nil || total != 0 {
		t.Fatalf("nil tail = %v, %d", lines, total)
	}
}
