package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestDefaultConfig verifies baseline defaults are present.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Transcription.Backend != BackendRemote || cfg.Transcription.Language != "pt" {
		t.Fatalf("transcription = %+v", cfg.Transcription)
	}
	if cfg.Output.TranscriptPath != filepath.Join("texto", "texto_gerado.md") {
		t.Fatalf("transcript path = %q", cfg.Output.TranscriptPath)
	}
	if cfg.Summary.ChunkSize != 3000 || cfg.Summary.Overlap != 200 {
		t.Fatalf("summary chunking = %d/%d", cfg.Summary.ChunkSize, cfg.Summary.Overlap)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

// TestYAMLStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestYAMLStoreLoadMissingReturnsDefaults(t *testing.T) {
	store := NewYAMLStore(filepath.Join(t.TempDir(), "missing", "config.yaml"))

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Transcription.Language != "pt" {
		t.Fatalf("language = %q, want pt", got.Transcription.Language)
	}
}

// TestYAMLStoreSaveAndLoadRoundTrip checks persisted settings fidelity and secret stripping.
func TestYAMLStoreSaveAndLoadRoundTrip(t *testing.T) {
	store := NewYAMLStore(filepath.Join(t.TempDir(), "cfg", "config.yaml"))
	want := DefaultConfig()
	want.Transcription.Backend = BackendLocal
	want.Transcription.Local.Model = "/models/base.bin"
	want.Output.Mode = "fresh"
	want.Transcription.Remote.APIKey = "secret"

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, _ := os.ReadFile(store.Path())
	if strings.Contains(string(data), "secret") {
		t.Fatalf("api key persisted:\n%s", data)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Transcription.Backend != BackendLocal || got.Transcription.Local.Model != "/models/base.bin" || got.Output.Mode != "fresh" {
		t.Fatalf("config = %+v", got)
	}
	if got.Transcription.Remote.APIKey != "" {
		t.Fatalf("api key = %q, want empty", got.Transcription.Remote.APIKey)
	}
}
