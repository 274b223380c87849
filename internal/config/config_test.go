package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nonexistent"))

	triage := s.LoadTriage()
	if triage.Enabled {
		t.Error("triage should default to disabled")
	}
	if triage.DuplicateThreshold != 0.80 {
		t.Errorf("duplicate threshold = %v, want 0.80", triage.DuplicateThreshold)
	}
	if triage.SpamThreshold != 0.75 {
		t.Errorf("spam threshold = %v, want 0.75", triage.SpamThreshold)
	}

	autofix := s.LoadAutoFix()
	if autofix.Enabled {
		t.Error("auto-fix should default to disabled")
	}
	if len(autofix.Labels) != 1 || autofix.Labels[0] != "auto-fix" {
		t.Errorf("auto-fix labels = %v, want [auto-fix]", autofix.Labels)
	}
	if !autofix.RequireHumanApproval {
		t.Error("human approval should default to required")
	}
}

func TestLoadDefaultsWhenCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(dir)
	triage := s.LoadTriage()
	if triage.DuplicateThreshold != 0.80 {
		t.Errorf("corrupt document should load as defaults, got threshold %v", triage.DuplicateThreshold)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	want := TriageConfig{
		Enabled:               true,
		DuplicateThreshold:    0.9,
		SpamThreshold:         0.5,
		FeatureCreepThreshold: 0.6,
		EnableTriageComments:  true,
	}
	if err := s.SaveTriage(want); err != nil {
		t.Fatalf("SaveTriage() error = %v", err)
	}

	got := s.LoadTriage()
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestSavePreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	existing := map[string]interface{}{
		"model":          "some-model",
		"thinking_level": "medium",
	}
	data, _ := json.Marshal(existing)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(dir)
	cfg := DefaultTriageConfig()
	cfg.Enabled = true
	if err := s.SaveTriage(cfg); err != nil {
		t.Fatalf("SaveTriage() error = %v", err)
	}

	doc := s.Raw()
	if doc["model"] != "some-model" {
		t.Errorf("unknown key model = %v, want preserved", doc["model"])
	}
	if doc["thinking_level"] != "medium" {
		t.Errorf("unknown key thinking_level = %v, want preserved", doc["thinking_level"])
	}
	if doc["triage_enabled"] != true {
		t.Errorf("triage_enabled = %v, want true", doc["triage_enabled"])
	}
}

func TestSavesFromBothPipelinesCoexist(t *testing.T) {
	s := NewStore(t.TempDir())

	triage := DefaultTriageConfig()
	triage.Enabled = true
	if err := s.SaveTriage(triage); err != nil {
		t.Fatal(err)
	}

	autofix := DefaultAutoFixConfig()
	autofix.Labels = []string{"auto-fix", "good-first-issue"}
	if err := s.SaveAutoFix(autofix); err != nil {
		t.Fatal(err)
	}

	// The second save must not clobber the first pipeline's keys.
	if !s.LoadTriage().Enabled {
		t.Error("triage_enabled lost after auto-fix save")
	}
	got := s.LoadAutoFix()
	if len(got.Labels) != 2 {
		t.Errorf("auto-fix labels = %v, want 2 entries", got.Labels)
	}
}

func TestSetValue(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.SetValue("model", "other-model"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAutoFix(DefaultAutoFixConfig()); err != nil {
		t.Fatal(err)
	}
	if s.Raw()["model"] != "other-model" {
		t.Error("raw key lost after pipeline save")
	}
}
