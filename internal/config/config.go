// Package config loads and persists per-project automation settings.
//
// Both pipelines share a single config.json document. Saves are
// read-merge-write: only the recognized keys for the pipeline being
// saved are touched, so the sibling pipeline's settings and any keys
// this version does not recognize survive a save verbatim.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// configFile is the shared settings document under the project state dir.
const configFile = "config.json"

// TriageConfig holds the triage pipeline settings.
type TriageConfig struct {
	Enabled               bool    `json:"triage_enabled"`
	DuplicateThreshold    float64 `json:"duplicate_threshold"`
	SpamThreshold         float64 `json:"spam_threshold"`
	FeatureCreepThreshold float64 `json:"feature_creep_threshold"`
	EnableTriageComments  bool    `json:"enable_triage_comments"`
}

// AutoFixConfig holds the auto-fix pipeline settings.
type AutoFixConfig struct {
	Enabled              bool     `json:"auto_fix_enabled"`
	Labels               []string `json:"auto_fix_labels"`
	RequireHumanApproval bool     `json:"require_human_approval"`
}

// DefaultTriageConfig returns the built-in triage defaults.
func DefaultTriageConfig() TriageConfig {
	return TriageConfig{
		Enabled:               false,
		DuplicateThreshold:    0.80,
		SpamThreshold:         0.75,
		FeatureCreepThreshold: 0.70,
		EnableTriageComments:  false,
	}
}

// DefaultAutoFixConfig returns the built-in auto-fix defaults.
func DefaultAutoFixConfig() AutoFixConfig {
	return AutoFixConfig{
		Enabled:              false,
		Labels:               []string{"auto-fix"},
		RequireHumanApproval: true,
	}
}

// Store reads and writes the shared settings document for one project.
type Store struct {
	dir string
}

// NewStore creates a config store rooted at the project state directory.
// The directory is created lazily on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// LoadTriage returns the triage settings, applying defaults for any
// absent field. A missing or unparseable document is treated as absent,
// never as an error.
func (s *Store) LoadTriage() TriageConfig {
	cfg := DefaultTriageConfig()
	s.loadInto(&cfg)
	return cfg
}

// LoadAutoFix returns the auto-fix settings with defaults applied.
func (s *Store) LoadAutoFix() AutoFixConfig {
	cfg := DefaultAutoFixConfig()
	s.loadInto(&cfg)
	return cfg
}

// loadInto overlays recognized keys from the on-disk document onto cfg,
// which the caller has pre-filled with defaults.
func (s *Store) loadInto(cfg interface{}) {
	data, err := os.ReadFile(filepath.Join(s.dir, configFile))
	if err != nil {
		return
	}
	// Corrupt documents are treated as absent.
	_ = json.Unmarshal(data, cfg)
}

// SaveTriage merges the triage settings into the shared document.
func (s *Store) SaveTriage(cfg TriageConfig) error {
	return s.merge(cfg)
}

// SaveAutoFix merges the auto-fix settings into the shared document.
func (s *Store) SaveAutoFix(cfg AutoFixConfig) error {
	return s.merge(cfg)
}

// SetValue merges a single raw key into the shared document. Used by the
// CLI config command for keys this version does not model directly.
func (s *Store) SetValue(key string, value interface{}) error {
	return s.mergeMap(map[string]interface{}{key: value})
}

// Raw returns the on-disk document as a generic map. A missing or
// unparseable document yields an empty map.
func (s *Store) Raw() map[string]interface{} {
	doc := make(map[string]interface{})
	data, err := os.ReadFile(filepath.Join(s.dir, configFile))
	if err != nil {
		return doc
	}
	_ = json.Unmarshal(data, &doc)
	return doc
}

// merge round-trips cfg through JSON to obtain exactly its recognized
// keys, then folds them into the existing document.
func (s *Store) merge(cfg interface{}) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	var keys map[string]interface{}
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("failed to decode config keys: %w", err)
	}
	return s.mergeMap(keys)
}

func (s *Store) mergeMap(keys map[string]interface{}) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := s.Raw()
	for k, v := range keys {
		doc[k] = v
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config document: %w", err)
	}

	path := filepath.Join(s.dir, configFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
