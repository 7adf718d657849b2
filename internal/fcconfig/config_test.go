package fcconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedResolver() (Resolver, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return Resolver{Log: zap.New(core).Sugar()}, logs
}

func TestResolveNilDocument(t *testing.T) {
	r, logs := newObservedResolver()
	cfg, err := r.Resolve(nil, "demo")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(cfg.ExcludeFeatures) != 0 || len(cfg.ExcludeFeatureSets) != 0 {
		t.Fatalf("nil document must resolve to zero config, got %+v", cfg)
	}
	if logs.Len() != 0 {
		t.Fatalf("nil document must not warn, got %d warnings", logs.Len())
	}
}

func TestResolveMalformedDocument(t *testing.T) {
	r, _ := newObservedResolver()
	if _, err := r.Resolve(json.RawMessage(`{"exclude_features": 42}`), "demo"); err == nil {
		t.Fatal("expected error for malformed document")
	}
}

func TestResolveMigratesLegacyFields(t *testing.T) {
	raw := json.RawMessage(`{
		"denylist": ["default", "full"],
		"allowlist": ["serde"],
		"skip_feature_sets": [["a", "b"]],
		"exclude_features": ["full", "extra"],
		"exclude_feature_sets": [["c"]]
	}`)
	r, logs := newObservedResolver()
	cfg, err := r.Resolve(raw, "demo")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	// list fields append, set fields union (no duplicate "full")
	wantExclude := []string{"full", "extra", "default"}
	if !slices.Equal(cfg.ExcludeFeatures, wantExclude) {
		t.Fatalf("ExcludeFeatures = %v, want %v", cfg.ExcludeFeatures, wantExclude)
	}
	if !slices.Equal(cfg.IncludeFeatures, []string{"serde"}) {
		t.Fatalf("IncludeFeatures = %v", cfg.IncludeFeatures)
	}
	if len(cfg.ExcludeFeatureSets) != 2 {
		t.Fatalf("ExcludeFeatureSets = %v, want 2 entries", cfg.ExcludeFeatureSets)
	}
	if got := cfg.ExcludeFeatureSets[1].String(); got != "a,b" {
		t.Fatalf("migrated skip set = %q, want a,b", got)
	}
	if logs.Len() != 3 {
		t.Fatalf("expected 3 deprecation warnings, got %d", logs.Len())
	}
	for _, entry := range logs.All() {
		if !strings.Contains(entry.Message, "deprecated") {
			t.Fatalf("warning does not name deprecation: %q", entry.Message)
		}
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	raw := json.RawMessage(`{
		"exclude_features": ["default"],
		"exclude_feature_sets": [["a", "b"]],
		"include_feature_sets": [["c"]],
		"isolated_feature_sets": [["a"], ["b"]]
	}`)
	r, logs := newObservedResolver()
	cfg, err := r.Resolve(raw, "demo")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("migrated document must not warn, got %d", logs.Len())
	}
	if !slices.Equal(cfg.ExcludeFeatures, []string{"default"}) {
		t.Fatalf("ExcludeFeatures = %v", cfg.ExcludeFeatures)
	}
	if len(cfg.IsolatedFeatureSets) != 2 {
		t.Fatalf("IsolatedFeatureSets = %v", cfg.IsolatedFeatureSets)
	}
}

func TestResolveWorkspace(t *testing.T) {
	raw := json.RawMessage(`{
		"exclude_packages": ["internal-tool"],
		"denylist": ["default"]
	}`)
	r, logs := newObservedResolver()
	ws, err := r.ResolveWorkspace(raw)
	if err != nil {
		t.Fatalf("ResolveWorkspace returned error: %v", err)
	}
	if !slices.Equal(ws.ExcludePackages, []string{"internal-tool"}) {
		t.Fatalf("ExcludePackages = %v", ws.ExcludePackages)
	}
	if !slices.Equal(ws.ExcludeFeatures, []string{"default"}) {
		t.Fatalf("ExcludeFeatures = %v", ws.ExcludeFeatures)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 deprecation warning, got %d", logs.Len())
	}
}

func TestMergeWorkspace(t *testing.T) {
	ws := WorkspaceConfig{
		ExcludeFeatures: []string{"default"},
		Matrix:          map[string]any{"os": "linux", "env": map[string]any{"CI": "1"}},
	}
	cfg := Config{
		ExcludeFeatures: []string{"full"},
		Matrix:          map[string]any{"env": map[string]any{"RUST_LOG": "debug"}},
	}
	merged := MergeWorkspace(ws, cfg)
	if !slices.Equal(merged.ExcludeFeatures, []string{"default", "full"}) {
		t.Fatalf("ExcludeFeatures = %v", merged.ExcludeFeatures)
	}
	env, ok := merged.Matrix["env"].(map[string]any)
	if !ok {
		t.Fatalf("matrix env not merged: %v", merged.Matrix)
	}
	if env["CI"] != "1" || env["RUST_LOG"] != "debug" {
		t.Fatalf("deep merge lost keys: %v", env)
	}
	if merged.Matrix["os"] != "linux" {
		t.Fatalf("workspace matrix default lost: %v", merged.Matrix)
	}
}

func TestLoadWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cargo-fc.yaml")
	content := "exclude_packages:\n  - fixtures\nexclude_feature_sets:\n  - [a, b]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	r, _ := newObservedResolver()
	base := WorkspaceConfig{ExcludePackages: []string{"internal-tool"}}
	ws, err := r.LoadWorkspaceFile(path, base)
	if err != nil {
		t.Fatalf("LoadWorkspaceFile returned error: %v", err)
	}
	if !slices.Equal(ws.ExcludePackages, []string{"internal-tool", "fixtures"}) {
		t.Fatalf("ExcludePackages = %v", ws.ExcludePackages)
	}
	if len(ws.ExcludeFeatureSets) != 1 || ws.ExcludeFeatureSets[0].String() != "a,b" {
		t.Fatalf("ExcludeFeatureSets = %v", ws.ExcludeFeatureSets)
	}
}

func TestLoadWorkspaceFileMissing(t *testing.T) {
	r, _ := newObservedResolver()
	if _, err := r.LoadWorkspaceFile(filepath.Join(t.TempDir(), "nope.yaml"), WorkspaceConfig{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
