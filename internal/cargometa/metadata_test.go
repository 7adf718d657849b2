package cargometa

import (
	"path/filepath"
	"slices"
	"testing"
)

const sampleMetadata = `{
	"packages": [
		{
			"name": "demo",
			"manifest_path": "/work/demo/Cargo.toml",
			"features": {"serde": ["dep:serde"], "std": [], "alloc": []},
			"metadata": {
				"cargo-feature-combinations": {"exclude_features": ["default"]}
			}
		},
		{
			"name": "demo-macros",
			"manifest_path": "/work/demo/macros/Cargo.toml",
			"features": {},
			"metadata": null
		}
	],
	"workspace_root": "/work/demo",
	"metadata": {
		"cargo-feature-combinations": {"exclude_packages": ["demo-macros"]}
	}
}`

func TestDecode(t *testing.T) {
	ws, err := Decode([]byte(sampleMetadata))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(ws.Packages) != 2 {
		t.Fatalf("got %d packages, want 2", len(ws.Packages))
	}
	if ws.Root != "demo" {
		t.Fatalf("Root = %q, want demo", ws.Root)
	}
	root := ws.RootPackage()
	if root == nil || root.Name != "demo" {
		t.Fatalf("RootPackage = %v", root)
	}
	if len(root.Config) == 0 {
		t.Fatal("root package config document missing")
	}
	if len(ws.Config) == 0 {
		t.Fatal("workspace config document missing")
	}
	if ws.Packages[1].Config != nil {
		t.Fatalf("package without metadata should have nil config, got %s", ws.Packages[1].Config)
	}
}

func TestFeatureNamesSorted(t *testing.T) {
	ws, err := Decode([]byte(sampleMetadata))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	got := ws.Packages[0].FeatureNames()
	want := []string{"alloc", "serde", "std"}
	if !slices.Equal(got, want) {
		t.Fatalf("FeatureNames = %v, want %v", got, want)
	}
}

func TestWorkingDir(t *testing.T) {
	p := Package{ManifestPath: filepath.Join("/work", "demo", "Cargo.toml")}
	dir, err := p.WorkingDir()
	if err != nil {
		t.Fatalf("WorkingDir returned error: %v", err)
	}
	if dir != filepath.Join("/work", "demo") {
		t.Fatalf("WorkingDir = %q", dir)
	}
}

func TestWorkingDirNoParent(t *testing.T) {
	p := Package{ManifestPath: "/"}
	if _, err := p.WorkingDir(); err == nil {
		t.Fatal("expected error for manifest path without parent")
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed metadata")
	}
}

func TestVirtualWorkspaceHasNoRoot(t *testing.T) {
	ws, err := Decode([]byte(`{
		"packages": [{"name": "member", "manifest_path": "/ws/member/Cargo.toml", "features": {}}],
		"workspace_root": "/ws"
	}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if ws.Root != "" || ws.RootPackage() != nil {
		t.Fatalf("virtual workspace must have no root, got %q", ws.Root)
	}
}

func TestCargoPathDefault(t *testing.T) {
	t.Setenv("CARGO", "")
	if got := CargoPath(); got != "cargo" {
		t.Fatalf("CargoPath = %q, want cargo", got)
	}
	t.Setenv("CARGO", "/opt/rust/bin/cargo")
	if got := CargoPath(); got != "/opt/rust/bin/cargo" {
		t.Fatalf("CargoPath = %q", got)
	}
}
