// Package cargometa discovers workspace packages and their declared
// features by shelling out to `cargo metadata` and decoding its JSON.
package cargometa

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// metadataKey is the manifest metadata table holding our configuration.
const metadataKey = "cargo-feature-combinations"

// Package describes one workspace member as reported by cargo.
type Package struct {
	// Name is the package name from its manifest.
	Name string
	// ManifestPath is the absolute path of the package's Cargo.toml.
	ManifestPath string
	// Features maps each declared feature to the features it implies.
	// Only the keys matter to combination generation.
	Features map[string][]string
	// Config is the raw cargo-feature-combinations document from the
	// package metadata, nil when absent.
	Config json.RawMessage
}

// FeatureNames returns the package's declared feature names, sorted.
func (p *Package) FeatureNames() []string {
	names := make([]string, 0, len(p.Features))
	for name := range p.Features {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// WorkingDir returns the directory builds for this package run in: the
// parent of its manifest. It fails when the manifest path has no parent.
func (p *Package) WorkingDir() (string, error) {
	dir := filepath.Dir(p.ManifestPath)
	if dir == "" || dir == p.ManifestPath {
		return "", errors.Errorf("could not find parent dir of package %s", p.ManifestPath)
	}
	return dir, nil
}

// Workspace is the decoded result of a cargo metadata invocation.
type Workspace struct {
	Packages []Package
	// Root names the root package, empty for a virtual workspace.
	Root string
	// Config is the raw workspace-level cargo-feature-combinations
	// document, nil when absent.
	Config json.RawMessage
}

// RootPackage returns the root package, or nil for a virtual workspace.
func (w *Workspace) RootPackage() *Package {
	if w.Root == "" {
		return nil
	}
	for i := range w.Packages {
		if w.Packages[i].Name == w.Root {
			return &w.Packages[i]
		}
	}
	return nil
}

// CargoPath returns the build tool executable, honoring the CARGO
// environment variable override.
func CargoPath() string {
	if cargo := strings.TrimSpace(os.Getenv("CARGO")); cargo != "" {
		return cargo
	}
	return "cargo"
}

// Load runs `cargo metadata` for the given manifest (empty means the
// current directory's) and decodes the workspace.
func Load(ctx context.Context, manifestPath string) (*Workspace, error) {
	args := []string{"metadata", "--format-version", "1", "--no-deps"}
	if manifestPath != "" {
		args = append(args, "--manifest-path", manifestPath)
	}
	cmd := exec.CommandContext(ctx, CargoPath(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, errors.Wrapf(err, "cargo metadata: %s", msg)
		}
		return nil, errors.Wrap(err, "cargo metadata")
	}
	return Decode(out)
}

// wire shapes for the subset of cargo metadata output we consume.
type rawMetadata struct {
	Packages      []rawPackage               `json:"packages"`
	WorkspaceRoot string                     `json:"workspace_root"`
	Metadata      map[string]json.RawMessage `json:"metadata"`
}

type rawPackage struct {
	Name         string                     `json:"name"`
	ManifestPath string                     `json:"manifest_path"`
	Features     map[string][]string        `json:"features"`
	Metadata     map[string]json.RawMessage `json:"metadata"`
}

// Decode parses cargo metadata JSON output into a Workspace.
func Decode(data []byte) (*Workspace, error) {
	var raw rawMetadata
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode cargo metadata output")
	}
	ws := &Workspace{
		Packages: make([]Package, 0, len(raw.Packages)),
		Config:   raw.Metadata[metadataKey],
	}
	rootManifest := filepath.Join(raw.WorkspaceRoot, "Cargo.toml")
	for _, p := range raw.Packages {
		pkg := Package{
			Name:         p.Name,
			ManifestPath: p.ManifestPath,
			Features:     p.Features,
			Config:       p.Metadata[metadataKey],
		}
		ws.Packages = append(ws.Packages, pkg)
		if p.ManifestPath == rootManifest {
			ws.Root = p.Name
		}
	}
	return ws, nil
}
