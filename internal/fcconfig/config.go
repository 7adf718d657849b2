// Package fcconfig resolves the cargo-feature-combinations configuration
// documents embedded in package and workspace metadata, migrating legacy
// field names into their current replacements.
package fcconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/example/cargofc/internal/featureset"
)

// Config holds the resolved per-package settings consumed by the
// combination engine and the run orchestrator. Legacy fields are already
// folded in; nothing downstream of Resolve consults them.
type Config struct {
	ExcludeFeatures     []string
	IncludeFeatures     []string
	ExcludeFeatureSets  []featureset.Set
	IncludeFeatureSets  []featureset.Set
	IsolatedFeatureSets []featureset.Set
	ExcludePackages     []string

	// Matrix carries caller-defined metadata merged verbatim into each
	// feature-matrix JSON entry.
	Matrix map[string]any
}

// WorkspaceConfig holds workspace-level settings. Its exclusion lists are
// merged into every member package's Config.
type WorkspaceConfig struct {
	ExcludeFeatures    []string
	ExcludeFeatureSets []featureset.Set
	ExcludePackages    []string
	Matrix             map[string]any
}

// rawDocument is the wire shape of a configuration document, current and
// legacy fields side by side. Backward compatibility lives here and in
// migrate, not in Config.
type rawDocument struct {
	ExcludeFeatures     []string       `json:"exclude_features" yaml:"exclude_features"`
	IncludeFeatures     []string       `json:"include_features" yaml:"include_features"`
	ExcludeFeatureSets  [][]string     `json:"exclude_feature_sets" yaml:"exclude_feature_sets"`
	IncludeFeatureSets  [][]string     `json:"include_feature_sets" yaml:"include_feature_sets"`
	IsolatedFeatureSets [][]string     `json:"isolated_feature_sets" yaml:"isolated_feature_sets"`
	ExcludePackages     []string       `json:"exclude_packages" yaml:"exclude_packages"`
	Matrix              map[string]any `json:"matrix" yaml:"matrix"`

	// Legacy aliases kept from earlier releases.
	Denylist        []string   `json:"denylist" yaml:"denylist"`
	Allowlist       []string   `json:"allowlist" yaml:"allowlist"`
	SkipFeatureSets [][]string `json:"skip_feature_sets" yaml:"skip_feature_sets"`
}

// Resolver normalizes raw configuration documents. Deprecation warnings
// go through Log; a nil logger suppresses them.
type Resolver struct {
	Log *zap.SugaredLogger
}

func (r Resolver) warnf(format string, args ...any) {
	if r.Log != nil {
		r.Log.Warnf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

// Resolve deserializes the package-level document and folds legacy fields
// into their replacements. A nil document yields the zero Config.
// Resolving an already-migrated document is a no-op beyond deserialization.
func (r Resolver) Resolve(raw json.RawMessage, packageName string) (Config, error) {
	var doc rawDocument
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Config{}, fmt.Errorf("parse configuration of package %s: %w", packageName, err)
		}
	}
	r.migrate(&doc, packageName)
	return Config{
		ExcludeFeatures:     dedupe(doc.ExcludeFeatures),
		IncludeFeatures:     dedupe(doc.IncludeFeatures),
		ExcludeFeatureSets:  toSets(doc.ExcludeFeatureSets),
		IncludeFeatureSets:  toSets(doc.IncludeFeatureSets),
		IsolatedFeatureSets: toSets(doc.IsolatedFeatureSets),
		ExcludePackages:     dedupe(doc.ExcludePackages),
		Matrix:              doc.Matrix,
	}, nil
}

// ResolveWorkspace deserializes the workspace-level document.
func (r Resolver) ResolveWorkspace(raw json.RawMessage) (WorkspaceConfig, error) {
	var doc rawDocument
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return WorkspaceConfig{}, fmt.Errorf("parse workspace configuration: %w", err)
		}
	}
	r.migrate(&doc, "workspace")
	return WorkspaceConfig{
		ExcludeFeatures:    dedupe(doc.ExcludeFeatures),
		ExcludeFeatureSets: toSets(doc.ExcludeFeatureSets),
		ExcludePackages:    dedupe(doc.ExcludePackages),
		Matrix:             doc.Matrix,
	}, nil
}

// LoadWorkspaceFile reads an additional workspace configuration from a
// YAML file and merges it over base. Useful when the workspace manifest
// itself cannot be edited.
func (r Resolver) LoadWorkspaceFile(path string, base WorkspaceConfig) (WorkspaceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkspaceConfig{}, fmt.Errorf("read workspace config %s: %w", path, err)
	}
	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return WorkspaceConfig{}, fmt.Errorf("parse workspace config %s: %w", path, err)
	}
	r.migrate(&doc, path)
	base.ExcludeFeatures = dedupe(append(base.ExcludeFeatures, doc.ExcludeFeatures...))
	base.ExcludeFeatureSets = append(base.ExcludeFeatureSets, toSets(doc.ExcludeFeatureSets)...)
	base.ExcludePackages = dedupe(append(base.ExcludePackages, doc.ExcludePackages...))
	base.Matrix = mergeMatrix(base.Matrix, doc.Matrix)
	return base, nil
}

// migrate folds non-empty legacy fields into their current replacements,
// emitting a warning per field. List fields append, set fields union.
func (r Resolver) migrate(doc *rawDocument, scope string) {
	if len(doc.Denylist) > 0 {
		r.warnf("%s: configuration field %q is deprecated, use %q", scope, "denylist", "exclude_features")
		doc.ExcludeFeatures = append(doc.ExcludeFeatures, doc.Denylist...)
		doc.Denylist = nil
	}
	if len(doc.Allowlist) > 0 {
		r.warnf("%s: configuration field %q is deprecated, use %q", scope, "allowlist", "include_features")
		doc.IncludeFeatures = append(doc.IncludeFeatures, doc.Allowlist...)
		doc.Allowlist = nil
	}
	if len(doc.SkipFeatureSets) > 0 {
		r.warnf("%s: configuration field %q is deprecated, use %q", scope, "skip_feature_sets", "exclude_feature_sets")
		doc.ExcludeFeatureSets = append(doc.ExcludeFeatureSets, doc.SkipFeatureSets...)
		doc.SkipFeatureSets = nil
	}
}

// MergeWorkspace folds the workspace exclusion lists and matrix defaults
// into a package Config. Package-level entries win on matrix key clashes.
func MergeWorkspace(ws WorkspaceConfig, cfg Config) Config {
	cfg.ExcludeFeatures = dedupe(append(slices.Clone(ws.ExcludeFeatures), cfg.ExcludeFeatures...))
	cfg.ExcludeFeatureSets = append(slices.Clone(ws.ExcludeFeatureSets), cfg.ExcludeFeatureSets...)
	cfg.Matrix = mergeMatrix(ws.Matrix, cfg.Matrix)
	return cfg
}

// mergeMatrix deep-merges override onto base, recursing into nested maps.
func mergeMatrix(base, override map[string]any) map[string]any {
	if len(base) == 0 {
		return override
	}
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if bm, ok := out[k].(map[string]any); ok {
			if vm, ok := v.(map[string]any); ok {
				out[k] = mergeMatrix(bm, vm)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func toSets(groups [][]string) []featureset.Set {
	if len(groups) == 0 {
		return nil
	}
	out := make([]featureset.Set, 0, len(groups))
	for _, g := range groups {
		out = append(out, featureset.New(g...))
	}
	return out
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
