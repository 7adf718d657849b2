// Package matrix renders the machine-readable feature combination matrix:
// one JSON object per (package, feature set) pair.
package matrix

import (
	"encoding/json"
	"fmt"

	"github.com/example/cargofc/internal/cargometa"
	"github.com/example/cargofc/internal/combinations"
	"github.com/example/cargofc/internal/fcconfig"
)

// Build produces one entry per (package, feature set), with the resolved
// config's matrix mapping deep-merged into each object. The name and
// features keys always reflect the generated combination.
func Build(packages []cargometa.Package, configs map[string]fcconfig.Config) ([]map[string]any, error) {
	entries := make([]map[string]any, 0, len(packages))
	for _, pkg := range packages {
		cfg := configs[pkg.Name]
		sets, err := combinations.Generate(pkg.FeatureNames(), cfg)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", pkg.Name, err)
		}
		for _, set := range sets {
			entry := deepCopy(cfg.Matrix)
			entry["name"] = pkg.Name
			entry["features"] = set.String()
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Render marshals the entries as a JSON array, pretty-printed on request.
func Render(entries []map[string]any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(entries, "", "  ")
	}
	return json.Marshal(entries)
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		if vm, ok := v.(map[string]any); ok {
			out[k] = deepCopy(vm)
			continue
		}
		out[k] = v
	}
	return out
}
