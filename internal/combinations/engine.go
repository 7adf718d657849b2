// Package combinations turns a package's declared features and its
// resolved configuration into the deduplicated, deterministically ordered
// list of feature sets to build.
package combinations

import (
	"errors"
	"fmt"
	"slices"

	"github.com/example/cargofc/internal/fcconfig"
	"github.com/example/cargofc/internal/featureset"
)

// maxPowersetSize caps how many combinations a single powerset expansion
// may produce. The check runs before any expansion, so an oversized
// feature list fails fast instead of exhausting memory. 2^18 keeps even a
// worst-case run in the low hundreds of thousands of builds.
const maxPowersetSize = 1 << 18

// ErrTooManyConfigurations is returned when the eligible feature count
// would produce an unreasonably large powerset.
var ErrTooManyConfigurations = errors.New("too many feature set configurations")

// Generate produces the ordered feature sets to build for a package that
// declares the given feature names.
//
// With no isolated_feature_sets configured it expands the full powerset of
// the declared features minus exclude_features. Otherwise each isolated
// group is restricted to declared, non-excluded names and expanded on its
// own, so no combination mixes features across groups. In both modes
// include_features is pinned into every generated set.
//
// Generated sets that contain all members of an exclude_feature_sets entry
// are dropped. Note that an empty exclude entry is a subset of every set
// and therefore degenerates to "exclude everything"; this is left as
// documented behavior rather than special-cased. Each include_feature_sets
// entry is added back after filtering, with names the package does not
// declare stripped, so forced inclusion always wins over exclusion.
func Generate(featureNames []string, cfg fcconfig.Config) ([]featureset.Set, error) {
	declared := featureset.New(featureNames...)
	excluded := featureset.New(cfg.ExcludeFeatures...)
	pinned := featureset.New(cfg.IncludeFeatures...)

	eligible := declared.Filter(func(n string) bool { return !excluded.Contains(n) })

	var candidates []featureset.Set
	if len(cfg.IsolatedFeatureSets) == 0 {
		sets, err := powerset(eligible)
		if err != nil {
			return nil, err
		}
		candidates = sets
	} else {
		for _, group := range cfg.IsolatedFeatureSets {
			restricted := group.Filter(func(n string) bool {
				return declared.Contains(n) && !excluded.Contains(n)
			})
			sets, err := powerset(restricted)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, sets...)
		}
	}

	result := make(map[string]featureset.Set, len(candidates))
	for _, set := range candidates {
		set = set.Union(pinned)
		if excludedBy(set, cfg.ExcludeFeatureSets) {
			continue
		}
		result[set.String()] = set
	}

	for _, proposed := range cfg.IncludeFeatureSets {
		forced := proposed.Filter(declared.Contains)
		result[forced.String()] = forced
	}

	out := make([]featureset.Set, 0, len(result))
	for _, set := range result {
		out = append(out, set)
	}
	slices.SortFunc(out, featureset.Set.Compare)
	return out, nil
}

func excludedBy(set featureset.Set, excludes []featureset.Set) bool {
	for _, ex := range excludes {
		if ex.SubsetOf(set) {
			return true
		}
	}
	return false
}

// powerset expands all subsets of the given set, refusing to materialize
// anything larger than maxPowersetSize.
func powerset(set featureset.Set) ([]featureset.Set, error) {
	names := set.Names()
	k := len(names)
	if k >= 63 || 1<<uint(k) > maxPowersetSize {
		return nil, fmt.Errorf("%w: %d eligible features expand to 2^%d combinations (limit %d)",
			ErrTooManyConfigurations, k, k, maxPowersetSize)
	}
	out := make([]featureset.Set, 0, 1<<uint(k))
	for mask := 0; mask < 1<<uint(k); mask++ {
		members := make([]string, 0, k)
		for i := 0; i < k; i++ {
			if mask&(1<<uint(i)) != 0 {
				members = append(members, names[i])
			}
		}
		out = append(out, featureset.New(members...))
	}
	return out, nil
}
