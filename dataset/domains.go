package dataset

import (
	"sort"
	"strings"

	"hfoutcome/pkg/errors"
)

// Domain is a named, disjoint group of features sharing a semantic origin.
// Membership is declared statically by exact names or a column-name prefix.
// Priority is the declared order used to break selection ties.
type Domain struct {
	Name     string
	Priority int
	Names    []string
	Prefix   string
}

// matches reports whether the feature belongs to this domain.
func (d *Domain) matches(feature string) bool {
	for _, n := range d.Names {
		if n == feature {
			return true
		}
	}
	return d.Prefix != "" && strings.HasPrefix(feature, d.Prefix)
}

// DomainSet partitions a feature space into non-overlapping domains, with one
// domain designated as the always-selected baseline.
type DomainSet struct {
	baseline string
	domains  []Domain
}

// NewDomainSet validates the declared domains: names must be unique, matchers
// non-empty, and the baseline present.
func NewDomainSet(baseline string, domains []Domain) (*DomainSet, error) {
	if len(domains) == 0 {
		return nil, errors.NewConfigurationError("domains", "at least one domain required", len(domains))
	}

	seen := make(map[string]bool, len(domains))
	hasBaseline := false
	for _, d := range domains {
		if d.Name == "" {
			return nil, errors.NewConfigurationError("domains", "domain name must not be empty", d)
		}
		if seen[d.Name] {
			return nil, errors.NewConfigurationError("domains", "duplicate domain name", d.Name)
		}
		seen[d.Name] = true
		if len(d.Names) == 0 && d.Prefix == "" {
			return nil, errors.NewConfigurationError("domains", "domain has no matcher", d.Name)
		}
		if d.Name == baseline {
			hasBaseline = true
		}
	}
	if !hasBaseline {
		return nil, errors.NewConfigurationError("domains", "baseline domain not declared", baseline)
	}

	ds := make([]Domain, len(domains))
	copy(ds, domains)
	return &DomainSet{baseline: baseline, domains: ds}, nil
}

// Baseline returns the name of the baseline domain.
func (s *DomainSet) Baseline() string { return s.baseline }

// Priority returns the declared priority of the named domain, or a large value
// for unknown names.
func (s *DomainSet) Priority(name string) int {
	for _, d := range s.domains {
		if d.Name == name {
			return d.Priority
		}
	}
	return int(^uint(0) >> 1)
}

// Resolve partitions the given feature list into domains. Every feature must
// match exactly one domain; unmatched or doubly-matched features are
// configuration errors, caught here rather than at training time.
func (s *DomainSet) Resolve(features []string) (map[string][]string, error) {
	groups := make(map[string][]string, len(s.domains))
	for _, feature := range features {
		owner := ""
		for i := range s.domains {
			if !s.domains[i].matches(feature) {
				continue
			}
			if owner != "" {
				return nil, errors.NewConfigurationError("domains",
					"feature matched by domains "+owner+" and "+s.domains[i].Name, feature)
			}
			owner = s.domains[i].Name
		}
		if owner == "" {
			return nil, errors.NewConfigurationError("domains", "feature matches no domain", feature)
		}
		groups[owner] = append(groups[owner], feature)
	}

	for name := range groups {
		sort.Strings(groups[name])
	}
	return groups, nil
}
