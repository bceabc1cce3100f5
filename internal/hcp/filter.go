package hcp

import (
	"fmt"
	"strings"
)

// Filter restricts analysis by cluster topology.
type Filter int

const (
	// All keeps every cluster and performs no lookups.
	All Filter = iota
	// Only keeps hosted-control-plane clusters.
	Only
	// Exclude drops hosted-control-plane clusters.
	Exclude
)

// ParseFilter accepts "", "all", "only" and "exclude".
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return All, nil
	case "only", "hcp":
		return Only, nil
	case "exclude", "no-hcp":
		return Exclude, nil
	default:
		return All, fmt.Errorf("unknown hcp filter %q (want all, only or exclude)", s)
	}
}

func (f Filter) String() string {
	switch f {
	case Only:
		return "only"
	case Exclude:
		return "exclude"
	default:
		return "all"
	}
}

// NeedsLookup reports whether applying f requires topology answers.
func (f Filter) NeedsLookup() bool { return f != All }

// Keep reports whether a cluster with the given topology passes f.
func (f Filter) Keep(hosted bool) bool {
	switch f {
	case Only:
		return hosted
	case Exclude:
		return !hosted
	default:
		return true
	}
}
