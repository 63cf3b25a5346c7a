// Package profiling captures runtime profiles around a benchmark sweep.
//
// A CPU profile is recorded for the whole capture; the other profiles are
// snapshotted when the capture stops. Block and mutex sampling is switched on
// only while a capture that asks for them is active, so lock contention on the
// merge path of the critical strategy shows up in the mutex profile.
package profiling

import (
	"fmt"
	"strings"
)

// ProfileType defines the type of profile to collect.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

// AllProfileTypes returns all supported profile types.
func AllProfileTypes() []ProfileType {
	return []ProfileType{
		ProfileCPU,
		ProfileHeap,
		ProfileGoroutine,
		ProfileBlock,
		ProfileMutex,
		ProfileAllocs,
	}
}

// DefaultProfileTypes returns the default profile types to collect.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileMutex, ProfileBlock, ProfileHeap}
}

// ParseProfileTypes parses profile names. Each element may itself be a
// comma-separated list. An empty input yields the defaults. Duplicates are
// dropped.
func ParseProfileTypes(names ...string) ([]ProfileType, error) {
	valid := make(map[ProfileType]bool)
	for _, pt := range AllProfileTypes() {
		valid[pt] = true
	}

	seen := make(map[ProfileType]bool)
	var types []ProfileType
	for _, name := range names {
		for _, p := range strings.Split(name, ",") {
			p = strings.TrimSpace(strings.ToLower(p))
			if p == "" {
				continue
			}
			pt := ProfileType(p)
			if !valid[pt] {
				return nil, fmt.Errorf("unknown profile type: %q", p)
			}
			if !seen[pt] {
				seen[pt] = true
				types = append(types, pt)
			}
		}
	}

	if len(types) == 0 {
		return DefaultProfileTypes(), nil
	}
	return types, nil
}

// FileName returns the output file name of pt, e.g. "mutex.pprof".
func (pt ProfileType) FileName() string {
	return string(pt) + ".pprof"
}
