// Package alias resolves operator-friendly Name tags to live resource
// ids. Only running instances are visible; anything else must be
// addressed by raw id.
package alias

import "github.com/stratus-ops/stratus/types"

// Resolver holds the two indexes rebuilt from a cached instance listing.
type Resolver struct {
	nameToID map[string]string
	idToDNS  map[string]string
}

// Build constructs a resolver from an instance listing. When two running
// instances share a Name the last one seen wins.
func Build(instances []types.Instance) *Resolver {
	r := &Resolver{
		nameToID: make(map[string]string),
		idToDNS:  make(map[string]string),
	}
	for _, inst := range instances {
		if !inst.Running() {
			continue
		}
		if name := inst.Name(); name != "" {
			r.nameToID[name] = inst.ID
		}
		r.idToDNS[inst.ID] = inst.DNSName
	}
	return r
}

// Resolve maps a Name-tag alias to its instance id; raw ids and unknown
// names pass through verbatim.
func (r *Resolver) Resolve(input string) string {
	return MapOrVal(r.nameToID, input)
}

// DNS returns the public DNS name of a running instance id, or "" when
// unknown.
func (r *Resolver) DNS(id string) string {
	return r.idToDNS[id]
}

// MapOrVal returns m[input] when present, else input unchanged.
func MapOrVal(m map[string]string, input string) string {
	if v, ok := m[input]; ok {
		return v
	}
	return input
}
