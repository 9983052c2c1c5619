package debugger

import (
	"fmt"
	"sort"
)

// SymbolResolver resolves byte-code offsets to the nearest label at or
// before them, for backtraces and disassembly annotation. It is built once
// from a SoilBinary's label map and never mutated afterward.
type SymbolResolver struct {
	byName    map[string]uint64
	byAddress map[uint64]string
	sorted    []uint64
}

// NewSymbolResolver builds a resolver from an offset->name label map. A nil
// or empty map yields a resolver that never finds anything.
func NewSymbolResolver(labels map[uint64]string) *SymbolResolver {
	sorted := make([]uint64, 0, len(labels))
	byName := make(map[string]uint64, len(labels))
	for addr, name := range labels {
		sorted = append(sorted, addr)
		byName[name] = addr
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return &SymbolResolver{
		byName:    byName,
		byAddress: labels,
		sorted:    sorted,
	}
}

// Lookup returns the exact label at address, if any.
func (r *SymbolResolver) Lookup(address uint64) (string, bool) {
	name, ok := r.byAddress[address]
	return name, ok
}

// Resolve finds the nearest label at or before address, returning its name
// and the offset from it. found is false only when address precedes every
// label.
func (r *SymbolResolver) Resolve(address uint64) (name string, offset uint64, found bool) {
	if name, ok := r.byAddress[address]; ok {
		return name, 0, true
	}
	if len(r.sorted) == 0 {
		return "", 0, false
	}
	idx := sort.Search(len(r.sorted), func(i int) bool { return r.sorted[i] > address })
	if idx == 0 {
		return "", 0, false
	}
	nearest := r.sorted[idx-1]
	return r.byAddress[nearest], address - nearest, true
}

// Format renders an address with its nearest-symbol annotation, in the
// "name+offset (0xADDR)" shape used by the CLI's call trace.
func (r *SymbolResolver) Format(address uint64) string {
	name, offset, found := r.Resolve(address)
	if !found {
		return fmt.Sprintf("0x%016x", address)
	}
	if offset == 0 {
		return fmt.Sprintf("%s (0x%016x)", name, address)
	}
	return fmt.Sprintf("%s+%d (0x%016x)", name, offset, address)
}
