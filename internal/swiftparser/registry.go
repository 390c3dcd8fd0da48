package swiftparser

import "github.com/swiftgraph/indexer/internal/models"

// typeInfo is what the TypeRegistry remembers about a type it has
// already seen declared in this parse session.
type typeInfo struct {
	Kind     models.EntityKind
	StableID string
	Module   string
}

// TypeRegistry accumulates simple-name → kind/stable-id mappings as a
// SwiftParser walks files in one indexing pass (§4.4). It is advisory:
// used only for the class-superclass heuristic and for resolving an
// extension's source stable id to its extended type's primary entity.
// It is owned by a single SwiftParser instance and never shared across
// goroutines (§5).
type TypeRegistry struct {
	types map[string]typeInfo
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]typeInfo)}
}

// Register records (or overwrites) what this parse session knows
// about a type name.
func (r *TypeRegistry) Register(name string, kind models.EntityKind, stableID, module string) {
	r.types[name] = typeInfo{Kind: kind, StableID: stableID, Module: module}
}

// Lookup returns what is known about name, if anything.
func (r *TypeRegistry) Lookup(name string) (typeInfo, bool) {
	info, ok := r.types[name]
	return info, ok
}

// IsKnownClass reports whether name is registered as a class.
func (r *TypeRegistry) IsKnownClass(name string) bool {
	info, ok := r.types[name]
	return ok && info.Kind == models.KindClass
}
