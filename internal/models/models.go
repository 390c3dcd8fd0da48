// Package models defines the plain value types shared by the parser,
// the repository, and the graph query engine: entities, members,
// extensions, relationships, commits, and the parsed-file bundle the
// Swift source parser produces.
package models

import "time"

// EntityKind is the declaration kind of a top-level Swift type, or
// "extension" for an extension's owning entity.
type EntityKind string

const (
	KindClass     EntityKind = "class"
	KindStruct    EntityKind = "struct"
	KindEnum      EntityKind = "enum"
	KindProtocol  EntityKind = "protocol"
	KindExtension EntityKind = "extension"
)

// MemberKind is the declaration kind of a member belonging to an entity.
type MemberKind string

const (
	MemberFunction      MemberKind = "function"
	MemberInitializer   MemberKind = "initializer"
	MemberDeinitializer MemberKind = "deinitializer"
	MemberSubscript     MemberKind = "subscript"
	MemberVariable      MemberKind = "variable"
	MemberProperty      MemberKind = "property"
	MemberConstant      MemberKind = "constant"
	MemberTypealias     MemberKind = "typealias"
)

// EdgeType classifies a relationship edge.
type EdgeType string

const (
	EdgeSuperclass      EdgeType = "superclass"
	EdgeConforms        EdgeType = "conforms"
	EdgeStrongReference EdgeType = "strongReference"
	EdgeWeakReference   EdgeType = "weakReference"
	EdgeCreates         EdgeType = "creates"
)

// IsStructural returns true for edge types that bypass hop budgets
// once their source entity is already included (§4.6.1).
func (e EdgeType) IsStructural() bool {
	return e == EdgeSuperclass || e == EdgeConforms
}

// IsReference is true for edges traversed during reference-edge BFS
// (everything except "creates", which drives the created-by chain).
func (e EdgeType) IsReference() bool {
	return e != EdgeCreates
}

// TargetType classifies an entity's owning build target.
type TargetType string

const (
	TargetApp       TargetType = "app"
	TargetTest      TargetType = "test"
	TargetInterface TargetType = "interface"
	TargetMock      TargetType = "mock"
)

// EntityRecord is a top-level Swift type declaration produced by one
// parse of one file. Per-version attributes (line range, signature,
// docstring, code, property bag) travel with the record; the
// repository splits them into the denormalized row plus a version row.
type EntityRecord struct {
	StableID        string
	Name            string
	Kind            EntityKind
	Module          string
	Language        string
	PrimaryFilePath string

	StartLine  int
	EndLine    int
	Signature  string
	Docstring  string
	Code       string
	Properties map[string]string // extended_type, visibility, target_type, member_count
	IsDeleted  bool

	Members []MemberRecord

	// InheritedNames are the raw tokens after ":" in the declaration
	// signature, before superclass/conformance classification in §4.4
	// Pass 3. Not persisted directly; consumed by the relationship pass.
	InheritedNames []string
}

// MemberRecord belongs to exactly one entity.
type MemberRecord struct {
	EntityStableID string
	StableID       string // "<entity_id>:<kind>:<name>"
	Name           string
	Kind           MemberKind

	StartLine int
	EndLine   int
	Signature string
	Code      string
	IsDeleted bool
}

// ExtensionRecord adds members or conformances to an existing type.
// EntityStableID is the resolved owner (§4.4: the extended type's
// primary entity if known in this parse session, else the extension's
// own stable id).
type ExtensionRecord struct {
	StableID       string
	EntityStableID string
	ExtendedType   string
	Module         string
	Language       string

	FilePath     string
	StartLine    int
	EndLine      int
	Signature    string
	Code         string
	Visibility   string
	Constraints  string // where-clause text, if any
	Conformances []string
	TargetType   TargetType
	IsDeleted    bool

	Members []MemberRecord
}

// RelationshipRecord is an edge from a source entity to a named,
// possibly-unresolved target.
type RelationshipRecord struct {
	SourceStableID string
	TargetStableID string // empty until resolved
	TargetName     string
	TargetModule   string // advisory, see §4.7 resolution fallback
	EdgeType       EdgeType
	Metadata       map[string]string
	IsDeleted      bool
}

// Commit records one indexed git commit (real or synthetic worktree
// overlay, hash == "worktree:<branch>").
type Commit struct {
	Hash       string
	ParentHash string
	Branch     string
	IsMaster   bool
	IndexedAt  time.Time

	// Author/Message are best-effort, populated from `git log` when
	// available; no invariant or query depends on them (§C.5).
	Author  string
	Message string
}

// ParsedSource is the output of one Swift-source parse: every entity,
// extension, and relationship discovered in one file.
type ParsedSource struct {
	FilePath      string
	Entities      []EntityRecord
	Extensions    []ExtensionRecord
	Relationships []RelationshipRecord
}
