// Package swiftparser extracts entities, members, extensions, and
// relationships from Swift source text (§4.4). It walks the brace
// tree produced by internal/swiftsyntax exactly as the teacher's
// treesitter extractors walk a tree-sitter CST, then derives
// relationships with the same regex-over-declaration-text approach
// Design Note 9 sanctions for property-type extraction.
package swiftparser

import (
	"sort"
	"strconv"
	"strings"

	"github.com/swiftgraph/indexer/internal/models"
	"github.com/swiftgraph/indexer/internal/stableid"
	"github.com/swiftgraph/indexer/internal/swiftsyntax"
)

const Language = "swift"

// SwiftParser extracts ParsedSource bundles from source files. One
// instance should be reused across every file of one indexing pass so
// its TypeRegistry accumulates type knowledge session-wide (§4.4, §5).
type SwiftParser struct {
	registry *TypeRegistry
}

// NewSwiftParser returns a parser with a fresh TypeRegistry.
func NewSwiftParser() *SwiftParser {
	return &SwiftParser{registry: NewTypeRegistry()}
}

type declEvent struct {
	kind  models.EntityKind
	name  string
	block *swiftsyntax.Block
}

// Parse extracts entities, extensions, and relationships from one
// file's content. module is supplied by the caller (the module
// resolver, §4.3), which runs independently of parsing.
func (p *SwiftParser) Parse(path string, src []byte, module string) (*models.ParsedSource, error) {
	root := swiftsyntax.Parse(src)
	events := collectDeclEvents(root, src)

	out := &models.ParsedSource{FilePath: path}

	// Pass 1 + Pass 2: collect entities and extensions, registering
	// each declared (non-extension) type's identity in the session's
	// TypeRegistry so later files/declarations can classify it.
	for _, ev := range events {
		if ev.kind == models.KindExtension {
			continue
		}
		entity := p.buildEntity(ev, src, path, module)
		p.registry.Register(entity.Name, entity.Kind, entity.StableID, entity.Module)
		out.Entities = append(out.Entities, entity)
	}
	for _, ev := range events {
		if ev.kind != models.KindExtension {
			continue
		}
		out.Extensions = append(out.Extensions, p.buildExtension(ev, src, path, module))
	}

	// Pass 3: derive relationships now that every type declared in
	// this file is registered.
	for _, e := range out.Entities {
		out.Relationships = append(out.Relationships, p.deriveEntityRelationships(e)...)
	}
	for i := range out.Extensions {
		ext := &out.Extensions[i]
		if info, ok := p.registry.Lookup(ext.ExtendedType); ok {
			ext.EntityStableID = info.StableID
		} else {
			ext.EntityStableID = ext.StableID
		}
		out.Relationships = append(out.Relationships, p.deriveExtensionRelationships(*ext)...)
	}

	return out, nil
}

func collectDeclEvents(root *swiftsyntax.Block, src []byte) []declEvent {
	var events []declEvent
	var walk func(b *swiftsyntax.Block)
	walk = func(b *swiftsyntax.Block) {
		for _, child := range b.Children {
			if kind, name, ok := classifyDeclHeader(child.Header(src)); ok {
				events = append(events, declEvent{kind: kind, name: name, block: child})
			}
			walk(child)
		}
	}
	walk(root)
	return events
}

func (p *SwiftParser) buildEntity(ev declEvent, src []byte, path, module string) models.EntityRecord {
	header := ev.block.Header(src)
	members := collectMembers(ev.block, src)
	inherited, _ := extractInheritance(header, ev.name)
	// The header can begin with blank and comment lines; the entity
	// starts on the line of its declaration keyword.
	startLine := ev.block.StartLine
	if loc := declHeaderRe.FindStringIndex(header); loc != nil {
		startLine += strings.Count(header[:loc[0]], "\n")
	}

	return models.EntityRecord{
		StableID:        stableid.Entity(Language, module, ev.name),
		Name:            ev.name,
		Kind:            ev.kind,
		Module:          module,
		Language:        Language,
		PrimaryFilePath: path,
		StartLine:       startLine,
		EndLine:         ev.block.EndLine,
		Signature:       truncate(firstLine(header)+"{", 240),
		Docstring:       docstringAbove(src, startLine),
		Code:            ev.block.Full(src),
		Properties: map[string]string{
			"visibility":   extractVisibility(header),
			"member_count": strconv.Itoa(len(members)),
		},
		Members:        members,
		InheritedNames: inherited,
	}
}

func (p *SwiftParser) buildExtension(ev declEvent, src []byte, path, module string) models.ExtensionRecord {
	header := ev.block.Header(src)
	members := collectMembers(ev.block, src)
	conformances, whereClause := extractInheritance(header, ev.name)

	return models.ExtensionRecord{
		StableID:     stableid.Extension(Language, module, ev.name, path, ev.block.StartLine),
		ExtendedType: ev.name,
		Module:       module,
		Language:     Language,
		FilePath:     path,
		StartLine:    ev.block.StartLine,
		EndLine:      ev.block.EndLine,
		Signature:    truncate(firstLine(header)+"{", 240),
		Code:         ev.block.Full(src),
		Visibility:   extractVisibility(header),
		Constraints:  whereClause,
		Conformances: conformances,
		Members:      members,
	}
}

// collectMembers gathers both brace-less statements (stored
// properties, typealiases) and brace-having children (functions,
// initializers, subscripts, computed properties) that belong directly
// to block, skipping any child that is itself a nested type/extension
// declaration (those surface as their own decl events).
func collectMembers(block *swiftsyntax.Block, src []byte) []models.MemberRecord {
	var members []models.MemberRecord

	for _, stmt := range swiftsyntax.Statements(block, src) {
		if kind, name, ok := classifyMemberHeader(stmt.Text); ok {
			members = append(members, models.MemberRecord{
				Name:      name,
				Kind:      kind,
				StartLine: stmt.StartLine,
				EndLine:   stmt.StartLine,
				Signature: truncate(stmt.Text, 240),
				Code:      stmt.Text,
			})
		}
	}

	for _, child := range block.Children {
		header := child.Header(src)
		if _, _, isDecl := classifyDeclHeader(header); isDecl {
			continue
		}
		if kind, name, ok := classifyMemberHeader(header); ok {
			members = append(members, models.MemberRecord{
				Name:      name,
				Kind:      kind,
				StartLine: child.StartLine,
				EndLine:   child.EndLine,
				Signature: truncate(strings.TrimSpace(firstLine(header))+" {", 240),
				Code:      child.Full(src),
			})
		}
	}

	sort.SliceStable(members, func(i, j int) bool { return members[i].StartLine < members[j].StartLine })
	return members
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// docstringAbove collects contiguous "///" doc-comment lines
// immediately preceding startLine; "/** ... */" block comments are not
// collected.
func docstringAbove(src []byte, startLine int) string {
	lines := strings.Split(string(src), "\n")
	idx := startLine - 2 // 0-based index of the line just above startLine
	var collected []string

	for idx >= 0 {
		trimmed := strings.TrimSpace(lines[idx])
		if strings.HasPrefix(trimmed, "///") {
			collected = append([]string{strings.TrimSpace(strings.TrimPrefix(trimmed, "///"))}, collected...)
			idx--
			continue
		}
		break
	}
	if len(collected) > 0 {
		return strings.Join(collected, "\n")
	}
	return ""
}
