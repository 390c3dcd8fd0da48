package swiftparser

import (
	"regexp"

	"github.com/swiftgraph/indexer/internal/models"
)

var (
	propertyTypeRe = regexp.MustCompile(`(weak|unowned)?\s*(var|let)\s+[A-Za-z_][A-Za-z0-9_]*\s*:\s*([^={\n]+)`)
	callHeadRe     = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*)\s*\(`)
)

func (p *SwiftParser) deriveEntityRelationships(e models.EntityRecord) []models.RelationshipRecord {
	var rels []models.RelationshipRecord
	rels = append(rels, derivePropertyEdges(e.StableID, e.Members, false)...)
	rels = append(rels, deriveCreationEdges(e.StableID, e.Members, false)...)
	rels = append(rels, p.deriveInheritanceEdges(e.StableID, e.Kind, e.InheritedNames, false)...)
	return rels
}

func (p *SwiftParser) deriveExtensionRelationships(ext models.ExtensionRecord) []models.RelationshipRecord {
	source := ext.EntityStableID
	if source == "" {
		source = ext.StableID
	}
	var rels []models.RelationshipRecord
	rels = append(rels, derivePropertyEdges(source, ext.Members, true)...)
	rels = append(rels, deriveCreationEdges(source, ext.Members, true)...)
	for _, name := range ext.Conformances {
		rels = append(rels, models.RelationshipRecord{
			SourceStableID: source,
			TargetName:     name,
			EdgeType:       models.EdgeConforms,
			Metadata:       map[string]string{"declaredVia": "extension"},
		})
	}
	return rels
}

// derivePropertyEdges implements §4.4 Pass 3's property-edge rule:
// [weak|unowned]? (var|let) name : Type, emitting strongReference or
// weakReference when the captured type starts uppercase.
func derivePropertyEdges(sourceID string, members []models.MemberRecord, fromExtension bool) []models.RelationshipRecord {
	var rels []models.RelationshipRecord
	for _, m := range members {
		if m.Kind != models.MemberVariable && m.Kind != models.MemberProperty && m.Kind != models.MemberConstant {
			continue
		}
		match := propertyTypeRe.FindStringSubmatch(m.Signature)
		if match == nil {
			continue
		}
		target := normalizeTypeName(match[3])
		if !startsUpper(target) {
			continue
		}

		edgeType := models.EdgeStrongReference
		strength := "strong"
		if match[1] == "weak" || match[1] == "unowned" {
			edgeType = models.EdgeWeakReference
			strength = "weak"
		}

		meta := map[string]string{"member": m.Name, "strength": strength, "storage": "property"}
		if fromExtension {
			meta["declaredVia"] = "extension"
		}
		rels = append(rels, models.RelationshipRecord{
			SourceStableID: sourceID,
			TargetName:     target,
			EdgeType:       edgeType,
			Metadata:       meta,
		})
	}
	return rels
}

// deriveCreationEdges implements §4.4 Pass 3's creation-edge rule: for
// every function/initializer member, walk call expressions in its
// body and emit a "creates" edge for each uppercase-leading head
// identifier (the final segment of a navigation expression, since the
// regex anchors on the identifier immediately preceding "(").
func deriveCreationEdges(sourceID string, members []models.MemberRecord, fromExtension bool) []models.RelationshipRecord {
	var rels []models.RelationshipRecord
	for _, m := range members {
		if m.Kind != models.MemberFunction && m.Kind != models.MemberInitializer {
			continue
		}
		seen := make(map[string]bool)
		for _, match := range callHeadRe.FindAllStringSubmatch(m.Code, -1) {
			target := match[1]
			if seen[target] {
				continue
			}
			seen[target] = true
			meta := map[string]string{"member": m.Name}
			if fromExtension {
				meta["declaredVia"] = "extension"
			}
			rels = append(rels, models.RelationshipRecord{
				SourceStableID: sourceID,
				TargetName:     target,
				EdgeType:       models.EdgeCreates,
				Metadata:       meta,
			})
		}
	}
	return rels
}

// deriveInheritanceEdges implements §4.4 Pass 3's superclass tie-break
// for classes, and the all-conforms rule for every other kind.
func (p *SwiftParser) deriveInheritanceEdges(sourceID string, kind models.EntityKind, inherited []string, fromExtension bool) []models.RelationshipRecord {
	var rels []models.RelationshipRecord
	if len(inherited) == 0 {
		return rels
	}

	if kind != models.KindClass {
		for _, name := range inherited {
			meta := map[string]string{}
			if fromExtension {
				meta["declaredVia"] = "extension"
			}
			rels = append(rels, models.RelationshipRecord{
				SourceStableID: sourceID, TargetName: name, EdgeType: models.EdgeConforms, Metadata: meta,
			})
		}
		return rels
	}

	superIdx := -1
	for i, name := range inherited {
		if isPreclassifiedProtocol(name) {
			continue
		}
		if p.registry.IsKnownClass(name) {
			superIdx = i
			break
		}
	}
	assumed := false
	if superIdx < 0 {
		for i, name := range inherited {
			if isPreclassifiedProtocol(name) {
				continue
			}
			superIdx = i
			assumed = true
			break
		}
	}

	for i, name := range inherited {
		meta := map[string]string{}
		if fromExtension {
			meta["declaredVia"] = "extension"
		}
		if i == superIdx {
			if assumed {
				meta["assumed"] = "true"
			}
			rels = append(rels, models.RelationshipRecord{
				SourceStableID: sourceID, TargetName: name, EdgeType: models.EdgeSuperclass, Metadata: meta,
			})
			continue
		}
		rels = append(rels, models.RelationshipRecord{
			SourceStableID: sourceID, TargetName: name, EdgeType: models.EdgeConforms, Metadata: meta,
		})
	}
	return rels
}

func isPreclassifiedProtocol(name string) bool {
	return name == "AnyObject" || name == "Sendable"
}
