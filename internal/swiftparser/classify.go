package swiftparser

import (
	"regexp"
	"strings"

	"github.com/swiftgraph/indexer/internal/models"
)

var (
	declHeaderRe = regexp.MustCompile(`\b(class|struct|enum|protocol|extension)\s+([A-Za-z_][A-Za-z0-9_]*)`)

	funcHeaderRe       = regexp.MustCompile(`\bfunc\s+([A-Za-z_][A-Za-z0-9_]*)`)
	initHeaderRe       = regexp.MustCompile(`\binit[?!]?\s*[(<]`)
	deinitHeaderRe     = regexp.MustCompile(`\bdeinit\b`)
	subscriptHeaderRe  = regexp.MustCompile(`\bsubscript\s*[(<]`)
	typealiasHeaderRe  = regexp.MustCompile(`\btypealias\s+([A-Za-z_][A-Za-z0-9_]*)`)
	varLetHeaderRe     = regexp.MustCompile(`\b(var|let)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	visibilityTokenRe  = regexp.MustCompile(`^(public|private|fileprivate|internal|open)$`)
	whereClauseSplitRe = regexp.MustCompile(`\bwhere\b`)
	typeDecorationRe   = regexp.MustCompile(`^(any\s+)?(.*?)[?!]*$`)
	genericArgsRe      = regexp.MustCompile(`<[^<>]*>`)
)

// classifyDeclHeader reports whether header text opens a top-level
// type/extension declaration, returning its kind and declared name
// (for extension: the extended type's name).
func classifyDeclHeader(header string) (kind models.EntityKind, name string, ok bool) {
	m := declHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return "", "", false
	}
	switch m[1] {
	case "class":
		return models.KindClass, m[2], true
	case "struct":
		return models.KindStruct, m[2], true
	case "enum":
		return models.KindEnum, m[2], true
	case "protocol":
		return models.KindProtocol, m[2], true
	case "extension":
		return models.KindExtension, m[2], true
	}
	return "", "", false
}

// classifyMemberHeader reports whether a statement or block header is
// a member declaration, returning its kind and name.
func classifyMemberHeader(text string) (kind models.MemberKind, name string, ok bool) {
	if m := funcHeaderRe.FindStringSubmatch(text); m != nil {
		return models.MemberFunction, m[1], true
	}
	if initHeaderRe.MatchString(text) {
		return models.MemberInitializer, "init", true
	}
	if deinitHeaderRe.MatchString(text) {
		return models.MemberDeinitializer, "deinit", true
	}
	if subscriptHeaderRe.MatchString(text) {
		return models.MemberSubscript, "subscript", true
	}
	if m := typealiasHeaderRe.FindStringSubmatch(text); m != nil {
		return models.MemberTypealias, m[1], true
	}
	if m := varLetHeaderRe.FindStringSubmatch(text); m != nil {
		kind := models.MemberProperty
		if m[1] == "let" {
			kind = models.MemberConstant
		} else {
			kind = models.MemberVariable
		}
		return kind, m[2], true
	}
	return "", "", false
}

// extractVisibility scans the first five whitespace-separated tokens
// of a declaration header for a visibility keyword (§4.4 Pass 1).
func extractVisibility(header string) string {
	fields := strings.Fields(header)
	limit := 5
	if len(fields) < limit {
		limit = len(fields)
	}
	for i := 0; i < limit; i++ {
		if visibilityTokenRe.MatchString(fields[i]) {
			return fields[i]
		}
	}
	return "internal"
}

// extractInheritance returns the comma-separated tokens after the
// top-level ":" in a declaration header (before any "where" clause),
// and the where-clause text if present.
func extractInheritance(header string, declName string) (tokens []string, whereClause string) {
	rest := header
	if idx := strings.Index(header, declName); idx >= 0 {
		rest = header[idx+len(declName):]
	}

	whereIdx := whereClauseSplitRe.FindStringIndex(rest)
	clausePart := rest
	if whereIdx != nil {
		clausePart = rest[:whereIdx[0]]
		whereClause = strings.TrimSpace(rest[whereIdx[1]:])
	}

	colon := topLevelColon(clausePart)
	if colon < 0 {
		return nil, whereClause
	}
	list := clausePart[colon+1:]
	for _, tok := range splitTopLevelCommas(list) {
		tok = strings.TrimSpace(tok)
		tok = genericArgsRe.ReplaceAllString(tok, "")
		tok = strings.TrimSpace(tok)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens, whereClause
}

// topLevelColon finds the first ':' not nested inside <...> or (...).
func topLevelColon(s string) int {
	depth := 0
	for i, c := range s {
		switch c {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopLevelCommas(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, c := range s {
		switch c {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// normalizeTypeName strips "?", "!", generic brackets, and a leading
// "any " from a captured type string (§4.4 property-edge derivation).
func normalizeTypeName(raw string) string {
	t := strings.TrimSpace(raw)
	t = genericArgsRe.ReplaceAllString(t, "")
	t = strings.TrimRight(t, "?! \t")
	m := typeDecorationRe.FindStringSubmatch(t)
	if m != nil {
		t = m[2]
	}
	return strings.TrimSpace(t)
}

func startsUpper(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c >= 'A' && c <= 'Z'
}
