// Package manifest parses a declarative Swift project descriptor
// (Project.swift, in the Tuist/Geko style) into targets with source
// globs, test subtargets, and product/type classification (§4.2).
//
// The manifest is itself Swift, so the original system parses it with
// the same tree-sitter grammar it uses for source files (Design
// Note 9). No Swift grammar binding is available in this dependency
// family (see DESIGN.md), so this package walks the same hand-written
// internal/swiftsyntax brace tree the source parser uses, looking for
// call-expression-shaped headers ending in ".Module", ".Target", and
// ".Tests" with labeled arguments — the documented reduced-feature-set
// fallback.
package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/swiftgraph/indexer/internal/swiftsyntax"
)

// TestTarget is a nested test subtarget declared inside a .Target call.
type TestTarget struct {
	TestsType    string
	Sources      []string
	Dependencies []string // "<qualifier>:<name>"
}

// Target is one .Target(...) call's parsed arguments.
type Target struct {
	Name       string
	TargetType string // classified via (name, product), see classifyTarget
	Sources    []string
	Tests      []TestTarget
	Product    string
}

// Project is the parsed result of one manifest file.
type Project struct {
	Name    string
	Targets []Target
}

var (
	callHeaderRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_.]*)\s*\(\s*$`)
	labelArgRe   = regexp.MustCompile(`(?s)([A-Za-z_][A-Za-z0-9_]*)\s*:\s*(.*)`)
	stringLitRe  = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"`)
)

// Parse reads a manifest's full text and extracts its Module call,
// its Target calls, and each Target's nested Tests calls.
func Parse(path string, src []byte) (*Project, error) {
	root := swiftsyntax.Parse(src)

	moduleBlock := findCallEndingWith(root, src, ".Module")
	if moduleBlock == nil {
		return nil, fmt.Errorf("manifest %s: unable to locate a .Module call", path)
	}

	args := collectArguments(moduleBlock, src)
	name := parseStringArg(args["name"])
	if name == "" {
		name = fallbackProjectName(path)
	}

	var targets []Target
	if targetsBlock, ok := args["targets"]; ok {
		for _, call := range arrayCallElements(targetsBlock, src, ".Target") {
			targets = append(targets, parseTarget(call, src))
		}
	}

	return &Project{Name: name, Targets: targets}, nil
}

func parseTarget(call *swiftsyntax.Block, src []byte) Target {
	args := collectArguments(call, src)
	t := Target{
		Name:    parseStringArg(args["name"]),
		Sources: parseStringListArg(args["sources"]),
		Product: parseEnumArg(args["product"]),
	}
	t.TargetType = classifyTarget(t.Name, t.Product)

	if testsBlock, ok := args["tests"]; ok {
		for _, testCall := range arrayCallElements(testsBlock, src, ".Tests") {
			testArgs := collectArguments(testCall, src)
			t.Tests = append(t.Tests, TestTarget{
				TestsType:    parseEnumArg(testArgs["testsType"]),
				Sources:      parseStringListArg(testArgs["sources"]),
				Dependencies: parseDependencyNames(testArgs["dependencies"], src),
			})
		}
	}
	return t
}

// argValue is a labeled argument's raw value text ("name: ..." arguments
// in this DSL are always parenthesized text — see §4.2 — so no brace
// lookup is needed to recover them).
type argValue struct {
	text string
}

// collectArguments parses a call's parenthesized argument list into
// label -> value. Only top-level labeled arguments are recognized
// ("name: ...", "sources: [...]", ...), matching the documented
// argument shapes in §4.2.
func collectArguments(call *swiftsyntax.Block, src []byte) map[string]argValue {
	args := make(map[string]argValue)
	header := call.Header(src)
	open := strings.IndexByte(header, '(')
	if open < 0 {
		return args
	}
	paramText := header[open+1:]
	for _, segment := range splitTopLevelArgs(paramText) {
		m := labelArgRe.FindStringSubmatch(strings.TrimSpace(segment))
		if m == nil {
			continue
		}
		args[m[1]] = argValue{text: strings.TrimSpace(m[2])}
	}
	return args
}

func splitTopLevelArgs(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			if depth == 0 {
				return appendNonEmpty(out, s[start:i])
			}
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return appendNonEmpty(out, s[start:])
}

func appendNonEmpty(out []string, s string) []string {
	if strings.TrimSpace(s) != "" {
		return append(out, s)
	}
	return out
}

func parseStringArg(v argValue) string {
	m := stringLitRe.FindStringSubmatch(strings.TrimSpace(v.text))
	if m == nil {
		return strings.Trim(strings.TrimSpace(v.text), `"`)
	}
	return strings.ReplaceAll(m[1], `\"`, `"`)
}

// parseEnumArg reads an enum-case argument (".framework"); a string
// literal argument ("unit") is accepted too and returned unquoted.
func parseEnumArg(v argValue) string {
	text := strings.TrimSpace(v.text)
	if strings.HasPrefix(text, `"`) {
		return parseStringArg(v)
	}
	return strings.TrimPrefix(text, ".")
}

// parseStringListArg handles "[\"a\", \"b\"]"-shaped array literals of
// string literals.
func parseStringListArg(v argValue) []string {
	text := strings.TrimSpace(v.text)
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return nil
	}
	inner := text[1 : len(text)-1]
	var out []string
	for _, elem := range splitTopLevelArgs(inner) {
		elem = strings.TrimSpace(elem)
		if elem == "" {
			continue
		}
		if m := stringLitRe.FindStringSubmatch(elem); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

// parseDependencyNames parses an array of dependency call expressions
// like ".target(name: \"AppCore\")" or ".product(name: \"X\", package: \"Y\")"
// into "<qualifier>:<name>" strings.
func parseDependencyNames(v argValue, src []byte) []string {
	text := strings.TrimSpace(v.text)
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return nil
	}
	inner := text[1 : len(text)-1]
	var out []string
	for _, elem := range splitTopLevelArgs(inner) {
		elem = strings.TrimSpace(elem)
		open := strings.IndexByte(elem, '(')
		if open < 0 {
			continue
		}
		qualifier := strings.TrimPrefix(strings.TrimSpace(elem[:open]), ".")
		argsText := elem[open+1:]
		if close := strings.LastIndexByte(argsText, ')'); close >= 0 {
			argsText = argsText[:close]
		}
		for _, seg := range splitTopLevelArgs(argsText) {
			m := labelArgRe.FindStringSubmatch(strings.TrimSpace(seg))
			if m != nil && m[1] == "name" {
				if sm := stringLitRe.FindStringSubmatch(strings.TrimSpace(m[2])); sm != nil {
					out = append(out, qualifier+":"+sm[1])
				}
			}
		}
	}
	return out
}

// arrayCallElements scans an array-literal argument's text for
// top-level elements whose text contains suffix (e.g. ".Target",
// ".Tests") and returns one synthetic Block per element, built from
// that element's own text by syntheticCallBlock. Blocks of the
// manifest's own brace tree are never returned.
func arrayCallElements(v argValue, src []byte, suffix string) []*swiftsyntax.Block {
	text := strings.TrimSpace(v.text)
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return nil
	}
	inner := text[1 : len(text)-1]
	var out []*swiftsyntax.Block
	for _, elem := range splitTopLevelArgs(inner) {
		elem = strings.TrimSpace(elem)
		if !strings.Contains(elem, suffix) {
			continue
		}
		out = append(out, syntheticCallBlock(elem))
	}
	return out
}

// syntheticCallBlock wraps a standalone call-expression string (one
// that never opened a brace of its own) in a Block so the rest of the
// manifest parser can treat it uniformly via Header/collectArguments.
func syntheticCallBlock(text string) *swiftsyntax.Block {
	synthSrc := []byte(text + "{}")
	tree := swiftsyntax.Parse(synthSrc)
	if len(tree.Children) == 0 {
		b := &swiftsyntax.Block{BodyEnd: len(synthSrc)}
		return b
	}
	return tree.Children[0]
}

func findCallEndingWith(root *swiftsyntax.Block, src []byte, suffix string) *swiftsyntax.Block {
	var found *swiftsyntax.Block
	var walk func(b *swiftsyntax.Block)
	walk = func(b *swiftsyntax.Block) {
		if found != nil {
			return
		}
		for _, child := range b.Children {
			if callHeaderRe.MatchString(strings.TrimSpace(child.Header(src))) &&
				strings.Contains(child.Header(src), suffix) {
				found = child
				return
			}
			walk(child)
			if found != nil {
				return
			}
		}
	}
	walk(root)
	return found
}

// classifyTarget implements §4.2's (name, product) classification.
func classifyTarget(name, product string) string {
	lowered := strings.ToLower(name)
	if product != "" && strings.Contains(strings.ToLower(product), "test") {
		return "test"
	}
	if strings.HasSuffix(lowered, "mock") {
		return "mock"
	}
	if strings.HasSuffix(lowered, "io") || strings.HasSuffix(lowered, "interface") || strings.HasSuffix(lowered, "interfaces") {
		return "interface"
	}
	if strings.HasSuffix(lowered, "tests") {
		return "test"
	}
	return "app"
}

// SyntheticTestTargetName builds "<base><TestsType-Capitalized>Tests"
// for a nested test subtarget (§4.2).
func SyntheticTestTargetName(baseName, testsType string) string {
	suffix := ""
	if testsType != "" {
		suffix = strings.ToUpper(testsType[:1]) + testsType[1:]
	}
	return baseName + suffix + "Tests"
}

func fallbackProjectName(path string) string {
	dir := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		dir = path[:idx]
		if idx2 := strings.LastIndexByte(dir, '/'); idx2 >= 0 {
			dir = dir[idx2+1:]
		}
	}
	return dir
}
