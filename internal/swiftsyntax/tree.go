// Package swiftsyntax implements a hand-written, brace-aware
// declaration tree over Swift-shaped source text.
//
// The teacher's treesitter.LanguageParser treats tree-sitter as an
// opaque, query-capable syntax tree for JavaScript, TypeScript, and
// Python. No Swift grammar binding is available in that dependency
// family (see DESIGN.md), so this package plays the same role for
// Swift: it exposes a walkable tree of brace-delimited Blocks with
// line/byte ranges, which internal/swiftparser and internal/manifest
// walk exactly as they would a real tree-sitter CST. It understands
// enough of Swift's lexical grammar (line/block comments, string and
// triple-quoted-string literals) to avoid miscounting braces that
// appear inside them; it does not parse expressions.
package swiftsyntax

// Block is one brace-delimited region: the header text that precedes
// its opening '{' (a declaration signature, a call expression, or
// anything else that happens to precede a brace), and the nested
// Blocks found inside its body.
type Block struct {
	HeaderStart int
	HeaderEnd   int // byte offset of '{'
	BodyStart   int // byte offset just after '{'
	BodyEnd     int // byte offset of matching '}', or len(src) if unterminated
	StartLine   int // 1-based line of HeaderStart
	EndLine     int // 1-based line of the closing '}'

	Children []*Block
}

// Header returns the untrimmed header text for this block: everything
// from the previous sibling's '}' (or the parent's '{') up to this
// block's '{'.
func (b *Block) Header(src []byte) string {
	return string(src[b.HeaderStart:b.HeaderEnd])
}

// Body returns the raw body text between braces.
func (b *Block) Body(src []byte) string {
	return string(src[b.BodyStart:b.BodyEnd])
}

// Full returns the header plus braces and body.
func (b *Block) Full(src []byte) string {
	end := b.BodyEnd
	if end < len(src) {
		end++ // include the closing brace
	}
	return string(src[b.HeaderStart:end])
}

// Parse builds the root block for a whole file. The root's header is
// always empty; its Children are the top-level brace regions.
func Parse(src []byte) *Block {
	root := &Block{BodyStart: 0, BodyEnd: len(src), StartLine: 1}

	type frame struct {
		block           *Block
		headerStart     int
		headerStartLine int
	}
	stack := []*frame{{block: root, headerStart: 0, headerStartLine: 1}}

	line := 1
	i := 0
	n := len(src)

	for i < n {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++

		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i+1 < n && !(src[i] == '*' && src[i+1] == '/') {
				if src[i] == '\n' {
					line++
				}
				i++
			}
			i += 2
			if i > n {
				i = n
			}

		case c == '"':
			i, line = skipStringLiteral(src, i, line)

		case c == '{':
			top := stack[len(stack)-1]
			b := &Block{
				HeaderStart: top.headerStart,
				HeaderEnd:   i,
				BodyStart:   i + 1,
				StartLine:   top.headerStartLine,
				EndLine:     line,
				BodyEnd:     n,
			}
			stack = append(stack, &frame{block: b, headerStart: i + 1, headerStartLine: line})
			i++

		case c == '}':
			if len(stack) > 1 {
				top := stack[len(stack)-1]
				top.block.BodyEnd = i
				top.block.EndLine = line
				stack = stack[:len(stack)-1]
				parent := stack[len(stack)-1]
				parent.block.Children = append(parent.block.Children, top.block)
				parent.headerStart = i + 1
				parent.headerStartLine = line
			}
			i++

		default:
			i++
		}
	}

	root.EndLine = line
	return root
}

// skipStringLiteral advances past a Swift string literal (including
// triple-quoted """ literals) starting at a '"' byte, returning the
// new index and line. Escaped quotes inside single-line strings are
// honored; interpolation braces \( ... ) are intentionally NOT
// tracked as nested blocks (a documented limitation, see DESIGN.md).
func skipStringLiteral(src []byte, i, line int) (int, int) {
	n := len(src)
	if i+2 < n && src[i+1] == '"' && src[i+2] == '"' {
		i += 3
		for i+2 < n && !(src[i] == '"' && src[i+1] == '"' && src[i+2] == '"') {
			if src[i] == '\n' {
				line++
			}
			i++
		}
		i += 3
		if i > n {
			i = n
		}
		return i, line
	}

	i++ // past opening quote
	for i < n && src[i] != '"' {
		if src[i] == '\\' && i+1 < n {
			i += 2
			continue
		}
		if src[i] == '\n' {
			line++
		}
		i++
	}
	if i < n {
		i++ // past closing quote
	}
	return i, line
}
