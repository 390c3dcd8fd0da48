package swiftsyntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNestedBlocks(t *testing.T) {
	src := []byte(`struct Greeter {
    func greet() {
        print("hi {not a brace}")
    }
}
`)
	root := Parse(src)
	require.Len(t, root.Children, 1)
	structBlock := root.Children[0]
	assert.Equal(t, "struct Greeter ", structBlock.Header(src))
	require.Len(t, structBlock.Children, 1)
	funcBlock := structBlock.Children[0]
	assert.Equal(t, "\n    func greet() ", funcBlock.Header(src))
}

func TestParseIgnoresBracesInComments(t *testing.T) {
	src := []byte(`// a { comment
/* another { block } comment */
struct Empty {}
`)
	root := Parse(src)
	require.Len(t, root.Children, 1)
	assert.Contains(t, root.Children[0].Header(src), "struct Empty")
}

func TestStatementsSplitsStoredProperties(t *testing.T) {
	src := []byte(`struct Model {
    let id: Int
    var name: String
    func noop() {}
}
`)
	root := Parse(src)
	model := root.Children[0]
	stmts := Statements(model, src)
	require.GreaterOrEqual(t, len(stmts), 2)
	assert.Contains(t, stmts[0].Text, "let id: Int")
	assert.Contains(t, stmts[1].Text, "var name: String")
}
