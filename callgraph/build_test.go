package callgraph

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *sitter.Tree {
	t.Helper()
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	tree, err := p.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)
	return tree
}

const chainSource = `
class A {
    Svc svc;
    @GetMapping
    public String h(String p) {
        svc.q(p);
        return p;
    }
}

class Svc {
    Statement stmt;
    public void q(String s) {
        stmt.executeQuery("select * from t where x=" + s);
    }
}
`

func TestBuildResolvesQualifiedCallViaSymbolTable(t *testing.T) {
	tree := parse(t, chainSource)
	g := New()
	Build(g, tree, []byte(chainSource))

	callees := g.Callees("A:h")
	require.Len(t, callees, 1)
	assert.Equal(t, "Svc:q", string(callees[0]))
}

func TestReverseGraphIsTransposeAndDeduped(t *testing.T) {
	tree := parse(t, chainSource)
	g := New()
	Build(g, tree, []byte(chainSource))
	rev := g.BuildReverse()

	callers := rev.Callers("Svc:q")
	require.Len(t, callers, 1)
	assert.Equal(t, "A:h", string(callers[0]))
}

func TestUnqualifiedCallWithoutPriorCalleeIsUnresolved(t *testing.T) {
	src := `
class A {
    public void h() {
        helper();
    }
    public void helper() {}
}
`
	tree := parse(t, src)
	g := New()
	Build(g, tree, []byte(src))
	callees := g.Callees("A:h")
	require.Len(t, callees, 1)
	assert.Equal(t, "[!]unresolved:helper", string(callees[0]))
}
