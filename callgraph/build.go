package callgraph

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wardenscan/javasentry/model"
)

var genericsStripper = regexp.MustCompile(`<[^<>]*>`)

// stripGenerics removes a single level of generic type arguments and
// array brackets, e.g. "List<String>" -> "List", "Foo[]" -> "Foo".
func stripGenerics(typ string) string {
	typ = genericsStripper.ReplaceAllString(typ, "")
	typ = strings.TrimSuffix(strings.TrimSpace(typ), "[]")
	return strings.TrimSpace(typ)
}

// symbolTable maps a declared identifier to its declared type, stripped
// of generics, across an entire compilation unit: local variables, field
// declarations, and method parameters all contribute.
type symbolTable map[string]string

func buildSymbolTable(root *sitter.Node, source []byte) symbolTable {
	table := make(symbolTable)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "local_variable_declaration", "field_declaration":
			typeNode := n.ChildByFieldName("type")
			if typeNode != nil {
				typ := stripGenerics(typeNode.Content(source))
				for i := 0; i < int(n.ChildCount()); i++ {
					c := n.Child(i)
					if c.Type() != "variable_declarator" {
						continue
					}
					nameNode := c.ChildByFieldName("name")
					if nameNode != nil {
						table[nameNode.Content(source)] = typ
					}
				}
			}
		case "formal_parameter", "spread_parameter":
			typeNode := n.ChildByFieldName("type")
			nameNode := n.ChildByFieldName("name")
			if typeNode != nil && nameNode != nil {
				table[nameNode.Content(source)] = stripGenerics(typeNode.Content(source))
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return table
}

// frame tracks the enclosing class/method while walking the tree so every
// method_invocation can be attributed to a caller Signature.
type frame struct {
	class  string
	method string
}

// Build walks tree's method invocations and records one edge per
// invocation into g, attributing each to its enclosing method and
// resolving the callee's base type per the qualifier/symbol-table/
// fluent-chain/sentinel resolution order.
func Build(g *Graph, tree *sitter.Tree, source []byte) {
	table := buildSymbolTable(tree.RootNode(), source)
	lastCallee := make(map[model.Signature]string)

	var stack []frame
	currentCaller := func() model.Signature {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].method != "" {
				class := "unknown"
				for j := i; j >= 0; j-- {
					if stack[j].class != "" {
						class = stack[j].class
						break
					}
				}
				return model.NewSignature(class, stack[i].method)
			}
		}
		return model.UnknownSignature
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		pushed := false
		switch n.Type() {
		case "class_declaration", "interface_declaration", "enum_declaration":
			name := ""
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				name = nameNode.Content(source)
			}
			stack = append(stack, frame{class: name})
			pushed = true
		case "method_declaration", "constructor_declaration":
			name := ""
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				name = nameNode.Content(source)
			}
			stack = append(stack, frame{method: name})
			pushed = true
		case "method_invocation":
			caller := currentCaller()
			callee := resolveCallee(n, source, table, lastCallee[caller])
			sig := model.NewSignature(callee, invocationName(n, source))
			g.AddEdge(caller, sig)
			lastCallee[caller] = callee
		}

		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}

		if pushed {
			stack = stack[:len(stack)-1]
		}
	}
	walk(tree.RootNode())
}

func invocationName(n *sitter.Node, source []byte) string {
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		return nameNode.Content(source)
	}
	return "unknown"
}

// resolveCallee determines the base type a method_invocation is called
// against, per the qualifier / symbol-table / object-creation / fluent-
// chain / sentinel resolution order.
func resolveCallee(n *sitter.Node, source []byte, table symbolTable, priorCallee string) string {
	obj := n.ChildByFieldName("object")
	if obj == nil {
		return selfReceiver(n, source, priorCallee)
	}

	switch obj.Type() {
	case "identifier":
		qualifier := obj.Content(source)
		if typ, ok := table[qualifier]; ok {
			return typ
		}
		if idx := strings.Index(qualifier, "."); idx > 0 && isUpper(qualifier[0]) {
			return qualifier[:idx]
		}
		return qualifier
	case "object_creation_expression":
		if typeNode := obj.ChildByFieldName("type"); typeNode != nil {
			return stripGenerics(typeNode.Content(source))
		}
	case "method_invocation":
		// Fluent chain: approximate by reusing the base type this caller
		// resolved for its immediately preceding call.
		if priorCallee != "" {
			return priorCallee
		}
	}

	text := obj.Content(source)
	if text != "" {
		return text
	}
	return model.UnresolvedCallee
}

// selfReceiver resolves an unqualified invocation's base type: if the
// node's immediate parent is an object-creation or class-literal
// expression, use its type; otherwise fall back to the caller's most
// recently recorded callee type; otherwise the unresolved sentinel.
func selfReceiver(n *sitter.Node, source []byte, priorCallee string) string {
	if parent := n.Parent(); parent != nil {
		switch parent.Type() {
		case "object_creation_expression", "class_literal":
			if typeNode := parent.ChildByFieldName("type"); typeNode != nil {
				return stripGenerics(typeNode.Content(source))
			}
		}
	}
	if priorCallee != "" {
		return priorCallee
	}
	return model.UnresolvedCallee
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
