// Package classindex records, per class, which methods exist, whether
// they declare parameters, and whether they carry an HTTP-mapping
// annotation — the two facts chainfinder needs to prune and terminate
// its backtracking search.
package classindex

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/wardenscan/javasentry/model"
)

// Index is the ClassIndex: class name -> ClassRecord, built incrementally
// during the build phase and read-only afterward.
//
// Concurrency: Index is written from multiple parser workers; all
// mutation goes through Merge, which the caller serializes behind a
// single mutex shared with CallGraph (see engine). Index itself also
// holds an internal mutex so it is safe to use standalone in tests.
type Index struct {
	mu      sync.Mutex
	classes map[string]*model.ClassRecord
}

// New returns an empty Index.
func New() *Index {
	return &Index{classes: make(map[string]*model.ClassRecord)}
}

// Merge records every class declared in tree (rooted at a parsed file's
// AST) into the index, associating them with relPath.
func (idx *Index) Merge(tree *sitter.Tree, source []byte, relPath string) {
	classes := extractClasses(tree.RootNode(), source)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for name, rec := range classes {
		rec.FilePath = relPath
		existing, ok := idx.classes[name]
		if !ok {
			idx.classes[name] = rec
			continue
		}
		// Same short class name declared in more than one file: merge
		// method maps rather than discard, since the Signature contract
		// only promises short-name equivalence, not global uniqueness.
		for m, info := range rec.Methods {
			existing.Methods[m] = info
		}
	}
}

// IsEntryPoint reports whether sig names a known method that carries an
// HTTP-mapping annotation.
func (idx *Index) IsEntryPoint(sig model.Signature) bool {
	info, ok := idx.lookup(sig)
	return ok && info.HasMappingAnnotation
}

// IsHasParameters reports whether sig's method declares parameters.
// Unknown methods (unresolved externals) default to true — pessimistic
// inclusion, preserved verbatim from the reference behavior: an
// unresolved caller is never pruned just because we can't see its
// signature, since external library calls routinely forward tainted
// arguments.
func (idx *Index) IsHasParameters(sig model.Signature) bool {
	info, ok := idx.lookup(sig)
	if !ok {
		return true
	}
	return info.RequiresParams
}

// MethodSource returns the recorded source span for sig's method, used by
// the SQL_CONCAT_TEXT text heuristic.
func (idx *Index) MethodSource(sig model.Signature) (string, bool) {
	info, ok := idx.lookup(sig)
	if !ok || info.SourceSpan == "" {
		return "", false
	}
	return info.SourceSpan, true
}

// ClassFile returns the file path a class was declared in.
func (idx *Index) ClassFile(class string) (string, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rec, ok := idx.lookupClassLocked(class)
	if !ok {
		return "", false
	}
	return rec.FilePath, true
}

func (idx *Index) lookup(sig model.Signature) (model.MethodInfo, bool) {
	class, method := sig.Split()
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rec, ok := idx.lookupClassLocked(class)
	if !ok {
		return model.MethodInfo{}, false
	}
	info, ok := rec.Methods[method]
	return info, ok
}

// lookupClassLocked resolves class by exact match first, then by
// short-name equivalence against every indexed class — mirrors
// Signature's short-class-name comparison rule. Caller holds idx.mu.
func (idx *Index) lookupClassLocked(class string) (*model.ClassRecord, bool) {
	if rec, ok := idx.classes[class]; ok {
		return rec, true
	}
	short := model.ShortClass(class)
	for name, rec := range idx.classes {
		if model.ShortClass(name) == short {
			return rec, true
		}
	}
	return nil, false
}

func extractClasses(root *sitter.Node, source []byte) map[string]*model.ClassRecord {
	out := make(map[string]*model.ClassRecord)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "class_declaration", "interface_declaration", "enum_declaration":
			nameNode := n.ChildByFieldName("name")
			if nameNode != nil {
				className := nameNode.Content(source)
				rec := &model.ClassRecord{Methods: extractMethods(n, source)}
				out[className] = rec
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return out
}

func extractMethods(classNode *sitter.Node, source []byte) map[string]model.MethodInfo {
	methods := make(map[string]model.MethodInfo)
	body := classNode.ChildByFieldName("body")
	if body == nil {
		return methods
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		if member.Type() != "method_declaration" && member.Type() != "constructor_declaration" {
			continue
		}
		nameNode := member.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nameNode.Content(source)
		methods[name] = model.MethodInfo{
			RequiresParams:       hasParameters(member),
			HasMappingAnnotation: hasMappingAnnotation(member, source),
			SourceSpan:           member.Content(source),
			Line:                 int(member.StartPoint().Row) + 1,
		}
	}
	return methods
}

func hasParameters(method *sitter.Node) bool {
	params := method.ChildByFieldName("parameters")
	if params == nil {
		return false
	}
	return int(params.NamedChildCount()) > 0
}

func hasMappingAnnotation(method *sitter.Node, source []byte) bool {
	modifiers := findChildOfType(method, "modifiers")
	if modifiers == nil {
		return false
	}
	for i := 0; i < int(modifiers.ChildCount()); i++ {
		child := modifiers.Child(i)
		if child.Type() != "marker_annotation" && child.Type() != "annotation" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := strings.TrimPrefix(nameNode.Content(source), "@")
		if model.HTTPMappingSet[name] {
			return true
		}
	}
	return false
}

func findChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return n.Child(i)
		}
	}
	return nil
}
