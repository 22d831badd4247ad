package langpack

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"codegov/internal/types"
)

// ecmaPack implements the full operation surface for TypeScript and
// JavaScript. A tree-sitter parser is not safe for concurrent use, so
// every parse happens under the pack mutex.
type ecmaPack struct {
	lang   types.Language
	exts   []string
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewTypeScript returns the TypeScript pack.
func NewTypeScript() Pack {
	p := sitter.NewParser()
	p.SetLanguage(typescript.GetLanguage())
	return &ecmaPack{
		lang:   types.LangTypeScript,
		exts:   []string{".ts", ".tsx"},
		parser: p,
	}
}

// NewJavaScript returns the JavaScript pack.
func NewJavaScript() Pack {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &ecmaPack{
		lang:   types.LangJavaScript,
		exts:   []string{".js", ".jsx", ".mjs", ".cjs"},
		parser: p,
	}
}

func (p *ecmaPack) Language() types.Language { return p.lang }
func (p *ecmaPack) Extensions() []string     { return p.exts }

func (p *ecmaPack) parse(ctx context.Context, content []byte) (*sitter.Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	if tree.RootNode().HasError() {
		tree.Close()
		return nil, fmt.Errorf("syntax error in %s source", p.lang)
	}
	return tree, nil
}

func (p *ecmaPack) Check(ctx context.Context, content []byte) error {
	tree, err := p.parse(ctx, content)
	if err != nil {
		return err
	}
	tree.Close()
	return nil
}

// identifierTypes are the node types a rename targets. Type positions
// and shorthand object properties count as identifier occurrences.
var identifierTypes = map[string]bool{
	"identifier":                            true,
	"property_identifier":                   true,
	"shorthand_property_identifier":         true,
	"shorthand_property_identifier_pattern": true,
	"type_identifier":                       true,
}

func (p *ecmaPack) Rename(ctx context.Context, content []byte, q RenameQuery) ([]byte, int, error) {
	tree, err := p.parse(ctx, content)
	if err != nil {
		return nil, 0, err
	}
	defer tree.Close()

	var spans []span
	walk(tree.RootNode(), func(n *sitter.Node) {
		if identifierTypes[n.Type()] && nodeText(n, content) == q.Name {
			spans = append(spans, span{n.StartByte(), n.EndByte()})
		}
	})
	return splice(content, spans, q.NewName), len(spans), nil
}

func (p *ecmaPack) ReplaceAPI(ctx context.Context, content []byte, q ReplaceAPIQuery) ([]byte, int, error) {
	tree, err := p.parse(ctx, content)
	if err != nil {
		return nil, 0, err
	}
	defer tree.Close()

	type edit struct {
		s    span
		text string
	}
	var edits []edit
	matched := 0

	walk(tree.RootNode(), func(n *sitter.Node) {
		if n.Type() != "call_expression" {
			return
		}
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() != "member_expression" {
			return
		}
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		if obj == nil || prop == nil {
			return
		}
		if obj.Type() != "identifier" || nodeText(obj, content) != q.Object {
			return
		}
		if nodeText(prop, content) != q.Property {
			return
		}
		matched++

		if q.NewProperty != "" {
			edits = append(edits, edit{span{prop.StartByte(), prop.EndByte()}, q.NewProperty})
		}
		if len(q.ArgsMap) == 0 {
			return
		}
		args := n.ChildByFieldName("arguments")
		if args == nil {
			return
		}
		// Rename keys of object-literal arguments at this call site only.
		walk(args, func(arg *sitter.Node) {
			if arg.Type() != "pair" {
				return
			}
			key := arg.ChildByFieldName("key")
			if key == nil {
				return
			}
			if newKey, ok := q.ArgsMap[nodeText(key, content)]; ok {
				edits = append(edits, edit{span{key.StartByte(), key.EndByte()}, newKey})
			}
		})
		walk(args, func(arg *sitter.Node) {
			if arg.Type() != "shorthand_property_identifier" {
				return
			}
			if newKey, ok := q.ArgsMap[nodeText(arg, content)]; ok {
				// Shorthand { old } becomes { new: old } to preserve the value.
				edits = append(edits, edit{span{arg.StartByte(), arg.EndByte()},
					newKey + ": " + nodeText(arg, content)})
			}
		})
	})

	// Apply byte edits right to left so earlier spans stay valid.
	sort.Slice(edits, func(i, j int) bool { return edits[i].s.start > edits[j].s.start })
	out := content
	for _, e := range edits {
		out = append(out[:e.s.start:e.s.start], append([]byte(e.text), out[e.s.end:]...)...)
	}
	return out, matched, nil
}

func (p *ecmaPack) FindSymbol(ctx context.Context, content []byte, name string) (bool, error) {
	tree, err := p.parse(ctx, content)
	if err != nil {
		return false, err
	}
	defer tree.Close()

	found := false
	walk(tree.RootNode(), func(n *sitter.Node) {
		if identifierTypes[n.Type()] && nodeText(n, content) == name {
			found = true
		}
	})
	return found, nil
}

type span struct {
	start, end uint32
}

// splice replaces every span with text, right to left.
func splice(content []byte, spans []span, text string) []byte {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })
	out := content
	for _, s := range spans {
		out = append(out[:s.start:s.start], append([]byte(text), out[s.end:]...)...)
	}
	return out
}

func nodeText(n *sitter.Node, content []byte) string {
	return string(content[n.StartByte():n.EndByte()])
}

// walk visits every node of the tree, named and anonymous.
func walk(n *sitter.Node, fn func(*sitter.Node)) {
	fn(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}
