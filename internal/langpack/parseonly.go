package langpack

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/python"

	"codegov/internal/types"
)

// parseOnlyPack covers languages the engine can parse and inspect but
// not yet rewrite. Rename and ReplaceAPI report ErrUnsupported.
type parseOnlyPack struct {
	lang   types.Language
	exts   []string
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewPython returns the Python pack. Parse and symbol search only.
func NewPython() Pack {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &parseOnlyPack{
		lang:   types.LangPython,
		exts:   []string{".py"},
		parser: p,
	}
}

// NewJava returns the Java pack. Parse and symbol search only.
func NewJava() Pack {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &parseOnlyPack{
		lang:   types.LangJava,
		exts:   []string{".java"},
		parser: p,
	}
}

func (p *parseOnlyPack) Language() types.Language { return p.lang }
func (p *parseOnlyPack) Extensions() []string     { return p.exts }

func (p *parseOnlyPack) parse(ctx context.Context, content []byte) (*sitter.Tree, error) {
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

func (p *parseOnlyPack) Check(ctx context.Context, content []byte) error {
	tree, err := p.parse(ctx, content)
	if err != nil {
		return err
	}
	tree.Close()
	return nil
}

func (p *parseOnlyPack) Rename(ctx context.Context, content []byte, q RenameQuery) ([]byte, int, error) {
	return nil, 0, fmt.Errorf("%w: renameSymbol on %s", ErrUnsupported, p.lang)
}

func (p *parseOnlyPack) ReplaceAPI(ctx context.Context, content []byte, q ReplaceAPIQuery) ([]byte, int, error) {
	return nil, 0, fmt.Errorf("%w: replaceAPI on %s", ErrUnsupported, p.lang)
}

func (p *parseOnlyPack) FindSymbol(ctx context.Context, content []byte, name string) (bool, error) {
	tree, err := p.parse(ctx, content)
	if err != nil {
		return false, err
	}
	defer tree.Close()

	found := false
	walk(tree.RootNode(), func(n *sitter.Node) {
		if n.Type() == "identifier" && nodeText(n, content) == name {
			found = true
		}
	})
	return found, nil
}
