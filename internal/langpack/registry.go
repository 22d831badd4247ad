package langpack

import (
	"fmt"

	"codegov/internal/types"
)

// Registry maps languages to their packs.
type Registry struct {
	packs map[types.Language]Pack
}

// NewRegistry builds a registry with every shipped pack installed.
func NewRegistry() *Registry {
	r := &Registry{packs: make(map[types.Language]Pack)}
	for _, p := range []Pack{NewTypeScript(), NewJavaScript(), NewPython(), NewJava()} {
		r.packs[p.Language()] = p
	}
	return r
}

// Get returns the pack for a language.
func (r *Registry) Get(lang types.Language) (Pack, error) {
	p, ok := r.packs[lang]
	if !ok {
		return nil, fmt.Errorf("no language pack for %q", lang)
	}
	return p, nil
}
