package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Preserved holds raw frontmatter values captured from one version of a
// note so they can be written back onto another.
type Preserved struct {
	keys  []string
	nodes []*yaml.Node
}

// Len returns the number of captured keys.
func (p Preserved) Len() int { return len(p.keys) }

// Keys returns the captured keys in capture order.
func (p Preserved) Keys() []string { return append([]string(nil), p.keys...) }

// Collect captures the values of keys present in the frontmatter of text.
// Missing keys are skipped.
func Collect(text string, keys []string) (Preserved, error) {
	var p Preserved
	if len(keys) == 0 {
		return p, nil
	}
	block, _, ok := Split(text)
	if !ok || strings.TrimSpace(block) == "" {
		return p, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return p, fmt.Errorf("frontmatter: parse: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return p, fmt.Errorf("frontmatter: block is not a mapping")
	}
	e := &Editor{m: doc.Content[0]}
	for _, k := range keys {
		if n, ok := e.Node(k); ok {
			p.keys = append(p.keys, k)
			p.nodes = append(p.nodes, n)
		}
	}
	return p, nil
}

// Apply writes the captured values onto the frontmatter of text.
func (p Preserved) Apply(text string) (string, error) {
	if len(p.keys) == 0 {
		return text, nil
	}
	return Patch(text, func(e *Editor) error {
		for i, k := range p.keys {
			e.SetNode(k, p.nodes[i])
		}
		return nil
	})
}
