// Package frontmatter reads and patches the YAML header of markdown notes.
//
// Reads go through typed accessors on Frontmatter; writes go through Patch,
// which edits the YAML node tree so untouched keys keep their order and
// formatting.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Well-known keys.
const (
	KeyNoteID       = "noteId"
	KeyLegacyNoteID = "source_app_id"
	KeyTitle        = "title"
	KeyType         = "type"
	KeyTags         = "tags"
)

const delim = "---"

// Split separates the YAML block (without delimiters) from the body.
// ok is false when text does not start with a closed frontmatter block,
// in which case body is the whole text.
func Split(text string) (block, body string, ok bool) {
	if !strings.HasPrefix(text, delim) {
		return "", text, false
	}
	nl := strings.IndexByte(text, '\n')
	if nl < 0 || strings.TrimRight(text[:nl], "\r ") != delim {
		return "", text, false
	}
	rest := text[nl+1:]
	pos := 0
	for {
		end := strings.IndexByte(rest[pos:], '\n')
		line, next := rest[pos:], len(rest)
		if end >= 0 {
			line, next = rest[pos:pos+end], pos+end+1
		}
		if strings.TrimRight(line, "\r ") == delim {
			return rest[:pos], rest[next:], true
		}
		if end < 0 {
			return "", text, false
		}
		pos = next
	}
}

// Body returns text without its frontmatter block.
func Body(text string) string {
	_, body, _ := Split(text)
	return body
}

// Parse returns the frontmatter of text and the remaining body. Missing or
// invalid YAML yields a nil Frontmatter and the full text as body.
func Parse(text string) (Frontmatter, string) {
	block, body, ok := Split(text)
	if !ok {
		return nil, text
	}
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		return nil, text
	}
	fm := make(Frontmatter, len(raw))
	for k, v := range raw {
		fm[k] = FromAny(v)
	}
	return fm, body
}

// Malformed reports whether text opens with a closed frontmatter block
// that is not a valid YAML mapping.
func Malformed(text string) bool {
	block, _, ok := Split(text)
	if !ok {
		return false
	}
	var raw map[string]any
	return yaml.Unmarshal([]byte(block), &raw) != nil
}

// Editor mutates a frontmatter mapping node in place.
type Editor struct {
	m *yaml.Node
}

func (e *Editor) index(key string) int {
	for i := 0; i+1 < len(e.m.Content); i += 2 {
		if e.m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// Has reports whether key is present.
func (e *Editor) Has(key string) bool {
	return e.index(key) >= 0
}

// Node returns the raw value node stored under key.
func (e *Editor) Node(key string) (*yaml.Node, bool) {
	i := e.index(key)
	if i < 0 {
		return nil, false
	}
	return e.m.Content[i+1], true
}

// SetNode stores a raw value node under key, replacing any existing value
// in place or appending the key at the end.
func (e *Editor) SetNode(key string, value *yaml.Node) {
	if i := e.index(key); i >= 0 {
		e.m.Content[i+1] = value
		return
	}
	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	e.m.Content = append(e.m.Content, k, value)
}

// Set stores v under key.
func (e *Editor) Set(key string, v Value) error {
	var n yaml.Node
	if err := n.Encode(v.Any()); err != nil {
		return fmt.Errorf("frontmatter: encode %s: %w", key, err)
	}
	e.SetNode(key, &n)
	return nil
}

// Delete removes key if present.
func (e *Editor) Delete(key string) {
	if i := e.index(key); i >= 0 {
		e.m.Content = append(e.m.Content[:i], e.m.Content[i+2:]...)
	}
}

// Patch applies fn to the frontmatter of text and returns the rewritten
// text. A frontmatter block is created when text has none. Patch fails
// rather than guessing when the existing block is not a YAML mapping.
func Patch(text string, fn func(e *Editor) error) (string, error) {
	block, body, ok := Split(text)
	if !ok {
		body = text
	}

	var doc yaml.Node
	if strings.TrimSpace(block) != "" {
		if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
			return "", fmt.Errorf("frontmatter: parse: %w", err)
		}
	}
	var m *yaml.Node
	switch {
	case doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 && doc.Content[0].Kind == yaml.MappingNode:
		m = doc.Content[0]
	case doc.Kind == 0:
		m = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	default:
		return "", fmt.Errorf("frontmatter: block is not a mapping")
	}

	if err := fn(&Editor{m: m}); err != nil {
		return "", err
	}

	if len(m.Content) == 0 {
		return body, nil
	}
	rendered, err := render(m)
	if err != nil {
		return "", err
	}
	return delim + "\n" + rendered + delim + "\n" + body, nil
}

func render(m *yaml.Node) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("frontmatter: render: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("frontmatter: render: %w", err)
	}
	return buf.String(), nil
}
