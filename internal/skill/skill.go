// Package skill loads skill documents: markdown references of framework
// idioms bundled with a plugin. The enhance command mines their fenced code
// blocks for concrete examples to inline into recommendation documents.
package skill

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kestrelworks/cmslens/internal/docfmt"
)

// Skill is one parsed skill document.
type Skill struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Platform    string `yaml:"platform,omitempty"`

	Body string `yaml:"-"`
	Path string `yaml:"-"`
}

// Example is one fenced code block extracted from a skill body.
type Example struct {
	Language string
	Heading  string
	Code     string
}

// Parse decodes a skill document.
func Parse(path string, content []byte) (*Skill, error) {
	var s Skill
	body, err := docfmt.Parse(content, &s)
	if err != nil {
		return nil, fmt.Errorf("skill %s: %w", path, err)
	}
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return nil, fmt.Errorf("skill %s: name is required", path)
	}
	s.Body = string(body)
	s.Path = path
	return &s, nil
}

// Examples walks the markdown body and collects fenced code blocks together
// with the nearest preceding heading.
func (s *Skill) Examples() []Example {
	source := []byte(s.Body)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var examples []Example
	heading := ""
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading = string(headingText(n, source))
		case *ast.FencedCodeBlock:
			examples = append(examples, Example{
				Language: string(n.Language(source)),
				Heading:  heading,
				Code:     blockText(n, source),
			})
		}
		return ast.WalkContinue, nil
	})
	return examples
}

func headingText(h *ast.Heading, source []byte) []byte {
	var out []byte
	for child := h.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			out = append(out, t.Segment.Value(source)...)
		}
	}
	return out
}

func blockText(block *ast.FencedCodeBlock, source []byte) string {
	var sb strings.Builder
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		sb.Write(segment.Value(source))
	}
	return sb.String()
}
