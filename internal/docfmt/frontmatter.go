// Package docfmt reads and writes the markdown-with-YAML-frontmatter format
// shared by agent definitions, skill documents, and generated reports. A
// document starts with a `---` fence, carries a YAML metadata block, and
// closes the block with a second fence before the markdown body.
package docfmt

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("docfmt: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block was never closed.
	ErrMalformedFrontMatter = errors.New("docfmt: malformed frontmatter")
)

// Split separates the raw YAML metadata block from the markdown body.
func Split(content []byte) (meta, body []byte, err error) {
	if len(content) == 0 {
		return nil, nil, ErrMissingFrontMatter
	}
	normalized := normalizeNewlines(content)
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, nil, ErrMissingFrontMatter
	}
	rest := normalized[4:]
	parts := bytes.SplitN(rest, []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return nil, nil, ErrMalformedFrontMatter
	}
	return parts[0], bytes.TrimLeft(parts[1], "\n"), nil
}

// Parse decodes the metadata block into out and returns the markdown body.
func Parse(content []byte, out any) ([]byte, error) {
	meta, body, err := Split(content)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(meta, out); err != nil {
		return nil, fmt.Errorf("docfmt: parse frontmatter: %w", err)
	}
	return body, nil
}

// Compose renders metadata + body with YAML fences.
func Compose(meta any, body []byte) ([]byte, error) {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("docfmt: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

func normalizeNewlines(content []byte) []byte {
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
}
