package docfmt

import (
	"errors"
	"strings"
	"testing"
)

const sampleDoc = `---
name: sitecore-security
category: security
---

# Security rules

Body text.
`

func TestParse(t *testing.T) {
	var meta struct {
		Name     string `yaml:"name"`
		Category string `yaml:"category"`
	}
	body, err := Parse([]byte(sampleDoc), &meta)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.Name != "sitecore-security" || meta.Category != "security" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if !strings.HasPrefix(string(body), "# Security rules") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestParseCRLF(t *testing.T) {
	doc := strings.ReplaceAll(sampleDoc, "\n", "\r\n")
	var meta struct {
		Name string `yaml:"name"`
	}
	if _, err := Parse([]byte(doc), &meta); err != nil {
		t.Fatalf("crlf parse: %v", err)
	}
	if meta.Name != "sitecore-security" {
		t.Fatalf("unexpected name: %q", meta.Name)
	}
}

func TestSplitErrors(t *testing.T) {
	if _, _, err := Split(nil); !errors.Is(err, ErrMissingFrontMatter) {
		t.Fatalf("empty content: %v", err)
	}
	if _, _, err := Split([]byte("# no fence\n")); !errors.Is(err, ErrMissingFrontMatter) {
		t.Fatalf("no fence: %v", err)
	}
	if _, _, err := Split([]byte("---\nname: x\n")); !errors.Is(err, ErrMalformedFrontMatter) {
		t.Fatalf("unterminated fence: %v", err)
	}
}

func TestComposeRoundTrip(t *testing.T) {
	meta := map[string]string{"name": "report"}
	out, err := Compose(meta, []byte("body\n"))
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	var parsed map[string]string
	body, err := Parse(out, &parsed)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if parsed["name"] != "report" || string(body) != "body\n" {
		t.Fatalf("round trip mismatch: %v %q", parsed, body)
	}
}
