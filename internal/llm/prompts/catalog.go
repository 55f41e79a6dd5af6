// Package prompts holds the generation prompts as named text/templates.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

const (
	ExtractJob   = "extract_job"
	DraftResume  = "draft_resume"
	ReviseResume = "revise_resume"
)

//go:embed prompts.yaml
var defaultCatalog []byte

type catalogFile struct {
	Version int               `yaml:"version"`
	Prompts map[string]string `yaml:"prompts"`
}

// Catalog is a parsed set of prompt templates.
type Catalog struct {
	version   int
	templates map[string]*template.Template
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse builds a catalog from YAML. Every required prompt must be present.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}

	c := &Catalog{version: file.Version, templates: make(map[string]*template.Template, len(file.Prompts))}
	for name, body := range file.Prompts {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", name, err)
		}
		c.templates[name] = tmpl
	}
	for _, name := range []string{ExtractJob, DraftResume, ReviseResume} {
		if _, ok := c.templates[name]; !ok {
			return nil, fmt.Errorf("prompt catalog missing %q", name)
		}
	}
	return c, nil
}

// Render executes the named prompt with data.
func (c *Catalog) Render(name string, data any) (string, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Version returns the catalog version.
func (c *Catalog) Version() int {
	return c.version
}
