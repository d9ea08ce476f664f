// Package prompt renders the model prompts from an embedded YAML catalog.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultCatalog []byte

// Name identifies a prompt template.
type Name string

// Prompt templates.
const (
	Classify          Name = "classify"
	FullSummary       Name = "full_summary"
	RetrievalSummary  Name = "retrieval_summary"
	QuestionAnswering Name = "question_answering"
	Chat              Name = "chat"
	Overview          Name = "overview"
)

var required = []Name{Classify, FullSummary, RetrievalSummary, QuestionAnswering, Chat, Overview}

// IntentLine is one intent offered to the classifier.
type IntentLine struct {
	Label       string
	Description string
}

// ClassifyData fills the classify template.
type ClassifyData struct {
	Intents []IntentLine
	Query   string
}

// TranscriptData fills the full_summary and overview templates.
type TranscriptData struct {
	Transcript string
	Query      string
}

// RetrievalData fills the retrieval_summary and question_answering templates.
type RetrievalData struct {
	Knowledge string
	Query     string
}

// ChatData fills the chat template. History lines are chronological.
type ChatData struct {
	Title   string
	Summary string
	History []string
	Query   string
}

type catalogFile struct {
	Version   int               `yaml:"version"`
	Templates map[string]string `yaml:"templates"`
}

// Catalog is a parsed, immutable set of templates.
type Catalog struct {
	version   int
	templates map[Name]*template.Template
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse reads a YAML catalog. Every known template must be present.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}

	c := &Catalog{version: file.Version, templates: make(map[Name]*template.Template, len(required))}
	for _, name := range required {
		text, ok := file.Templates[string(name)]
		if !ok {
			return nil, fmt.Errorf("prompt catalog: missing template %q", name)
		}
		tmpl, err := template.New(string(name)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("prompt catalog: template %q: %w", name, err)
		}
		c.templates[name] = tmpl
	}
	return c, nil
}

// Version returns the catalog version.
func (c *Catalog) Version() int { return c.version }

// Render executes the named template with data.
func (c *Catalog) Render(name Name, data any) (string, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}
