// Package prompt renders the instructions and user prompts sent to the chat
// model.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Roles of transcript messages.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of a chat transcript.
type Message struct {
	Role string
	Text string
}

//go:embed default.yaml
var defaultTemplates []byte

var ErrEmptyUserTemplate = errors.New("user template is empty")

// Templates holds the system instruction and the user prompt template.
type Templates struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`

	user *template.Template
}

// Load reads templates from path. An empty path selects the built-in set.
// Fields missing from the file keep their built-in values.
func Load(path string) (*Templates, error) {
	if path == "" {
		return Parse(defaultTemplates)
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from PROMPTS_PATH
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return Parse(data)
}

func Default() *Templates {
	t, err := Parse(defaultTemplates)
	if err != nil {
		panic(err)
	}
	return t
}

func Parse(data []byte) (*Templates, error) {
	var base Templates
	if err := yaml.Unmarshal(defaultTemplates, &base); err != nil {
		return nil, fmt.Errorf("parse built-in prompts: %w", err)
	}

	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if strings.TrimSpace(t.System) == "" {
		t.System = base.System
	}
	if t.User == "" {
		t.User = base.User
	}
	if strings.TrimSpace(t.User) == "" {
		return nil, ErrEmptyUserTemplate
	}

	tmpl, err := template.New("user").Option("missingkey=error").Parse(t.User)
	if err != nil {
		return nil, fmt.Errorf("parse user template: %w", err)
	}
	t.user = tmpl
	return &t, nil
}

// Render fills the user template with the query and retrieved context.
func (t *Templates) Render(query, context string) (string, error) {
	var b strings.Builder
	err := t.user.Execute(&b, struct {
		Query   string
		Context string
	}{Query: query, Context: context})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
