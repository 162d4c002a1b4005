// Package prompt renders agent prompt templates. Templates are plain
// text/template files with optional YAML frontmatter; user-controlled values
// are sanitized before substitution so an issue body cannot restructure the
// prompt around it.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Meta holds frontmatter metadata for a template.
type Meta struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Renderer loads, caches and executes prompt templates.
type Renderer struct {
	baseDir      string
	overrideDirs []string // checked in order, first match wins
	cache        map[string]*template.Template
	metaCache    map[string]*Meta
	mu           sync.RWMutex
}

// NewRenderer creates a renderer reading templates from baseDir, with
// optional override directories taking precedence.
func NewRenderer(baseDir string, overrideDirs ...string) *Renderer {
	return &Renderer{
		baseDir:      baseDir,
		overrideDirs: overrideDirs,
		cache:        make(map[string]*template.Template),
		metaCache:    make(map[string]*Meta),
	}
}

// DefaultRenderer creates a renderer with the standard override paths:
// project-local .agent-orchestrator/prompts/, then user config.
func DefaultRenderer(baseDir, projectRoot string) *Renderer {
	home, _ := os.UserHomeDir()
	dirs := []string{}
	if projectRoot != "" {
		dirs = append(dirs, filepath.Join(projectRoot, ".agent-orchestrator", "prompts"))
	}
	dirs = append(dirs, filepath.Join(home, ".config", "agent-orchestrator", "prompts"))
	return NewRenderer(baseDir, dirs...)
}

func (r *Renderer) loadContent(name string) ([]byte, error) {
	for _, dir := range r.overrideDirs {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			return data, nil
		}
	}
	return os.ReadFile(filepath.Join(r.baseDir, name))
}

// parseFrontmatter splits content into frontmatter and body. Content without
// a leading delimiter, or with a malformed one, is treated as all body.
func parseFrontmatter(content []byte) (*Meta, string, error) {
	str := string(content)

	if !strings.HasPrefix(str, "---\n") {
		return nil, str, nil
	}

	end := strings.Index(str[4:], "\n---\n")
	if end == -1 {
		return nil, str, nil
	}

	var meta Meta
	if err := yaml.Unmarshal([]byte(str[4:4+end]), &meta); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}

	return &meta, str[4+end+5:], nil
}

// Load parses and caches a template by file name (e.g. "issue.md").
func (r *Renderer) Load(name string) (*template.Template, *Meta, error) {
	r.mu.RLock()
	if tmpl, ok := r.cache[name]; ok {
		meta := r.metaCache[name]
		r.mu.RUnlock()
		return tmpl, meta, nil
	}
	r.mu.RUnlock()

	content, err := r.loadContent(name)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", name, err)
	}

	meta, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", name, err)
	}

	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"sanitize": Sanitize,
	}).Parse(body)
	if err != nil {
		return nil, nil, fmt.Errorf("compile template %s: %w", name, err)
	}

	r.mu.Lock()
	r.cache[name] = tmpl
	r.metaCache[name] = meta
	r.mu.Unlock()

	return tmpl, meta, nil
}

// Execute loads and executes a template with the given data.
func (r *Renderer) Execute(name string, data any) (string, error) {
	tmpl, _, err := r.Load(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return buf.String(), nil
}

// ClearCache drops all cached templates so the next Load re-reads from disk.
func (r *Renderer) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string]*template.Template)
	r.metaCache = make(map[string]*Meta)
	r.mu.Unlock()
}

// IssueData holds template variables for the issue work prompt.
type IssueData struct {
	IssueNumber int
	Title       string
	Body        string
	Branch      string
}

// BuildIssuePrompt renders the issue work prompt, sanitizing the
// user-controlled title and body.
func (r *Renderer) BuildIssuePrompt(name string, data IssueData) (string, error) {
	data.Title = Sanitize(data.Title)
	data.Body = Sanitize(data.Body)
	return r.Execute(name, data)
}

var (
	excessNewlines  = regexp.MustCompile(`\n{3,}`)
	leadingHeadings = regexp.MustCompile(`^(#{1,6}[ \t][^\n]*\n+)+`)
)

// Sanitize normalizes a user-controlled value before template substitution:
// runs of three or more newlines collapse to two, and leading markdown
// headings are stripped so the value cannot pose as prompt structure.
func Sanitize(value string) string {
	value = leadingHeadings.ReplaceAllString(value, "")
	value = excessNewlines.ReplaceAllString(value, "\n\n")
	return strings.TrimSpace(value)
}
