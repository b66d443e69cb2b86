package query

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"gareport/internal/report"
)

// LoadTemplates reads every template in a YAML file, or in every .yaml and
// .yml file of a directory. A file may hold several documents
func LoadTemplates(path string) ([]QueryTemplate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}
	if !info.IsDir() {
		return loadFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}
	var templates []QueryTemplate
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		ts, err := loadFile(filepath.Join(path, entry.Name()))
		if err != nil {
			return nil, err
		}
		templates = append(templates, ts...)
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})
	return templates, nil
}

// FindTemplate loads templates from path and returns the one named name
// With a single-template file the name may be empty
func FindTemplate(path, name string) (*QueryTemplate, error) {
	templates, err := LoadTemplates(path)
	if err != nil {
		return nil, err
	}
	if name == "" && len(templates) == 1 {
		return &templates[0], nil
	}
	for i := range templates {
		if templates[i].Name == name {
			return &templates[i], nil
		}
	}
	return nil, fmt.Errorf("template %q not found in %s", name, path)
}

func loadFile(path string) ([]QueryTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	var templates []QueryTemplate
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var t QueryTemplate
		err := dec.Decode(&t)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if t.Name == "" {
			t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		t.Path = path
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// SaveTemplate writes a template as a single YAML document
func SaveTemplate(path string, t *QueryTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}
	// Store "sessions-" as "-sessions"
	out := *t
	out.Sort = report.FormatOrderBy(report.ParseOrderBy(t.Sort))

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write template file: %w", err)
	}
	return nil
}
