// Package prompts holds the prompt templates sent to the analysis model.
// Templates are JSON files of key/template pairs embedded at compile time and
// use {{.Name}} placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

var placeholder = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9_]*)\}\}`)

// file is one parsed prompt file. It is parsed at most once per process.
type file struct {
	once    sync.Once
	prompts map[string]string
	err     error
}

var (
	filesMu sync.Mutex
	files   = map[string]*file{}
)

// Get retrieves the template stored under key in filename (for example "analysis.json").
func Get(filename, key string) (string, error) {
	prompts, err := load(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := prompts[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// Placeholders lists the distinct placeholder names in template in order of first use.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Format substitutes data into template in a single pass, so placeholder text inside a
// value (a transcript quoting "{{.Rubric}}") is left untouched. Names missing from data
// are kept verbatim.
func Format(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if value, ok := data[name]; ok {
			return value
		}
		return m
	})
}

// Render loads a template and fills every placeholder from data.
// It fails when the template uses a name data does not provide.
func Render(filename, key string, data map[string]string) (string, error) {
	template, err := Get(filename, key)
	if err != nil {
		return "", err
	}
	for _, name := range Placeholders(template) {
		if _, ok := data[name]; !ok {
			return "", fmt.Errorf("prompt %s/%s: no value for {{.%s}}", filename, key, name)
		}
	}
	return Format(template, data), nil
}

func load(filename string) (map[string]string, error) {
	filesMu.Lock()
	f, ok := files[filename]
	if !ok {
		f = &file{}
		files[filename] = f
	}
	filesMu.Unlock()

	f.once.Do(func() {
		f.prompts, f.err = parse(filename)
	})
	return f.prompts, f.err
}

func parse(filename string) (map[string]string, error) {
	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}
	return prompts, nil
}
