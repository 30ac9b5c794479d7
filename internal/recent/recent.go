// Package recent keeps the small most-recently-viewed issue list the
// board sidebar shows: bounded, most-recent-first, de-duplicated, and
// persisted between runs.
package recent

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MaxEntries bounds the list.
const MaxEntries = 5

const fileName = "recent.yaml"

// List persists recently-viewed issue ids under a state directory.
type List struct {
	path string
}

// NewList creates a List stored at <stateDir>/recent.yaml.
func NewList(stateDir string) *List {
	return &List{path: filepath.Join(stateDir, fileName)}
}

// IDs returns the stored ids, most recent first. A missing file is an
// empty list, not an error.
func (l *List) IDs() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recent list: %w", err)
	}

	var ids []string
	if err := yaml.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse recent list: %w", err)
	}
	return ids, nil
}

// Record moves id to the front of the list, dropping any earlier
// occurrence and anything beyond MaxEntries, then saves.
func (l *List) Record(id string) error {
	ids, err := l.IDs()
	if err != nil {
		return err
	}

	out := make([]string, 0, MaxEntries)
	out = append(out, id)
	for _, existing := range ids {
		if existing == id {
			continue
		}
		out = append(out, existing)
		if len(out) == MaxEntries {
			break
		}
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode recent list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("write recent list: %w", err)
	}
	return nil
}
