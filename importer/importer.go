// Package importer locates the source code of modules named in import
// statements.
package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrModuleNotFound is returned when no source exists for a module name.
var ErrModuleNotFound = errors.New("module not found")

// DefaultExtension is the file extension of jml source files.
const DefaultExtension = ".jml"

// Importer resolves a dotted module name, such as "shapes.circle", to the
// source code of the module.
type Importer interface {
	Import(name string) (string, error)
}

// LocalImporter reads modules from a directory tree. The name a.b resolves
// to Dir/a/b with each of the configured extensions tried in order.
type LocalImporter struct {
	Dir        string
	Extensions []string
}

// NewLocalImporter returns an importer rooted at dir that looks for files
// with the default extension.
func NewLocalImporter(dir string) *LocalImporter {
	return &LocalImporter{Dir: dir, Extensions: []string{DefaultExtension}}
}

// Import reads the source of the named module.
func (i *LocalImporter) Import(name string) (string, error) {
	path, err := i.resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("import %s: %w", name, err)
	}
	return string(data), nil
}

func (i *LocalImporter) resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("import: empty module name: %w", ErrModuleNotFound)
	}
	parts := strings.Split(name, ".")
	for _, part := range parts {
		if part == "" || part == "_" {
			return "", fmt.Errorf("import %s: invalid module name: %w", name, ErrModuleNotFound)
		}
	}
	base := filepath.Join(append([]string{i.Dir}, parts...)...)
	exts := i.Extensions
	if len(exts) == 0 {
		exts = []string{DefaultExtension}
	}
	for _, ext := range exts {
		path := base + ext
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("import %s: %w", name, ErrModuleNotFound)
}

// MapImporter serves modules from memory. It is handy for embedding scripts
// and for tests.
type MapImporter map[string]string

// Import returns the source registered under name.
func (m MapImporter) Import(name string) (string, error) {
	source, ok := m[name]
	if !ok {
		return "", fmt.Errorf("import %s: %w", name, ErrModuleNotFound)
	}
	return source, nil
}
