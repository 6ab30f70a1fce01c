package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is a named external data source queried by the "lookup"
// expression function. Fetch returns the value for key and whether the
// key exists; a missing key is not an error and resolves to a soft
// miss (null) at the expression level.
type Source interface {
	Fetch(key string) (any, bool, error)
}

// EnvSource resolves keys from the process environment.
type EnvSource struct{}

// Fetch returns the value of the environment variable named key.
func (EnvSource) Fetch(key string) (any, bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

// FileSource resolves keys as file paths relative to Root. Files with
// a .yaml, .yml or .json extension are parsed into a document; any
// other file resolves to its contents as a string.
type FileSource struct {
	Root string
}

// Fetch reads the file named by key under the source root.
func (s FileSource) Fetch(key string) (any, bool, error) {
	path := key
	if s.Root != "" {
		path = filepath.Join(s.Root, key)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, false, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return doc, true, nil
	default:
		return string(data), true, nil
	}
}
