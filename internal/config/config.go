package config

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/fnship/fnship/internal/models"
)

// Manifest is the deploy manifest (fnship.toml). Relative directories are
// resolved against the manifest's own location.
type Manifest struct {
	Region     string     `toml:"region"`
	CodeBucket string     `toml:"code_bucket"`
	Functions  []Function `toml:"function"`
}

// Function is one [[function]] block in the manifest.
type Function struct {
	Name         string   `toml:"name"`
	HandlerDir   string   `toml:"handler_dir"`
	Libs         []string `toml:"libs"`
	EndpointsDir string   `toml:"endpoints_dir"`
	FunctionName string   `toml:"function_name"`
	Handler      string   `toml:"handler"`
	Role         string   `toml:"role"`
	Runtime      string   `toml:"runtime"`
	Timeout      int32    `toml:"timeout"`
	MemorySize   int32    `toml:"memory_size"`
	Publish      *bool    `toml:"publish"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("error reading manifest %s: %w", path, err)
	}

	if len(m.Functions) == 0 {
		return nil, fmt.Errorf("manifest %s defines no functions", path)
	}

	seen := make(map[string]bool)
	for i, fn := range m.Functions {
		if fn.Name == "" {
			return nil, fmt.Errorf("manifest %s: function %d has no name", path, i)
		}
		if fn.HandlerDir == "" {
			return nil, fmt.Errorf("manifest %s: function %s has no handler_dir", path, fn.Name)
		}
		if seen[fn.Name] {
			return nil, fmt.Errorf("manifest %s: duplicate function name %s", path, fn.Name)
		}
		seen[fn.Name] = true
	}

	m.resolvePaths(filepath.Dir(path))
	return &m, nil
}

// resolvePaths anchors relative source directories at the manifest dir.
func (m *Manifest) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	for i := range m.Functions {
		fn := &m.Functions[i]
		fn.HandlerDir = resolve(fn.HandlerDir)
		fn.EndpointsDir = resolve(fn.EndpointsDir)
		for j, lib := range fn.Libs {
			fn.Libs[j] = resolve(lib)
		}
	}
}

// Definitions converts the manifest's function blocks into immutable
// definitions with defaults merged in.
func (m *Manifest) Definitions() []models.FunctionDefinition {
	defs := make([]models.FunctionDefinition, 0, len(m.Functions))
	for _, fn := range m.Functions {
		defs = append(defs, models.NewFunctionDefinition(
			fn.Name,
			fn.HandlerDir,
			fn.Libs,
			fn.EndpointsDir,
			models.ParamOverrides{
				FunctionName: fn.FunctionName,
				Handler:      fn.Handler,
				Role:         fn.Role,
				Runtime:      fn.Runtime,
				Timeout:      fn.Timeout,
				MemorySize:   fn.MemorySize,
				Publish:      fn.Publish,
			},
		))
	}
	return defs
}
