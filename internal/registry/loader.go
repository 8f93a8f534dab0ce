package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"llmgate/internal/common/fsutil"
	"llmgate/internal/config"
	"llmgate/pkg/types"
)

// manifestExts are the recognized manifest extensions.
var manifestExts = map[string]bool{".yaml": true, ".yml": true, ".toml": true, ".json": true}

// IsManifest reports whether name has a manifest extension.
func IsManifest(name string) bool {
	return manifestExts[strings.ToLower(filepath.Ext(name))]
}

// LoadDir reads every model manifest in dir, sorted by file name. Each file
// declares one model; a missing name defaults to the file name without its
// extension. Invalid manifests are skipped and reported in the joined error
// alongside the valid specs.
func LoadDir(dir string) ([]types.ModelSpec, error) {
	abs, err := fsutil.Resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var (
		specs []types.ModelSpec
		errs  []error
		seen  = map[string]string{}
	)
	for _, e := range entries {
		if e.IsDir() || !IsManifest(e.Name()) {
			continue
		}
		spec, err := LoadFile(filepath.Join(abs, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := seen[spec.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: model %q already declared in %s", e.Name(), spec.Name, prev))
			continue
		}
		seen[spec.Name] = e.Name()
		specs = append(specs, spec)
	}
	return specs, errors.Join(errs...)
}

// LoadFile decodes and validates a single manifest.
func LoadFile(path string) (types.ModelSpec, error) {
	var spec types.ModelSpec
	b, err := os.ReadFile(path)
	if err != nil {
		return spec, err
	}
	name := filepath.Base(path)
	if err := config.Decode(name, b, &spec); err != nil {
		return spec, fmt.Errorf("%s: %w", name, err)
	}
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if strings.TrimSpace(spec.Endpoint) == "" {
		return spec, fmt.Errorf("%s: endpoint is required", name)
	}
	if spec.MaxConcurrency < 0 {
		return spec, fmt.Errorf("%s: max_concurrency must be >= 0", name)
	}
	return spec, nil
}
