package gen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/syssam/zgen"
)

// Manifest is the project file listing the scripts deployed with the
// database project. Paths are slash separated and relative to the schema
// root.
type Manifest struct {
	Scripts []string `yaml:"scripts"`
}

// LoadManifest reads a manifest file. A missing file is an empty manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, zgen.NewIOError("read", path, err)
	}
	return parseManifest(path, data)
}

func parseManifest(path string, data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, zgen.NewParseError(path, "manifest", err)
	}
	return m, nil
}

// Has reports whether the manifest lists script.
func (m *Manifest) Has(script string) bool {
	return slices.Contains(m.Scripts, script)
}

// ManifestSync appends created scripts to the project manifest. Entries are
// never removed.
type ManifestSync struct {
	cfg *Config
	eng *engine
}

// NewManifestSync returns the manifest synchronizer.
func NewManifestSync(cfg *Config, eng *engine) *ManifestSync {
	return &ManifestSync{cfg: cfg, eng: eng}
}

// entry returns the manifest entry of a script path.
func (s *ManifestSync) entry(path string) (string, error) {
	rel, err := filepath.Rel(s.cfg.Path(s.cfg.SchemaRoot), path)
	if err != nil {
		return "", fmt.Errorf("gen: manifest entry %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

// Append adds the scripts the manifest does not list yet.
func (s *ManifestSync) Append(ctx context.Context, scripts ...string) (zgen.Result, error) {
	if len(scripts) == 0 {
		return zgen.Skipped, nil
	}
	path := s.cfg.ManifestPath()
	return s.eng.update(ctx, path, func(before []byte) ([]byte, error) {
		m := &Manifest{}
		if before != nil {
			var err error
			if m, err = parseManifest(path, before); err != nil {
				return nil, err
			}
		}
		added := false
		for _, sc := range scripts {
			e, err := s.entry(sc)
			if err != nil {
				return nil, err
			}
			if !m.Has(e) {
				m.Scripts = append(m.Scripts, e)
				added = true
			}
		}
		if !added {
			return before, nil
		}
		return yaml.Marshal(m)
	})
}
