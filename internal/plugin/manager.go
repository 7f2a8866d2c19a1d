package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ManifestFile is the manifest name expected in each plugin directory.
const ManifestFile = "plugin.json"

// ErrPluginNotFound is returned when a requested plugin cannot be found.
var ErrPluginNotFound = errors.New("plugin not found")

// Manager keeps the set of plugins found under one directory.
type Manager struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager creates a Manager for dir. Call Discover to load plugins.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:     dir,
		logger:  logger.With("component", "plugins"),
		plugins: make(map[string]*Plugin),
	}
}

// Discover replaces the plugin set with the subdirectories of the plugin
// directory that hold a valid manifest. A missing directory yields no
// plugins. Invalid manifests are logged and skipped.
func (m *Manager) Discover() error {
	var entries []os.DirEntry
	info, err := os.Stat(m.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("stat plugin dir: %w", err)
	case info.IsDir():
		if entries, err = os.ReadDir(m.dir); err != nil {
			return fmt.Errorf("read plugin dir: %w", err)
		}
	}

	found := make(map[string]*Plugin, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := readManifest(filepath.Join(m.dir, e.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			m.logger.Warn("skipping plugin", "dir", e.Name(), "error", err)
			continue
		}
		if prev, dup := found[p.Manifest.Name]; dup {
			m.logger.Warn("duplicate plugin name", "name", p.Manifest.Name, "kept", prev.Path, "skipped", p.Path)
			continue
		}
		found[p.Manifest.Name] = p
		m.logger.Debug("discovered plugin", "name", p.Manifest.Name, "version", p.Manifest.Version)
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	m.logger.Info("plugins discovered", "dir", m.dir, "count", len(found))
	return nil
}

func readManifest(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var mf Manifest
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if mf.Name == "" || mf.Executable == "" {
		return nil, errors.New("manifest needs name and executable")
	}

	return &Plugin{
		Manifest:   mf,
		Path:       dir,
		Executable: filepath.Join(dir, mf.Executable),
	}, nil
}

// Get returns the plugin called name, or ErrPluginNotFound.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.plugins[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// List returns the plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Plugin) int {
		return strings.Compare(a.Manifest.Name, b.Manifest.Name)
	})
	return out
}

// PluginDir returns the directory scanned by Discover.
func (m *Manager) PluginDir() string {
	return m.dir
}
