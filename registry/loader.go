package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/hkcm91/stickernest-runtime/manifest"
)

// Bundle file names recognized by the directory loader.
const (
	manifestJSONName = "manifest.json"
	manifestYAMLName = "manifest.yaml"
	bodyName         = "widget.html"
)

// LoadDir reads widget bundles from a directory. Each immediate
// subdirectory holding a manifest.json or manifest.yaml (plus an optional
// widget.html body) is one bundle. Malformed bundles are logged and
// skipped so one broken widget never blocks the rest of the catalog;
// only a failure to read the directory itself is an error. Bundles are
// returned in directory-name order.
func LoadDir(dir string, logger *slog.Logger) ([]Widget, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read widget dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var widgets []Widget
	for _, name := range names {
		bundleDir := filepath.Join(dir, name)
		w, err := loadBundle(bundleDir)
		if err != nil {
			logger.Error("skipping widget bundle", "dir", bundleDir, "error", err)
			continue
		}
		widgets = append(widgets, w)
	}
	return widgets, nil
}

func loadBundle(dir string) (Widget, error) {
	var (
		m   *manifest.WidgetManifest
		err error
	)

	if data, readErr := os.ReadFile(filepath.Join(dir, manifestJSONName)); readErr == nil {
		m, err = manifest.ParseJSON(data)
	} else if data, readErr := os.ReadFile(filepath.Join(dir, manifestYAMLName)); readErr == nil {
		m, err = manifest.ParseYAML(data)
	} else {
		return Widget{}, fmt.Errorf("no %s or %s", manifestJSONName, manifestYAMLName)
	}
	if err != nil {
		return Widget{}, err
	}

	w := Widget{Manifest: m}
	if body, readErr := os.ReadFile(filepath.Join(dir, bodyName)); readErr == nil {
		w.HTML = string(body)
	}
	return w, nil
}
