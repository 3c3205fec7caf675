package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/action_catalog.json data/cause_catalog.json
var fs embed.FS

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Load returns the process-wide validated catalog. The embedded documents
// are the default; CATALOG_DIR overrides them with action_catalog.yaml /
// cause_catalog.yaml for authoring environments. A malformed catalog is
// fatal: callers must abort startup rather than serve partial data.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = load()
	})
	return loaded, loadErr
}

// Reset drops the process-wide cache. Tests only.
func Reset() {
	loadOnce = sync.Once{}
	loaded = nil
	loadErr = nil
}

func load() (*Catalog, error) {
	var actions ActionCatalog
	if err := loadDoc("action_catalog", &actions); err != nil {
		return nil, err
	}
	var causes CauseCatalog
	if err := loadDoc("cause_catalog", &causes); err != nil {
		return nil, err
	}
	c := New(&actions, &causes)
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

func loadDoc(name string, out any) error {
	dir := strings.TrimSpace(os.Getenv("CATALOG_DIR"))
	if dir != "" {
		path := filepath.Join(dir, name+".yaml")
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read catalog override %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, out); err != nil {
			return fmt.Errorf("parse catalog override %s: %w", path, err)
		}
		return nil
	}
	b, err := fs.ReadFile("data/" + name + ".json")
	if err != nil {
		return fmt.Errorf("read embedded catalog %s: %w", name, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse embedded catalog %s: %w", name, err)
	}
	return nil
}
