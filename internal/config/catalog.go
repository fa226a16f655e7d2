package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jinzhu/configor"

	"clinic-booking/internal/lifecycle"
)

// CatalogFile is the on-disk shape of catalog.yml (JSON works too).
type CatalogFile struct {
	Assignments []lifecycle.Assignment `yaml:"assignments" json:"assignments"`
	Slots       []string               `yaml:"slots" json:"slots"`
	WindowDays  int                    `yaml:"window_days" json:"window_days" default:"3"`
}

// LoadCatalog reads the service table and booking window from path. A
// missing file yields the built-in defaults; a malformed one is an error.
func LoadCatalog(path string) (*lifecycle.Catalog, lifecycle.Window, error) {
	w := lifecycle.DefaultWindow()

	if path == "" {
		return lifecycle.DefaultCatalog(), w, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return lifecycle.DefaultCatalog(), w, nil
	}

	var f CatalogFile
	if err := configor.New(&configor.Config{Silent: true}).Load(&f, path); err != nil {
		return nil, w, fmt.Errorf("config: load catalog %s: %w", path, err)
	}

	cat := lifecycle.DefaultCatalog()
	if len(f.Assignments) > 0 {
		cat = lifecycle.NewCatalog(f.Assignments)
	}
	if len(f.Slots) > 0 {
		w.Slots = f.Slots
	}
	if f.WindowDays < 0 {
		return nil, w, fmt.Errorf("config: window_days must not be negative, got %d", f.WindowDays)
	}
	w.Days = f.WindowDays
	return cat, w, nil
}
