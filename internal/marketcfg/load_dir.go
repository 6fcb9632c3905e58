package marketcfg

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LoadDir decodes every *.yaml/*.yml file in dir as a Market configuration
// document (spec.md §6). Files are read in lexical order so that, like the
// timetable itself, a given directory always produces the same market list.
func LoadDir(dir string) ([]Market, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("marketcfg: read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	markets := make([]Market, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("marketcfg: read %s: %w", name, err)
		}
		m, err := Load(data)
		if err != nil {
			return nil, fmt.Errorf("marketcfg: %s: %w", name, err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}
