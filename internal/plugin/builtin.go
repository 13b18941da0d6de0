package plugin

import (
	"fmt"
	"io/fs"
	"path"

	"github.com/kestrelworks/cmslens/assets"
	"github.com/kestrelworks/cmslens/internal/manifest"
)

// BuiltinSource marks bundles loaded from the embedded assets.
const BuiltinSource = "builtin"

// LoadBuiltin loads every bundled plugin from the embedded assets.
func LoadBuiltin() (*Set, error) {
	set := NewSet()
	entries, err := fs.ReadDir(assets.FS, "plugins")
	if err != nil {
		return nil, fmt.Errorf("plugin: read embedded plugins: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub, err := fs.Sub(assets.FS, path.Join("plugins", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("plugin: open embedded %s: %w", entry.Name(), err)
		}
		p, err := Load(sub, BuiltinSource)
		if err != nil {
			return nil, err
		}
		if err := set.Add(p, false); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// BuiltinMarketplace parses the embedded marketplace manifest.
func BuiltinMarketplace() (manifest.Marketplace, error) {
	raw, err := fs.ReadFile(assets.FS, "marketplace.json")
	if err != nil {
		return manifest.Marketplace{}, fmt.Errorf("plugin: read embedded marketplace: %w", err)
	}
	return manifest.ParseMarketplace(raw)
}
