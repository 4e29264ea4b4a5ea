package registry

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/baseline-cli/internal/model"
)

// LoadEntriesFromFile reads a JSON array of model.RegistryEntry from path.
func LoadEntriesFromFile(path string) ([]model.RegistryEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read entries fixture")
	}

	var entries []model.RegistryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal entries fixture")
	}

	return entries, nil
}

// Import saves every entry from the JSON file at path and returns how many
// were written. Entries with an invalid mapping abort the import.
func (r *Registry) Import(ctx context.Context, path string) (int, error) {
	entries, err := LoadEntriesFromFile(path)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if e.Source == "" {
			e.Source = model.SourceManual
		}
		if err := r.Save(ctx, e); err != nil {
			return i, eris.Wrapf(err, "registry: import entry %d", i)
		}
	}
	return len(entries), nil
}

// Export writes every approved entry to path as an indented JSON array.
func (r *Registry) Export(ctx context.Context, path string) (int, error) {
	entries, err := r.Entries(ctx)
	if err != nil {
		return 0, err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return 0, eris.Wrap(err, "registry: marshal entries")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, eris.Wrap(err, "registry: write entries fixture")
	}
	return len(entries), nil
}
