// Package store persists mapping state and run history.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/baseline-cli/internal/model"
)

// Buckets used by the registry packages.
const (
	BucketRegistry    = "registry"
	BucketPending     = "pending"
	BucketCorrections = "corrections"
	BucketVendorHints = "vendor_hints"
	BucketSourceStats = "source_stats"
)

// Document is a stored value with its key.
type Document struct {
	Key   string
	Value []byte
}

// UpdateFunc receives the current value (nil when absent) and returns the
// value to store. Returning nil leaves the key untouched.
type UpdateFunc func(current []byte) ([]byte, error)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store defines the persistence interface. Update is an atomic
// read-modify-write of a single key.
type Store interface {
	// Documents
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, value []byte) error
	Update(ctx context.Context, bucket, key string, fn UpdateFunc) error
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket, prefix string) ([]Document, error)

	// Runs
	CreateRun(ctx context.Context, inputs []string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// GetJSON decodes the value at bucket/key into out. It reports false on a miss.
func GetJSON(ctx context.Context, s Store, bucket, key string, out any) (bool, error) {
	data, err := s.Get(ctx, bucket, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, eris.Wrapf(err, "store: decode %s/%s", bucket, key)
	}
	return true, nil
}

// PutJSON encodes v and stores it at bucket/key.
func PutJSON(ctx context.Context, s Store, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "store: encode %s/%s", bucket, key)
	}
	return s.Put(ctx, bucket, key, data)
}

// UpdateJSON atomically decodes the value at bucket/key into a fresh T
// (zero value when absent), applies fn and writes the result back.
func UpdateJSON[T any](ctx context.Context, s Store, bucket, key string, fn func(v *T) error) error {
	return s.Update(ctx, bucket, key, func(current []byte) ([]byte, error) {
		var v T
		if current != nil {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, eris.Wrapf(err, "store: decode %s/%s", bucket, key)
			}
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, eris.Wrapf(err, "store: encode %s/%s", bucket, key)
		}
		return data, nil
	})
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite", "":
		if dsn == "" {
			dsn = "baseline.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}
