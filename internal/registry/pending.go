package registry

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/model"
	"github.com/sells-group/baseline-cli/internal/store"
)

// enqueue adds entry to the pending queue. A queued entry for the same
// vendor and signature is replaced but keeps its ID and creation time.
func (r *Registry) enqueue(ctx context.Context, entry model.RegistryEntry) (string, error) {
	var id string
	err := store.UpdateJSON(ctx, r.store, store.BucketPending, Key(entry.Vendor, entry.Signature), func(p *model.PendingEntry) error {
		if p.ID == "" {
			p.ID = uuid.New().String()
			p.CreatedAt = r.now()
		}
		entry.UpdatedAt = r.now()
		p.RegistryEntry = entry
		id = p.ID
		return nil
	})
	if err != nil {
		return "", eris.Wrap(err, "registry: enqueue pending")
	}
	return id, nil
}

type pendingDoc struct {
	key   string
	entry model.PendingEntry
}

func (r *Registry) pendingDocs(ctx context.Context) ([]pendingDoc, error) {
	docs, err := r.store.List(ctx, store.BucketPending, "")
	if err != nil {
		return nil, eris.Wrap(err, "registry: list pending")
	}
	out := make([]pendingDoc, 0, len(docs))
	for _, d := range docs {
		var p model.PendingEntry
		if err := decode(d, &p); err != nil {
			return nil, err
		}
		out = append(out, pendingDoc{key: d.Key, entry: p})
	}
	sortByTime(out, func(d pendingDoc) time.Time { return d.entry.CreatedAt }, false)
	return out, nil
}

// ListPending returns the queue, oldest first.
func (r *Registry) ListPending(ctx context.Context) ([]model.PendingEntry, error) {
	docs, err := r.pendingDocs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.PendingEntry, len(docs))
	for i, d := range docs {
		out[i] = d.entry
	}
	return out, nil
}

// findPending matches id exactly or as a unique prefix.
func (r *Registry) findPending(ctx context.Context, id string) (*pendingDoc, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrPendingNotFound
	}
	docs, err := r.pendingDocs(ctx)
	if err != nil {
		return nil, err
	}
	var match *pendingDoc
	for i := range docs {
		switch {
		case docs[i].entry.ID == id:
			return &docs[i], nil
		case strings.HasPrefix(docs[i].entry.ID, id):
			if match != nil {
				return nil, eris.Errorf("registry: pending id %q is ambiguous", id)
			}
			match = &docs[i]
		}
	}
	if match == nil {
		return nil, eris.Wrapf(ErrPendingNotFound, "registry: pending %q", id)
	}
	return match, nil
}

// GetPending returns the pending entry with the given ID or unique ID prefix.
func (r *Registry) GetPending(ctx context.Context, id string) (*model.PendingEntry, error) {
	d, err := r.findPending(ctx, id)
	if err != nil {
		return nil, err
	}
	return &d.entry, nil
}

// Approve moves a pending entry into the registry. With an edited mapping
// that differs from the queued one the change is recorded as a correction;
// otherwise the entry's source is credited with a success.
func (r *Registry) Approve(ctx context.Context, id string, edited *model.FieldMapping) (*model.RegistryEntry, error) {
	d, err := r.findPending(ctx, id)
	if err != nil {
		return nil, err
	}
	entry := d.entry.RegistryEntry

	corrected := edited != nil && len(entry.Mapping.Diff(*edited)) > 0
	if corrected {
		if _, err := r.RecordCorrection(ctx, CorrectionRequest{
			Vendor:    entry.Vendor,
			Columns:   entry.Columns,
			Original:  entry.Mapping,
			Corrected: *edited,
			Source:    entry.Source,
		}); err != nil {
			return nil, err
		}
		entry.Mapping = *edited
		entry.Source = model.SourceManual
	} else {
		if err := r.Save(ctx, entry); err != nil {
			return nil, err
		}
		if err := r.TrackMappingSuccess(ctx, entry.Source); err != nil {
			return nil, err
		}
	}

	if err := r.store.Delete(ctx, store.BucketPending, d.key); err != nil {
		return nil, eris.Wrap(err, "registry: remove approved pending entry")
	}
	zap.L().Info("registry: pending mapping approved",
		zap.String("pending_id", d.entry.ID),
		zap.String("vendor", entry.Vendor),
		zap.Bool("corrected", corrected),
	)
	return &entry, nil
}

// ApproveAll approves every pending entry as queued.
func (r *Registry) ApproveAll(ctx context.Context) (int, error) {
	return r.approveWhere(ctx, func(model.PendingEntry) bool { return true })
}

// AutoApprovePending approves the pending entries that clear the
// auto-approve confidence bar and map both date and language.
func (r *Registry) AutoApprovePending(ctx context.Context) (int, error) {
	return r.approveWhere(ctx, func(p model.PendingEntry) bool {
		return r.clearsAutoApprove(p.FieldConfidence, p.DataConfidence) &&
			len(p.Mapping.Missing(model.RecordFields()...)) == 0
	})
}

func (r *Registry) approveWhere(ctx context.Context, keep func(model.PendingEntry) bool) (int, error) {
	pending, err := r.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range pending {
		if !keep(p) {
			continue
		}
		if _, err := r.Approve(ctx, p.ID, nil); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// RemovePending drops a pending entry without approving it.
func (r *Registry) RemovePending(ctx context.Context, id string) error {
	d, err := r.findPending(ctx, id)
	if err != nil {
		return err
	}
	return eris.Wrap(r.store.Delete(ctx, store.BucketPending, d.key), "registry: remove pending")
}
