package memory

import (
	"context"
	"sort"

	"retailpos/internal/core/id"
	"retailpos/internal/domain/audit"
)

// AuditRecorder implements audit.Recorder.
type AuditRecorder struct {
	store *Store
}

// Audit returns the audit recorder.
func (s *Store) Audit() *AuditRecorder { return &AuditRecorder{store: s} }

var _ audit.Recorder = (*AuditRecorder)(nil)

func (r *AuditRecorder) Record(ctx context.Context, entry audit.Entry) error {
	return r.store.update(ctx, func(d *dataset) error {
		d.audit = append(d.audit, entry)
		return nil
	})
}

func (r *AuditRecorder) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	var out []audit.Entry
	err := r.store.view(ctx, func(d *dataset) error {
		for _, e := range d.audit {
			if e.EntityType == entityType && e.EntityID == entityID {
				out = append(out, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
