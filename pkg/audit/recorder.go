package audit

import (
	"context"
	"log/slog"
)

// Recorder writes audit entries on a best-effort basis. Failures are logged
// and never returned, so auditing cannot block the action being audited.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// StoreRecorder records into a Store.
type StoreRecorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder creates a StoreRecorder. A nil store yields a recorder that
// only logs.
func NewRecorder(store *Store, logger *slog.Logger) *StoreRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreRecorder{store: store, logger: logger}
}

// Record appends e, logging any failure.
func (r *StoreRecorder) Record(ctx context.Context, e Entry) {
	if r.store == nil {
		r.logger.Debug("audit store not configured, dropping entry", "action", e.Action, "recordID", e.RecordID)
		return
	}
	if err := r.store.Append(ctx, &e); err != nil {
		r.logger.Error("failed to write audit entry", "action", e.Action, "table", e.Table, "recordID", e.RecordID, "error", err)
	}
}

// NopRecorder discards every entry.
type NopRecorder struct{}

// Record does nothing.
func (NopRecorder) Record(context.Context, Entry) {}
