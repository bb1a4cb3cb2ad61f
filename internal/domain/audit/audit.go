// Package audit records who changed what for stock, sales and tenant administration.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionStockIn Action = "stock_in"
	ActionSale    Action = "sale"
)

// Entry is a single audit record.
type Entry struct {
	ID         id.ID           `db:"id" json:"id"`
	TenantID   *id.ID          `db:"tenant_id" json:"tenantId,omitempty"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   id.ID           `db:"entity_id" json:"entityId"`
	Action     Action          `db:"action" json:"action"`
	UserID     string          `db:"user_id" json:"userId,omitempty"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// Recorder persists audit entries. Record must join the transaction in ctx.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// NewEntry builds an entry for the current caller.
func NewEntry(ctx context.Context, tenantID id.ID, entityType string, entityID id.ID, action Action, payload any) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal audit payload: %w", err)
	}
	e := Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		Payload:    raw,
		CreatedAt:  time.Now().UTC(),
	}
	if !id.IsNil(tenantID) {
		e.TenantID = &tenantID
	}
	return e, nil
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }

// History implements Recorder.
func (Nop) History(context.Context, string, id.ID, int) ([]Entry, error) { return nil, nil }

var _ Recorder = Nop{}
