// Package audit records security-relevant and data-mutating events. The
// recorder is a consumer of pipeline outcomes, never a gate: a failed audit
// write must not fail the request it describes.
package audit

import (
	"context"
	"time"
)

// Actions recognised in audit entries.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionView     = "view"
	ActionDownload = "download"
	ActionUpload   = "upload"
	ActionPreview  = "preview"
	ActionShare    = "share"
)

// SentinelEntityID marks entries for routes without a resolvable entity id.
const SentinelEntityID = "-"

// Entry is one append-only audit record.
type Entry struct {
	ID         string         `json:"id"`
	ActorID    int64          `json:"actor_id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	Success    bool           `json:"success"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	OccurredAt time.Time      `json:"occurred_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Sink accepts entries for asynchronous persistence. The production sink
// enqueues a background task; tests use an in-memory collector.
type Sink interface {
	Submit(ctx context.Context, entry Entry) error
}
