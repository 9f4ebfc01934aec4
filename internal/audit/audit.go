package audit

import (
	"context"
	"time"
)

// Outcomes recorded for a gateway request. Every terminal request state
// produces exactly one record.
const (
	OutcomeSuccess   = "success"
	OutcomeDenied    = "denied"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Record is one append-only access decision entry. Records are never mutated
// or deleted by the gateway; retention is an external concern.
type Record struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	RequestID         string    `json:"request_id,omitempty"`
	UserID            string    `json:"user_id"`
	OrganizationScope []string  `json:"organization_scope,omitempty"`
	AppIDs            []string  `json:"app_ids,omitempty"`
	Outcome           string    `json:"outcome"`
	LatencyMs         int64     `json:"latency_ms"`
	CacheHit          bool      `json:"cache_hit"`
}

// Sink appends audit records. Append is best-effort relative to the
// user-facing path: implementations and callers swallow failures rather than
// block or fail the response.
type Sink interface {
	Append(ctx context.Context, record Record) error
}
