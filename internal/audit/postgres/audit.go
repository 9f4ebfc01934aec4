package postgres

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/pulsemetrics/analytics-gateway/internal/audit"
)

type auditRow struct {
	ID                string    `gorm:"primaryKey;column:id"`
	Timestamp         time.Time `gorm:"column:ts"`
	RequestID         string    `gorm:"column:request_id"`
	UserID            string    `gorm:"column:user_id"`
	OrganizationScope string    `gorm:"column:organization_scope"`
	AppIDs            string    `gorm:"column:app_ids"`
	Outcome           string    `gorm:"column:outcome"`
	LatencyMs         int64     `gorm:"column:latency_ms"`
	CacheHit          bool      `gorm:"column:cache_hit"`
}

func (auditRow) TableName() string { return "audit_records" }

// AuditStore persists audit records. Insert-only: no update or delete path
// exists on this type.
type AuditStore struct {
	db *gorm.DB
}

func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, record audit.Record) error {
	scope, err := json.Marshal(record.OrganizationScope)
	if err != nil {
		return err
	}
	appIDs, err := json.Marshal(record.AppIDs)
	if err != nil {
		return err
	}

	row := auditRow{
		ID:                record.ID,
		Timestamp:         record.Timestamp,
		RequestID:         record.RequestID,
		UserID:            record.UserID,
		OrganizationScope: string(scope),
		AppIDs:            string(appIDs),
		Outcome:           record.Outcome,
		LatencyMs:         record.LatencyMs,
		CacheHit:          record.CacheHit,
	}

	return s.db.WithContext(ctx).Create(&row).Error
}
