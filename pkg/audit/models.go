// Package audit records who changed what in the registry. Entries are
// append-only: nothing in this package updates or deletes them.
package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Actions written by the detection engine, the resolution service and the API.
const (
	ActionConflictDetection  = "AI_CONFLICT_DETECTION"
	ActionDuplicateDetection = "AI_DUPLICATE_DETECTION"
	ActionDetectionFailed    = "AI_DETECTION_FAILED"
	ActionConflictResolved   = "RESOLVE_CONFLICT"
	ActionModelRetrained     = "AI_MODEL_RETRAIN"
	ActionAPIRequest         = "API_REQUEST"
)

// JSONMap is a map stored as a JSON text column.
type JSONMap map[string]any

// Scan implements the sql.Scanner interface for JSONMap.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	return json.Unmarshal(raw, m)
}

// Value implements the driver.Valuer interface for JSONMap.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Entry is an immutable audit record.
type Entry struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Actor     string    `gorm:"column:actor;index:idx_audit_actor_time,priority:1;not null"`
	Action    string    `gorm:"column:action;index:idx_audit_action_time,priority:1;not null"`
	Table     string    `gorm:"column:table_name;index:idx_audit_record,priority:1"`
	RecordID  string    `gorm:"column:record_id;index:idx_audit_record,priority:2"`
	Outcome   string    `gorm:"column:outcome;not null;default:success"`
	OldValues JSONMap   `gorm:"column:old_values;type:text"`
	NewValues JSONMap   `gorm:"column:new_values;type:text"`
	Metadata  JSONMap   `gorm:"column:metadata;type:text"`
	RequestID string    `gorm:"column:request_id;index"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_audit_actor_time,priority:2;index:idx_audit_action_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (Entry) TableName() string { return "audit_entries" }
