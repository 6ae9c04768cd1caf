// internal/pkg/outbox/model.go
package outbox

import (
	"time"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Record 对应 outbox_events 表，Payload 保存完整的事件信封 JSON。
type Record struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	EventID       string    `gorm:"size:64;uniqueIndex;not null"`
	EventType     string    `gorm:"size:64;not null"`
	Topic         string    `gorm:"size:128;not null"`
	MsgKey        string    `gorm:"column:msg_key;size:128"`
	Payload       []byte    `gorm:"type:blob;not null"`
	Headers       []byte    `gorm:"type:blob"`
	Status        Status    `gorm:"size:16;not null;index:idx_outbox_claim,priority:1"`
	Attempts      int       `gorm:"not null;default:0"`
	NextAttemptAt time.Time `gorm:"not null;index:idx_outbox_claim,priority:2"`
	LeaseOwner    string    `gorm:"size:64"`
	LeaseUntil    *time.Time
	LastError     string `gorm:"type:text"`
	CreatedAt     time.Time
	SentAt        *time.Time
}

func (Record) TableName() string {
	return "outbox_events"
}
